package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// WinnerDraw is stored in GameSession.Winner when nobody won.
const WinnerDraw = "draw"

type Players struct {
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
}

func (that Players) Side(player string) Side {
	switch player {
	case "":
		return NoSide
	case that.Player1:
		return SideOne
	case that.Player2:
		return SideTwo
	default:
		return NoSide
	}
}

func (that Players) BySide(side Side) string {
	switch side {
	case SideOne:
		return that.Player1
	case SideTwo:
		return that.Player2
	default:
		return ""
	}
}

func (that Players) Opponent(player string) string {
	return that.BySide(that.Side(player).Opponent())
}

// GameSession is the shared record two players synchronize on.
// Version starts at 1 and grows by one with every accepted write.
type GameSession struct {
	ID          string    `json:"id"`
	Game        Game      `json:"game"`
	Players     Players   `json:"players"`
	CurrentTurn string    `json:"currentTurn"`
	GameState   GameState `json:"gameState"`
	Status      Status    `json:"status"`
	Winner      string    `json:"winner,omitempty"`
	CreatedAt   int64     `json:"createdAt"`
	Version     int64     `json:"version"`
}

// NewSession seats inviter as player one, who also opens the game.
func NewSession(id string, game Game, inviter, invitee string, createdAt time.Time) (*GameSession, error) {
	if inviter == "" || invitee == "" {
		return nil, apperror.ErrEmptyPlayer
	}

	if inviter == invitee {
		return nil, apperror.ErrSelfInvite
	}

	state, err := InitialState(game)
	if err != nil {
		return nil, err
	}

	return &GameSession{
		ID:          id,
		Game:        game,
		Players:     Players{Player1: inviter, Player2: invitee},
		CurrentTurn: inviter,
		GameState:   state,
		Status:      StatusPlaying,
		CreatedAt:   createdAt.UnixMilli(),
	}, nil
}

func (that *GameSession) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *GameSession) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *GameSession) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *GameSession) ConfirmPlaying() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	case that.IsFinished():
		return apperror.ErrGameFinished
	case that.IsPlaying():
		return nil
	default:
		return fmt.Errorf("unknown session status: %s", that.Status)
	}
}

func (that *GameSession) HasPlayer(player string) bool {
	return that.Players.Side(player) != NoSide
}

func (that *GameSession) Clone() *GameSession {
	clone := *that
	clone.GameState = that.GameState.Clone()
	return &clone
}

// Validate checks the record invariants that hold in every stored version.
func (that *GameSession) Validate() error {
	if err := that.Game.Validate(); err != nil {
		return err
	}

	if game, ok := that.GameState.Game(); !ok || game != that.Game {
		return fmt.Errorf("game state does not match game %q", that.Game)
	}

	if that.Players.Player1 == "" || that.Players.Player2 == "" {
		return apperror.ErrEmptyPlayer
	}

	if that.Players.Player1 == that.Players.Player2 {
		return apperror.ErrSelfInvite
	}

	switch that.Status {
	case StatusWaiting, StatusPlaying, StatusFinished:
	default:
		return fmt.Errorf("status %q: %w", that.Status, apperror.ErrInvalidStatus)
	}

	if that.GameState.ChainFrom != nil && (that.Game != GameCheckers || that.Status != StatusPlaying) {
		return fmt.Errorf("capture chain outside a checkers game in play: %w", apperror.ErrIllegalMove)
	}

	if that.Status == StatusPlaying && !that.HasPlayer(that.CurrentTurn) {
		return fmt.Errorf("current turn %q: %w", that.CurrentTurn, apperror.ErrNotInSession)
	}

	if that.Status == StatusFinished && that.Winner != WinnerDraw && !that.HasPlayer(that.Winner) {
		return fmt.Errorf("winner %q: %w", that.Winner, apperror.ErrNotInSession)
	}

	return nil
}

// Reset restores the opening position with player one to move.
func (that *GameSession) Reset() error {
	state, err := InitialState(that.Game)
	if err != nil {
		return err
	}

	that.GameState = state
	that.CurrentTurn = that.Players.Player1
	that.Status = StatusPlaying
	that.Winner = ""

	return nil
}

// SessionPatch is a partial update. Nil fields are left as they are.
type SessionPatch struct {
	Author      string
	GameState   *GameState
	CurrentTurn *string
	Status      *Status
	Winner      *string
	// Reset ignores the other fields and restores the opening position.
	Reset bool
}

// Apply merges patch into the session. Moves are accepted only from the
// player whose turn it is and only while the game is being played.
func (that *GameSession) Apply(patch SessionPatch) error {
	if !that.HasPlayer(patch.Author) {
		return fmt.Errorf("author %q: %w", patch.Author, apperror.ErrNotInSession)
	}

	if patch.Reset {
		return that.Reset()
	}

	if err := that.ConfirmPlaying(); err != nil {
		return err
	}

	if that.CurrentTurn != patch.Author {
		return apperror.ErrNotYourTurn
	}

	// a move never sends the session back to waiting
	if patch.Status != nil && *patch.Status != StatusPlaying && *patch.Status != StatusFinished {
		return fmt.Errorf("status %q: %w", *patch.Status, apperror.ErrInvalidStatus)
	}

	next := that.Clone()
	if patch.GameState != nil {
		next.GameState = patch.GameState.Clone()
	}
	if patch.CurrentTurn != nil {
		next.CurrentTurn = *patch.CurrentTurn
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.Winner != nil {
		next.Winner = *patch.Winner
	}

	if err := next.Validate(); err != nil {
		return fmt.Errorf("patch rejected: %w", err)
	}

	*that = *next

	return nil
}

type sessionWire struct {
	ID          string          `json:"id"`
	Game        Game            `json:"game"`
	Players     Players         `json:"players"`
	CurrentTurn string          `json:"currentTurn"`
	GameState   json.RawMessage `json:"gameState"`
	Status      Status          `json:"status"`
	Winner      string          `json:"winner,omitempty"`
	CreatedAt   int64           `json:"createdAt"`
	Version     int64           `json:"version"`
}

// UnmarshalJSON decodes gameState according to the game field.
func (that *GameSession) UnmarshalJSON(data []byte) error {
	var wire sessionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("failed to decode session: %w", err)
	}

	state, err := DecodeState(wire.Game, wire.GameState)
	if err != nil {
		return fmt.Errorf("session %s: %w", wire.ID, err)
	}

	*that = GameSession{
		ID:          wire.ID,
		Game:        wire.Game,
		Players:     wire.Players,
		CurrentTurn: wire.CurrentTurn,
		GameState:   state,
		Status:      wire.Status,
		Winner:      wire.Winner,
		CreatedAt:   wire.CreatedAt,
		Version:     wire.Version,
	}

	return nil
}

// SessionChange is one notification from a session's change feed.
// Deleted is set when the record is gone; Session is nil then.
type SessionChange struct {
	Session *GameSession
	Deleted bool
}

type SessionSubscription interface {
	Changes() <-chan SessionChange
	Close() error
}
