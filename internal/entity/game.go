package entity

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/checkers"
	"github.com/rocketscienceinc/duoplay-backend/internal/connectfour"
	"github.com/rocketscienceinc/duoplay-backend/internal/tictactoe"
)

type Game string

const (
	GameTicTacToe   Game = "tictactoe"
	GameConnectFour Game = "connect4"
	GameCheckers    Game = "checkers"
)

var Games = []Game{GameTicTacToe, GameConnectFour, GameCheckers}

func ParseGame(name string) (Game, error) {
	game := Game(name)
	if err := game.Validate(); err != nil {
		return "", err
	}
	return game, nil
}

func (that Game) Validate() error {
	switch that {
	case GameTicTacToe, GameConnectFour, GameCheckers:
		return nil
	default:
		return fmt.Errorf("%w: %q", apperror.ErrUnknownGame, string(that))
	}
}

func (that Game) Title() string {
	switch that {
	case GameTicTacToe:
		return "Tic Tac Toe"
	case GameConnectFour:
		return "Connect Four"
	case GameCheckers:
		return "Checkers"
	default:
		return string(that)
	}
}

// WinScore is the final score credited to the winner of one game.
func (that Game) WinScore() int {
	switch that {
	case GameTicTacToe:
		return 10
	case GameConnectFour:
		return 15
	case GameCheckers:
		return 20
	default:
		return 0
	}
}

// Side is the seat a player occupies. Player one always opens.
type Side int

const (
	NoSide Side = iota
	SideOne
	SideTwo
)

func (that Side) Opponent() Side {
	switch that {
	case SideOne:
		return SideTwo
	case SideTwo:
		return SideOne
	default:
		return NoSide
	}
}

func (that Side) TicTacToeMark() tictactoe.Mark {
	switch that {
	case SideOne:
		return tictactoe.X
	case SideTwo:
		return tictactoe.O
	default:
		return tictactoe.Empty
	}
}

func (that Side) ConnectFourDisc() connectfour.Disc {
	switch that {
	case SideOne:
		return connectfour.Red
	case SideTwo:
		return connectfour.Yellow
	default:
		return connectfour.Empty
	}
}

func (that Side) CheckersColor() checkers.Color {
	switch that {
	case SideOne:
		return checkers.Red
	case SideTwo:
		return checkers.Black
	default:
		return checkers.None
	}
}

// Move is a player's input. Which fields matter depends on the game.
type Move struct {
	Cell   int             `json:"cell"`
	Column int             `json:"column"`
	From   checkers.Square `json:"from"`
	To     checkers.Square `json:"to"`
}

// GameState holds exactly one board, matching the session's game.
type GameState struct {
	TicTacToe   *tictactoe.Board
	ConnectFour *connectfour.Board
	Checkers    *checkers.Board
	// ChainFrom marks the checkers piece that must finish a capture before the turn passes.
	ChainFrom *checkers.Square
}

func InitialState(game Game) (GameState, error) {
	switch game {
	case GameTicTacToe:
		board := tictactoe.NewBoard()
		return GameState{TicTacToe: &board}, nil
	case GameConnectFour:
		board := connectfour.NewBoard()
		return GameState{ConnectFour: &board}, nil
	case GameCheckers:
		board := checkers.NewBoard()
		return GameState{Checkers: &board}, nil
	default:
		return GameState{}, fmt.Errorf("%w: %q", apperror.ErrUnknownGame, string(game))
	}
}

// Game reports which board is set.
func (that GameState) Game() (Game, bool) {
	switch {
	case that.TicTacToe != nil:
		return GameTicTacToe, true
	case that.ConnectFour != nil:
		return GameConnectFour, true
	case that.Checkers != nil:
		return GameCheckers, true
	default:
		return "", false
	}
}

func (that GameState) Clone() GameState {
	var clone GameState
	if that.TicTacToe != nil {
		board := *that.TicTacToe
		clone.TicTacToe = &board
	}
	if that.ConnectFour != nil {
		board := *that.ConnectFour
		clone.ConnectFour = &board
	}
	if that.Checkers != nil {
		board := *that.Checkers
		clone.Checkers = &board
	}
	if that.ChainFrom != nil {
		from := *that.ChainFrom
		clone.ChainFrom = &from
	}
	return clone
}

type stateWire struct {
	Board     json.RawMessage  `json:"board"`
	ChainFrom *checkers.Square `json:"chainFrom,omitempty"`
}

func (that GameState) MarshalJSON() ([]byte, error) {
	var (
		board []byte
		err   error
	)

	switch {
	case that.TicTacToe != nil:
		board, err = json.Marshal(that.TicTacToe)
	case that.ConnectFour != nil:
		board, err = json.Marshal(that.ConnectFour)
	case that.Checkers != nil:
		board, err = json.Marshal(that.Checkers)
	default:
		board = []byte("null")
	}

	if err != nil {
		return nil, fmt.Errorf("failed to encode board: %w", err)
	}

	wire := stateWire{Board: board}
	if that.Checkers != nil {
		wire.ChainFrom = that.ChainFrom
	}

	return json.Marshal(wire)
}

// DecodeState reads a {"board": ...} document as the board of game.
// A chainFrom square is kept for checkers only.
func DecodeState(game Game, data []byte) (GameState, error) {
	var wire stateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return GameState{}, fmt.Errorf("failed to decode game state: %w", err)
	}

	switch game {
	case GameTicTacToe:
		var board tictactoe.Board
		if err := json.Unmarshal(wire.Board, &board); err != nil {
			return GameState{}, err
		}
		return GameState{TicTacToe: &board}, nil
	case GameConnectFour:
		var board connectfour.Board
		if err := json.Unmarshal(wire.Board, &board); err != nil {
			return GameState{}, err
		}
		return GameState{ConnectFour: &board}, nil
	case GameCheckers:
		var board checkers.Board
		if err := json.Unmarshal(wire.Board, &board); err != nil {
			return GameState{}, err
		}
		return GameState{Checkers: &board, ChainFrom: wire.ChainFrom}, nil
	default:
		return GameState{}, fmt.Errorf("%w: %q", apperror.ErrUnknownGame, string(game))
	}
}
