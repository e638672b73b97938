package session

import (
	"github.com/rocketscienceinc/duoplay-backend/internal/checkers"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
)

type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseAwaitingSnapshot Phase = "awaiting_snapshot"
	PhaseMyTurn           Phase = "my_turn"
	PhaseOpponentTurn     Phase = "opponent_turn"
	PhaseFinished         Phase = "finished"
	PhaseClosed           Phase = "closed"
)

// Result is a finished game seen from the local player.
type Result string

const (
	ResultNone Result = ""
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

func resultFor(session *entity.GameSession, player string) Result {
	if session == nil || !session.IsFinished() {
		return ResultNone
	}

	switch session.Winner {
	case entity.WinnerDraw:
		return ResultDraw
	case player:
		return ResultWin
	default:
		return ResultLoss
	}
}

// Selection is the checkers piece picked by the local player and where it may go.
type Selection struct {
	From    checkers.Square `json:"from"`
	Targets []entity.Move   `json:"targets"`
}

// View is a copy of the controller state, safe to hand to other goroutines.
type View struct {
	Phase     Phase               `json:"phase"`
	Player    string              `json:"player"`
	Session   *entity.GameSession `json:"session,omitempty"`
	Result    Result              `json:"result,omitempty"`
	ChainFrom *checkers.Square    `json:"chainFrom,omitempty"`
	Selection *Selection          `json:"selection,omitempty"`
}

// MoveOutcome reports what happened to a local move. A rejected move has
// Accepted false, a Reason, and left both the local state and the store alone.
type MoveOutcome struct {
	Accepted bool   `json:"accepted"`
	Reason   error  `json:"-"`
	Finished bool   `json:"finished"`
	Result   Result `json:"result,omitempty"`
	// ChainContinues means the same piece must jump again before the turn passes.
	ChainContinues bool `json:"chainContinues,omitempty"`
}
