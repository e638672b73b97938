package rules

import (
	"fmt"

	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/checkers"
	"github.com/rocketscienceinc/duoplay-backend/internal/connectfour"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
	"github.com/rocketscienceinc/duoplay-backend/internal/tictactoe"
)

// Verdict is the result of playing one move on a game state.
type Verdict struct {
	State    entity.GameState
	Finished bool
	// Winner is NoSide on a draw or while the game goes on.
	Winner entity.Side
	// ChainFrom is set when a checkers capture must continue from that square.
	ChainFrom *checkers.Square
}

func (that Verdict) IsDraw() bool {
	return that.Finished && that.Winner == entity.NoSide
}

// Options tune rule variants.
type Options struct {
	// CheckersNoMoveLoss makes a checkers side without legal moves lose.
	CheckersNoMoveLoss bool
}

// Apply plays move for side on state. chainFrom restricts a checkers move to
// the next leg of a capture in progress; when nil, the chain recorded in state applies.
func Apply(game entity.Game, state entity.GameState, side entity.Side, move entity.Move, chainFrom *checkers.Square, opts Options) (Verdict, error) {
	if side == entity.NoSide {
		return Verdict{}, apperror.ErrNotInSession
	}

	if kind, ok := state.Game(); !ok || kind != game {
		return Verdict{}, fmt.Errorf("state does not hold a %s board: %w", game, apperror.ErrIllegalMove)
	}

	switch game {
	case entity.GameTicTacToe:
		board, err := tictactoe.ApplyMove(*state.TicTacToe, side.TicTacToeMark(), move.Cell)
		if err != nil {
			return Verdict{}, fmt.Errorf("%w: %w", apperror.ErrIllegalMove, err)
		}

		outcome := tictactoe.CheckTerminal(board)
		return Verdict{
			State:    entity.GameState{TicTacToe: &board},
			Finished: outcome.IsTerminal(),
			Winner:   tictactoeSide(outcome.Winner),
		}, nil

	case entity.GameConnectFour:
		board, err := connectfour.ApplyMove(*state.ConnectFour, side.ConnectFourDisc(), move.Column)
		if err != nil {
			return Verdict{}, fmt.Errorf("%w: %w", apperror.ErrIllegalMove, err)
		}

		outcome := connectfour.CheckTerminal(board)
		return Verdict{
			State:    entity.GameState{ConnectFour: &board},
			Finished: outcome.IsTerminal(),
			Winner:   connectfourSide(outcome.Winner),
		}, nil

	case entity.GameCheckers:
		return applyCheckers(*state.Checkers, side, move, chainOf(state, chainFrom), opts)

	default:
		return Verdict{}, fmt.Errorf("%w: %q", apperror.ErrUnknownGame, string(game))
	}
}

func applyCheckers(board checkers.Board, side entity.Side, move entity.Move, chainFrom *checkers.Square, opts Options) (Verdict, error) {
	step := checkers.Move{From: move.From, To: move.To}

	var (
		result checkers.Result
		err    error
	)
	if chainFrom != nil {
		result, err = checkers.ApplyContinuation(board, *chainFrom, step)
	} else {
		result, err = checkers.ApplyMove(board, side.CheckersColor(), step)
	}
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %w", apperror.ErrIllegalMove, err)
	}

	verdict := Verdict{State: entity.GameState{Checkers: &result.Board}}

	outcome := checkers.CheckTerminal(result.Board)
	if !outcome.IsTerminal() && result.Continues {
		to := step.To
		verdict.ChainFrom = &to
		verdict.State.ChainFrom = &to
		return verdict, nil
	}

	if !outcome.IsTerminal() && opts.CheckersNoMoveLoss {
		outcome = checkers.CheckTerminalStrict(result.Board, side.CheckersColor().Opponent())
	}

	verdict.Finished = outcome.IsTerminal()
	verdict.Winner = checkersSide(outcome.Winner)

	return verdict, nil
}

// LegalMoves lists what side may play. Checkers honours forced capture and chainFrom.
func LegalMoves(game entity.Game, state entity.GameState, side entity.Side, chainFrom *checkers.Square) ([]entity.Move, error) {
	if kind, ok := state.Game(); !ok || kind != game {
		return nil, fmt.Errorf("state does not hold a %s board: %w", game, apperror.ErrIllegalMove)
	}

	var moves []entity.Move
	switch game {
	case entity.GameTicTacToe:
		for _, cell := range tictactoe.LegalMoves(*state.TicTacToe, side.TicTacToeMark()) {
			moves = append(moves, entity.Move{Cell: cell})
		}
	case entity.GameConnectFour:
		for _, col := range connectfour.LegalMoves(*state.ConnectFour, side.ConnectFourDisc()) {
			moves = append(moves, entity.Move{Column: col})
		}
	case entity.GameCheckers:
		chainFrom = chainOf(state, chainFrom)

		var steps []checkers.Move
		if chainFrom != nil {
			steps = checkers.ContinuationMoves(*state.Checkers, *chainFrom)
		} else if !checkers.CheckTerminal(*state.Checkers).IsTerminal() {
			steps = checkers.LegalMoves(*state.Checkers, side.CheckersColor())
		}
		moves = checkersMoves(steps)
	default:
		return nil, fmt.Errorf("%w: %q", apperror.ErrUnknownGame, string(game))
	}

	return moves, nil
}

// MovesFrom lists the checkers moves of the piece on from, for highlighting a selection.
func MovesFrom(state entity.GameState, side entity.Side, from checkers.Square, chainFrom *checkers.Square) ([]entity.Move, error) {
	if state.Checkers == nil {
		return nil, fmt.Errorf("selection needs a checkers board: %w", apperror.ErrIllegalMove)
	}

	chainFrom = chainOf(state, chainFrom)

	if chainFrom != nil {
		if from != *chainFrom {
			return nil, fmt.Errorf("capture must continue from %v: %w", *chainFrom, apperror.ErrIllegalMove)
		}
		return checkersMoves(checkers.ContinuationMoves(*state.Checkers, from)), nil
	}

	return checkersMoves(checkers.MovesFrom(*state.Checkers, side.CheckersColor(), from)), nil
}

func chainOf(state entity.GameState, chainFrom *checkers.Square) *checkers.Square {
	if chainFrom != nil {
		return chainFrom
	}
	return state.ChainFrom
}

func checkersMoves(steps []checkers.Move) []entity.Move {
	moves := make([]entity.Move, 0, len(steps))
	for _, step := range steps {
		moves = append(moves, entity.Move{From: step.From, To: step.To})
	}
	return moves
}

func tictactoeSide(mark tictactoe.Mark) entity.Side {
	switch mark {
	case tictactoe.X:
		return entity.SideOne
	case tictactoe.O:
		return entity.SideTwo
	default:
		return entity.NoSide
	}
}

func connectfourSide(disc connectfour.Disc) entity.Side {
	switch disc {
	case connectfour.Red:
		return entity.SideOne
	case connectfour.Yellow:
		return entity.SideTwo
	default:
		return entity.NoSide
	}
}

func checkersSide(color checkers.Color) entity.Side {
	switch color {
	case checkers.Red:
		return entity.SideOne
	case checkers.Black:
		return entity.SideTwo
	default:
		return entity.NoSide
	}
}
