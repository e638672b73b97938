package rules

import (
	"fmt"
	"math/rand"

	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/checkers"
	"github.com/rocketscienceinc/duoplay-backend/internal/connectfour"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
	"github.com/rocketscienceinc/duoplay-backend/internal/tictactoe"
)

// ComputerMove chooses the computer's move for side.
func ComputerMove(game entity.Game, state entity.GameState, side entity.Side, chainFrom *checkers.Square, rng *rand.Rand) (entity.Move, error) {
	if kind, ok := state.Game(); !ok || kind != game {
		return entity.Move{}, fmt.Errorf("state does not hold a %s board: %w", game, apperror.ErrIllegalMove)
	}

	switch game {
	case entity.GameTicTacToe:
		cell, err := tictactoe.BestMove(*state.TicTacToe, side.TicTacToeMark())
		if err != nil {
			return entity.Move{}, err
		}
		return entity.Move{Cell: cell}, nil

	case entity.GameConnectFour:
		col, err := connectfour.BotMove(*state.ConnectFour, side.ConnectFourDisc(), rng)
		if err != nil {
			return entity.Move{}, err
		}
		return entity.Move{Column: col}, nil

	case entity.GameCheckers:
		chainFrom = chainOf(state, chainFrom)
		if chainFrom != nil {
			step, ok := checkers.BotContinuation(*state.Checkers, *chainFrom, rng)
			if !ok {
				return entity.Move{}, fmt.Errorf("no capture from %v: %w", *chainFrom, checkers.ErrMoveNotAllowed)
			}
			return entity.Move{From: step.From, To: step.To}, nil
		}

		step, err := checkers.BotMove(*state.Checkers, side.CheckersColor(), rng)
		if err != nil {
			return entity.Move{}, err
		}
		return entity.Move{From: step.From, To: step.To}, nil

	default:
		return entity.Move{}, fmt.Errorf("%w: %q", apperror.ErrUnknownGame, string(game))
	}
}
