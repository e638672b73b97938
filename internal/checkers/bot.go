package checkers

import (
	"fmt"
	"math/rand"
)

// BotMove picks a random capture when one exists, otherwise a random legal move.
func BotMove(board Board, bot Color, rng *rand.Rand) (Move, error) {
	moves := LegalMoves(board, bot)
	if len(moves) == 0 {
		return Move{}, fmt.Errorf("no moves for %s: %w", bot, ErrGameOver)
	}

	return pick(moves, rng), nil
}

// BotContinuation picks the next leg of a chain capture for the piece on at.
func BotContinuation(board Board, at Square, rng *rand.Rand) (Move, bool) {
	moves := ContinuationMoves(board, at)
	if len(moves) == 0 {
		return Move{}, false
	}

	return moves[rng.Intn(len(moves))], true //nolint: gosec // not used for security
}

func pick(moves []Move, rng *rand.Rand) Move {
	jumps := make([]Move, 0, len(moves))
	for _, move := range moves {
		if move.IsJump() {
			jumps = append(jumps, move)
		}
	}

	if len(jumps) > 0 {
		return jumps[rng.Intn(len(jumps))] //nolint: gosec // not used for security
	}

	return moves[rng.Intn(len(moves))] //nolint: gosec // not used for security
}
