package connectfour

import (
	"fmt"
	"math/rand"
)

// BotMove plays greedily: an immediate win, else a block, else the center, else a random open column.
func BotMove(board Board, bot Disc, rng *rand.Rand) (int, error) {
	moves := LegalMoves(board, bot)
	if len(moves) == 0 {
		return -1, fmt.Errorf("no moves for %s: %w", bot, ErrGameOver)
	}

	for _, disc := range []Disc{bot, bot.Opponent()} {
		for _, col := range moves {
			next, err := ApplyMove(board, disc, col)
			if err != nil {
				continue
			}

			if CheckTerminal(next).Winner == disc {
				return col, nil
			}
		}
	}

	if AvailableRow(board, CenterColumn) >= 0 {
		return CenterColumn, nil
	}

	return moves[rng.Intn(len(moves))], nil //nolint: gosec // not used for security
}
