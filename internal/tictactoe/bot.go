package tictactoe

import "fmt"

const (
	winScore  = 10
	lossScore = -10
)

// BestMove picks the minimax-optimal cell for bot. Ties go to the lowest cell index.
func BestMove(board Board, bot Mark) (int, error) {
	moves := LegalMoves(board, bot)
	if len(moves) == 0 {
		return -1, fmt.Errorf("no moves for %s: %w", bot, ErrGameOver)
	}

	best, bestScore := -1, 0
	for _, cell := range moves {
		board[cell] = bot
		score := minimax(board, bot, false)
		board[cell] = Empty

		if best == -1 || score > bestScore {
			best, bestScore = cell, score
		}
	}

	return best, nil
}

func minimax(board Board, bot Mark, botToMove bool) int {
	outcome := CheckTerminal(board)
	switch {
	case outcome.Winner == bot:
		return winScore
	case outcome.Winner != Empty:
		return lossScore
	case outcome.Draw:
		return 0
	}

	mark := bot
	if !botToMove {
		mark = bot.Opponent()
	}

	best := lossScore - 1
	if !botToMove {
		best = winScore + 1
	}

	for cell := range board {
		if board[cell] != Empty {
			continue
		}

		board[cell] = mark
		score := minimax(board, bot, !botToMove)
		board[cell] = Empty

		if botToMove && score > best || !botToMove && score < best {
			best = score
		}
	}

	return best
}
