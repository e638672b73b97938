package tictactoe

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMove(t *testing.T) {
	t.Run("Places mark without touching the input", func(t *testing.T) {
		// Given: an empty board
		board := NewBoard()

		// When: X plays the center
		next, err := ApplyMove(board, X, 4)
		require.NoError(t, err)

		// Then: only the copy carries the mark
		assert.Equal(t, X, next[4])
		assert.Equal(t, Empty, board[4])
	})

	t.Run("Error on cell already occupied", func(t *testing.T) {
		// Given: X holds cell 0
		board, err := ApplyMove(NewBoard(), X, 0)
		require.NoError(t, err)

		// When: O tries the same cell
		_, err = ApplyMove(board, O, 0)

		// Then: ErrCellOccupied is returned
		require.ErrorIs(t, err, ErrCellOccupied)
	})

	t.Run("Error on invalid cell", func(t *testing.T) {
		_, err := ApplyMove(NewBoard(), X, 9)
		require.ErrorIs(t, err, ErrInvalidCell)

		_, err = ApplyMove(NewBoard(), X, -1)
		require.ErrorIs(t, err, ErrInvalidCell)
	})

	t.Run("Error after the board is decided", func(t *testing.T) {
		// Given: X completed the top row
		board := Board{X, X, X, O, O, Empty, Empty, Empty, Empty}

		// When: O tries to keep playing
		_, err := ApplyMove(board, O, 5)

		// Then: the move is refused
		require.ErrorIs(t, err, ErrGameOver)
	})
}

func TestCheckTerminal(t *testing.T) {
	tests := []struct {
		name   string
		board  Board
		winner Mark
		draw   bool
	}{
		{
			name:  "Ongoing",
			board: Board{X, O, Empty, Empty, Empty, Empty, Empty, Empty, Empty},
		},
		{
			name:   "Column win",
			board:  Board{O, X, Empty, O, X, Empty, Empty, X, Empty},
			winner: X,
		},
		{
			name:   "Diagonal win",
			board:  Board{O, X, X, Empty, O, X, Empty, Empty, O},
			winner: O,
		},
		{
			name:  "Draw",
			board: Board{X, O, X, X, O, O, O, X, X},
			draw:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := CheckTerminal(tt.board)

			assert.Equal(t, tt.winner, outcome.Winner)
			assert.Equal(t, tt.draw, outcome.Draw)
		})
	}
}

func TestCheckTerminal_EveryLine(t *testing.T) {
	for _, mark := range []Mark{X, O} {
		for _, combo := range WinCombos {
			t.Run(fmt.Sprintf("%s on %v", mark, combo), func(t *testing.T) {
				// Given: mark holds the three cells of one line
				var board Board
				for _, cell := range combo {
					board[cell] = mark
				}

				// When: the board is checked
				outcome := CheckTerminal(board)

				// Then: mark wins on that line
				assert.Equal(t, mark, outcome.Winner)
				assert.Equal(t, combo, outcome.Line)
				assert.False(t, outcome.Draw)
			})
		}
	}
}

func TestCheckTerminal_MainDiagonal(t *testing.T) {
	// Given: X holds 0, 4 and 8 while O holds 1, 3 and 5
	board := Board{X, O, X, O, X, O, Empty, Empty, X}

	// When: the board is checked
	outcome := CheckTerminal(board)

	// Then: X wins on the main diagonal
	assert.Equal(t, X, outcome.Winner)
	assert.Equal(t, [3]int{0, 4, 8}, outcome.Line)
}

func TestLegalMoves(t *testing.T) {
	// Given: a board with two marks
	board := Board{X, Empty, Empty, Empty, O, Empty, Empty, Empty, Empty}

	// Then: every empty cell is playable
	assert.Equal(t, []int{1, 2, 3, 5, 6, 7, 8}, LegalMoves(board, X))

	// Then: nothing is playable after a win
	won := Board{X, X, X, O, O, Empty, Empty, Empty, Empty}
	assert.Empty(t, LegalMoves(won, O))
}

func TestBestMove(t *testing.T) {
	t.Run("Takes the win", func(t *testing.T) {
		// Given: O has two in the middle row
		board := Board{X, X, Empty, O, O, Empty, X, Empty, Empty}

		// When: bot O picks a move
		cell, err := BestMove(board, O)
		require.NoError(t, err)

		// Then: it completes the row
		assert.Equal(t, 5, cell)
	})

	t.Run("Blocks the opponent", func(t *testing.T) {
		// Given: X threatens the top row
		board := Board{X, X, Empty, Empty, O, Empty, Empty, Empty, Empty}

		// When: bot O picks a move
		cell, err := BestMove(board, O)
		require.NoError(t, err)

		// Then: it blocks cell 2
		assert.Equal(t, 2, cell)
	})

	t.Run("Never loses from the center opening", func(t *testing.T) {
		// Given: X opened in the center and both sides follow BestMove
		board, err := ApplyMove(NewBoard(), X, 4)
		require.NoError(t, err)

		mark := O
		for !CheckTerminal(board).IsTerminal() {
			cell, err := BestMove(board, mark)
			require.NoError(t, err)

			board, err = ApplyMove(board, mark, cell)
			require.NoError(t, err)
			mark = mark.Opponent()
		}

		// Then: perfect play ends in a draw
		assert.True(t, CheckTerminal(board).Draw)
	})

	t.Run("Error on full board", func(t *testing.T) {
		_, err := BestMove(Board{X, O, X, X, O, O, O, X, X}, O)
		require.ErrorIs(t, err, ErrGameOver)
	})
}

func TestBoardJSON(t *testing.T) {
	// Given: a board with one mark
	board := Board{X}

	// When: it is encoded
	data, err := json.Marshal(board)
	require.NoError(t, err)

	// Then: empty cells are null
	assert.JSONEq(t, `["X",null,null,null,null,null,null,null,null]`, string(data))

	// Then: bad lengths are rejected on decode
	var decoded Board
	require.Error(t, json.Unmarshal([]byte(`["X"]`), &decoded))
}
