package checkers

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON writes empty squares as null.
func (that Board) MarshalJSON() ([]byte, error) {
	rows := make([][]*Piece, Size)
	for r := range that {
		rows[r] = make([]*Piece, Size)
		for c := range that[r] {
			if !that[r][c].IsEmpty() {
				piece := that[r][c]
				rows[r][c] = &piece
			}
		}
	}

	return json.Marshal(rows)
}

func (that *Board) UnmarshalJSON(data []byte) error {
	var rows [][]*Piece
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to decode checkers board: %w", err)
	}

	if len(rows) != Size {
		return fmt.Errorf("checkers board must have %d rows, got %d", Size, len(rows))
	}

	var board Board
	for r, row := range rows {
		if len(row) != Size {
			return fmt.Errorf("checkers row %d must have %d squares, got %d", r, Size, len(row))
		}

		for c, piece := range row {
			if piece == nil {
				continue
			}

			if piece.Owner != Red && piece.Owner != Black {
				return fmt.Errorf("square %d,%d: %w", r, c, ErrInvalidColor)
			}

			board[r][c] = *piece
		}
	}

	*that = board

	return nil
}
