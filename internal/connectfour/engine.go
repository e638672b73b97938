package connectfour

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	Rows         = 6
	Cols         = 7
	CenterColumn = 3
	connect      = 4
)

type Disc string

const (
	Empty  Disc = ""
	Red    Disc = "R"
	Yellow Disc = "Y"
)

func (that Disc) Opponent() Disc {
	switch that {
	case Red:
		return Yellow
	case Yellow:
		return Red
	default:
		return Empty
	}
}

var (
	ErrColumnFull    = errors.New("column is full")
	ErrInvalidColumn = errors.New("invalid column")
	ErrInvalidDisc   = errors.New("invalid disc")
	ErrGameOver      = errors.New("board already has a result")
)

// Board rows run top to bottom, so a dropped disc settles on the highest free row index.
type Board [Rows][Cols]Disc

type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Outcome struct {
	Winner Disc
	Draw   bool
	Cells  []Cell
}

func (that Outcome) IsTerminal() bool {
	return that.Winner != Empty || that.Draw
}

func NewBoard() Board {
	return Board{}
}

// AvailableRow returns the row a disc dropped into col would land on, or -1 when the column is full.
func AvailableRow(board Board, col int) int {
	if col < 0 || col >= Cols {
		return -1
	}

	for row := Rows - 1; row >= 0; row-- {
		if board[row][col] == Empty {
			return row
		}
	}

	return -1
}

// LegalMoves returns the columns with room left, left to right.
func LegalMoves(board Board, player Disc) []int {
	if player != Red && player != Yellow {
		return nil
	}

	if CheckTerminal(board).IsTerminal() {
		return nil
	}

	moves := make([]int, 0, Cols)
	for col := 0; col < Cols; col++ {
		if AvailableRow(board, col) >= 0 {
			moves = append(moves, col)
		}
	}

	return moves
}

func ApplyMove(board Board, player Disc, col int) (Board, error) {
	if player != Red && player != Yellow {
		return board, fmt.Errorf("invalid drop: %w", ErrInvalidDisc)
	}

	if col < 0 || col >= Cols {
		return board, fmt.Errorf("invalid drop: %w", ErrInvalidColumn)
	}

	if CheckTerminal(board).IsTerminal() {
		return board, fmt.Errorf("invalid drop: %w", ErrGameOver)
	}

	row := AvailableRow(board, col)
	if row < 0 {
		return board, fmt.Errorf("invalid drop in column %d: %w", col, ErrColumnFull)
	}

	board[row][col] = player

	return board, nil
}

var directions = [][2]int{
	{0, 1},  // horizontal
	{1, 0},  // vertical
	{1, 1},  // diagonal down-right
	{-1, 1}, // diagonal up-right
}

func CheckTerminal(board Board) Outcome {
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			disc := board[row][col]
			if disc == Empty {
				continue
			}

			for _, dir := range directions {
				if cells, ok := lineFrom(board, row, col, dir); ok {
					return Outcome{Winner: disc, Cells: cells}
				}
			}
		}
	}

	for col := 0; col < Cols; col++ {
		if board[0][col] == Empty {
			return Outcome{}
		}
	}

	return Outcome{Draw: true}
}

func lineFrom(board Board, row, col int, dir [2]int) ([]Cell, bool) {
	endRow, endCol := row+dir[0]*(connect-1), col+dir[1]*(connect-1)
	if endRow < 0 || endRow >= Rows || endCol < 0 || endCol >= Cols {
		return nil, false
	}

	disc := board[row][col]
	cells := make([]Cell, 0, connect)
	for i := 0; i < connect; i++ {
		r, c := row+dir[0]*i, col+dir[1]*i
		if board[r][c] != disc {
			return nil, false
		}
		cells = append(cells, Cell{Row: r, Col: c})
	}

	return cells, true
}

// MarshalJSON writes empty cells as null.
func (that Board) MarshalJSON() ([]byte, error) {
	rows := make([][]*string, Rows)
	for r := range that {
		rows[r] = make([]*string, Cols)
		for c, disc := range that[r] {
			if disc != Empty {
				value := string(disc)
				rows[r][c] = &value
			}
		}
	}

	return json.Marshal(rows)
}

func (that *Board) UnmarshalJSON(data []byte) error {
	var rows [][]*string
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to decode connect four board: %w", err)
	}

	if len(rows) != Rows {
		return fmt.Errorf("connect four board must have %d rows, got %d", Rows, len(rows))
	}

	var board Board
	for r, row := range rows {
		if len(row) != Cols {
			return fmt.Errorf("connect four row %d must have %d columns, got %d", r, Cols, len(row))
		}

		for c, cell := range row {
			if cell == nil || *cell == "" {
				continue
			}

			disc := Disc(*cell)
			if disc != Red && disc != Yellow {
				return fmt.Errorf("cell %d,%d: %w", r, c, ErrInvalidDisc)
			}

			board[r][c] = disc
		}
	}

	*that = board

	return nil
}
