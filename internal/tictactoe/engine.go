package tictactoe

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Mark string

const (
	Empty Mark = ""
	X     Mark = "X"
	O     Mark = "O"
)

// Opponent returns the other mark. Empty stays empty.
func (that Mark) Opponent() Mark {
	switch that {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

const Cells = 9

var (
	ErrCellOccupied = errors.New("cell is already occupied")
	ErrInvalidCell  = errors.New("invalid cell index")
	ErrInvalidMark  = errors.New("invalid mark")
	ErrGameOver     = errors.New("board already has a result")

	WinCombos = [][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

// Board is indexed row-major, 0 is top-left.
type Board [Cells]Mark

// Outcome of a board. Line is set only when Winner is set.
type Outcome struct {
	Winner Mark
	Draw   bool
	Line   [3]int
}

func (that Outcome) IsTerminal() bool {
	return that.Winner != Empty || that.Draw
}

func NewBoard() Board {
	return Board{}
}

// LegalMoves returns the empty cells in ascending order, or nothing once the board is decided.
func LegalMoves(board Board, player Mark) []int {
	if player != X && player != O {
		return nil
	}

	if CheckTerminal(board).IsTerminal() {
		return nil
	}

	moves := make([]int, 0, Cells)
	for cell, mark := range board {
		if mark == Empty {
			moves = append(moves, cell)
		}
	}

	return moves
}

// ApplyMove returns a copy of board with player's mark placed on cell.
func ApplyMove(board Board, player Mark, cell int) (Board, error) {
	if err := validateMove(board, player, cell); err != nil {
		return board, fmt.Errorf("invalid turn: %w", err)
	}

	board[cell] = player

	return board, nil
}

// validateMove - checks if the move is valid.
func validateMove(board Board, player Mark, cell int) error {
	if player != X && player != O {
		return ErrInvalidMark
	}

	if cell < 0 || cell >= Cells {
		return ErrInvalidCell
	}

	if CheckTerminal(board).IsTerminal() {
		return ErrGameOver
	}

	if board[cell] != Empty {
		return ErrCellOccupied
	}

	return nil
}

func CheckTerminal(board Board) Outcome {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != Empty && a == b && b == c {
			return Outcome{Winner: a, Line: combo}
		}
	}

	for _, mark := range board {
		if mark == Empty {
			return Outcome{}
		}
	}

	return Outcome{Draw: true}
}

// MarshalJSON writes empty cells as null.
func (that Board) MarshalJSON() ([]byte, error) {
	cells := make([]*string, Cells)
	for i, mark := range that {
		if mark != Empty {
			value := string(mark)
			cells[i] = &value
		}
	}

	return json.Marshal(cells)
}

func (that *Board) UnmarshalJSON(data []byte) error {
	var cells []*string
	if err := json.Unmarshal(data, &cells); err != nil {
		return fmt.Errorf("failed to decode tictactoe board: %w", err)
	}

	if len(cells) != Cells {
		return fmt.Errorf("tictactoe board must have %d cells, got %d", Cells, len(cells))
	}

	var board Board
	for i, cell := range cells {
		if cell == nil || *cell == "" {
			continue
		}

		mark := Mark(*cell)
		if mark != X && mark != O {
			return fmt.Errorf("cell %d: %w", i, ErrInvalidMark)
		}

		board[i] = mark
	}

	*that = board

	return nil
}
