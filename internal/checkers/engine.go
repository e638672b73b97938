package checkers

import (
	"errors"
	"fmt"
)

const (
	Size      = 8
	startRows = 3
)

type Color string

const (
	None  Color = ""
	Red   Color = "R"
	Black Color = "B"
)

func (that Color) Opponent() Color {
	switch that {
	case Red:
		return Black
	case Black:
		return Red
	default:
		return None
	}
}

// crownRow is the row where a man of this color becomes a king.
func (that Color) crownRow() int {
	if that == Red {
		return 0
	}
	return Size - 1
}

var (
	ErrNoPiece        = errors.New("no piece of yours on that square")
	ErrOffBoard       = errors.New("square is off the board")
	ErrMoveNotAllowed = errors.New("move is not allowed")
	ErrInvalidColor   = errors.New("invalid color")
	ErrGameOver       = errors.New("board already has a result")
)

type Piece struct {
	Owner Color `json:"player"`
	King  bool  `json:"king"`
}

func (that Piece) IsEmpty() bool {
	return that.Owner == None
}

// directions returns the row steps a piece may take. Red advances toward row 0.
func (that Piece) directions() []int {
	switch {
	case that.King:
		return []int{-1, 1}
	case that.Owner == Red:
		return []int{-1}
	default:
		return []int{1}
	}
}

type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (that Square) onBoard() bool {
	return that.Row >= 0 && that.Row < Size && that.Col >= 0 && that.Col < Size
}

type Move struct {
	From Square `json:"from"`
	To   Square `json:"to"`
}

func (that Move) IsJump() bool {
	return abs(that.To.Row-that.From.Row) == 2
}

// Captured is the square jumped over. Only meaningful for jumps.
func (that Move) Captured() Square {
	return Square{Row: (that.From.Row + that.To.Row) / 2, Col: (that.From.Col + that.To.Col) / 2}
}

type Board [Size][Size]Piece

func (that *Board) At(sq Square) Piece {
	return that[sq.Row][sq.Col]
}

func (that *Board) Count(color Color) int {
	var n int
	for r := range that {
		for c := range that[r] {
			if that[r][c].Owner == color {
				n++
			}
		}
	}
	return n
}

// NewBoard places black on rows 0-2 and red on rows 5-7, on dark squares only.
func NewBoard() Board {
	var board Board
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if (r+c)%2 == 0 {
				continue
			}

			switch {
			case r < startRows:
				board[r][c] = Piece{Owner: Black}
			case r >= Size-startRows:
				board[r][c] = Piece{Owner: Red}
			}
		}
	}
	return board
}

// PieceMoves lists the moves of the piece on from. Jumps come first and
// simple moves are offered only when the piece has no jump and mustJump is false.
func PieceMoves(board Board, from Square, mustJump bool) []Move {
	if !from.onBoard() {
		return nil
	}

	piece := board.At(from)
	if piece.IsEmpty() {
		return nil
	}

	var moves []Move
	for _, dr := range piece.directions() {
		for _, dc := range []int{-1, 1} {
			over := Square{Row: from.Row + dr, Col: from.Col + dc}
			to := Square{Row: from.Row + 2*dr, Col: from.Col + 2*dc}
			if !to.onBoard() {
				continue
			}

			middle := board.At(over)
			if !middle.IsEmpty() && middle.Owner != piece.Owner && board.At(to).IsEmpty() {
				moves = append(moves, Move{From: from, To: to})
			}
		}
	}

	if len(moves) > 0 || mustJump {
		return moves
	}

	for _, dr := range piece.directions() {
		for _, dc := range []int{-1, 1} {
			to := Square{Row: from.Row + dr, Col: from.Col + dc}
			if to.onBoard() && board.At(to).IsEmpty() {
				moves = append(moves, Move{From: from, To: to})
			}
		}
	}

	return moves
}

// HasJumps reports whether any piece of player can capture.
func HasJumps(board Board, player Color) bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if board[r][c].Owner != player {
				continue
			}

			for _, move := range PieceMoves(board, Square{Row: r, Col: c}, true) {
				if move.IsJump() {
					return true
				}
			}
		}
	}
	return false
}

// LegalMoves returns every move player may make. Captures are mandatory.
func LegalMoves(board Board, player Color) []Move {
	if player != Red && player != Black {
		return nil
	}

	mustJump := HasJumps(board, player)

	var moves []Move
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if board[r][c].Owner == player {
				moves = append(moves, PieceMoves(board, Square{Row: r, Col: c}, mustJump)...)
			}
		}
	}
	return moves
}

// MovesFrom returns the legal moves of the piece on from, with forced capture applied across the whole board.
func MovesFrom(board Board, player Color, from Square) []Move {
	if !from.onBoard() || board.At(from).Owner != player {
		return nil
	}

	return PieceMoves(board, from, HasJumps(board, player))
}

// ContinuationMoves are the further jumps available to a piece that has just captured.
func ContinuationMoves(board Board, at Square) []Move {
	return PieceMoves(board, at, true)
}

type Result struct {
	Board    Board
	Captured bool
	Promoted bool
	// Continues is set when the jumping piece can capture again and the turn does not pass.
	Continues bool
}

// ApplyMove validates move against player's legal moves and returns the resulting board.
// Promotion is applied before chain continuation is evaluated.
func ApplyMove(board Board, player Color, move Move) (Result, error) {
	if player != Red && player != Black {
		return Result{Board: board}, fmt.Errorf("invalid move: %w", ErrInvalidColor)
	}

	if !move.From.onBoard() || !move.To.onBoard() {
		return Result{Board: board}, fmt.Errorf("invalid move: %w", ErrOffBoard)
	}

	if CheckTerminal(board).IsTerminal() {
		return Result{Board: board}, fmt.Errorf("invalid move: %w", ErrGameOver)
	}

	if board.At(move.From).Owner != player {
		return Result{Board: board}, fmt.Errorf("invalid move from %v: %w", move.From, ErrNoPiece)
	}

	if !contains(MovesFrom(board, player, move.From), move) {
		return Result{Board: board}, fmt.Errorf("invalid move %v -> %v: %w", move.From, move.To, ErrMoveNotAllowed)
	}

	return apply(board, move), nil
}

// ApplyContinuation plays the next leg of a chain capture by the piece standing on at.
func ApplyContinuation(board Board, at Square, move Move) (Result, error) {
	if move.From != at {
		return Result{Board: board}, fmt.Errorf("chain must continue from %v: %w", at, ErrMoveNotAllowed)
	}

	if !contains(ContinuationMoves(board, at), move) {
		return Result{Board: board}, fmt.Errorf("invalid jump %v -> %v: %w", move.From, move.To, ErrMoveNotAllowed)
	}

	return apply(board, move), nil
}

func apply(board Board, move Move) Result {
	piece := board.At(move.From)
	board[move.To.Row][move.To.Col] = piece
	board[move.From.Row][move.From.Col] = Piece{}

	result := Result{}
	if move.IsJump() {
		captured := move.Captured()
		board[captured.Row][captured.Col] = Piece{}
		result.Captured = true
	}

	if !piece.King && move.To.Row == piece.Owner.crownRow() {
		board[move.To.Row][move.To.Col].King = true
		result.Promoted = true
	}

	if result.Captured {
		result.Continues = len(ContinuationMoves(board, move.To)) > 0
	}

	result.Board = board

	return result
}

type Outcome struct {
	Winner Color
}

func (that Outcome) IsTerminal() bool {
	return that.Winner != None
}

// CheckTerminal declares a winner once the other side has no pieces left.
func CheckTerminal(board Board) Outcome {
	red, black := board.Count(Red), board.Count(Black)
	switch {
	case red == 0 && black > 0:
		return Outcome{Winner: Black}
	case black == 0 && red > 0:
		return Outcome{Winner: Red}
	default:
		return Outcome{}
	}
}

// CheckTerminalStrict also ends the game when toMove has no legal move; the side left without one loses.
func CheckTerminalStrict(board Board, toMove Color) Outcome {
	if outcome := CheckTerminal(board); outcome.IsTerminal() {
		return outcome
	}

	if toMove != None && len(LegalMoves(board, toMove)) == 0 {
		return Outcome{Winner: toMove.Opponent()}
	}

	return Outcome{}
}

func contains(moves []Move, move Move) bool {
	for _, m := range moves {
		if m == move {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
