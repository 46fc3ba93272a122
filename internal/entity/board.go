package entity

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

var ErrMalformedBoard = errors.New("malformed board")

// Move is a cell coordinate, both values in [0, N).
type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Cell is one board position together with its mark.
type Cell struct {
	Row   int
	Col   int
	Owner Owner
}

// Board is a square grid of marks. NoOwner means the cell is empty.
//
// Boards are treated as values: the rules engine clones before writing, so a
// Board held in a GameState is never modified in place.
type Board [][]Owner

// WinLength - number of consecutive marks needed to win on a board of the given side.
// Only 3, 6 and 9 are valid sides: 3 needs three in a row, everything else five.
func WinLength(sideLength int) int {
	if sideLength == 3 {
		return 3
	}
	return 5
}

// EmptyBoard - creates a board with every cell empty.
func EmptyBoard(sideLength int) Board {
	board := make(Board, sideLength)
	for row := range board {
		board[row] = make([]Owner, sideLength)
	}
	return board
}

func (that Board) Size() int {
	return len(that)
}

func (that Board) InBounds(row, col int) bool {
	return row >= 0 && row < len(that) && col >= 0 && col < len(that)
}

func (that Board) At(row, col int) Owner {
	return that[row][col]
}

// Cells - iterates over every cell, row by row.
func (that Board) Cells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		for row := range that {
			for col, owner := range that[row] {
				if !yield(Cell{Row: row, Col: col, Owner: owner}) {
					return
				}
			}
		}
	}
}

func (that Board) IsFull() bool {
	for cell := range that.Cells() {
		if cell.Owner == NoOwner {
			return false
		}
	}
	return true
}

// EmptyCells - returns the free cells in row-major order.
func (that Board) EmptyCells() []Move {
	cells := make([]Move, 0, len(that)*len(that))
	for cell := range that.Cells() {
		if cell.Owner == NoOwner {
			cells = append(cells, Move{Row: cell.Row, Col: cell.Col})
		}
	}
	return cells
}

func (that Board) Clone() Board {
	board := make(Board, len(that))
	for row := range that {
		board[row] = append([]Owner(nil), that[row]...)
	}
	return board
}

// With - returns a copy of the board with owner placed at move.
func (that Board) With(move Move, owner Owner) Board {
	board := that.Clone()
	board[move.Row][move.Col] = owner
	return board
}

// Validate - checks that the board is a square of the given side holding only known marks.
func (that Board) Validate(sideLength int) error {
	if len(that) != sideLength {
		return fmt.Errorf("%w: %d rows, want %d", ErrMalformedBoard, len(that), sideLength)
	}

	for row := range that {
		if len(that[row]) != sideLength {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrMalformedBoard, row, len(that[row]), sideLength)
		}

		for col, owner := range that[row] {
			if owner != NoOwner && !owner.IsPlayer() {
				return fmt.Errorf("%w: unknown mark %q at %d,%d", ErrMalformedBoard, owner, row, col)
			}
		}
	}

	return nil
}

func (that Board) String() string {
	var sb strings.Builder

	sb.WriteString("  ")
	for col := range that {
		sb.WriteString(" ")
		sb.WriteString(strconv.Itoa(col))
	}
	sb.WriteString("\n")

	for row := range that {
		sb.WriteString(fmt.Sprintf("%2d", row))
		for _, owner := range that[row] {
			sb.WriteString(" ")
			sb.WriteString(owner.String())
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
