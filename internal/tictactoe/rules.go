package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/caro/internal/apperror"
	"github.com/rocketscienceinc/caro/internal/entity"
)

// ApplyMove - places the mark of the side to move. An illegal move is ignored:
// the state comes back unchanged.
func ApplyMove(state entity.GameState, move entity.Move) entity.GameState {
	next, err := TryMove(state, move)
	if err != nil {
		return state
	}

	return next
}

// TryMove - same as ApplyMove but reports why a move was rejected.
func TryMove(state entity.GameState, move entity.Move) (entity.GameState, error) {
	if err := validateMove(state, move); err != nil {
		return state, err
	}

	next := state
	next.Board = state.Board.With(move, state.Turn)
	next.Status = CheckWinner(next.Board)

	if next.Status == entity.StatusPlaying {
		next.Turn = state.Turn.Opponent()
	}

	return next, nil
}

// Replay - applies moves in order, skipping the illegal ones.
func Replay(state entity.GameState, moves ...entity.Move) entity.GameState {
	for _, move := range moves {
		state = ApplyMove(state, move)
	}

	return state
}

// validateMove - checks if the move is valid.
func validateMove(state entity.GameState, move entity.Move) error {
	if state.IsFinished() {
		return apperror.ErrGameFinished
	}

	if !state.Board.InBounds(move.Row, move.Col) {
		return fmt.Errorf("%w: %d,%d", apperror.ErrInvalidCell, move.Row, move.Col)
	}

	if state.Board.At(move.Row, move.Col) != entity.NoOwner {
		return apperror.ErrCellOccupied
	}

	return nil
}

// CheckWinner - scans rows, then columns, then main diagonals, then anti-diagonals
// for WinLength marks of one side. The first complete window wins; X is checked
// before O inside each window.
func CheckWinner(board entity.Board) entity.Status {
	size := board.Size()
	winLength := entity.WinLength(size)

	// rows
	for row := 0; row < size; row++ {
		for col := 0; col <= size-winLength; col++ {
			if owner, ok := windowOwner(board, row, col, 0, 1, winLength); ok {
				return entity.WinFor(owner)
			}
		}
	}

	// columns
	for col := 0; col < size; col++ {
		for row := 0; row <= size-winLength; row++ {
			if owner, ok := windowOwner(board, row, col, 1, 0, winLength); ok {
				return entity.WinFor(owner)
			}
		}
	}

	// main diagonals
	for row := 0; row <= size-winLength; row++ {
		for col := 0; col <= size-winLength; col++ {
			if owner, ok := windowOwner(board, row, col, 1, 1, winLength); ok {
				return entity.WinFor(owner)
			}
		}
	}

	// anti-diagonals
	for row := 0; row <= size-winLength; row++ {
		for col := winLength - 1; col < size; col++ {
			if owner, ok := windowOwner(board, row, col, 1, -1, winLength); ok {
				return entity.WinFor(owner)
			}
		}
	}

	if board.IsFull() {
		return entity.StatusDraw
	}

	return entity.StatusPlaying
}

func windowOwner(board entity.Board, row, col, dRow, dCol, length int) (entity.Owner, bool) {
	for _, owner := range []entity.Owner{entity.PlayerX, entity.PlayerO} {
		if ownsWindow(board, owner, row, col, dRow, dCol, length) {
			return owner, true
		}
	}

	return entity.NoOwner, false
}

func ownsWindow(board entity.Board, owner entity.Owner, row, col, dRow, dCol, length int) bool {
	for k := 0; k < length; k++ {
		if board[row+k*dRow][col+k*dCol] != owner {
			return false
		}
	}

	return true
}
