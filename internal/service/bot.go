package service

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/rocketscienceinc/caro/internal/apperror"
	"github.com/rocketscienceinc/caro/internal/entity"
	"github.com/rocketscienceinc/caro/internal/tictactoe"
)

// maxSearchDepth - plies searched after the candidate move; deeper nodes score as a draw.
const maxSearchDepth = 2

const winScore = 10

// BotService picks moves for the side whose turn it is.
type BotService interface {
	SelectMove(state entity.GameState) (entity.Move, error)
}

type BotOption func(*botService)

// WithPicker - replaces the uniform random source. pick(n) must return a value in [0, n).
func WithPicker(pick func(n int) int) BotOption {
	return func(that *botService) {
		that.pick = pick
	}
}

type botService struct {
	mu   sync.Mutex
	pick func(n int) int
}

func NewBotService(opts ...BotOption) BotService {
	bot := &botService{
		pick: rand.IntN, //nolint: gosec // it's ok
	}

	for _, opt := range opts {
		opt(bot)
	}

	return bot
}

// SelectMove - never modifies state.Board; every look-ahead runs on copies.
func (that *botService) SelectMove(state entity.GameState) (entity.Move, error) {
	if state.IsFinished() {
		return entity.Move{}, apperror.ErrGameFinished
	}

	emptyCells := state.Board.EmptyCells()
	if len(emptyCells) == 0 {
		return entity.Move{}, apperror.ErrNoAvailableMoves
	}

	switch state.Difficulty {
	case entity.EasyDifficulty:
		return that.randomMove(emptyCells), nil
	case entity.MediumDifficulty:
		return that.heuristicMove(state.Board, state.Turn, emptyCells), nil
	case entity.HardDifficulty:
		return that.minimaxMove(state.Board, state.Turn, emptyCells), nil
	default:
		return entity.Move{}, fmt.Errorf("%w: %q", apperror.ErrUnknownDifficulty, state.Difficulty)
	}
}

func (that *botService) randomMove(emptyCells []entity.Move) entity.Move {
	that.mu.Lock()
	defer that.mu.Unlock()

	return emptyCells[that.pick(len(emptyCells))]
}

func (that *botService) heuristicMove(board entity.Board, bot entity.Owner, emptyCells []entity.Move) entity.Move {
	if move, ok := shortcutMove(board, bot, emptyCells); ok {
		return move
	}

	return that.randomMove(emptyCells)
}

// minimaxMove - the first cell with a strictly better score than the randomly
// seeded one wins, so ties keep the seed.
func (that *botService) minimaxMove(board entity.Board, bot entity.Owner, emptyCells []entity.Move) entity.Move {
	if move, ok := shortcutMove(board, bot, emptyCells); ok {
		return move
	}

	bestMove := that.randomMove(emptyCells)
	bestScore := minimax(board.With(bestMove, bot), bot, 0, false)

	for _, move := range emptyCells {
		score := minimax(board.With(move, bot), bot, 0, false)
		if score > bestScore {
			bestScore = score
			bestMove = move
		}
	}

	return bestMove
}

// shortcutMove - an immediate win for bot, otherwise a cell that blocks the opponent's immediate win.
func shortcutMove(board entity.Board, bot entity.Owner, emptyCells []entity.Move) (entity.Move, bool) {
	for _, owner := range []entity.Owner{bot, bot.Opponent()} {
		for _, move := range emptyCells {
			if tictactoe.CheckWinner(board.With(move, owner)) == entity.WinFor(owner) {
				return move, true
			}
		}
	}

	return entity.Move{}, false
}

func minimax(board entity.Board, bot entity.Owner, depth int, maximizing bool) int {
	if depth >= maxSearchDepth {
		return 0
	}

	switch status := tictactoe.CheckWinner(board); {
	case status == entity.WinFor(bot):
		return winScore - depth
	case status == entity.WinFor(bot.Opponent()):
		return depth - winScore
	case status == entity.StatusDraw:
		return 0
	}

	if maximizing {
		best := math.MinInt
		for _, move := range board.EmptyCells() {
			best = max(best, minimax(board.With(move, bot), bot, depth+1, false))
		}
		return best
	}

	best := math.MaxInt
	for _, move := range board.EmptyCells() {
		best = min(best, minimax(board.With(move, bot.Opponent()), bot, depth+1, true))
	}
	return best
}
