package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rocketscienceinc/caro/internal/apperror"
	"github.com/rocketscienceinc/caro/internal/entity"
	"github.com/rocketscienceinc/caro/internal/protocol"
	"github.com/rocketscienceinc/caro/internal/usecase"
)

type managerDep interface {
	Notifications() <-chan usecase.Notification
	State() entity.GameState
	PlayLocal(ctx context.Context, move entity.Move) error
	Restart(ctx context.Context, difficulty entity.Difficulty) error
	SendChat(ctx context.Context, text string) error
	EndSession(ctx context.Context) error
}

type botDep interface {
	SelectMove(state entity.GameState) (entity.Move, error)
}

type Options struct {
	// AutoPlay - the local side is played by bot instead of the input.
	AutoPlay bool
}

// Console renders notifications as text and turns input lines into game manager calls.
type Console struct {
	logger  *slog.Logger
	manager managerDep
	bot     botDep
	opts    Options

	in io.Reader

	mu  sync.Mutex
	out io.Writer

	// autoSeq - only the newest auto-play search may move.
	autoSeq  atomic.Uint64
	searches sync.WaitGroup
}

// New - bot is only used with AutoPlay and may be nil otherwise.
func New(logger *slog.Logger, manager managerDep, bot botDep, in io.Reader, out io.Writer, opts Options) *Console {
	return &Console{
		logger:  logger.With("component", "console"),
		manager: manager,
		bot:     bot,
		opts:    opts,
		in:      in,
		out:     out,
	}
}

// Run - blocks until ctx is done or the user quits. With AutoPlay it keeps
// playing after the input is closed.
func (that *Console) Run(ctx context.Context) error {
	defer that.searches.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go that.readLines(ctx, lines)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-that.manager.Notifications():
			that.render(n)
			if that.opts.AutoPlay && n.LocalTurn {
				that.autoMove(ctx, n.State)
			}
		case line, ok := <-lines:
			if !ok {
				if !that.opts.AutoPlay {
					return nil
				}
				lines = nil
				continue
			}

			if quit := that.execute(ctx, line); quit {
				return nil
			}
		}
	}
}

func (that *Console) readLines(ctx context.Context, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(that.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		that.logger.Error("failed to read input", "error", err)
	}
}

// execute - runs one input line and reports whether the user asked to quit.
func (that *Console) execute(ctx context.Context, line string) bool {
	cmd, err := ParseCommand(line)
	if errors.Is(err, ErrEmptyCommand) {
		return false
	}
	if err != nil {
		that.printf("%v, type help for the list of commands\n", err)
		return false
	}

	switch cmd.Kind {
	case CommandHelp:
		that.printf("%s", helpText)
	case CommandQuit:
		if err = that.manager.EndSession(ctx); err != nil {
			that.logger.Warn("failed to end session", "error", err)
		}
		return true
	case CommandChat:
		err = that.manager.SendChat(ctx, cmd.Text)
	case CommandRestart:
		difficulty := cmd.Difficulty
		if difficulty == "" {
			difficulty = that.manager.State().Difficulty
		}
		err = that.manager.Restart(ctx, difficulty)
	case CommandMove:
		err = that.manager.PlayLocal(ctx, cmd.Move)
	}

	if err != nil {
		that.printf("%s\n", describe(err))
	}

	return false
}

// autoMove - searches on a worker goroutine so rendering and input keep going.
// A search started for an older notification is discarded.
func (that *Console) autoMove(ctx context.Context, state entity.GameState) {
	log := that.logger.With("method", "autoMove")

	if that.bot == nil {
		log.Error("auto-play without a bot")
		return
	}

	seq := that.autoSeq.Add(1)
	that.searches.Add(1)

	go func() {
		defer that.searches.Done()

		move, err := that.bot.SelectMove(state)
		if err != nil {
			log.Error("failed to select a move", "error", err)
			return
		}

		if that.autoSeq.Load() != seq {
			log.Debug("discarded auto move for an older state", "move", move)
			return
		}

		// The state may have moved on during the search; the manager has the last word.
		if err = that.manager.PlayLocal(ctx, move); err != nil {
			log.Debug("auto move rejected", "move", move, "error", err)
		}
	}()
}

func (that *Console) render(n usecase.Notification) {
	switch n.Kind {
	case usecase.NotifyState:
		that.renderState(n.State, n.LocalTurn)
	case usecase.NotifyConnection:
		switch {
		case n.Connected:
			that.printf("peer connected\n")
		case n.Err != nil:
			that.printf("peer disconnected: %v\n", n.Err)
		default:
			that.printf("peer disconnected\n")
		}
	case usecase.NotifyChat:
		that.printf("peer: %s\n", n.Chat)
	case usecase.NotifySessionEnded:
		if n.Winner.IsPlayer() {
			that.printf("peer ended the session, winner %s\n", n.Winner)
		} else {
			that.printf("peer ended the session\n")
		}
	}
}

func (that *Console) renderState(state entity.GameState, localTurn bool) {
	that.printf("\n%s", state.Board)

	switch {
	case state.Status == entity.StatusDraw:
		that.printf("draw\n")
	case state.IsFinished():
		that.printf("%s won\n", state.Status.Winner())
	case localTurn:
		that.printf("your move (%s)\n", state.Turn)
	default:
		that.printf("waiting for %s\n", state.Turn)
	}
}

func (that *Console) printf(format string, args ...any) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, err := fmt.Fprintf(that.out, format, args...); err != nil {
		that.logger.Error("failed to write output", "error", err)
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, apperror.ErrNotYourTurn):
		return "not your turn"
	case errors.Is(err, apperror.ErrCellOccupied):
		return "cell is taken"
	case errors.Is(err, apperror.ErrInvalidCell):
		return "no such cell"
	case errors.Is(err, apperror.ErrGameFinished):
		return "game is over, type restart"
	case errors.Is(err, apperror.ErrGameIsNotStarted):
		return "waiting for the host to start"
	case errors.Is(err, apperror.ErrNotConnected):
		return "no peer connected"
	case errors.Is(err, apperror.ErrNotHost):
		return "only the host can do that"
	case errors.Is(err, protocol.ErrInvalidPayload):
		return "message cannot be sent"
	default:
		return err.Error()
	}
}
