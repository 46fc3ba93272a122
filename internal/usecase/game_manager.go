package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/caro/internal/apperror"
	"github.com/rocketscienceinc/caro/internal/entity"
	"github.com/rocketscienceinc/caro/internal/protocol"
	"github.com/rocketscienceinc/caro/internal/session"
	"github.com/rocketscienceinc/caro/internal/tictactoe"
)

var ErrManagerStopped = errors.New("game manager is not running")

const (
	defaultNotificationBuffer = 64
	snapshotTimeout           = 2 * time.Second
)

type botDep interface {
	SelectMove(state entity.GameState) (entity.Move, error)
}

type snapshotRepoDep interface {
	Save(ctx context.Context, id string, state entity.GameState) error
	GetByID(ctx context.Context, id string) (entity.GameState, error)
	DeleteByID(ctx context.Context, id string) error
}

type sessionDep interface {
	Send(msg protocol.Message) error
	Events() <-chan session.Event
	Done() <-chan struct{}
	Err() error
	Close() error
}

type NotificationKind int

const (
	NotifyState NotificationKind = iota + 1
	NotifyConnection
	NotifyChat
	NotifySessionEnded
)

// Notification is what the presentation layer renders. State is always the latest state.
type Notification struct {
	Kind      NotificationKind
	State     entity.GameState
	LocalTurn bool

	Connected bool
	Err       error

	Chat   string
	Winner entity.Owner
}

type Options struct {
	// AIMoveDelay - pause before the AI answers in single-player.
	AIMoveDelay        time.Duration
	NotificationBuffer int
}

type AttachOptions struct {
	IsHost     bool
	Difficulty entity.Difficulty
	// ResumeID - host only: continue the snapshot stored under this session id.
	ResumeID string
}

// GameManager is the single owner of the GameState. Every change, whether a local
// action, an AI answer or a peer message, runs on the goroutine inside Run.
type GameManager struct {
	logger    *slog.Logger
	bot       botDep
	snapshots snapshotRepoDep
	opts      Options

	inbox         chan func(ctx context.Context)
	notifications chan Notification
	stopped       chan struct{}
	stopOnce      sync.Once

	// owned by the Run goroutine
	state      entity.GameState
	local      entity.Owner
	sess       sessionDep
	sessionID  string
	started    bool
	resumed    bool
	generation uint64

	mu        sync.RWMutex
	published entity.GameState
}

// NewGameManager - snapshots may be nil, then nothing is persisted.
func NewGameManager(logger *slog.Logger, bot botDep, snapshots snapshotRepoDep, opts Options) *GameManager {
	if opts.NotificationBuffer <= 0 {
		opts.NotificationBuffer = defaultNotificationBuffer
	}

	state := entity.NewGame(entity.EasyDifficulty, entity.SinglePlayerMode)

	return &GameManager{
		logger:    logger.With("component", "game_manager"),
		bot:       bot,
		snapshots: snapshots,
		opts:      opts,

		inbox:         make(chan func(ctx context.Context)),
		notifications: make(chan Notification, opts.NotificationBuffer),
		stopped:       make(chan struct{}),

		state:     state,
		local:     entity.PlayerX,
		started:   true,
		published: state,
	}
}

// Run - processes actions and session events until ctx is done. It closes an attached session on exit.
func (that *GameManager) Run(ctx context.Context) error {
	defer that.stopOnce.Do(func() { close(that.stopped) })

	for {
		var (
			events <-chan session.Event
			done   <-chan struct{}
		)
		if that.sess != nil {
			events = that.sess.Events()
			done = that.sess.Done()
		}

		select {
		case <-ctx.Done():
			if that.sess != nil {
				_ = that.sess.Close()
			}
			return nil
		case fn := <-that.inbox:
			fn(ctx)
		case ev := <-events:
			that.handleEvent(ctx, ev)
		case <-done:
			that.drainSession(ctx)
		}
	}
}

func (that *GameManager) Notifications() <-chan Notification {
	return that.notifications
}

// State - the last published state. Safe from any goroutine.
func (that *GameManager) State() entity.GameState {
	that.mu.RLock()
	defer that.mu.RUnlock()

	state := that.published
	state.Board = state.Board.Clone()

	return state
}

// StartSinglePlayer - drops any peer session and starts a game against the AI. The local side opens.
func (that *GameManager) StartSinglePlayer(ctx context.Context, difficulty entity.Difficulty) error {
	if err := difficulty.Validate(); err != nil {
		return err
	}

	return that.call(ctx, func(ctx context.Context) error {
		that.detachSession()

		that.reset(entity.NewGame(difficulty, entity.SinglePlayerMode), entity.PlayerX)
		that.started = true
		that.sessionID = ""

		that.logger.Info("single player game started", "difficulty", difficulty)
		that.publish(NotifyState)

		return nil
	})
}

// AttachSession - binds a session that has started hosting or joining. The host plays X
// and opens; the client plays O and waits for SessionStart.
func (that *GameManager) AttachSession(ctx context.Context, sess sessionDep, opts AttachOptions) error {
	if err := opts.Difficulty.Validate(); err != nil {
		return err
	}

	if opts.ResumeID != "" && !opts.IsHost {
		return fmt.Errorf("%w: resume", apperror.ErrNotHost)
	}

	return that.call(ctx, func(ctx context.Context) error {
		log := that.logger.With("method", "AttachSession")

		that.detachSession()

		state := entity.NewGame(opts.Difficulty, entity.NetworkedMode)
		state.IsHost = opts.IsHost

		local := entity.PlayerX
		if !opts.IsHost {
			local = entity.PlayerO
		}

		that.reset(state, local)
		that.sess = sess
		that.started = opts.IsHost
		that.resumed = false
		that.sessionID = ""

		if opts.IsHost {
			that.sessionID = uuid.NewString()
		}

		if opts.ResumeID != "" {
			resumed, err := that.loadSnapshot(ctx, opts.ResumeID)
			if err != nil {
				log.Warn("starting a new game, snapshot not usable", "session_id", opts.ResumeID, "error", err)
			} else {
				that.state = resumed
				that.sessionID = opts.ResumeID
				that.resumed = true
			}
		}

		log.Info("session attached", "is_host", opts.IsHost, "session_id", that.sessionID, "resumed", that.resumed)
		that.publish(NotifyState)

		return nil
	})
}

// PlayLocal - the local player's move. In networked play the move is sent first and
// only applied once the peer can replay it.
func (that *GameManager) PlayLocal(ctx context.Context, move entity.Move) error {
	return that.call(ctx, func(ctx context.Context) error {
		if !that.started {
			return apperror.ErrGameIsNotStarted
		}

		if that.state.IsFinished() {
			return apperror.ErrGameFinished
		}

		if that.state.Turn != that.local {
			return apperror.ErrNotYourTurn
		}

		if that.state.IsNetworked() && (that.sess == nil || !that.state.Connected) {
			return apperror.ErrNotConnected
		}

		next, err := tictactoe.TryMove(that.state, move)
		if err != nil {
			return fmt.Errorf("failed to make turn: %w", err)
		}

		if that.state.IsNetworked() {
			if err = that.sess.Send(protocol.MoveFrom(move)); err != nil {
				return fmt.Errorf("failed to send move: %w", err)
			}
		}

		that.commit(ctx, next)

		return nil
	})
}

// Restart - a fresh game with the given difficulty. In networked play only the host
// may restart, and the peer is told with a new SessionStart.
func (that *GameManager) Restart(ctx context.Context, difficulty entity.Difficulty) error {
	if err := difficulty.Validate(); err != nil {
		return err
	}

	return that.call(ctx, func(ctx context.Context) error {
		if !that.state.IsNetworked() {
			that.reset(entity.NewGame(difficulty, entity.SinglePlayerMode), entity.PlayerX)
			that.publish(NotifyState)
			return nil
		}

		if !that.state.IsHost {
			return apperror.ErrNotHost
		}

		state := entity.NewGame(difficulty, entity.NetworkedMode)
		state.IsHost = true
		state.Connected = that.state.Connected

		if that.sess != nil && state.Connected {
			if err := that.sess.Send(protocol.SessionStart{Difficulty: difficulty, IsHost: true, SessionID: that.sessionID}); err != nil {
				return fmt.Errorf("failed to send session start: %w", err)
			}
		}

		that.reset(state, entity.PlayerX)
		that.saveSnapshot(ctx)
		that.publish(NotifyState)

		return nil
	})
}

func (that *GameManager) SendChat(ctx context.Context, text string) error {
	return that.call(ctx, func(_ context.Context) error {
		if that.sess == nil || !that.state.Connected {
			return apperror.ErrNotConnected
		}

		if err := that.sess.Send(protocol.Chat{Text: text}); err != nil {
			return fmt.Errorf("failed to send chat: %w", err)
		}

		return nil
	})
}

// EndSession - tells the peer the game is over and closes the session. Without a session it does nothing.
func (that *GameManager) EndSession(ctx context.Context) error {
	return that.call(ctx, func(_ context.Context) error {
		if that.sess == nil {
			return nil
		}

		if that.state.Connected {
			if err := that.sess.Send(protocol.SessionEnd{Winner: that.state.Status.Winner()}); err != nil {
				that.logger.Warn("failed to send session end", "error", err)
			}
		}

		that.detachSession()
		that.publish(NotifyConnection)

		return nil
	})
}

// call - runs fn on the Run goroutine and waits for its result.
func (that *GameManager) call(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)

	select {
	case that.inbox <- func(ctx context.Context) { result <- fn(ctx) }:
	case <-that.stopped:
		return ErrManagerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reset - replaces the game. Pending AI answers for the old game are discarded.
func (that *GameManager) reset(state entity.GameState, local entity.Owner) {
	that.generation++
	that.state = state
	that.local = local
}

func (that *GameManager) detachSession() {
	if that.sess == nil {
		return
	}

	_ = that.sess.Close()
	that.sess = nil
	that.state.Connected = false
}

// commit - stores an accepted move's result and lets the AI answer when it is its turn.
func (that *GameManager) commit(ctx context.Context, next entity.GameState) {
	that.state = next
	that.publish(NotifyState)

	if that.state.IsNetworked() {
		that.saveSnapshot(ctx)
		return
	}

	if that.state.IsPlaying() && that.state.Turn != that.local {
		that.scheduleAI(ctx)
	}
}

// scheduleAI - searches on a worker goroutine. The answer is applied on the Run
// goroutine only if the game has not been replaced in the meantime.
func (that *GameManager) scheduleAI(ctx context.Context) {
	generation := that.generation
	state := that.state
	state.Board = state.Board.Clone()

	go func() {
		if that.opts.AIMoveDelay > 0 {
			timer := time.NewTimer(that.opts.AIMoveDelay)
			defer timer.Stop()

			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}

		move, err := that.bot.SelectMove(state)

		apply := func(ctx context.Context) {
			log := that.logger.With("method", "scheduleAI")

			if generation != that.generation {
				log.Debug("discarded AI move for a replaced game")
				return
			}

			if err != nil {
				log.Error("AI failed to select a move", "error", err)
				return
			}

			next, err := tictactoe.TryMove(that.state, move)
			if err != nil {
				log.Error("AI selected an illegal move", "move", move, "error", err)
				return
			}

			that.commit(ctx, next)
		}

		select {
		case that.inbox <- apply:
		case <-that.stopped:
		case <-ctx.Done():
		}
	}()
}

func (that *GameManager) localTurn() bool {
	if !that.started || !that.state.IsPlaying() || that.state.Turn != that.local {
		return false
	}

	return !that.state.IsNetworked() || that.state.Connected
}

// publish - updates the State snapshot and notifies without ever blocking the actor.
func (that *GameManager) publish(kind NotificationKind) {
	that.publishNotification(Notification{Kind: kind})
}

func (that *GameManager) publishNotification(n Notification) {
	state := that.state
	state.Board = state.Board.Clone()

	that.mu.Lock()
	that.published = state
	that.mu.Unlock()

	n.State = state
	n.LocalTurn = that.localTurn()
	n.Connected = state.Connected

	select {
	case that.notifications <- n:
	default:
		that.logger.Warn("notification dropped, consumer is too slow", "kind", n.Kind)
	}
}
