package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/caro/internal/apperror"
	"github.com/rocketscienceinc/caro/internal/entity"
	"github.com/rocketscienceinc/caro/internal/protocol"
	"github.com/rocketscienceinc/caro/internal/session"
	mockedUseCase "github.com/rocketscienceinc/caro/mocks/usecase"
	"github.com/rocketscienceinc/caro/testing/suite"
	"github.com/rocketscienceinc/caro/transport/memory"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var (
	errRedisDown  = errors.New("redis down")
	errPeerIsGone = errors.New("peer is gone")
)

type fakeSession struct {
	mu      sync.Mutex
	sent    []protocol.Message
	sendErr error

	events    chan session.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		events: make(chan session.Event, 16),
		done:   make(chan struct{}),
	}
}

func (that *fakeSession) Send(msg protocol.Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.sendErr != nil {
		return that.sendErr
	}
	that.sent = append(that.sent, msg)

	return nil
}

func (that *fakeSession) Sent() []protocol.Message {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]protocol.Message(nil), that.sent...)
}

func (that *fakeSession) failSends(err error) {
	that.mu.Lock()
	that.sendErr = err
	that.mu.Unlock()
}

func (that *fakeSession) Events() <-chan session.Event { return that.events }
func (that *fakeSession) Done() <-chan struct{}       { return that.done }
func (that *fakeSession) Err() error                  { return nil }

func (that *fakeSession) Close() error {
	that.closeOnce.Do(func() { close(that.done) })
	return nil
}

func (that *fakeSession) connect() {
	that.events <- session.Event{Kind: session.EventConnectionChanged, Connected: true}
}

func (that *fakeSession) receive(msg protocol.Message) {
	that.events <- session.Event{Kind: session.EventMessage, Message: msg}
}

func (that *fakeSession) isClosed() bool {
	select {
	case <-that.done:
		return true
	default:
		return false
	}
}

func startManager(t *testing.T, bot botDep, snapshots snapshotRepoDep, opts Options) (context.Context, *GameManager) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	manager := NewGameManager(suite.NopLogger(), bot, snapshots, opts)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = manager.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	return ctx, manager
}

func waitNotification(t *testing.T, manager *GameManager, kind NotificationKind) Notification {
	t.Helper()

	timeout := time.After(waitFor)
	for {
		select {
		case n := <-manager.Notifications():
			if n.Kind == kind {
				return n
			}
		case <-timeout:
			t.Fatalf("no notification of kind %d", kind)
			return Notification{}
		}
	}
}

// attachHost - a host manager whose fake peer is connected and has received SessionStart.
func attachHost(t *testing.T, ctx context.Context, manager *GameManager, difficulty entity.Difficulty) *fakeSession {
	t.Helper()

	sess := newFakeSession()
	require.NoError(t, manager.AttachSession(ctx, sess, AttachOptions{IsHost: true, Difficulty: difficulty}))

	sess.connect()
	require.Eventually(t, func() bool {
		return len(sess.Sent()) == 1 && manager.State().Connected
	}, waitFor, tick)

	return sess
}

func TestGameManager_SinglePlayer(t *testing.T) {
	t.Run("AI answers the local move", func(t *testing.T) {
		// Given: a single player game and an AI that always plays the center
		bot := mockedUseCase.NewMockbotDep(t)
		bot.EXPECT().
			SelectMove(mock.AnythingOfType("entity.GameState")).
			Return(entity.Move{Row: 1, Col: 1}, nil).
			Once()

		ctx, manager := startManager(t, bot, nil, Options{})
		require.NoError(t, manager.StartSinglePlayer(ctx, entity.EasyDifficulty))

		// When: the local player takes a corner
		require.NoError(t, manager.PlayLocal(ctx, entity.Move{Row: 0, Col: 0}))

		// Then: the AI answers and it is the local player's turn again
		require.Eventually(t, func() bool {
			return manager.State().Board.At(1, 1) == entity.PlayerO
		}, waitFor, tick)

		state := manager.State()
		assert.Equal(t, entity.PlayerX, state.Board.At(0, 0))
		assert.Equal(t, entity.PlayerX, state.Turn)
		assert.Equal(t, entity.StatusPlaying, state.Status)
	})

	t.Run("Local move on the AI's turn is rejected", func(t *testing.T) {
		bot := mockedUseCase.NewMockbotDep(t)
		bot.EXPECT().SelectMove(mock.Anything).Return(entity.Move{Row: 2, Col: 2}, nil).Maybe()

		ctx, manager := startManager(t, bot, nil, Options{AIMoveDelay: time.Hour})
		require.NoError(t, manager.StartSinglePlayer(ctx, entity.MediumDifficulty))
		require.NoError(t, manager.PlayLocal(ctx, entity.Move{Row: 0, Col: 0}))

		err := manager.PlayLocal(ctx, entity.Move{Row: 0, Col: 1})

		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})

	t.Run("Illegal moves are rejected", func(t *testing.T) {
		bot := mockedUseCase.NewMockbotDep(t)
		bot.EXPECT().SelectMove(mock.Anything).Return(entity.Move{Row: 2, Col: 2}, nil).Once()

		ctx, manager := startManager(t, bot, nil, Options{})
		require.NoError(t, manager.StartSinglePlayer(ctx, entity.EasyDifficulty))

		require.ErrorIs(t, manager.PlayLocal(ctx, entity.Move{Row: 3, Col: 0}), apperror.ErrInvalidCell)

		require.NoError(t, manager.PlayLocal(ctx, entity.Move{Row: 0, Col: 0}))
		require.Eventually(t, func() bool { return manager.State().Turn == entity.PlayerX }, waitFor, tick)

		assert.ErrorIs(t, manager.PlayLocal(ctx, entity.Move{Row: 2, Col: 2}), apperror.ErrCellOccupied)
	})

	t.Run("Stale AI answer is discarded after restart", func(t *testing.T) {
		// Given: a slow AI
		bot := mockedUseCase.NewMockbotDep(t)
		bot.EXPECT().SelectMove(mock.Anything).Return(entity.Move{Row: 1, Col: 1}, nil).Maybe()

		ctx, manager := startManager(t, bot, nil, Options{AIMoveDelay: 30 * time.Millisecond})
		require.NoError(t, manager.StartSinglePlayer(ctx, entity.EasyDifficulty))
		require.NoError(t, manager.PlayLocal(ctx, entity.Move{Row: 0, Col: 0}))

		// When: the game is restarted before the AI answers
		require.NoError(t, manager.Restart(ctx, entity.EasyDifficulty))
		time.Sleep(100 * time.Millisecond)

		// Then: the answer for the old game never lands on the new board
		state := manager.State()
		assert.Len(t, state.Board.EmptyCells(), 9)
		assert.Equal(t, entity.PlayerX, state.Turn)
	})

	t.Run("Unknown difficulty", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})

		err := manager.StartSinglePlayer(ctx, entity.Difficulty("insane"))

		require.ErrorIs(t, err, apperror.ErrUnknownDifficulty)
	})
}

func TestGameManager_Host(t *testing.T) {
	t.Run("Sends session start on connect", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})

		sess := attachHost(t, ctx, manager, entity.HardDifficulty)

		start, ok := sess.Sent()[0].(protocol.SessionStart)
		require.True(t, ok)
		assert.Equal(t, entity.HardDifficulty, start.Difficulty)
		assert.True(t, start.IsHost)
		assert.NotEmpty(t, start.SessionID)

		state := manager.State()
		assert.True(t, state.Connected)
		assert.True(t, state.IsHost)
		assert.Equal(t, entity.NetworkedMode, state.Mode)
		assert.Equal(t, 9, state.Board.Size())
	})

	t.Run("Local move is sent before it is applied", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := attachHost(t, ctx, manager, entity.EasyDifficulty)

		require.NoError(t, manager.PlayLocal(ctx, entity.Move{Row: 1, Col: 1}))

		assert.Equal(t, protocol.Move{Row: 1, Col: 1}, sess.Sent()[1])
		assert.Equal(t, entity.PlayerX, manager.State().Board.At(1, 1))
		assert.Equal(t, entity.PlayerO, manager.State().Turn)
	})

	t.Run("Failed send leaves the state untouched", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := attachHost(t, ctx, manager, entity.EasyDifficulty)
		sess.failSends(errPeerIsGone)

		err := manager.PlayLocal(ctx, entity.Move{Row: 1, Col: 1})

		require.ErrorIs(t, err, errPeerIsGone)
		assert.Equal(t, entity.NoOwner, manager.State().Board.At(1, 1))
		assert.Equal(t, entity.PlayerX, manager.State().Turn)
	})

	t.Run("Remote move is replayed", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := attachHost(t, ctx, manager, entity.EasyDifficulty)
		require.NoError(t, manager.PlayLocal(ctx, entity.Move{Row: 1, Col: 1}))

		sess.receive(protocol.Move{Row: 0, Col: 2})

		require.Eventually(t, func() bool {
			return manager.State().Board.At(0, 2) == entity.PlayerO
		}, waitFor, tick)
		assert.Equal(t, entity.PlayerX, manager.State().Turn)
	})

	t.Run("Remote move out of turn is dropped", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := attachHost(t, ctx, manager, entity.EasyDifficulty)

		// When: the peer moves while it is the host's turn, then chats
		sess.receive(protocol.Move{Row: 0, Col: 0})
		sess.receive(protocol.Chat{Text: "oops"})

		// Then: the chat arrives and the board is still empty
		n := waitNotification(t, manager, NotifyChat)
		assert.Equal(t, "oops", n.Chat)
		assert.Len(t, manager.State().Board.EmptyCells(), 9)
		assert.True(t, n.LocalTurn)
	})

	t.Run("Client cannot restart", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		require.NoError(t, manager.AttachSession(ctx, newFakeSession(), AttachOptions{Difficulty: entity.EasyDifficulty}))

		assert.ErrorIs(t, manager.Restart(ctx, entity.MediumDifficulty), apperror.ErrNotHost)
	})

	t.Run("Restart tells the peer", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := attachHost(t, ctx, manager, entity.EasyDifficulty)
		require.NoError(t, manager.PlayLocal(ctx, entity.Move{Row: 1, Col: 1}))

		require.NoError(t, manager.Restart(ctx, entity.MediumDifficulty))

		sent := sess.Sent()
		start, ok := sent[len(sent)-1].(protocol.SessionStart)
		require.True(t, ok)
		assert.Equal(t, entity.MediumDifficulty, start.Difficulty)
		assert.Equal(t, 6, manager.State().Board.Size())
		assert.True(t, manager.State().Connected)
	})

	t.Run("Disconnect is reported", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := attachHost(t, ctx, manager, entity.EasyDifficulty)

		sess.events <- session.Event{Kind: session.EventConnectionChanged, Connected: false, Err: errPeerIsGone}

		n := waitNotification(t, manager, NotifyConnection)
		for n.Connected {
			n = waitNotification(t, manager, NotifyConnection)
		}
		assert.ErrorIs(t, n.Err, errPeerIsGone)
		assert.False(t, manager.State().Connected)
		assert.ErrorIs(t, manager.PlayLocal(ctx, entity.Move{Row: 0, Col: 0}), apperror.ErrNotConnected)
	})

	t.Run("Session closing without an event is still a disconnect", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := attachHost(t, ctx, manager, entity.EasyDifficulty)

		sess.receive(protocol.Chat{Text: "bye"})
		require.NoError(t, sess.Close())

		n := waitNotification(t, manager, NotifyChat)
		assert.Equal(t, "bye", n.Chat)
		require.Eventually(t, func() bool { return !manager.State().Connected }, waitFor, tick)
	})

	t.Run("End session", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := attachHost(t, ctx, manager, entity.EasyDifficulty)

		require.NoError(t, manager.EndSession(ctx))
		require.NoError(t, manager.EndSession(ctx))

		sent := sess.Sent()
		assert.Equal(t, protocol.SessionEnd{Winner: entity.NoOwner}, sent[len(sent)-1])
		assert.True(t, sess.isClosed())
		assert.False(t, manager.State().Connected)
	})
}

func TestGameManager_Client(t *testing.T) {
	t.Run("Cannot move before session start", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := newFakeSession()
		require.NoError(t, manager.AttachSession(ctx, sess, AttachOptions{Difficulty: entity.EasyDifficulty}))
		sess.connect()

		err := manager.PlayLocal(ctx, entity.Move{Row: 0, Col: 0})

		assert.ErrorIs(t, err, apperror.ErrGameIsNotStarted)
	})

	t.Run("Session start resets the game", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := newFakeSession()
		require.NoError(t, manager.AttachSession(ctx, sess, AttachOptions{Difficulty: entity.EasyDifficulty}))
		sess.connect()

		// When: the host starts a hard game
		sess.receive(protocol.SessionStart{Difficulty: entity.HardDifficulty, IsHost: true, SessionID: "abc"})

		// Then: the client plays O on a 9x9 board and waits for X
		require.Eventually(t, func() bool { return manager.State().Difficulty == entity.HardDifficulty }, waitFor, tick)
		state := manager.State()
		assert.Equal(t, 9, state.Board.Size())
		assert.False(t, state.IsHost)
		assert.True(t, state.Connected)
		assert.ErrorIs(t, manager.PlayLocal(ctx, entity.Move{Row: 0, Col: 0}), apperror.ErrNotYourTurn)

		// And: after the host's move it is the client's turn
		sess.receive(protocol.Move{Row: 4, Col: 4})
		require.Eventually(t, func() bool { return manager.State().Turn == entity.PlayerO }, waitFor, tick)
		require.NoError(t, manager.PlayLocal(ctx, entity.Move{Row: 0, Col: 0}))
		assert.Equal(t, entity.PlayerO, manager.State().Board.At(0, 0))
	})

	t.Run("State sync replaces the state", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := newFakeSession()
		require.NoError(t, manager.AttachSession(ctx, sess, AttachOptions{Difficulty: entity.EasyDifficulty}))
		sess.connect()

		board := entity.EmptyBoard(6).
			With(entity.Move{Row: 0, Col: 0}, entity.PlayerX).
			With(entity.Move{Row: 5, Col: 5}, entity.PlayerO).
			With(entity.Move{Row: 2, Col: 3}, entity.PlayerX)
		sess.receive(protocol.StateSync{Board: board, Turn: entity.PlayerO, Status: entity.StatusPlaying, Difficulty: entity.MediumDifficulty})

		n := waitNotification(t, manager, NotifyState)
		for n.State.Difficulty != entity.MediumDifficulty {
			n = waitNotification(t, manager, NotifyState)
		}
		assert.Equal(t, board, n.State.Board)
		assert.True(t, n.LocalTurn)
		assert.True(t, n.State.Connected)
	})

	t.Run("Session end is surfaced", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
		sess := newFakeSession()
		require.NoError(t, manager.AttachSession(ctx, sess, AttachOptions{Difficulty: entity.EasyDifficulty}))

		sess.receive(protocol.SessionEnd{Winner: entity.PlayerX})

		n := waitNotification(t, manager, NotifySessionEnded)
		assert.Equal(t, entity.PlayerX, n.Winner)
	})

	t.Run("Chat needs a connection", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})

		assert.ErrorIs(t, manager.SendChat(ctx, "hello"), apperror.ErrNotConnected)
	})

	t.Run("Client cannot resume", func(t *testing.T) {
		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})

		err := manager.AttachSession(ctx, newFakeSession(), AttachOptions{Difficulty: entity.EasyDifficulty, ResumeID: "abc"})

		assert.ErrorIs(t, err, apperror.ErrNotHost)
	})
}

func TestGameManager_Snapshots(t *testing.T) {
	t.Run("Host saves after every move", func(t *testing.T) {
		snapshots := mockedUseCase.NewMocksnapshotRepoDep(t)
		snapshots.EXPECT().
			Save(mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(state entity.GameState) bool {
				return state.Board.At(1, 1) == entity.PlayerX
			})).
			Return(nil).
			Once()
		snapshots.EXPECT().Save(mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil).Maybe()

		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), snapshots, Options{})
		attachHost(t, ctx, manager, entity.EasyDifficulty)

		require.NoError(t, manager.PlayLocal(ctx, entity.Move{Row: 1, Col: 1}))
	})

	t.Run("Save failure does not break the game", func(t *testing.T) {
		snapshots := mockedUseCase.NewMocksnapshotRepoDep(t)
		snapshots.EXPECT().Save(mock.Anything, mock.Anything, mock.Anything).Return(errRedisDown)

		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), snapshots, Options{})
		attachHost(t, ctx, manager, entity.EasyDifficulty)

		require.NoError(t, manager.PlayLocal(ctx, entity.Move{Row: 1, Col: 1}))
		assert.Equal(t, entity.PlayerO, manager.State().Turn)
	})

	t.Run("Resume sends the stored state", func(t *testing.T) {
		// Given: a stored game where O is to move
		stored := entity.NewGame(entity.EasyDifficulty, entity.NetworkedMode)
		stored.Board = stored.Board.With(entity.Move{Row: 0, Col: 0}, entity.PlayerX)
		stored.Turn = entity.PlayerO

		snapshots := mockedUseCase.NewMocksnapshotRepoDep(t)
		snapshots.EXPECT().GetByID(mock.Anything, "resume-me").Return(stored, nil).Once()
		snapshots.EXPECT().Save(mock.Anything, "resume-me", mock.Anything).Return(nil).Maybe()

		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), snapshots, Options{})
		sess := newFakeSession()

		// When: the host resumes it and the peer connects
		require.NoError(t, manager.AttachSession(ctx, sess, AttachOptions{IsHost: true, Difficulty: entity.HardDifficulty, ResumeID: "resume-me"}))
		sess.connect()

		// Then: the peer gets a session start followed by the full state
		require.Eventually(t, func() bool { return len(sess.Sent()) == 2 }, waitFor, tick)
		sent := sess.Sent()

		start, ok := sent[0].(protocol.SessionStart)
		require.True(t, ok)
		assert.Equal(t, "resume-me", start.SessionID)
		assert.Equal(t, entity.EasyDifficulty, start.Difficulty)

		assert.Equal(t, protocol.StateSyncFrom(stored), sent[1])
		assert.Equal(t, entity.PlayerX, manager.State().Board.At(0, 0))
	})

	t.Run("Missing snapshot starts a new game", func(t *testing.T) {
		snapshots := mockedUseCase.NewMocksnapshotRepoDep(t)
		snapshots.EXPECT().GetByID(mock.Anything, "gone").Return(entity.GameState{}, errRedisDown).Once()

		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), snapshots, Options{})

		err := manager.AttachSession(ctx, newFakeSession(), AttachOptions{IsHost: true, Difficulty: entity.MediumDifficulty, ResumeID: "gone"})

		require.NoError(t, err)
		assert.Equal(t, 6, manager.State().Board.Size())
		assert.Len(t, manager.State().Board.EmptyCells(), 36)
	})

	t.Run("Finished game is deleted", func(t *testing.T) {
		snapshots := mockedUseCase.NewMocksnapshotRepoDep(t)
		snapshots.EXPECT().Save(mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
		snapshots.EXPECT().DeleteByID(mock.Anything, mock.AnythingOfType("string")).Return(nil).Once()

		ctx, manager := startManager(t, mockedUseCase.NewMockbotDep(t), snapshots, Options{})
		sess := attachHost(t, ctx, manager, entity.EasyDifficulty)

		for i, move := range []entity.Move{{Row: 0, Col: 0}, {Row: 1, Col: 0}, {Row: 0, Col: 1}, {Row: 1, Col: 1}, {Row: 0, Col: 2}} {
			if i%2 == 0 {
				require.NoError(t, manager.PlayLocal(ctx, move))
				continue
			}
			sess.receive(protocol.MoveFrom(move))
			require.Eventually(t, func() bool { return manager.State().Turn == entity.PlayerX }, waitFor, tick)
		}

		assert.Equal(t, entity.StatusXWon, manager.State().Status)
	})
}

func TestGameManager_NetworkedConvergence(t *testing.T) {
	// Given: a host and a client manager over an in-memory network
	network := memory.NewNetwork()

	hostCtx, host := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})
	clientCtx, client := startManager(t, mockedUseCase.NewMockbotDep(t), nil, Options{})

	hostSession := session.New(suite.NopLogger(), network.Transport("table"), session.Config{})
	clientSession := session.New(suite.NopLogger(), network.Transport(""), session.Config{})

	require.NoError(t, host.AttachSession(hostCtx, hostSession, AttachOptions{IsHost: true, Difficulty: entity.MediumDifficulty}))
	require.NoError(t, client.AttachSession(clientCtx, clientSession, AttachOptions{Difficulty: entity.EasyDifficulty}))

	addr, err := hostSession.Host(hostCtx)
	require.NoError(t, err)
	require.NoError(t, clientSession.Join(clientCtx, addr))

	// When: both are connected and the client got the host's difficulty
	require.Eventually(t, func() bool {
		return host.State().Connected && client.State().Connected && client.State().Difficulty == entity.MediumDifficulty
	}, waitFor, tick)

	// And: they alternate moves
	moves := []entity.Move{{Row: 2, Col: 2}, {Row: 3, Col: 3}, {Row: 2, Col: 3}, {Row: 0, Col: 5}}
	for i, move := range moves {
		mover, peer := host, client
		if i%2 == 1 {
			mover, peer = client, host
		}

		require.NoError(t, mover.PlayLocal(context.Background(), move))
		require.Eventually(t, func() bool {
			return peer.State().Board.At(move.Row, move.Col) != entity.NoOwner
		}, waitFor, tick)
	}

	// Then: both hold the same game
	assert.Equal(t, host.State().Board, client.State().Board)
	assert.Equal(t, host.State().Turn, client.State().Turn)
	assert.Equal(t, host.State().Status, client.State().Status)
	assert.Equal(t, entity.PlayerX, host.State().Turn)

	// And: chat reaches the other side
	require.NoError(t, client.SendChat(context.Background(), "nice"))
	assert.Equal(t, "nice", waitNotification(t, host, NotifyChat).Chat)

	// And: ending the session reaches the client
	require.NoError(t, host.EndSession(context.Background()))
	waitNotification(t, client, NotifySessionEnded)
	require.Eventually(t, func() bool { return !client.State().Connected }, waitFor, tick)
}

func TestGameManager_Stopped(t *testing.T) {
	manager := NewGameManager(suite.NopLogger(), mockedUseCase.NewMockbotDep(t), nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, manager.Run(ctx))

	err := manager.StartSinglePlayer(context.Background(), entity.EasyDifficulty)

	assert.ErrorIs(t, err, ErrManagerStopped)
}
