package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/caro/internal/entity"
	"github.com/rocketscienceinc/caro/internal/protocol"
	"github.com/rocketscienceinc/caro/internal/session"
	"github.com/rocketscienceinc/caro/internal/tictactoe"
)

var errNoSnapshotStorage = errors.New("no snapshot storage configured")

func (that *GameManager) handleEvent(ctx context.Context, ev session.Event) {
	switch ev.Kind {
	case session.EventConnectionChanged:
		if ev.Connected {
			that.onConnected(ctx)
		} else {
			that.onDisconnected(ctx, ev.Err)
		}
	case session.EventMessage:
		that.onMessage(ctx, ev.Message)
	}
}

// drainSession - the session is done: deliver what it queued, then make sure the
// disconnect is seen even if its event was dropped.
func (that *GameManager) drainSession(ctx context.Context) {
	sess := that.sess

	for that.sess == sess {
		select {
		case ev := <-sess.Events():
			that.handleEvent(ctx, ev)
		default:
			that.onDisconnected(ctx, sess.Err())
			return
		}
	}
}

func (that *GameManager) onConnected(ctx context.Context) {
	log := that.logger.With("method", "onConnected")

	that.state.Connected = true

	if that.state.IsHost {
		start := protocol.SessionStart{
			Difficulty: that.state.Difficulty,
			IsHost:     true,
			SessionID:  that.sessionID,
		}
		if err := that.sess.Send(start); err != nil {
			log.Error("failed to send session start", "error", err)
		}

		if that.resumed {
			if err := that.sess.Send(protocol.StateSyncFrom(that.state)); err != nil {
				log.Error("failed to send state sync", "error", err)
			}
		}

		that.saveSnapshot(ctx)
	}

	log.Info("peer connected", "is_host", that.state.IsHost)
	that.publish(NotifyConnection)
}

func (that *GameManager) onDisconnected(ctx context.Context, reason error) {
	if that.sess == nil {
		return
	}

	that.sess = nil
	that.state.Connected = false

	if that.state.IsHost {
		that.saveSnapshot(ctx)
	}

	that.logger.Info("peer disconnected", "reason", reason)
	that.publishNotification(Notification{Kind: NotifyConnection, Err: reason})
}

func (that *GameManager) onMessage(ctx context.Context, msg protocol.Message) {
	log := that.logger.With("method", "onMessage", "type", msg.Type())

	switch msg := msg.(type) {
	case protocol.Move:
		that.onRemoteMove(ctx, msg.Entity())
	case protocol.SessionStart:
		if that.state.IsHost {
			log.Warn("ignored session start from client")
			return
		}

		state := entity.NewGame(msg.Difficulty, entity.NetworkedMode)
		state.Connected = true
		that.reset(state, entity.PlayerO)
		that.sessionID = msg.SessionID
		that.started = true

		log.Info("session started by host", "difficulty", msg.Difficulty, "session_id", msg.SessionID)
		that.publish(NotifyState)
	case protocol.StateSync:
		that.state = msg.Apply(that.state)
		that.started = true
		that.generation++

		log.Info("state replaced by peer")
		that.saveSnapshot(ctx)
		that.publish(NotifyState)
	case protocol.SessionEnd:
		log.Info("peer ended the session", "winner", msg.Winner)
		that.publishNotification(Notification{Kind: NotifySessionEnded, Winner: msg.Winner})
	case protocol.Chat:
		that.publishNotification(Notification{Kind: NotifyChat, Chat: msg.Text})
	default:
		log.Warn("ignored message")
	}
}

// onRemoteMove - replays the peer's move. Moves out of turn or against the rules are dropped.
func (that *GameManager) onRemoteMove(ctx context.Context, move entity.Move) {
	log := that.logger.With("method", "onRemoteMove", "row", move.Row, "col", move.Col)

	if !that.started {
		log.Warn("dropped move before session start")
		return
	}

	if that.state.Turn == that.local {
		log.Warn("dropped move out of turn")
		return
	}

	next, err := tictactoe.TryMove(that.state, move)
	if err != nil {
		log.Warn("dropped illegal move", "error", err)
		return
	}

	that.commit(ctx, next)
}

func (that *GameManager) loadSnapshot(ctx context.Context, id string) (entity.GameState, error) {
	if that.snapshots == nil {
		return entity.GameState{}, errNoSnapshotStorage
	}

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	state, err := that.snapshots.GetByID(ctx, id)
	if err != nil {
		return entity.GameState{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	state.Mode = entity.NetworkedMode
	state.IsHost = true
	state.Connected = false

	return state, nil
}

// saveSnapshot - host only and best effort; a finished game is removed instead.
func (that *GameManager) saveSnapshot(ctx context.Context) {
	if that.snapshots == nil || !that.state.IsHost || that.sessionID == "" {
		return
	}

	log := that.logger.With("method", "saveSnapshot", "session_id", that.sessionID)

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	if that.state.IsFinished() {
		if err := that.snapshots.DeleteByID(ctx, that.sessionID); err != nil {
			log.Error("failed to delete snapshot", "error", err)
		}
		return
	}

	if err := that.snapshots.Save(ctx, that.sessionID, that.state); err != nil {
		log.Error("failed to save snapshot", "error", err)
	}
}
