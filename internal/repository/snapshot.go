package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/caro/internal/entity"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

const snapshotKeyPrefix = "snapshot:"

// SnapshotRepository keeps the last state of a hosted game so that a host can
// resynchronise a reconnecting peer.
type SnapshotRepository interface {
	Save(ctx context.Context, id string, state entity.GameState) error
	GetByID(ctx context.Context, id string) (entity.GameState, error)
	DeleteByID(ctx context.Context, id string) error
}

type dbSnapshot struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotRepository - ttl of zero keeps snapshots forever.
func NewSnapshotRepository(client *redis.Client, ttl time.Duration) SnapshotRepository {
	return &dbSnapshot{
		client: client,
		ttl:    ttl,
	}
}

func (that *dbSnapshot) Save(ctx context.Context, id string, state entity.GameState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("could not marshal snapshot: %w", err)
	}

	if err = that.client.Set(ctx, snapshotKeyPrefix+id, stateJSON, that.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}

	return nil
}

func (that *dbSnapshot) GetByID(ctx context.Context, id string) (entity.GameState, error) {
	response, err := that.client.Get(ctx, snapshotKeyPrefix+id).Result()

	if errors.Is(err, redis.Nil) {
		return entity.GameState{}, ErrSnapshotNotFound
	}

	if err != nil {
		return entity.GameState{}, fmt.Errorf("failed to get snapshot by id: %w", err)
	}

	var state entity.GameState
	if err = json.Unmarshal([]byte(response), &state); err != nil {
		return entity.GameState{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	if err = state.Board.Validate(state.Difficulty.Size()); err != nil {
		return entity.GameState{}, fmt.Errorf("stored snapshot is corrupt: %w", err)
	}

	return state, nil
}

func (that *dbSnapshot) DeleteByID(ctx context.Context, id string) error {
	if err := that.client.Del(ctx, snapshotKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot by id: %w", err)
	}

	return nil
}
