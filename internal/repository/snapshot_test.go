package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/caro/internal/entity"
	"github.com/rocketscienceinc/caro/testing/suite"
)

func snapshotState() entity.GameState {
	state := entity.NewGame(entity.MediumDifficulty, entity.NetworkedMode)
	state.IsHost = true
	state.Board = state.Board.
		With(entity.Move{Row: 2, Col: 2}, entity.PlayerX).
		With(entity.Move{Row: 3, Col: 3}, entity.PlayerO)

	return state
}

func TestSnapshotRepository_Save(t *testing.T) {
	ctx, st := suite.New(t)

	snapshotRepo := NewSnapshotRepository(st.Storage, time.Hour)

	// When: Save is called
	err := snapshotRepo.Save(ctx, "session-1", snapshotState())

	// Then: no error should be returned, and the key expires
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshot:session-1"}, st.Keys(ctx, "*"))
	st.RequireExpiring(ctx, "snapshot:session-1", time.Hour)
}

func TestSnapshotRepository_GetByID(t *testing.T) {
	t.Run("GetByID_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		snapshotRepo := NewSnapshotRepository(st.Storage, 0)

		// Given: a stored snapshot
		state := snapshotState()
		require.NoError(t, snapshotRepo.Save(ctx, "session-1", state))

		// When: GetByID is called with existing ID
		stored, err := snapshotRepo.GetByID(ctx, "session-1")

		// Then: the stored state should match the saved state
		require.NoError(t, err)
		assert.Equal(t, state, stored)
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		snapshotRepo := NewSnapshotRepository(st.Storage, 0)

		// When: GetByID is called with a non-existent ID
		_, err := snapshotRepo.GetByID(ctx, "9999999")

		// Then: ErrSnapshotNotFound should be returned
		require.ErrorIs(t, err, ErrSnapshotNotFound)
	})

	t.Run("GetByID_Corrupt", func(t *testing.T) {
		ctx, st := suite.New(t)

		snapshotRepo := NewSnapshotRepository(st.Storage, 0)

		// Given: a board that does not fit the difficulty
		require.NoError(t, st.Storage.Set(ctx, "snapshot:bad", `{"board":[["X"]],"turn":"O","status":"playing","difficulty":"hard"}`, 0).Err())

		// When: GetByID is called
		_, err := snapshotRepo.GetByID(ctx, "bad")

		// Then: it is rejected
		require.ErrorIs(t, err, entity.ErrMalformedBoard)
	})
}

func TestSnapshotRepository_DeleteByID(t *testing.T) {
	ctx, st := suite.New(t)

	snapshotRepo := NewSnapshotRepository(st.Storage, 0)

	// Given: a stored snapshot
	require.NoError(t, snapshotRepo.Save(ctx, "session-1", snapshotState()))

	// When: DeleteByID is called
	require.NoError(t, snapshotRepo.DeleteByID(ctx, "session-1"))

	// Then: the snapshot is gone
	_, err := snapshotRepo.GetByID(ctx, "session-1")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.Empty(t, st.Keys(ctx, "snapshot:*"))
}
