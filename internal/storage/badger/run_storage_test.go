package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mfaflow/internal/common"
	"github.com/ternarybob/mfaflow/internal/interfaces"
	"github.com/ternarybob/mfaflow/internal/models"
)

func newTestStorage(t *testing.T) *RunStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "runs")})
	require.NoError(t, err)
	s := NewRunStorage(db, logger)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunStorage_SaveAndGet(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Millisecond)
	run := &models.RunRecord{
		ID:         "run_1",
		Scenario:   "multifactor-login",
		State:      models.StateAborted,
		Step:       models.StateAwaitingMaskedPassword,
		ErrorKind:  "InvalidPosition",
		Error:      "invalid position",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Duration:   time.Second,
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "run_1")
	require.NoError(t, err)
	assert.Equal(t, run.Step, got.Step)
	assert.Equal(t, run.ErrorKind, got.ErrorKind)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))

	run.Passed = true
	require.NoError(t, s.SaveRun(ctx, run), "saving again overwrites")
	got, err = s.GetRun(ctx, "run_1")
	require.NoError(t, err)
	assert.True(t, got.Passed)

	count, err := s.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunStorage_ListNewestFirst(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveRun(ctx, &models.RunRecord{
			ID:        fmt.Sprintf("run_%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 5)
	assert.Equal(t, "run_4", runs[0].ID)
	assert.Equal(t, "run_0", runs[4].ID)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run_4", runs[0].ID)
	assert.Equal(t, "run_3", runs[1].ID)
}

func TestRunStorage_NotFound(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, interfaces.ErrRunNotFound))

	err = s.DeleteRun(ctx, "missing")
	assert.True(t, errors.Is(err, interfaces.ErrRunNotFound))

	assert.Error(t, s.SaveRun(ctx, &models.RunRecord{}))
}

func TestRunStorage_Delete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, &models.RunRecord{ID: "run_x", StartedAt: time.Now()}))
	require.NoError(t, s.DeleteRun(ctx, "run_x"))

	count, err := s.CountRuns(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNewBadgerDB_ResetOnStartup(t *testing.T) {
	logger := arbor.NewLogger()
	cfg := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "runs")}
	ctx := context.Background()

	db, err := NewBadgerDB(logger, cfg)
	require.NoError(t, err)
	require.NoError(t, NewRunStorage(db, logger).SaveRun(ctx, &models.RunRecord{ID: "run_keep", StartedAt: time.Now()}))
	require.NoError(t, db.Close())

	cfg.ResetOnStartup = true
	db, err = NewBadgerDB(logger, cfg)
	require.NoError(t, err)
	defer db.Close()

	count, err := NewRunStorage(db, logger).CountRuns(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
