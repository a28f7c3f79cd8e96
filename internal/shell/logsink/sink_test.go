package logsink

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/artpar/launchpad/internal/shell/build"
	"github.com/artpar/launchpad/internal/shell/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubAppender struct {
	mu      sync.Mutex
	entries []domain.BuildLogEntry
	err     error
}

func (s *stubAppender) AppendBuildLog(_ context.Context, entry *domain.BuildLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, *entry)
	return nil
}

var _ build.Log = (*DeploymentLog)(nil)

// =============================================================================
// Append Tests
// =============================================================================

func TestAppend_PersistsThenPublishes(t *testing.T) {
	store := &stubAppender{}
	rec := &notify.Recorder{}
	sink := NewSink(store, rec, setupTestLogger())
	log := sink.For("dep-1")

	entry, err := log.Append(context.Background(), domain.LogInfo, "Running install: npm install")
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.ID)

	require.Len(t, store.entries, 1)
	assert.Equal(t, "dep-1", store.entries[0].DeploymentID)

	events := rec.Events("deployment-dep-1")
	require.Len(t, events, 1)
	assert.Equal(t, notify.EventLog, events[0].Type)
	published, ok := events[0].Data.(*domain.BuildLogEntry)
	require.True(t, ok)
	assert.Equal(t, "Running install: npm install", published.Message)
}

func TestAppend_StoreFailureDoesNotPublish(t *testing.T) {
	store := &stubAppender{err: errors.New("disk full")}
	rec := &notify.Recorder{}
	log := NewSink(store, rec, setupTestLogger()).For("dep-1")

	_, err := log.Append(context.Background(), domain.LogError, "boom")
	assert.Error(t, err)
	assert.Empty(t, rec.Events("deployment-dep-1"))

	assert.NotPanics(t, func() { log.Error(context.Background(), "boom") })
}

func TestAppend_TimestampsNeverDecrease(t *testing.T) {
	store := &stubAppender{}
	sink := NewSink(store, nil, setupTestLogger())

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Second), base.Add(time.Second)}
	i := 0
	sink.now = func() time.Time {
		ts := clock[i]
		i++
		return ts
	}

	log := sink.For("dep-1")
	ctx := context.Background()
	log.Info(ctx, "one")
	log.Warn(ctx, "two")
	log.Error(ctx, "three")

	require.Len(t, store.entries, 3)
	assert.Equal(t, base, store.entries[0].CreatedAt)
	assert.Equal(t, base, store.entries[1].CreatedAt)
	assert.Equal(t, base.Add(time.Second), store.entries[2].CreatedAt)

	assert.Equal(t, domain.LogInfo, store.entries[0].Level)
	assert.Equal(t, domain.LogWarning, store.entries[1].Level)
	assert.Equal(t, domain.LogError, store.entries[2].Level)
}
