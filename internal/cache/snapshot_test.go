package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/classpad-app/classpad-sync/internal/models"
)

func newTestSnapshot(t *testing.T) (*Snapshot, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewSnapshot(client, "classpad:tasks:s-1", time.Minute, zerolog.Nop()), server
}

func TestSnapshotRoundTrip(t *testing.T) {
	snapshot, _ := newTestSnapshot(t)

	deadline := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	saved := []models.Task{{
		ID:       "task-1",
		Title:    "Essay",
		Deadline: &deadline,
		Submissions: []models.Submission{{
			Student: models.EntityRef{ID: "s-1", Name: "Ana"},
			Status:  models.SubmissionDraft,
			Content: "draft text",
		}},
	}}

	require.NoError(t, snapshot.Save(context.Background(), saved))

	loaded, ok, err := snapshot.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loaded, 1)
	require.Equal(t, "task-1", loaded[0].ID)
	require.Equal(t, "s-1", loaded[0].Submissions[0].Student.ID)
	require.True(t, loaded[0].Deadline.Equal(deadline))
}

func TestSnapshotLoadMissingKey(t *testing.T) {
	snapshot, _ := newTestSnapshot(t)

	loaded, ok, err := snapshot.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, loaded)
}

func TestSnapshotDiscardsUnreadablePayload(t *testing.T) {
	snapshot, server := newTestSnapshot(t)
	require.NoError(t, server.Set("classpad:tasks:s-1", "not json"))

	loaded, ok, err := snapshot.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, loaded)
}

func TestSnapshotExpires(t *testing.T) {
	snapshot, server := newTestSnapshot(t)

	require.NoError(t, snapshot.Save(context.Background(), []models.Task{{ID: "task-1"}}))
	server.FastForward(2 * time.Minute)

	_, ok, err := snapshot.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}
