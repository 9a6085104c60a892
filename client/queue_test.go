package client

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestQueue(t *testing.T) (*Queue, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := OpenQueue(path)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, path
}

func enqueueN(t *testing.T, q *Queue, n int) []string {
	t.Helper()
	base := time.Now().Add(-time.Minute)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		m := &QueuedMutation{
			Method:    http.MethodPost,
			Path:      "/api/v1/call/call-1/status",
			Header:    http.Header{mutationIDHeader: []string{time.Now().String()}},
			Body:      []byte(`{"status":"enroute"}`),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, q.Enqueue(context.Background(), m))
		ids[i] = m.ID
	}
	return ids
}

func TestQueueReplayFIFO(t *testing.T) {
	q, _ := openTestQueue(t)
	ids := enqueueN(t, q, 3)

	var replayed []string
	delivered, err := q.Replay(context.Background(), func(ctx context.Context, m QueuedMutation) error {
		replayed = append(replayed, m.ID)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, delivered)
	assert.Equal(t, ids, replayed)

	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := OpenQueue(path)
	require.NoError(t, err)

	m := &QueuedMutation{Method: http.MethodPost, Path: "/api/v1/call/call-1/assign", Body: []byte(`{"unitId":"unit-7"}`)}
	require.NoError(t, q.Enqueue(context.Background(), m))
	require.NoError(t, q.Close())

	reopened, err := OpenQueue(path)
	require.NoError(t, err)
	defer reopened.Close()

	pending, err := reopened.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, m.ID, pending[0].ID)
	assert.Equal(t, "/api/v1/call/call-1/assign", pending[0].Path)
	assert.JSONEq(t, `{"unitId":"unit-7"}`, string(pending[0].Body))
}

func TestQueueReplayDropsValidationRejections(t *testing.T) {
	q, _ := openTestQueue(t)
	ids := enqueueN(t, q, 3)

	delivered, err := q.Replay(context.Background(), func(ctx context.Context, m QueuedMutation) error {
		if m.ID == ids[1] {
			return &Error{Kind: KindValidation, Status: http.StatusUnprocessableEntity, Message: "illegal status transition"}
		}
		return nil
	})
	require.NoError(t, err)

	// the rejected entry is dropped, the rest still deliver
	assert.Equal(t, 2, delivered)

	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestQueueReplayStopsOnNetworkFailure(t *testing.T) {
	q, _ := openTestQueue(t)
	ids := enqueueN(t, q, 3)

	var attempted []string
	delivered, err := q.Replay(context.Background(), func(ctx context.Context, m QueuedMutation) error {
		attempted = append(attempted, m.ID)
		if m.ID == ids[1] {
			return &Error{Kind: KindNetwork, Message: "request failed"}
		}
		return nil
	})
	require.Error(t, err)

	// delivery stops at the failure; order is preserved for next time
	assert.Equal(t, 1, delivered)
	assert.Equal(t, ids[:2], attempted)

	pending, pErr := q.Pending(context.Background())
	require.NoError(t, pErr)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[1], pending[0].ID)
	assert.Equal(t, ids[2], pending[1].ID)
	assert.Equal(t, 1, pending[0].Attempts)
}

func TestQueueHeaderRoundTrip(t *testing.T) {
	q, _ := openTestQueue(t)

	header := http.Header{}
	header.Set(mutationIDHeader, "mut-abc")
	require.NoError(t, q.Enqueue(context.Background(), &QueuedMutation{
		Method: http.MethodPost,
		Path:   "/api/v1/call/call-1/assign",
		Header: header,
	}))

	pending, err := q.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "mut-abc", pending[0].Header.Get(mutationIDHeader))
}
