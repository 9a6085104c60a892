package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commandpost/dispatch-core/models"
)

func seededStore(api *Client) *Store {
	s := NewStore(api)
	s.snap = Snapshot{
		Calls: []models.Call{
			{ID: "call-1", Details: models.CallDetails{Status: models.StatusDispatched, AssignedUnits: []string{}}},
		},
		Units: []models.Unit{
			{ID: "unit-7", Details: models.UnitDetails{Status: models.UnitAvailable}},
			{ID: "unit-9", Details: models.UnitDetails{Status: models.UnitCommitted, ActiveCall: "call-2"}},
		},
	}
	return s
}

func TestAssignUnitRejectsBeforeSending(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	api := New(srv.URL, StaticToken("tok"))
	d := NewDispatcher(api, seededStore(api), nil)

	tests := []struct {
		name   string
		callID string
		unitID string
	}{
		{"unknown call", "ghost", "unit-7"},
		{"unknown unit", "call-1", "ghost"},
		{"unit already committed", "call-1", "unit-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.AssignUnit(context.Background(), tt.callID, tt.unitID)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}

	// local rejections never reach the wire
	assert.Equal(t, int64(0), requests.Load())
}

func TestAssignUnitSendsMutationID(t *testing.T) {
	var gotMutationID atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMutationID.Store(r.Header.Get(mutationIDHeader))
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "unit-7", body["unitId"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	api := New(srv.URL, StaticToken("tok"))
	store := seededStore(api)
	d := NewDispatcher(api, store, nil)

	require.NoError(t, d.AssignUnit(context.Background(), "call-1", "unit-7"))
	assert.NotEmpty(t, gotMutationID.Load())

	// success schedules a refresh; committed state comes from the server
	assert.Len(t, store.invalidations, 1)
}

func TestTransitionRequiresSelection(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	err := d.Transition(context.Background(), "", models.StatusEnroute, "")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	err := d.Transition(context.Background(), "call-1", "galactic", "")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSendQueuesOnNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // unreachable service

	api := New(srv.URL, StaticToken("tok"))
	store := seededStore(api)

	queue, err := OpenQueue(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer queue.Close()

	d := NewDispatcher(api, store, queue)

	err = d.AssignUnit(context.Background(), "call-1", "unit-7")
	require.Error(t, err)
	assert.True(t, IsQueued(err))
	assert.Equal(t, KindNetwork, KindOf(err))

	depth, dErr := queue.Depth(context.Background())
	require.NoError(t, dErr)
	assert.Equal(t, 1, depth)

	// the queued entry replays byte-for-byte, same mutation id included
	pending, pErr := queue.Pending(context.Background())
	require.NoError(t, pErr)
	require.Len(t, pending, 1)
	assert.NotEmpty(t, pending[0].Header.Get(mutationIDHeader))
	assert.Equal(t, "/api/v1/call/call-1/assign", pending[0].Path)
}

func TestSendDoesNotQueueValidationRejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(models.ErrorMessageResponse{
			Response: models.MessageError{Message: "unit is not available"},
		})
	}))
	defer srv.Close()

	api := New(srv.URL, StaticToken("tok"))
	store := seededStore(api)

	queue, err := OpenQueue(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer queue.Close()

	d := NewDispatcher(api, store, queue)

	err = d.AssignUnit(context.Background(), "call-1", "unit-7")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.False(t, IsQueued(err))

	depth, dErr := queue.Depth(context.Background())
	require.NoError(t, dErr)
	assert.Equal(t, 0, depth)
}

func TestReplayQueueDeliversAndRefreshes(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	api := New(srv.URL, StaticToken("tok"))
	store := seededStore(api)

	queue, err := OpenQueue(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer queue.Close()

	require.NoError(t, queue.Enqueue(context.Background(), &QueuedMutation{
		Method: http.MethodPost,
		Path:   "/api/v1/call/call-1/status",
		Body:   []byte(`{"status":"enroute"}`),
	}))

	d := NewDispatcher(api, store, queue)

	delivered, err := d.ReplayQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, int64(1), requests.Load())
	assert.Len(t, store.invalidations, 1)
}
