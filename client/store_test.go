package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commandpost/dispatch-core/models"
)

// dispatchServer is a minimal fake of the service read surface.
type dispatchServer struct {
	calls atomic.Value // []models.Call
	units atomic.Value // []models.Unit

	failReads atomic.Bool
	requests  atomic.Int64
}

func newDispatchServer() (*dispatchServer, *httptest.Server) {
	ds := &dispatchServer{}
	ds.calls.Store([]models.Call{})
	ds.units.Store([]models.Unit{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/calls", func(w http.ResponseWriter, r *http.Request) {
		ds.requests.Add(1)
		if ds.failReads.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ds.calls.Load())
	})
	mux.HandleFunc("/api/v1/units", func(w http.ResponseWriter, r *http.Request) {
		ds.requests.Add(1)
		if ds.failReads.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ds.units.Load())
	})
	return ds, httptest.NewServer(mux)
}

func TestStoreRefresh(t *testing.T) {
	ds, srv := newDispatchServer()
	defer srv.Close()
	ds.calls.Store([]models.Call{
		{ID: "call-1", Details: models.CallDetails{Status: models.StatusDispatched}},
		{ID: "call-2", Details: models.CallDetails{Status: models.StatusEnroute}},
	})
	ds.units.Store([]models.Unit{
		{ID: "unit-7", Details: models.UnitDetails{Status: models.UnitAvailable}},
	})

	s := NewStore(New(srv.URL, StaticToken("tok")))
	require.NoError(t, s.Refresh(context.Background()))

	snap := s.Snapshot()
	assert.Len(t, snap.Calls, 2)
	assert.Len(t, snap.Units, 1)
	assert.False(t, snap.FetchedAt.IsZero())

	call, ok := s.Call("call-2")
	assert.True(t, ok)
	assert.Equal(t, models.StatusEnroute, call.Details.Status)

	_, ok = s.Unit("ghost")
	assert.False(t, ok)
}

func TestStoreRefreshFailureKeepsSnapshot(t *testing.T) {
	ds, srv := newDispatchServer()
	defer srv.Close()
	ds.calls.Store([]models.Call{{ID: "call-1"}})

	s := NewStore(New(srv.URL, StaticToken("tok")))
	require.NoError(t, s.Refresh(context.Background()))

	ds.failReads.Store(true)
	err := s.Refresh(context.Background())
	assert.Error(t, err)

	// the previous snapshot stays intact
	snap := s.Snapshot()
	assert.Len(t, snap.Calls, 1)
	assert.Equal(t, "call-1", snap.Calls[0].ID)
}

func TestStoreInvalidateCoalesces(t *testing.T) {
	s := NewStore(nil)

	s.Invalidate()
	s.Invalidate()
	s.Invalidate()

	// back-to-back triggers collapse to a single pending refresh
	assert.Len(t, s.invalidations, 1)
}

func TestStoreRunServicesInvalidations(t *testing.T) {
	ds, srv := newDispatchServer()
	defer srv.Close()
	ds.calls.Store([]models.Call{{ID: "call-1"}})

	s := NewStore(New(srv.URL, StaticToken("tok")))
	updates := make(chan Snapshot, 4)
	s.OnUpdate(func(snap Snapshot) { updates <- snap })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, 0)

	s.Invalidate()

	select {
	case snap := <-updates:
		assert.Len(t, snap.Calls, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never happened")
	}
}

func TestStoreRunReportsErrors(t *testing.T) {
	ds, srv := newDispatchServer()
	defer srv.Close()
	ds.failReads.Store(true)

	s := NewStore(New(srv.URL, StaticToken("tok")))
	errs := make(chan error, 4)
	s.OnError(func(err error) { errs <- err })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, 0)

	s.Invalidate()

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("error never reported")
	}
}
