package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/commandpost/dispatch-core/models"
)

// Snapshot is the atomic pairing of the full calls and units
// collections at one point in time. Consoles must never render calls
// from one fetch next to units from another.
type Snapshot struct {
	Calls     []models.Call
	Units     []models.Unit
	FetchedAt time.Time
}

// Store is the single client-side cache of dispatch state. It is only
// ever replaced wholesale by Refresh; no field-level mutation exists.
// Both the realtime listener and any polling timer funnel through
// Invalidate, so there is exactly one writer discipline.
type Store struct {
	api *Client

	mu   sync.RWMutex
	snap Snapshot

	// invalidations is a one-slot trigger: any number of back-to-back
	// notifications collapse into at most one trailing refresh.
	invalidations chan struct{}
	onUpdate      func(Snapshot)
	onError       func(error)
}

// NewStore returns an empty store reading from api.
func NewStore(api *Client) *Store {
	return &Store{
		api:           api,
		invalidations: make(chan struct{}, 1),
	}
}

// OnUpdate registers a callback invoked after every successful refresh
// with the new snapshot. Used by consoles to re-render.
func (s *Store) OnUpdate(fn func(Snapshot)) { s.onUpdate = fn }

// OnError registers a callback for failed background refreshes. Reads
// fail soft: the previous snapshot stays rendered.
func (s *Store) OnError(fn func(error)) { s.onError = fn }

// Refresh re-fetches calls and units and replaces the snapshot as one
// atomic update. On any failure the previous snapshot is left intact
// and the error is returned.
func (s *Store) Refresh(ctx context.Context) error {
	calls, err := s.api.Calls(ctx)
	if err != nil {
		return err
	}
	units, err := s.api.Units(ctx)
	if err != nil {
		return err
	}

	snap := Snapshot{Calls: calls, Units: units, FetchedAt: time.Now()}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
	return nil
}

// Snapshot returns the last-known-good snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Call looks a call up in the current snapshot.
func (s *Store) Call(id string) (models.Call, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.snap.Calls {
		if c.ID == id {
			return c, true
		}
	}
	return models.Call{}, false
}

// Unit looks a unit up in the current snapshot.
func (s *Store) Unit(id string) (models.Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.snap.Units {
		if u.ID == id {
			return u, true
		}
	}
	return models.Unit{}, false
}

// Invalidate requests a refresh. It never blocks; a trigger that
// arrives while one is already pending is absorbed, which is what
// bounds back-to-back notifications to one converging refresh.
func (s *Store) Invalidate() {
	select {
	case s.invalidations <- struct{}{}:
	default:
	}
}

// Run services Invalidate triggers and an optional poll interval until
// ctx is done. It is the only goroutine that calls Refresh in the
// background; manual Refresh calls remain safe because the swap is
// atomic.
func (s *Store) Run(ctx context.Context, pollInterval time.Duration) {
	var ticker *time.Ticker
	var tick <-chan time.Time
	if pollInterval > 0 {
		ticker = time.NewTicker(pollInterval)
		tick = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.invalidations:
		case <-tick:
		}
		if err := s.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			zap.S().Warnw("background refresh failed, keeping previous snapshot", "error", err)
			if s.onError != nil {
				s.onError(err)
			}
		}
	}
}
