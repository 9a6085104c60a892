package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/commandpost/dispatch-core/models"
)

// mutationIDHeader matches the header the service deduplicates on.
const mutationIDHeader = "X-Mutation-ID"

// Dispatcher issues the state-changing operations: assignment and
// status transitions. Every modality (drag-and-drop, manual pick,
// keyboard shortcut) funnels into these two methods, so there is
// exactly one code path that can bind a unit to a call.
type Dispatcher struct {
	api   *Client
	store *Store
	queue *Queue
}

// NewDispatcher wires the mutation path.
func NewDispatcher(api *Client, store *Store, queue *Queue) *Dispatcher {
	return &Dispatcher{api: api, store: store, queue: queue}
}

// AssignUnit binds a unit to a call. Unknown ids and unavailable units
// are rejected against the current snapshot before any request leaves
// the console. Committed state arrives only via the next refresh; the
// caller may show an "assigning" indicator meanwhile.
func (d *Dispatcher) AssignUnit(ctx context.Context, callID, unitID string) error {
	if _, ok := d.store.Call(callID); !ok {
		return &Error{Kind: KindValidation, Op: "assign", Message: fmt.Sprintf("unknown call %q", callID)}
	}
	unit, ok := d.store.Unit(unitID)
	if !ok {
		return &Error{Kind: KindValidation, Op: "assign", Message: fmt.Sprintf("unknown unit %q", unitID)}
	}
	if unit.Details.Status != models.UnitAvailable {
		return &Error{Kind: KindValidation, Op: "assign", Message: fmt.Sprintf("unit %q is %s", unitID, unit.Details.Status)}
	}

	body, err := json.Marshal(map[string]string{"unitId": unitID})
	if err != nil {
		return err
	}
	return d.send(ctx, http.MethodPost, "/api/v1/call/"+callID+"/assign", body)
}

// Transition moves a call to a new lifecycle status. The server is the
// sole arbiter of legality; the console does not pre-validate the graph
// beyond requiring a known status name.
func (d *Dispatcher) Transition(ctx context.Context, callID string, to models.CallStatus, unitID string) error {
	if callID == "" {
		return &Error{Kind: KindValidation, Op: "transition", Message: "no call selected"}
	}
	if !models.ValidStatus(to) {
		return &Error{Kind: KindValidation, Op: "transition", Message: fmt.Sprintf("unknown status %q", to)}
	}

	payload := map[string]string{"status": string(to)}
	if unitID != "" {
		payload["unitId"] = unitID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return d.send(ctx, http.MethodPost, "/api/v1/call/"+callID+"/status", body)
}

// send issues one mutation with a fresh mutation id. A network-class
// failure persists the request to the offline queue instead of losing
// it; every other failure is surfaced as-is. Success (or capture)
// triggers a coalesced refresh so committed state comes from the
// server, never from local inference.
func (d *Dispatcher) send(ctx context.Context, method, path string, body []byte) error {
	header := http.Header{}
	mutationID := uuid.New().String()
	header.Set(mutationIDHeader, mutationID)

	resp, err := d.api.Do(ctx, method, path, body, header)
	if err == nil {
		drain(resp)
		d.store.Invalidate()
		return nil
	}

	var reqErr *Error
	if errors.As(err, &reqErr) && reqErr.Kind == KindNetwork && d.queue != nil {
		qErr := d.queue.Enqueue(ctx, &QueuedMutation{
			ID:     mutationID,
			Method: method,
			Path:   path,
			Header: header,
			Body:   body,
		})
		if qErr != nil {
			zap.S().Errorw("failed to persist mutation for replay",
				"path", path,
				"error", qErr)
			return err
		}
		reqErr.Queued = true
		zap.S().Infow("mutation captured for offline replay",
			"id", mutationID,
			"path", path)
		return reqErr
	}
	return err
}

// ReplayQueue pushes every pending offline mutation back to the
// service in FIFO order, then refreshes the store if anything was
// delivered. Called on connectivity restoration.
func (d *Dispatcher) ReplayQueue(ctx context.Context) (int, error) {
	if d.queue == nil {
		return 0, nil
	}
	delivered, err := d.queue.Replay(ctx, func(ctx context.Context, m QueuedMutation) error {
		resp, sendErr := d.api.Do(ctx, m.Method, m.Path, m.Body, m.Header)
		if sendErr != nil {
			return sendErr
		}
		drain(resp)
		return nil
	})
	if delivered > 0 {
		d.store.Invalidate()
	}
	return delivered, err
}
