package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/commandpost/dispatch-core/api"
	"github.com/commandpost/dispatch-core/config"
	"github.com/commandpost/dispatch-core/databases"
	"github.com/commandpost/dispatch-core/models"
)

// MutationIDHeader carries the client-generated id that makes offline
// replays idempotent.
const MutationIDHeader = "X-Mutation-ID"

// Assignment exported for testing purposes
type Assignment struct {
	DB      databases.CallDatabase
	UDB     databases.UnitDatabase
	EDB     databases.EventDatabase
	MDB     databases.MutationDatabase
	Hub     *Hub
	Metrics *api.Metrics
}

// AssignUnitHandler binds a unit to a call. The conditional update on
// the unit document is the arbitration point between consoles: only
// one assignment can flip a unit out of available.
func (a Assignment) AssignUnitHandler(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["call_id"]

	var requestBody struct {
		UnitID string `json:"unitId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.UnitID == "" {
		config.ErrorStatus("unitId is required", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if done := replayedMutation(ctx, a.MDB, a.Metrics, w, r); done {
		return
	}

	call, err := a.DB.FindOne(ctx, bson.M{"_id": callID})
	if err != nil {
		config.ErrorStatus("failed to get call by ID", http.StatusNotFound, w, err)
		return
	}
	if !models.CanTransition(call.Details.Status, models.StatusEnroute) {
		config.ErrorStatus("call cannot accept an assignment in its current status", http.StatusUnprocessableEntity, w, nil)
		return
	}

	// Claim the unit only if it is still available. Matched == 0 means
	// another console won the race or the unit is off the board.
	matched, err := a.UDB.UpdateOne(ctx,
		bson.M{"_id": requestBody.UnitID, "unit.status": models.UnitAvailable},
		bson.M{"$set": bson.M{
			"unit.status":     models.UnitCommitted,
			"unit.activeCall": callID,
			"unit.updatedAt":  time.Now(),
		}},
	)
	if err != nil {
		config.ErrorStatus("failed to claim unit", http.StatusInternalServerError, w, err)
		return
	}
	if matched == 0 {
		config.ErrorStatus("unit is not available", http.StatusConflict, w, nil)
		return
	}

	// Successful assignment implies the enroute status server-side. The
	// filter carries the status the legality check saw, so a competing
	// mutation that landed in between cannot be overwritten.
	matched, err = a.DB.UpdateOne(ctx,
		bson.M{"_id": callID, "call.status": call.Details.Status},
		bson.M{
			"$push": bson.M{"call.assignedUnits": requestBody.UnitID},
			"$set": bson.M{
				"call.status":    models.StatusEnroute,
				"call.updatedAt": time.Now(),
			},
		},
	)
	if err != nil {
		releaseClaim(ctx, a.UDB, requestBody.UnitID, callID)
		config.ErrorStatus("failed to update call", http.StatusInternalServerError, w, err)
		return
	}
	if matched == 0 {
		releaseClaim(ctx, a.UDB, requestBody.UnitID, callID)
		config.ErrorStatus("call was modified by another console", http.StatusConflict, w, nil)
		return
	}

	recordMutation(ctx, a.MDB, a.Metrics, r, "assign_unit")
	appendEvent(ctx, a.EDB, "unit_assigned", models.TargetCall, callID, map[string]string{
		"unit":   requestBody.UnitID,
		"status": string(models.StatusEnroute),
	})
	a.Hub.Notify(requestBody.UnitID)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Unit assigned successfully",
	})
}

// releaseClaim rolls a unit claim back so the unit is not stranded
// committed to a call that never recorded it.
func releaseClaim(ctx context.Context, udb databases.UnitDatabase, unitID, callID string) {
	if _, err := udb.UpdateOne(ctx,
		bson.M{"_id": unitID, "unit.activeCall": callID},
		bson.M{"$set": bson.M{
			"unit.status":     models.UnitAvailable,
			"unit.activeCall": "",
			"unit.updatedAt":  time.Now(),
		}},
	); err != nil {
		zap.S().Errorw("failed to release unit after assignment failure",
			"unit", unitID,
			"call", callID,
			"error", err)
	}
}

// replayedMutation answers a duplicate offline replay with the recorded
// outcome instead of re-applying it. Returns true when the response has
// been written.
func replayedMutation(ctx context.Context, mdb databases.MutationDatabase, m *api.Metrics, w http.ResponseWriter, r *http.Request) bool {
	id := r.Header.Get(MutationIDHeader)
	if id == "" || mdb == nil {
		return false
	}
	seen, err := mdb.Seen(ctx, id)
	if err != nil {
		zap.S().Warnw("failed to check mutation id, applying anyway", "id", id, "error", err)
		return false
	}
	if !seen {
		return false
	}
	m.ReplaySeen("duplicate")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "Mutation already applied",
		"duplicate": true,
	})
	return true
}

func recordMutation(ctx context.Context, mdb databases.MutationDatabase, m *api.Metrics, r *http.Request, action string) {
	id := r.Header.Get(MutationIDHeader)
	if id == "" || mdb == nil {
		return
	}
	if err := mdb.Record(ctx, id, action); err != nil {
		zap.S().Warnw("failed to record mutation id", "id", id, "error", err)
		return
	}
	m.ReplaySeen("applied")
}
