package handlers

import (
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

// Status exported for testing purposes
type Status struct {
	DB      databases.CallDatabase
	UDB     databases.UnitDatabase
	EDB     databases.EventDatabase
	MDB     databases.MutationDatabase
	Hub     *Hub
	Metrics *api.Metrics
}

// TransitionCallHandler moves a call to a new lifecycle status. The
// service is the sole arbiter of legality; consoles send the attempt
// and render whatever comes back.
func (s Status) TransitionCallHandler(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["call_id"]

	var requestBody struct {
		Status models.CallStatus `json:"status"`
		UnitID string            `json:"unitId,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if !models.ValidStatus(requestBody.Status) {
		config.ErrorStatus("unknown call status", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if done := replayedMutation(ctx, s.MDB, s.Metrics, w, r); done {
		return
	}

	call, err := s.DB.FindOne(ctx, bson.M{"_id": callID})
	if err != nil {
		config.ErrorStatus("failed to get call by ID", http.StatusNotFound, w, err)
		return
	}
	if !models.CanTransition(call.Details.Status, requestBody.Status) {
		zap.S().Infow("rejected illegal transition",
			"call", callID,
			"from", call.Details.Status,
			"to", requestBody.Status)
		config.ErrorStatus("illegal status transition", http.StatusUnprocessableEntity, w, nil)
		return
	}

	update := bson.M{
		"call.status":    requestBody.Status,
		"call.updatedAt": time.Now(),
	}
	released := call.Details.AssignedUnits
	if requestBody.Status.Releases() {
		update["call.assignedUnits"] = []string{}
	}

	// The filter carries the status the legality check saw; if another
	// console moved the call in the meantime the write matches nothing
	// and the dispatcher retries against fresh state.
	matched, err := s.DB.UpdateOne(ctx,
		bson.M{"_id": callID, "call.status": call.Details.Status},
		bson.M{"$set": update})
	if err != nil {
		config.ErrorStatus("failed to update call", http.StatusInternalServerError, w, err)
		return
	}
	if matched == 0 {
		config.ErrorStatus("call was modified by another console", http.StatusConflict, w, nil)
		return
	}

	// Entering a terminal status frees every unit the call held.
	if requestBody.Status.Releases() {
		for _, unitID := range released {
			if _, err := s.UDB.UpdateOne(ctx,
				bson.M{"_id": unitID, "unit.activeCall": callID},
				bson.M{"$set": bson.M{
					"unit.status":     models.UnitAvailable,
					"unit.activeCall": "",
					"unit.updatedAt":  time.Now(),
				}},
			); err != nil {
				zap.S().Errorw("failed to release unit",
					"unit", unitID,
					"call", callID,
					"error", err)
			}
		}
	}

	recordMutation(ctx, s.MDB, s.Metrics, r, "transition_"+string(requestBody.Status))
	meta := map[string]string{
		"from": string(call.Details.Status),
		"to":   string(requestBody.Status),
	}
	if requestBody.UnitID != "" {
		meta["unit"] = requestBody.UnitID
	}
	appendEvent(ctx, s.EDB, "status_changed", models.TargetCall, callID, meta)
	s.Hub.Notify(notifyScope(requestBody.UnitID, released)...)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Call status updated successfully",
		"status":  requestBody.Status,
	})
}

// notifyScope merges the acting unit with the units the transition
// touched so scoped consoles are not skipped.
func notifyScope(acting string, touched []string) []string {
	units := make([]string, 0, len(touched)+1)
	units = append(units, touched...)
	if acting != "" && !contains(units, acting) {
		units = append(units, acting)
	}
	return units
}
