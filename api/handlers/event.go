package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/commandpost/dispatch-core/api"
	"github.com/commandpost/dispatch-core/config"
	"github.com/commandpost/dispatch-core/databases"
	"github.com/commandpost/dispatch-core/models"
)

// Event exported for testing purposes
type Event struct {
	DB databases.EventDatabase
}

// EventHandler returns the global audit stream, newest first. Consoles
// filter it down to the entity they are rendering.
func (e Event) EventHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "event.createdAt", Value: -1}})
	dbResp, err := e.DB.Find(ctx, bson.D{}, opts)
	if err != nil {
		config.ErrorStatus("failed to get events", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.AuditEvent{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// appendEvent writes one audit event for a successful mutation. Audit
// failures are logged, never surfaced; the mutation already happened.
func appendEvent(ctx context.Context, edb databases.EventDatabase, action, targetType, targetID string, metadata map[string]string) {
	if edb == nil {
		return
	}
	event := models.AuditEvent{
		ID: uuid.New().String(),
		Details: models.AuditEventDetails{
			Action:     action,
			TargetType: targetType,
			TargetID:   targetID,
			Metadata:   metadata,
			CreatedAt:  time.Now(),
		},
	}
	if _, err := edb.InsertOne(ctx, event); err != nil {
		zap.S().Errorw("failed to append audit event",
			"action", action,
			"target", targetID,
			"error", err)
	}
}
