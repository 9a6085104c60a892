package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/commandpost/dispatch-core/api"
	"github.com/commandpost/dispatch-core/config"
	"github.com/commandpost/dispatch-core/databases"
	"github.com/commandpost/dispatch-core/models"
)

// Call exported for testing purposes
type Call struct {
	DB  databases.CallDatabase
	EDB databases.EventDatabase
	Hub *Hub
}

// CallHandler returns all calls
func (c Call) CallHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.Find(ctx, bson.D{})
	if err != nil {
		config.ErrorStatus("failed to get calls", http.StatusNotFound, w, err)
		return
	}
	// Consoles require the collection to exist even when the board is
	// empty, so return [] instead of null.
	if len(dbResp) == 0 {
		dbResp = []models.Call{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CallByIDHandler returns a call by ID
func (c Call) CallByIDHandler(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["call_id"]

	zap.S().Debugf("call_id: %v", callID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.FindOne(ctx, bson.M{"_id": callID})
	if err != nil {
		config.ErrorStatus("failed to get call by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CreateCallHandler creates a new call. This is the intake surface;
// calls always enter the board as dispatched and unassigned.
func (c Call) CreateCallHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody models.CallDetails
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	if requestBody.Priority == "" {
		requestBody.Priority = models.PriorityRoutine
	}
	if requestBody.Priority.Rank() < 0 {
		config.ErrorStatus("invalid call priority", http.StatusBadRequest, w, nil)
		return
	}

	requestBody.Status = models.StatusDispatched
	requestBody.AssignedUnits = []string{}
	requestBody.CreatedAt = time.Now()
	requestBody.UpdatedAt = time.Now()

	newCall := models.Call{
		ID:      primitive.NewObjectID().Hex(),
		Details: requestBody,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := c.DB.InsertOne(ctx, newCall); err != nil {
		config.ErrorStatus("failed to create call", http.StatusInternalServerError, w, err)
		return
	}

	appendEvent(ctx, c.EDB, "call_created", models.TargetCall, newCall.ID, map[string]string{
		"priority": string(requestBody.Priority),
	})
	c.Hub.Notify()

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Call created successfully",
		"call":    newCall,
	})
}
