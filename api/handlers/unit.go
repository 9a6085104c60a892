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

// Unit exported for testing purposes
type Unit struct {
	DB  databases.UnitDatabase
	Hub *Hub
}

// UnitHandler returns all units
func (u Unit) UnitHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := u.DB.Find(ctx, bson.D{})
	if err != nil {
		config.ErrorStatus("failed to get units", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Unit{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UnitByIDHandler returns a unit by its call-sign
func (u Unit) UnitByIDHandler(w http.ResponseWriter, r *http.Request) {
	unitID := mux.Vars(r)["unit_id"]

	zap.S().Debugf("unit_id: %v", unitID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := u.DB.FindOne(ctx, bson.M{"_id": unitID})
	if err != nil {
		config.ErrorStatus("failed to get unit by ID", http.StatusNotFound, w, err)
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

// UpdateUnitPositionHandler stores a position report for a unit
func (u Unit) UpdateUnitPositionHandler(w http.ResponseWriter, r *http.Request) {
	unitID := mux.Vars(r)["unit_id"]

	var requestBody struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	matched, err := u.DB.UpdateOne(ctx, bson.M{"_id": unitID}, bson.M{
		"$set": bson.M{
			"unit.lat":       requestBody.Lat,
			"unit.lon":       requestBody.Lon,
			"unit.updatedAt": time.Now(),
		},
	})
	if err != nil {
		config.ErrorStatus("failed to update unit position", http.StatusInternalServerError, w, err)
		return
	}
	if matched == 0 {
		config.ErrorStatus("unit not found", http.StatusNotFound, w, nil)
		return
	}

	u.Hub.Notify(unitID)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Unit position updated successfully",
	})
}
