package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/commandpost/dispatch-core/api/handlers"
	"github.com/commandpost/dispatch-core/models"
)

func TestEvent_EventHandler(t *testing.T) {
	eventDB := new(MockEventDatabase)
	now := time.Now()
	events := []models.AuditEvent{
		{ID: "e2", Details: models.AuditEventDetails{Action: "status_changed", TargetType: models.TargetCall, TargetID: "call-1", CreatedAt: now}},
		{ID: "e1", Details: models.AuditEventDetails{Action: "call_created", TargetType: models.TargetCall, TargetID: "call-1", CreatedAt: now.Add(-time.Minute)}},
	}
	eventDB.On("Find", mock.Anything, mock.Anything).Return(events, nil)

	e := handlers.Event{DB: eventDB}

	req, _ := http.NewRequest("GET", "/api/v1/events", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(e.EventHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got []models.AuditEvent
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "e2", got[0].ID)
}

func TestEvent_EventHandlerEmpty(t *testing.T) {
	eventDB := new(MockEventDatabase)
	eventDB.On("Find", mock.Anything, mock.Anything).Return(nil, nil)

	e := handlers.Event{DB: eventDB}

	req, _ := http.NewRequest("GET", "/api/v1/events", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(e.EventHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", rr.Body.String())
}
