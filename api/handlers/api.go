package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/commandpost/dispatch-core/api"
	"github.com/commandpost/dispatch-core/config"
	"github.com/commandpost/dispatch-core/databases"
	"github.com/commandpost/dispatch-core/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.ServerConfig
	Hub      *Hub
	dbHelper databases.DatabaseHelper
	metrics  *api.Metrics
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	auth := api.NewAuthenticator(a.Config.JWTSecret)

	r := mux.NewRouter()

	call := Call{DB: databases.NewCallDatabase(a.dbHelper), EDB: databases.NewEventDatabase(a.dbHelper), Hub: a.Hub}
	unit := Unit{DB: databases.NewUnitDatabase(a.dbHelper), Hub: a.Hub}
	assignment := Assignment{
		DB:      databases.NewCallDatabase(a.dbHelper),
		UDB:     databases.NewUnitDatabase(a.dbHelper),
		EDB:     databases.NewEventDatabase(a.dbHelper),
		MDB:     databases.NewMutationDatabase(a.dbHelper),
		Hub:     a.Hub,
		Metrics: a.metrics,
	}
	status := Status{
		DB:      databases.NewCallDatabase(a.dbHelper),
		UDB:     databases.NewUnitDatabase(a.dbHelper),
		EDB:     databases.NewEventDatabase(a.dbHelper),
		MDB:     databases.NewMutationDatabase(a.dbHelper),
		Hub:     a.Hub,
		Metrics: a.metrics,
	}
	event := Event{DB: databases.NewEventDatabase(a.dbHelper)}
	rt := Realtime{Hub: a.Hub}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(a.metrics.Middleware)

	apiCreate.Handle("/calls", auth.Middleware(http.HandlerFunc(call.CallHandler))).Methods("GET")
	apiCreate.Handle("/calls", auth.Middleware(http.HandlerFunc(call.CreateCallHandler))).Methods("POST")
	apiCreate.Handle("/call/{call_id}", auth.Middleware(http.HandlerFunc(call.CallByIDHandler))).Methods("GET")
	apiCreate.Handle("/call/{call_id}/assign", auth.Middleware(http.HandlerFunc(assignment.AssignUnitHandler))).Methods("POST")
	apiCreate.Handle("/call/{call_id}/status", auth.Middleware(http.HandlerFunc(status.TransitionCallHandler))).Methods("POST")

	apiCreate.Handle("/units", auth.Middleware(http.HandlerFunc(unit.UnitHandler))).Methods("GET")
	apiCreate.Handle("/unit/{unit_id}", auth.Middleware(http.HandlerFunc(unit.UnitByIDHandler))).Methods("GET")
	apiCreate.Handle("/unit/{unit_id}/position", auth.Middleware(http.HandlerFunc(unit.UpdateUnitPositionHandler))).Methods("PUT")

	apiCreate.Handle("/events", auth.Middleware(http.HandlerFunc(event.EventHandler))).Methods("GET")

	apiCreate.Handle("/realtime", auth.Middleware(http.HandlerFunc(rt.RealtimeHandler))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize(ctx context.Context) error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect(ctx)
	if err != nil {
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("dispatch-core has connected to the database")

	a.metrics, err = api.NewMetrics(nil)
	if err != nil {
		zap.S().With(err).Error("failed to register metrics")
		return err
	}
	a.Hub = NewHub(a.metrics)

	a.initializeRoutes()
	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
