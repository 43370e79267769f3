package strava

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/2beens/trainlog/internal/middleware"
	"github.com/2beens/trainlog/internal/telemetry/metrics"
	"github.com/2beens/trainlog/internal/telemetry/tracing"
	"github.com/2beens/trainlog/internal/training"
	"github.com/2beens/trainlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type connection interface {
	AuthURL() string
	HandleCallback(ctx context.Context, state, code string) error
	IsConnected(ctx context.Context) bool
	Disconnect(ctx context.Context) error
}

type StatusResponse struct {
	Connected bool `json:"connected"`
}

type ImportRequest struct {
	Days int `json:"days"`
}

type Handler struct {
	connection connection
	service    *Service
	// where the browser lands after the provider redirects back
	frontendURL string
	defaultDays int
}

func NewHandler(connection connection, service *Service, frontendURL string, defaultDays int) *Handler {
	return &Handler{
		connection:  connection,
		service:     service,
		frontendURL: frontendURL,
		defaultDays: defaultDays,
	}
}

func (handler *Handler) SetupRoutes(
	router *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	importAllowedPerMin int,
	metricsManager *metrics.Manager,
) {
	router.HandleFunc("/strava/auth/connect", handler.HandleConnect).Methods("GET", "OPTIONS")
	router.HandleFunc("/strava/auth/callback", handler.HandleCallback).Methods("GET", "OPTIONS")
	router.HandleFunc("/strava/status", handler.HandleStatus).Methods("GET", "OPTIONS")
	router.HandleFunc("/strava/disconnect", handler.HandleDisconnect).Methods("POST", "OPTIONS")

	// imports hit the upstream api hard, keep a lid on them
	importSubrouter := router.PathPrefix("/strava/import").Subrouter()
	importSubrouter.HandleFunc("", handler.HandleImport).Methods("POST", "OPTIONS")
	importSubrouter.Use(middleware.RateLimit(rateLimiter, "strava-import", importAllowedPerMin, metricsManager))
}

func (handler *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.strava.connect")
	defer span.End()

	http.Redirect(w, r, handler.connection.AuthURL(), http.StatusFound)
}

func (handler *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.strava.callback")
	defer span.End()

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if err := handler.connection.HandleCallback(ctx, state, code); err != nil {
		log.Errorf("strava auth callback: %s", err)
		http.Error(w, "authorization failed", http.StatusForbidden)
		return
	}

	http.Redirect(w, r, handler.frontendURL, http.StatusFound)
}

func (handler *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.strava.status")
	defer span.End()

	statusJson, err := json.Marshal(StatusResponse{
		Connected: handler.connection.IsConnected(ctx),
	})
	if err != nil {
		log.Errorf("failed to marshal strava status: %s", err)
		http.Error(w, "status failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, statusJson)
}

// HandleImport runs a user-triggered import. Unlike the background
// import it refreshes already-imported sessions in place.
func (handler *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.strava.import")
	defer span.End()

	days := handler.defaultDays
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Days > 0 {
		days = req.Days
	}

	result, err := handler.service.Import(ctx, days, training.ImportModeUpdate)
	if err != nil {
		log.Errorf("strava import: %s", err)
		http.Error(w, "import failed", http.StatusBadGateway)
		return
	}

	resultJson, err := json.Marshal(result)
	if err != nil {
		log.Errorf("failed to marshal import result: %s", err)
		http.Error(w, "import failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resultJson)
}

func (handler *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.strava.disconnect")
	defer span.End()

	if err := handler.connection.Disconnect(ctx); err != nil {
		log.Errorf("strava disconnect: %s", err)
		http.Error(w, "disconnect failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteTextResponseOK(w, "disconnected")
}
