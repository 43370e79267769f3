package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

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

type sessionsSource interface {
	Sessions() []training.Session
}

type StatusResponse struct {
	Connected bool `json:"connected"`
}

type ClearResponse struct {
	Deleted int `json:"deleted"`
}

type Handler struct {
	connection  connection
	service     *Service
	sessions    sessionsSource
	frontendURL string
}

func NewHandler(connection connection, service *Service, sessions sessionsSource, frontendURL string) *Handler {
	return &Handler{
		connection:  connection,
		service:     service,
		sessions:    sessions,
		frontendURL: frontendURL,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/calendar/auth/connect", handler.HandleConnect).Methods("GET", "OPTIONS")
	router.HandleFunc("/calendar/auth/callback", handler.HandleCallback).Methods("GET", "OPTIONS")
	router.HandleFunc("/calendar/status", handler.HandleStatus).Methods("GET", "OPTIONS")
	router.HandleFunc("/calendar/sync", handler.HandleSyncWeek).Methods("POST", "OPTIONS")
	router.HandleFunc("/calendar/clear", handler.HandleClear).Methods("POST", "OPTIONS")
	router.HandleFunc("/calendar/disconnect", handler.HandleDisconnect).Methods("POST", "OPTIONS")
}

func (handler *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gcal.connect")
	defer span.End()

	http.Redirect(w, r, handler.connection.AuthURL(), http.StatusFound)
}

func (handler *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gcal.callback")
	defer span.End()

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if err := handler.connection.HandleCallback(ctx, state, code); err != nil {
		log.Errorf("calendar auth callback: %s", err)
		http.Error(w, "authorization failed", http.StatusForbidden)
		return
	}

	http.Redirect(w, r, handler.frontendURL, http.StatusFound)
}

func (handler *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gcal.status")
	defer span.End()

	statusJson, err := json.Marshal(StatusResponse{
		Connected: handler.connection.IsConnected(ctx),
	})
	if err != nil {
		log.Errorf("failed to marshal calendar status: %s", err)
		http.Error(w, "status failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, statusJson)
}

func (handler *Handler) HandleSyncWeek(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gcal.syncWeek")
	defer span.End()

	weekOf := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			http.Error(w, "error, invalid date", http.StatusBadRequest)
			return
		}
		weekOf = parsed
	}

	result, err := handler.service.SyncWeek(ctx, handler.sessions.Sessions(), weekOf)
	if err != nil {
		// partial syncs still report what worked
		log.Errorf("calendar sync: %s", err)
		if result.Created == 0 && result.Updated == 0 {
			http.Error(w, "calendar sync failed", http.StatusBadGateway)
			return
		}
	}

	resultJson, err := json.Marshal(result)
	if err != nil {
		log.Errorf("failed to marshal sync result: %s", err)
		http.Error(w, "calendar sync failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resultJson)
}

func (handler *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gcal.clear")
	defer span.End()

	deleted, err := handler.service.ClearManagedEvents(ctx)
	if err != nil {
		log.Errorf("calendar clear: %s", err)
		if deleted == 0 {
			http.Error(w, "calendar clear failed", http.StatusBadGateway)
			return
		}
	}

	respJson, err := json.Marshal(ClearResponse{Deleted: deleted})
	if err != nil {
		log.Errorf("failed to marshal clear response: %s", err)
		http.Error(w, "calendar clear failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.gcal.disconnect")
	defer span.End()

	if err := handler.connection.Disconnect(ctx); err != nil {
		log.Errorf("calendar disconnect: %s", err)
		http.Error(w, "disconnect failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteTextResponseOK(w, "disconnected")
}
