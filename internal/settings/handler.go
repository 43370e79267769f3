package settings

import (
	"encoding/json"
	"net/http"

	"github.com/2beens/trainlog/internal/telemetry/tracing"
	"github.com/2beens/trainlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/settings", handler.HandleGet).Methods("GET", "OPTIONS")
	router.HandleFunc("/settings", handler.HandleUpdate).Methods("PUT", "OPTIONS")
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.settings.get")
	defer span.End()

	settings, err := handler.service.Get(ctx)
	if err != nil {
		log.Errorf("failed to get settings: %s", err)
		http.Error(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	settingsJson, err := json.Marshal(settings)
	if err != nil {
		log.Errorf("failed to marshal settings: %s", err)
		http.Error(w, "failed to get settings", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, settingsJson)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.settings.update")
	defer span.End()

	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		log.Tracef("update settings, unmarshal json params: %s", err)
		http.Error(w, "update settings failed", http.StatusBadRequest)
		return
	}

	if err := handler.service.Update(ctx, settings); err != nil {
		log.Errorf("failed to update settings: %s", err)
		http.Error(w, "update settings failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteTextResponseOK(w, "updated")
}
