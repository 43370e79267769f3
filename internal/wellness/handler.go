package wellness

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/2beens/trainlog/internal/telemetry/tracing"
	"github.com/2beens/trainlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const defaultRangeDays = 14

// DayView is one wellness day enriched with the derived form fields
// the dashboard displays.
type DayView struct {
	Day
	Form       float64    `json:"form"`
	FormStatus FormStatus `json:"formStatus"`
}

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{
		client: client,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/wellness", handler.HandleGetRange).Methods("GET", "OPTIONS")
}

func (handler *Handler) HandleGetRange(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.wellness.getRange")
	defer span.End()

	if !handler.client.Enabled() {
		http.Error(w, "wellness integration not configured", http.StatusNotFound)
		return
	}

	days := defaultRangeDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed < 1 || parsed > 365 {
			http.Error(w, "error, invalid days", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	wellnessDays, err := handler.client.FetchRange(ctx, days)
	if err != nil {
		log.Errorf("wellness fetch: %s", err)
		http.Error(w, "wellness fetch failed", http.StatusBadGateway)
		return
	}

	views := make([]DayView, 0, len(wellnessDays))
	for _, day := range wellnessDays {
		views = append(views, DayView{
			Day:        day,
			Form:       day.Form(),
			FormStatus: day.Status(),
		})
	}

	viewsJson, err := json.Marshal(views)
	if err != nil {
		log.Errorf("failed to marshal wellness days: %s", err)
		http.Error(w, "wellness fetch failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, viewsJson)
}
