package training

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/tracing"
	"github.com/2beens/trainlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// planContext supplies the phases and objectives kept in settings,
// used to enrich exports and coach prompts. Pasted plans may carry a
// phase of their own, which gets stored through AddPhase.
type planContext interface {
	Phases(ctx context.Context) ([]TrainingPhase, error)
	Objectives(ctx context.Context) ([]Objective, error)
	AddPhase(ctx context.Context, phase TrainingPhase) error
}

// wellnessSource supplies the one-line wellness summary for the weekly
// coach prompt. Nil means the wellness adapter is not configured.
type wellnessSource interface {
	PromptSummary(ctx context.Context) string
}

type ListSessionsResponse struct {
	Sessions  []Session `json:"sessions"`
	SyncError string    `json:"syncError,omitempty"`
}

type CreateSessionRequest struct {
	Session Session `json:"session"`
	Date    string  `json:"date"` // YYYY-MM-DD
	Count   int     `json:"count,omitempty"`
}

type UpdateDateRequest struct {
	Date string `json:"date"`
}

type UpdateFeedbackRequest struct {
	Feedback string `json:"feedback"`
}

type UpdateSessionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ImportPlanRequest struct {
	Text            string `json:"text"`
	ReplaceExisting bool   `json:"replaceExisting"`
}

type DeleteSessionResponse struct {
	DeletedID string `json:"deletedId"`
}

type Handler struct {
	store       *Store
	reconciler  *Reconciler
	planContext planContext
	wellness    wellnessSource
}

func NewHandler(store *Store, reconciler *Reconciler, planContext planContext, wellness wellnessSource) *Handler {
	return &Handler{
		store:       store,
		reconciler:  reconciler,
		planContext: planContext,
		wellness:    wellness,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/sessions", handler.HandleList).Methods("GET", "OPTIONS")
	router.HandleFunc("/sessions", handler.HandleCreate).Methods("POST", "OPTIONS")
	router.HandleFunc("/sessions/reset", handler.HandleReset).Methods("POST", "OPTIONS")
	router.HandleFunc("/sessions/import-plan", handler.HandleImportPlan).Methods("POST", "OPTIONS")
	router.HandleFunc("/sessions/export", handler.HandleExport).Methods("GET", "OPTIONS")
	router.HandleFunc("/sessions/{id}", handler.HandleUpdate).Methods("PUT", "OPTIONS")
	router.HandleFunc("/sessions/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS")
	router.HandleFunc("/sessions/{id}/date", handler.HandleUpdateDate).Methods("PUT", "OPTIONS")
	router.HandleFunc("/sessions/{id}/feedback", handler.HandleUpdateFeedback).Methods("PUT", "OPTIONS")
	router.HandleFunc("/sessions/{id}/zwo", handler.HandleExportZWO).Methods("GET", "OPTIONS")
	router.HandleFunc("/sessions/{id}/prompt", handler.HandleSessionPrompt).Methods("GET", "OPTIONS")
	router.HandleFunc("/stats/week", handler.HandleWeekStats).Methods("GET", "OPTIONS")
	router.HandleFunc("/prompts/week", handler.HandleWeeklyPrompt).Methods("GET", "OPTIONS")
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.list")
	defer span.End()

	resp := ListSessionsResponse{
		Sessions: handler.store.Sessions(),
	}
	if err := handler.store.SyncError(); err != nil {
		resp.SyncError = err.Error()
	}

	respJson, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("failed to marshal sessions: %s", err)
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.create")
	defer span.End()

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("create session, unmarshal json params: %s", err)
		http.Error(w, "create session failed", http.StatusBadRequest)
		return
	}
	if req.Session.Title == "" {
		http.Error(w, "error, session title empty", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return
	}

	var created []Session
	if req.Count > 1 {
		templates := make([]Session, req.Count)
		for i := range templates {
			templates[i] = req.Session
		}
		created = handler.store.CreateMany(ctx, templates, date)
	} else {
		created = []Session{handler.store.Create(ctx, req.Session, date)}
	}

	createdJson, err := json.Marshal(created)
	if err != nil {
		log.Errorf("failed to marshal created sessions: %s", err)
		http.Error(w, "create session failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, createdJson, http.StatusCreated)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.update")
	defer span.End()

	id := mux.Vars(r)["id"]
	var req UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "update session failed", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "error, session title empty", http.StatusBadRequest)
		return
	}

	if !handler.store.UpdateEditableFields(ctx, id, req.Title, req.Description) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	pkg.WriteTextResponseOK(w, "updated")
}

func (handler *Handler) HandleUpdateDate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.updateDate")
	defer span.End()

	id := mux.Vars(r)["id"]
	var req UpdateDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "update session date failed", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return
	}

	if !handler.store.UpdateDate(ctx, id, date) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	pkg.WriteTextResponseOK(w, "updated")
}

func (handler *Handler) HandleUpdateFeedback(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.updateFeedback")
	defer span.End()

	id := mux.Vars(r)["id"]
	var req UpdateFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "update session feedback failed", http.StatusBadRequest)
		return
	}

	if !handler.store.UpdateFeedback(ctx, id, req.Feedback) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	pkg.WriteTextResponseOK(w, "updated")
}

// HandleDelete removes a planned session. Actual sessions represent
// completed real-world events and are refused here; they only leave
// the store through a full reset.
func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.delete")
	defer span.End()

	id := mux.Vars(r)["id"]
	session, ok := handler.store.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if session.IsActual() {
		http.Error(w, "refusing to delete an accomplished session", http.StatusConflict)
		return
	}

	handler.store.Remove(ctx, id)

	respJson, err := json.Marshal(DeleteSessionResponse{DeletedID: id})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "delete session failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.reset")
	defer span.End()

	if err := handler.store.Reset(ctx); err != nil {
		log.Errorf("failed to reset session store: %s", err)
		http.Error(w, "reset failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteTextResponseOK(w, "reset done")
}

func (handler *Handler) HandleImportPlan(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.importPlan")
	defer span.End()

	var req ImportPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "import plan failed", http.StatusBadRequest)
		return
	}

	doc, err := ParsePlanDocument(req.Text)
	if err != nil {
		log.Tracef("import plan, parse document: %s", err)
		http.Error(w, "unrecognized plan document", http.StatusBadRequest)
		return
	}

	result := handler.reconciler.BulkImport(ctx, doc.Sessions, req.ReplaceExisting)

	if doc.Phase != nil {
		if err := handler.planContext.AddPhase(ctx, *doc.Phase); err != nil {
			// the sessions are in, losing the phase is not worth a 500
			log.Errorf("failed to store imported phase %q: %s", doc.Phase.Name, err)
		}
	}

	resultJson, err := json.Marshal(result)
	if err != nil {
		log.Errorf("failed to marshal import result: %s", err)
		http.Error(w, "import plan failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resultJson)
}

func (handler *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.export")
	defer span.End()

	phases, err := handler.planContext.Phases(ctx)
	if err != nil {
		// export still works without phases
		log.Errorf("failed to get phases for export: %s", err)
	}

	export := NewPlanExport(handler.store.ExportPlanned(), phases, time.Now())
	exportJson, err := json.Marshal(export)
	if err != nil {
		log.Errorf("failed to marshal plan export: %s", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, exportJson)
}

func (handler *Handler) HandleExportZWO(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.exportZwo")
	defer span.End()

	id := mux.Vars(r)["id"]
	session, ok := handler.store.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	zwo, err := ExportZWO(session)
	if err != nil {
		log.Tracef("zwo export for session %s: %s", id, err)
		http.Error(w, "session not exportable as workout file", http.StatusBadRequest)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.XML, zwo)
}

func (handler *Handler) HandleWeekStats(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.weekStats")
	defer span.End()

	date, ok := handler.weekParam(w, r)
	if !ok {
		return
	}

	stats := WeekStatsFor(handler.store.Sessions(), date)
	statsJson, err := json.Marshal(stats)
	if err != nil {
		log.Errorf("failed to marshal week stats: %s", err)
		http.Error(w, "week stats failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, statsJson)
}

func (handler *Handler) HandleSessionPrompt(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.sessionPrompt")
	defer span.End()

	id := mux.Vars(r)["id"]
	session, ok := handler.store.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	pkg.WriteTextResponseOK(w, SessionAnalysisPrompt(session))
}

func (handler *Handler) HandleWeeklyPrompt(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.weeklyPrompt")
	defer span.End()

	date, ok := handler.weekParam(w, r)
	if !ok {
		return
	}

	params := WeeklyPlanPromptParams{WeekOf: date}
	if phases, err := handler.planContext.Phases(ctx); err != nil {
		log.Errorf("failed to get phases for prompt: %s", err)
	} else if phase, ok := CurrentPhase(phases, date); ok {
		params.Phase = &phase
	}
	if objectives, err := handler.planContext.Objectives(ctx); err != nil {
		log.Errorf("failed to get objectives for prompt: %s", err)
	} else {
		params.Objectives = objectives
	}
	if handler.wellness != nil {
		params.Wellness = handler.wellness.PromptSummary(ctx)
	}

	pkg.WriteTextResponseOK(w, WeeklyPlanPrompt(handler.store.Sessions(), params))
}

func (handler *Handler) weekParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		return time.Now(), true
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return time.Time{}, false
	}
	return date, true
}
