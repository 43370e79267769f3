package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/metrics"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planContextMock struct {
	phases     []TrainingPhase
	objectives []Objective
}

func (p *planContextMock) Phases(_ context.Context) ([]TrainingPhase, error) {
	return p.phases, nil
}

func (p *planContextMock) Objectives(_ context.Context) ([]Objective, error) {
	return p.objectives, nil
}

func (p *planContextMock) AddPhase(_ context.Context, phase TrainingPhase) error {
	p.phases = append(p.phases, phase)
	return nil
}

type wellnessSourceMock struct {
	summary string
}

func (w *wellnessSourceMock) PromptSummary(_ context.Context) string {
	return w.summary
}

func newTestHandler() (*Handler, *Store, *mux.Router) {
	store, _, _ := newTestStore()
	reconciler := NewReconciler(store, metrics.NewTestManager())
	handler := NewHandler(store, reconciler, &planContextMock{}, nil)

	router := mux.NewRouter()
	handler.SetupRoutes(router)
	return handler, store, router
}

func TestHandler_ListSessions(t *testing.T) {
	_, store, router := newTestHandler()
	defer store.Flush()

	store.Add(context.Background(), testSession("ride", time.Now(), OriginPlanned, SportCycling))

	req, err := http.NewRequest("GET", "/sessions", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "ride", resp.Sessions[0].Title)
	assert.Empty(t, resp.SyncError)
}

func TestHandler_CreateSession(t *testing.T) {
	_, store, router := newTestHandler()
	defer store.Flush()

	body, err := json.Marshal(CreateSessionRequest{
		Session: Session{Sport: SportCycling, Title: "Endurance Z2", DurationMin: 90},
		Date:    "2025-03-14",
	})
	require.NoError(t, err)

	req, err := http.NewRequest("POST", "/sessions", bytes.NewReader(body))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var created []Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created, 1)
	assert.NotEmpty(t, created[0].ID)
	assert.Equal(t, OriginPlanned, created[0].Origin)
}

func TestHandler_CreateSession_badRequests(t *testing.T) {
	_, store, router := newTestHandler()
	defer store.Flush()

	for name, body := range map[string]string{
		"not json":      "nope",
		"missing title": `{"session": {"sport": "cycling"}, "date": "2025-03-14"}`,
		"bad date":      `{"session": {"title": "x"}, "date": "tomorrow"}`,
	} {
		t.Run(name, func(t *testing.T) {
			req, err := http.NewRequest("POST", "/sessions", bytes.NewBufferString(body))
			require.NoError(t, err)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_DeleteSession_refusesActual(t *testing.T) {
	_, store, router := newTestHandler()
	defer store.Flush()

	actual := store.Add(context.Background(), testSession("done ride", time.Now(), OriginActual, SportCycling))

	req, err := http.NewRequest("DELETE", "/sessions/"+actual.ID, nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	_, stillThere := store.Get(actual.ID)
	assert.True(t, stillThere)
}

func TestHandler_DeleteSession_planned(t *testing.T) {
	_, store, router := newTestHandler()
	defer store.Flush()

	planned := store.Add(context.Background(), testSession("planned ride", time.Now(), OriginPlanned, SportCycling))

	req, err := http.NewRequest("DELETE", "/sessions/"+planned.ID, nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DeleteSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, planned.ID, resp.DeletedID)

	_, stillThere := store.Get(planned.ID)
	assert.False(t, stillThere)
}

func TestHandler_UpdateDate(t *testing.T) {
	_, store, router := newTestHandler()
	defer store.Flush()

	session := store.Add(context.Background(), testSession("move me", time.Now(), OriginPlanned, SportCycling))

	req, err := http.NewRequest("PUT", "/sessions/"+session.ID+"/date",
		bytes.NewBufferString(`{"date": "2025-03-20"}`))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	moved, ok := store.Get(session.ID)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 20, 0, 0, 0, 0, moved.Date.Location()), moved.Date)

	t.Run("unknown id", func(t *testing.T) {
		req, err := http.NewRequest("PUT", "/sessions/no-such-id/date",
			bytes.NewBufferString(`{"date": "2025-03-20"}`))
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_ImportPlan(t *testing.T) {
	_, store, router := newTestHandler()
	defer store.Flush()

	planText := `[{"date": "2025-03-10", "sport": "cycling", "title": "Endurance", "durationMin": 60}]`
	body, err := json.Marshal(ImportPlanRequest{Text: planText})
	require.NoError(t, err)

	req, err := http.NewRequest("POST", "/sessions/import-plan", bytes.NewReader(body))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Inserted)
	assert.Len(t, store.Sessions(), 1)

	t.Run("garbage text", func(t *testing.T) {
		body, err := json.Marshal(ImportPlanRequest{Text: "no plan here"})
		require.NoError(t, err)
		req, err := http.NewRequest("POST", "/sessions/import-plan", bytes.NewReader(body))
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_WeekStats(t *testing.T) {
	_, store, router := newTestHandler()
	defer store.Flush()

	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ride := testSession("ride", monday, OriginActual, SportCycling)
	ride.DurationMin = 120
	store.Add(context.Background(), ride)

	req, err := http.NewRequest("GET", fmt.Sprintf("/stats/week?date=%s", "2025-03-12"), nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats WeekStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats.PerSport, 1)
	assert.InDelta(t, 2.0, stats.PerSport[0].AccomplishedHours, 0.001)
}

func TestHandler_WeeklyPrompt(t *testing.T) {
	_, store, router := newTestHandler()
	defer store.Flush()

	req, err := http.NewRequest("GET", "/prompts/week?date=2025-03-12", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "semaine du 2025-03-10")
}

func TestHandler_WeeklyPrompt_withWellness(t *testing.T) {
	store, _, _ := newTestStore()
	defer store.Flush()
	reconciler := NewReconciler(store, metrics.NewTestManager())
	handler := NewHandler(store, reconciler, &planContextMock{}, &wellnessSourceMock{
		summary: "Forme: optimal (-12), fitness (CTL) 58, fatigue (ATL) 70",
	})
	router := mux.NewRouter()
	handler.SetupRoutes(router)

	req, err := http.NewRequest("GET", "/prompts/week?date=2025-03-12", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Forme: optimal")
}

func TestHandler_Reset(t *testing.T) {
	_, store, router := newTestHandler()
	defer store.Flush()

	store.Add(context.Background(), testSession("a", time.Now(), OriginActual, SportCycling))
	store.Flush()

	req, err := http.NewRequest("POST", "/sessions/reset", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.Sessions())
}
