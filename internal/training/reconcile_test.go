package training

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler() (*Reconciler, *Store) {
	store, _, _ := newTestStore()
	return NewReconciler(store, metrics.NewTestManager()), store
}

func ptrFloat(f float64) *float64 { return &f }
func ptrInt(i int) *int           { return &i }

func TestReconciler_importIsIdempotent(t *testing.T) {
	reconciler, store := newTestReconciler()
	defer store.Flush()

	incoming := []Session{{
		Sport:       SportCycling,
		Title:       "Lunch Ride",
		Date:        time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC),
		DurationMin: 95,
		ExternalID:  "ext-123",
		DistanceKm:  ptrFloat(42.5),
	}}

	first := reconciler.ImportActivities(context.Background(), incoming, ImportModeSkip)
	assert.Equal(t, 1, first.Inserted)
	assert.Equal(t, 0, first.Skipped)
	require.NotEmpty(t, first.SpotlightID)

	second := reconciler.ImportActivities(context.Background(), incoming, ImportModeSkip)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, second.SpotlightID)

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, OriginActual, sessions[0].Origin)
	// the date got truncated to day granularity
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), sessions[0].Date)
}

func TestReconciler_updateModeRefreshesOutcome(t *testing.T) {
	reconciler, store := newTestReconciler()
	defer store.Flush()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	reconciler.ImportActivities(context.Background(), []Session{{
		Sport: SportCycling, Title: "Lunch Ride", Date: day, DurationMin: 90,
	}}, ImportModeSkip)

	existing := store.Sessions()[0]
	require.True(t, store.UpdateFeedback(context.Background(), existing.ID, "legs felt heavy"))

	result := reconciler.ImportActivities(context.Background(), []Session{{
		Sport: SportCycling, Title: "Lunch Ride", Date: day,
		DurationMin: 95, AvgPower: ptrInt(210), DistanceKm: ptrFloat(44),
	}}, ImportModeUpdate)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Inserted)

	refreshed, ok := store.Get(existing.ID)
	require.True(t, ok)
	assert.Equal(t, 95, refreshed.DurationMin)
	require.NotNil(t, refreshed.AvgPower)
	assert.Equal(t, 210, *refreshed.AvgPower)
	// user annotations survive the refresh
	assert.Equal(t, "legs felt heavy", refreshed.CoachFeedback)
}

func TestReconciler_actualDisplacesPlannedSameDaySameSport(t *testing.T) {
	reconciler, store := newTestReconciler()
	defer store.Flush()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	planned := store.Create(context.Background(), Session{
		Sport:       SportCycling,
		Title:       "Morning Ride",
		Description: "2x20min sweet spot",
	}, day)

	result := reconciler.ImportActivities(context.Background(), []Session{{
		Sport:       SportCycling,
		Title:       "Lunch Ride",
		Date:        day,
		DurationMin: 95,
	}}, ImportModeSkip)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Displaced)

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	imported := sessions[0]
	assert.Equal(t, OriginActual, imported.Origin)
	assert.Equal(t, "Lunch Ride", imported.Title)
	// planned intent is snapshotted on the actual session
	assert.Equal(t, "Morning Ride", imported.ReplacedTitle)
	assert.Equal(t, "2x20min sweet spot", imported.ReplacedDescription)

	_, stillThere := store.Get(planned.ID)
	assert.False(t, stillThere)
}

func TestReconciler_noDisplacementAcrossSports(t *testing.T) {
	reconciler, store := newTestReconciler()
	defer store.Flush()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	store.Create(context.Background(), Session{Sport: SportRunning, Title: "Tempo run"}, day)

	result := reconciler.ImportActivities(context.Background(), []Session{{
		Sport: SportCycling, Title: "Lunch Ride", Date: day,
	}}, ImportModeSkip)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 0, result.Displaced)

	// both sessions coexist on the same day
	assert.Len(t, store.Sessions(), 2)
}

func TestReconciler_spotlightIsMostRecentInsertion(t *testing.T) {
	reconciler, store := newTestReconciler()
	defer store.Flush()

	result := reconciler.ImportActivities(context.Background(), []Session{
		{Sport: SportCycling, Title: "first", Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{Sport: SportCycling, Title: "second", Date: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)},
	}, ImportModeSkip)

	require.Equal(t, 2, result.Inserted)
	spotlit, ok := store.Get(result.SpotlightID)
	require.True(t, ok)
	assert.Equal(t, "second", spotlit.Title)
}

func TestReconciler_importCounters(t *testing.T) {
	store, _, _ := newTestStore()
	defer store.Flush()
	mm := metrics.NewTestManager()
	reconciler := NewReconciler(store, mm)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	store.Create(context.Background(), Session{Sport: SportCycling, Title: "Morning Ride"}, day)

	incoming := []Session{{Sport: SportCycling, Title: "Lunch Ride", Date: day, DurationMin: 95}}
	reconciler.ImportActivities(context.Background(), incoming, ImportModeSkip)
	reconciler.ImportActivities(context.Background(), incoming, ImportModeSkip)

	assert.Equal(t, 1.0, testutil.ToFloat64(mm.CounterImportedSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.CounterDisplacedPlanned))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.CounterSkippedDuplicates))
}

func TestReconciler_bulkImport(t *testing.T) {
	reconciler, store := newTestReconciler()
	defer store.Flush()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	store.Create(context.Background(), Session{Sport: SportCycling, Title: "old plan"}, day)
	store.Create(context.Background(), Session{Sport: SportRunning, Title: "keep me"}, day.AddDate(0, 0, 14))
	reconciler.ImportActivities(context.Background(), []Session{{
		Sport: SportRunning, Title: "done run", Date: day,
	}}, ImportModeSkip)

	incoming := []Session{
		{Sport: SportCycling, Title: "new plan 1", Date: day},
		{Sport: SportCycling, Title: "new plan 2", Date: day.AddDate(0, 0, 1)},
	}

	t.Run("replace existing", func(t *testing.T) {
		result := reconciler.BulkImport(context.Background(), incoming, true)
		assert.Equal(t, 2, result.Inserted)
		assert.Equal(t, 0, result.Skipped)

		titles := make(map[string]Origin)
		for _, s := range store.Sessions() {
			titles[s.Title] = s.Origin
		}
		// the planned session on a day the batch covers is gone, the
		// actual session and planned sessions on other days survive
		assert.NotContains(t, titles, "old plan")
		assert.Contains(t, titles, "keep me")
		assert.Contains(t, titles, "done run")
		assert.Equal(t, OriginPlanned, titles["new plan 1"])
	})

	t.Run("reimport overwrites matches in place", func(t *testing.T) {
		result := reconciler.BulkImport(context.Background(), incoming, false)
		assert.Equal(t, 0, result.Inserted)
		assert.Equal(t, 2, result.Updated)
	})
}

func TestReconciler_bulkImportOverwritesMatchedPlanned(t *testing.T) {
	reconciler, store := newTestReconciler()
	defer store.Flush()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	original := store.Create(context.Background(), Session{
		Sport: SportCycling, Title: "Endurance", DurationMin: 60, Description: "easy spin",
	}, day)

	result := reconciler.BulkImport(context.Background(), []Session{{
		Sport: SportCycling, Title: "Endurance", Date: day,
		DurationMin: 90, Description: "2h with some tempo",
	}}, false)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 1, result.Updated)

	// refreshed under the same identifier, not duplicated
	refreshed, ok := store.Get(original.ID)
	require.True(t, ok)
	assert.Equal(t, 90, refreshed.DurationMin)
	assert.Equal(t, "2h with some tempo", refreshed.Description)
	assert.Len(t, store.Sessions(), 1)
}

func TestReconciler_bulkImportNeverOverwritesActual(t *testing.T) {
	reconciler, store := newTestReconciler()
	defer store.Flush()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	reconciler.ImportActivities(context.Background(), []Session{{
		Sport: SportCycling, Title: "Lunch Ride", Date: day, DurationMin: 95,
	}}, ImportModeSkip)

	result := reconciler.BulkImport(context.Background(), []Session{{
		Sport: SportCycling, Title: "Lunch Ride", Date: day, DurationMin: 60,
	}}, false)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Updated)

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, OriginActual, sessions[0].Origin)
	assert.Equal(t, 95, sessions[0].DurationMin)
}

func TestReconciler_dedupAcrossTimeZones(t *testing.T) {
	reconciler, store := newTestReconciler()
	defer store.Flush()

	// hydrated from persistence in a zoned location
	cet := time.FixedZone("CET", 3600)
	store.Add(context.Background(), Session{
		Origin: OriginActual, Sport: SportCycling, Title: "Morning Ride",
		Date: time.Date(2025, 3, 10, 0, 0, 0, 0, cet),
	})

	result := reconciler.ImportActivities(context.Background(), []Session{{
		Sport: SportCycling, Title: "Morning Ride",
		Date: time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC),
	}}, ImportModeSkip)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, store.Sessions(), 1)
}

func TestReconciler_restoreExportedPlan(t *testing.T) {
	_, store := newTestReconciler()
	defer store.Flush()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	store.Create(context.Background(), Session{Sport: SportCycling, Title: "Endurance", DurationMin: 90}, day)
	store.Create(context.Background(), Session{Sport: SportRunning, Title: "Footing", DurationMin: 45}, day.AddDate(0, 0, 2))

	export := NewPlanExport(store.ExportPlanned(), nil, day)
	raw, err := json.Marshal(export)
	require.NoError(t, err)
	doc, err := ParsePlanDocument(string(raw))
	require.NoError(t, err)

	// restore into a fresh dashboard
	freshReconciler, freshStore := newTestReconciler()
	defer freshStore.Flush()
	result := freshReconciler.BulkImport(context.Background(), doc.Sessions, false)
	assert.Equal(t, 2, result.Inserted)

	type key struct {
		title    string
		day      string
		duration int
	}
	contents := func(store *Store) map[key]struct{} {
		out := make(map[key]struct{})
		for _, s := range store.Sessions() {
			out[key{s.Title, s.Date.Format("2006-01-02"), s.DurationMin}] = struct{}{}
		}
		return out
	}
	assert.Equal(t, contents(store), contents(freshStore))
}
