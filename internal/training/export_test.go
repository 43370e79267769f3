package training

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlanExport_stripsOutcome(t *testing.T) {
	now := time.Now()
	planned := []Session{{
		ID:            "some-id",
		Origin:        OriginPlanned,
		Sport:         SportCycling,
		Title:         "Endurance",
		Date:          dayOf(now),
		DurationMin:   90,
		CoachFeedback: "should not travel",
		DistanceKm:    ptrFloat(42),
	}}

	export := NewPlanExport(planned, nil, now)
	require.Len(t, export.Sessions, 1)

	s := export.Sessions[0]
	assert.Empty(t, s.ID)
	assert.Empty(t, s.CoachFeedback)
	assert.Nil(t, s.DistanceKm)
	assert.Equal(t, "Endurance", s.Title)
}

func TestPlanExport_roundTripsThroughParser(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	export := NewPlanExport([]Session{
		{Origin: OriginPlanned, Sport: SportCycling, Title: "Endurance", Date: now, DurationMin: 90},
		{Origin: OriginPlanned, Sport: SportRunning, Title: "Footing", Date: now.AddDate(0, 0, 2), DurationMin: 45},
	}, nil, now)

	exportJson, err := json.Marshal(export)
	require.NoError(t, err)

	doc, err := ParsePlanDocument(string(exportJson))
	require.NoError(t, err)
	require.Len(t, doc.Sessions, 2)
	assert.Equal(t, "Endurance", doc.Sessions[0].Title)
	assert.Equal(t, now, doc.Sessions[0].Date)
}

func TestExportZWO(t *testing.T) {
	session := Session{
		Sport: SportCycling,
		Title: "VO2max 5x3",
		Plan: []PlanStep{
			{Name: "warmup", DurationMin: 15, IntensityLowPct: 50, IntensityHighPct: 65},
			{Name: "efforts", DurationMin: 3, Repeat: 5, IntensityLowPct: 110, IntensityHighPct: 120},
			{Name: "recovery", DurationMin: 3, IntensityLowPct: 50, IntensityHighPct: 50},
			{Name: "cooldown", DurationMin: 10},
		},
	}

	out, err := ExportZWO(session)
	require.NoError(t, err)

	zwo := string(out)
	assert.Contains(t, zwo, "<workout_file>")
	assert.Contains(t, zwo, "<name>VO2max 5x3</name>")
	assert.Contains(t, zwo, "<sportType>bike</sportType>")
	// repeated effort + following recovery fold into one IntervalsT block
	assert.Contains(t, zwo, `<IntervalsT Repeat="5" OnDuration="180" OffDuration="180" OnPower="1.15" OffPower="0.5">`)
	// cooldown without intensity falls back to the endurance default
	assert.Contains(t, zwo, `<SteadyState Duration="600" Power="0.65">`)
}

func TestExportZWO_leavesPlanIntact(t *testing.T) {
	session := Session{
		Sport: SportCycling,
		Title: "VO2max 5x3",
		Plan: []PlanStep{
			{Name: "efforts", DurationMin: 3, Repeat: 5, IntensityLowPct: 110, IntensityHighPct: 120},
			{Name: "recovery", DurationMin: 3, IntensityLowPct: 50, IntensityHighPct: 50},
		},
	}

	first, err := ExportZWO(session)
	require.NoError(t, err)

	// the folded-away recovery step keeps its duration in the session
	assert.InDelta(t, 3.0, session.Plan[1].DurationMin, 0.0001)

	second, err := ExportZWO(session)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestExportZWO_rejects(t *testing.T) {
	_, err := ExportZWO(Session{Sport: SportRunning, Plan: []PlanStep{{DurationMin: 10}}})
	assert.Error(t, err)

	_, err = ExportZWO(Session{Sport: SportCycling})
	assert.ErrorIs(t, err, ErrNoStructuredPlan)
}
