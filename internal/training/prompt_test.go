package training

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionAnalysisPrompt(t *testing.T) {
	prompt := SessionAnalysisPrompt(Session{
		Origin:       OriginActual,
		Sport:        SportCycling,
		Title:        "Lunch Ride",
		Date:         time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		DurationMin:  95,
		DistanceKm:   ptrFloat(42.5),
		AvgHeartRate: ptrInt(142),
		MaxHeartRate: ptrInt(178),
		ReplacedTitle: "Morning Ride",
		Laps: []Lap{
			{DistanceKm: 10, MovingSec: 1200, AvgHeartRate: ptrInt(135)},
			{DistanceKm: 10, MovingSec: 1140, AvgHeartRate: ptrInt(150)},
		},
	})

	assert.Contains(t, prompt, "Lunch Ride")
	assert.Contains(t, prompt, "95 min")
	assert.Contains(t, prompt, "42.5 km")
	assert.Contains(t, prompt, "FC moyenne: 142 bpm (max 178)")
	assert.Contains(t, prompt, "Séance prévue ce jour-là: Morning Ride")
	assert.Contains(t, prompt, "Tours:")
	// the strict output format instruction always comes last
	assert.True(t, strings.HasSuffix(prompt, sessionFeedbackFormat))
}

func TestWeeklyPlanPrompt(t *testing.T) {
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sessions := []Session{
		{Origin: OriginActual, Sport: SportCycling, Title: "long ride", Date: monday,
			DurationMin: 120, CoachFeedback: "good legs"},
		{Origin: OriginPlanned, Sport: SportRunning, Title: "missed run", Date: monday.AddDate(0, 0, 2),
			DurationMin: 45},
	}

	prompt := WeeklyPlanPrompt(sessions, WeeklyPlanPromptParams{
		WeekOf: monday.AddDate(0, 0, 3),
		Phase: &TrainingPhase{
			Name:      "Build 1",
			StartDate: monday.AddDate(0, 0, -14),
			EndDate:   monday.AddDate(0, 0, 14),
			Goal:      "raise FTP",
		},
		Objectives: []Objective{{
			Name: "Gran Fondo", Type: ObjectiveRoad, Priority: "A",
			Date: monday.AddDate(0, 2, 0), DistanceKm: 160, ElevationGainM: 3200,
		}},
		Wellness: "Forme: bonne (+5)",
	})

	assert.Contains(t, prompt, "semaine du 2025-03-10")
	assert.Contains(t, prompt, "Phase en cours: Build 1")
	assert.Contains(t, prompt, "Objectif A: Gran Fondo")
	assert.Contains(t, prompt, "long ride")
	assert.Contains(t, prompt, "réalisée")
	assert.Contains(t, prompt, "missed run")
	assert.Contains(t, prompt, "non réalisée")
	assert.Contains(t, prompt, "Ressenti: good legs")
	assert.Contains(t, prompt, "Forme: bonne (+5)")
	// asks for next week's plan in the machine-readable shape
	assert.Contains(t, prompt, "semaine du 2025-03-17")
	assert.True(t, strings.HasSuffix(prompt, weeklyPlanFormat))
}
