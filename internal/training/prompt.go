package training

import (
	"fmt"
	"strings"
	"time"
)

// Prompts handed to the user to paste into a chat assistant. The
// dashboard does not call any LLM itself; it only prepares the text
// and parses the pasted answer back (see ParsePlanDocument).

const sessionFeedbackFormat = `Réponds uniquement avec un court paragraphe de feedback d'entraîneur (5 phrases max), en français, sans préambule, sans markdown, sans liste.`

const weeklyPlanFormat = `Réponds UNIQUEMENT avec un objet JSON, sans texte autour et sans bloc de code markdown, de la forme:
{"phase": {"name": "...", "startDate": "YYYY-MM-DD", "endDate": "YYYY-MM-DD", "goal": "..."}, "sessions": [{"date": "YYYY-MM-DD", "sport": "cycling|running|strength", "type": "...", "title": "...", "durationMin": 60, "description": "...", "plan": [{"name": "...", "durationMin": 10, "repeat": 1, "intensityLowPct": 60, "intensityHighPct": 70}]}]}`

// SessionAnalysisPrompt builds the coach prompt for one completed
// session, laps included when available.
func SessionAnalysisPrompt(session Session) string {
	var b strings.Builder
	b.WriteString("Tu es mon entraîneur d'endurance. Analyse cette séance réalisée:\n\n")
	fmt.Fprintf(&b, "Séance: %s (%s, %s)\n", session.Title, session.Sport, session.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Durée: %d min\n", session.DurationMin)
	if session.DistanceKm != nil {
		fmt.Fprintf(&b, "Distance: %.1f km\n", *session.DistanceKm)
	}
	if session.ElevationM != nil {
		fmt.Fprintf(&b, "Dénivelé: %.0f m\n", *session.ElevationM)
	}
	if session.AvgHeartRate != nil {
		fmt.Fprintf(&b, "FC moyenne: %d bpm", *session.AvgHeartRate)
		if session.MaxHeartRate != nil {
			fmt.Fprintf(&b, " (max %d)", *session.MaxHeartRate)
		}
		b.WriteString("\n")
	}
	if session.AvgPower != nil {
		fmt.Fprintf(&b, "Puissance moyenne: %d W", *session.AvgPower)
		if session.MaxPower != nil {
			fmt.Fprintf(&b, " (max %d)", *session.MaxPower)
		}
		b.WriteString("\n")
	}
	if session.ReplacedTitle != "" {
		fmt.Fprintf(&b, "Séance prévue ce jour-là: %s\n", session.ReplacedTitle)
		if session.ReplacedDescription != "" {
			fmt.Fprintf(&b, "Consigne prévue: %s\n", session.ReplacedDescription)
		}
	}

	if len(session.Laps) > 0 {
		b.WriteString("\nTours:\n")
		for i, lap := range session.Laps {
			fmt.Fprintf(&b, "%d. %.1f km en %.0f min", i+1, lap.DistanceKm, lap.MovingSec/60)
			if lap.AvgHeartRate != nil {
				fmt.Fprintf(&b, ", FC %d", *lap.AvgHeartRate)
			}
			if lap.AvgPower != nil {
				fmt.Fprintf(&b, ", %d W", *lap.AvgPower)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(sessionFeedbackFormat)
	return b.String()
}

// WeeklyPlanPromptParams carries everything the weekly bilan prompt
// needs besides the sessions themselves.
type WeeklyPlanPromptParams struct {
	WeekOf     time.Time
	Phase      *TrainingPhase
	Objectives []Objective
	Wellness   string // preformatted wellness summary, empty when unavailable
}

// WeeklyPlanPrompt builds the end-of-week bilan prompt: what was
// planned, what was done, and a request for next week's plan in the
// strict JSON shape ParsePlanDocument understands.
func WeeklyPlanPrompt(sessions []Session, params WeeklyPlanPromptParams) string {
	stats := WeekStatsFor(sessions, params.WeekOf)

	var b strings.Builder
	b.WriteString("Tu es mon entraîneur d'endurance. Voici le bilan de ma semaine du ")
	b.WriteString(stats.WeekStart.Format("2006-01-02"))
	b.WriteString(":\n\n")

	if params.Phase != nil {
		fmt.Fprintf(&b, "Phase en cours: %s (%s au %s)",
			params.Phase.Name,
			params.Phase.StartDate.Format("2006-01-02"),
			params.Phase.EndDate.Format("2006-01-02"))
		if params.Phase.Goal != "" {
			fmt.Fprintf(&b, ", objectif: %s", params.Phase.Goal)
		}
		b.WriteString("\n")
	}
	for _, obj := range params.Objectives {
		fmt.Fprintf(&b, "Objectif %s: %s le %s", obj.Priority, obj.Name, obj.Date.Format("2006-01-02"))
		if obj.DistanceKm > 0 {
			fmt.Fprintf(&b, " (%.0f km, %.0f m D+)", obj.DistanceKm, obj.ElevationGainM)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nVolume de la semaine:\n")
	for _, sport := range stats.PerSport {
		fmt.Fprintf(&b, "- %s: %.1f h réalisées / %.1f h prévues",
			sport.Sport, sport.AccomplishedHours, sport.PlannedHours)
		if sport.AccomplishedDistanceKm > 0 {
			fmt.Fprintf(&b, ", %.0f km", sport.AccomplishedDistanceKm)
		}
		if sport.AccomplishedElevationM > 0 {
			fmt.Fprintf(&b, ", %.0f m D+", sport.AccomplishedElevationM)
		}
		b.WriteString("\n")
	}

	weekEnd := stats.WeekStart.AddDate(0, 0, 7)
	b.WriteString("\nSéances:\n")
	for _, session := range sessions {
		day := dayOf(session.Date)
		if day.Before(stats.WeekStart) || !day.Before(weekEnd) {
			continue
		}
		status := "prévue, non réalisée"
		if session.IsActual() {
			status = "réalisée"
		}
		fmt.Fprintf(&b, "- %s %s: %s (%d min, %s)\n",
			day.Format("Mon 02/01"), session.Sport, session.Title, session.DurationMin, status)
		if session.CoachFeedback != "" {
			fmt.Fprintf(&b, "  Ressenti: %s\n", session.CoachFeedback)
		}
	}

	if params.Wellness != "" {
		b.WriteString("\nÉtat de forme:\n")
		b.WriteString(params.Wellness)
		b.WriteString("\n")
	}

	nextWeek := stats.WeekStart.AddDate(0, 0, 7)
	fmt.Fprintf(&b, "\nPropose-moi le plan de la semaine du %s.\n\n", nextWeek.Format("2006-01-02"))
	b.WriteString(weeklyPlanFormat)
	return b.String()
}
