package training

import (
	"time"

	"github.com/2beens/trainlog/pkg"
)

// SportWeekStats aggregates one sport's volume for one week.
type SportWeekStats struct {
	Sport Sport `json:"sport"`

	PlannedHours      float64 `json:"plannedHours"`
	AccomplishedHours float64 `json:"accomplishedHours"`

	PlannedDistanceKm      float64 `json:"plannedDistanceKm"`
	AccomplishedDistanceKm float64 `json:"accomplishedDistanceKm"`

	PlannedElevationM      float64 `json:"plannedElevationM"`
	AccomplishedElevationM float64 `json:"accomplishedElevationM"`

	PlannedCount      int `json:"plannedCount"`
	AccomplishedCount int `json:"accomplishedCount"`
}

// WeekStats is the weekly volume summary shown above the schedule.
type WeekStats struct {
	WeekStart time.Time        `json:"weekStart"`
	PerSport  []SportWeekStats `json:"perSport"`

	TotalPlannedHours      float64 `json:"totalPlannedHours"`
	TotalAccomplishedHours float64 `json:"totalAccomplishedHours"`
	TotalSessions          int     `json:"totalSessions"`
}

// statsSportOrder fixes the display order of the per-sport breakdown.
var statsSportOrder = []Sport{SportCycling, SportRunning, SportStrength}

// WeekStatsFor aggregates all sessions falling into the week of the
// given date (Monday to Sunday). Planned sessions count toward planned
// volume, actual ones toward accomplished volume. Sports with no
// sessions that week are omitted.
func WeekStatsFor(sessions []Session, anyDayOfWeek time.Time) WeekStats {
	weekStart := pkg.WeekStartOf(anyDayOfWeek)
	weekEnd := weekStart.AddDate(0, 0, 7)

	perSport := make(map[Sport]*SportWeekStats)
	for _, session := range sessions {
		day := dayOf(session.Date)
		if day.Before(weekStart) || !day.Before(weekEnd) {
			continue
		}

		stats, ok := perSport[session.Sport]
		if !ok {
			stats = &SportWeekStats{Sport: session.Sport}
			perSport[session.Sport] = stats
		}

		hours := float64(session.DurationMin) / 60
		if session.IsActual() {
			stats.AccomplishedHours += hours
			stats.AccomplishedCount++
			if session.DistanceKm != nil {
				stats.AccomplishedDistanceKm += *session.DistanceKm
			}
			if session.ElevationM != nil {
				stats.AccomplishedElevationM += *session.ElevationM
			}
		} else {
			stats.PlannedHours += hours
			stats.PlannedCount++
			if session.DistanceKm != nil {
				stats.PlannedDistanceKm += *session.DistanceKm
			}
			if session.ElevationM != nil {
				stats.PlannedElevationM += *session.ElevationM
			}
		}
	}

	out := WeekStats{
		WeekStart: weekStart,
		PerSport:  make([]SportWeekStats, 0, len(perSport)),
	}
	appendSport := func(sport Sport) {
		if stats, ok := perSport[sport]; ok {
			out.PerSport = append(out.PerSport, *stats)
			out.TotalPlannedHours += stats.PlannedHours
			out.TotalAccomplishedHours += stats.AccomplishedHours
			out.TotalSessions += stats.PlannedCount + stats.AccomplishedCount
			delete(perSport, sport)
		}
	}
	for _, sport := range statsSportOrder {
		appendSport(sport)
	}
	for sport := range perSport {
		// sports outside the known list still show up, after the known ones
		appendSport(sport)
	}
	return out
}
