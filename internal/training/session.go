package training

import (
	"time"

	"github.com/google/uuid"
)

// Origin says where a session came from. Planned sessions are authored
// by the user (or pasted from an AI-generated plan) and stay fully
// editable; actual sessions are created from imported tracker activities
// and represent completed real-world events.
type Origin string

const (
	OriginPlanned Origin = "planned"
	OriginActual  Origin = "actual"
)

type Sport string

const (
	SportCycling  Sport = "cycling"
	SportRunning  Sport = "running"
	SportStrength Sport = "strength"
)

// PlanStep is one phase of a structured workout plan. The intensity
// band is a percentage of a reference threshold (FTP for cycling,
// max heart rate otherwise).
type PlanStep struct {
	Name             string  `json:"name,omitempty"`
	DurationMin      float64 `json:"durationMin"`
	Repeat           int     `json:"repeat,omitempty"`
	IntensityLowPct  float64 `json:"intensityLowPct,omitempty"`
	IntensityHighPct float64 `json:"intensityHighPct,omitempty"`
}

// Lap is a single lap/interval record of an imported activity. Most
// fields are optional since the source activity may lack sensor data.
type Lap struct {
	Name          string   `json:"name,omitempty"`
	ElapsedSec    float64  `json:"elapsedSec"`
	MovingSec     float64  `json:"movingSec"`
	DistanceKm    float64  `json:"distanceKm"`
	AvgSpeedKmh   float64  `json:"avgSpeedKmh,omitempty"`
	MaxSpeedKmh   float64  `json:"maxSpeedKmh,omitempty"`
	AvgHeartRate  *int     `json:"avgHeartRate,omitempty"`
	MaxHeartRate  *int     `json:"maxHeartRate,omitempty"`
	AvgPower      *int     `json:"avgPower,omitempty"`
	AvgCadence    *int     `json:"avgCadence,omitempty"`
	ElevationGain *float64 `json:"elevationGain,omitempty"`
}

// Session is the central entity of the weekly schedule.
type Session struct {
	ID          string     `json:"id"`
	Origin      Origin     `json:"origin"`
	Sport       Sport      `json:"sport"`
	Type        string     `json:"type,omitempty"` // free-form tag, e.g. "endurance", "vo2max"
	Title       string     `json:"title"`
	Date        time.Time  `json:"date"` // day granularity, time-of-day is always midnight
	DurationMin int        `json:"durationMin"`
	Description string     `json:"description,omitempty"`
	Plan        []PlanStep `json:"plan,omitempty"`

	// outcome of an imported activity, only set on actual sessions
	ExternalID   string   `json:"externalId,omitempty"`
	DistanceKm   *float64 `json:"distanceKm,omitempty"`
	ElevationM   *float64 `json:"elevationM,omitempty"`
	AvgHeartRate *int     `json:"avgHeartRate,omitempty"`
	MaxHeartRate *int     `json:"maxHeartRate,omitempty"`
	AvgPower     *int     `json:"avgPower,omitempty"`
	MaxPower     *int     `json:"maxPower,omitempty"`
	AvgCadence   *int     `json:"avgCadence,omitempty"`
	Laps         []Lap    `json:"laps,omitempty"`

	// annotations
	CoachFeedback string `json:"coachFeedback,omitempty"`
	// snapshot of a planned session this actual one replaced, kept so
	// the planned intent can be reapplied to the editable fields later
	ReplacedTitle       string `json:"replacedTitle,omitempty"`
	ReplacedDescription string `json:"replacedDescription,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

func NewSessionID() string {
	return uuid.NewString()
}

func (s *Session) IsActual() bool {
	return s.Origin == OriginActual
}

// DedupKey identifies a session for reconciliation purposes:
// same title on the same calendar day means the same session. The day
// travels as a formatted string, not a time.Time, so keys compare
// equal regardless of the location a date was hydrated in.
type DedupKey struct {
	Title string
	Day   string
}

func (s *Session) Key() DedupKey {
	return DedupKey{
		Title: s.Title,
		Day:   s.Date.Format("2006-01-02"),
	}
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TrainingPhase is a named macro-cycle period ("Base", "Build", ...).
type TrainingPhase struct {
	Name        string    `json:"name"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Description string    `json:"description,omitempty"`
	Goal        string    `json:"goal,omitempty"`
}

func (p *TrainingPhase) Contains(date time.Time) bool {
	d := dayOf(date)
	return !d.Before(dayOf(p.StartDate)) && !d.After(dayOf(p.EndDate))
}

// CurrentPhase returns the first phase whose date range contains the
// given date. Overlapping phases are not deduplicated, first match wins.
func CurrentPhase(phases []TrainingPhase, date time.Time) (TrainingPhase, bool) {
	for _, p := range phases {
		if p.Contains(date) {
			return p, true
		}
	}
	return TrainingPhase{}, false
}

type ObjectiveType string

const (
	ObjectiveTrail ObjectiveType = "trail"
	ObjectiveRoad  ObjectiveType = "road"
)

// Objective is a target race/event, used to enrich coach prompts.
type Objective struct {
	Name           string        `json:"name"`
	Type           ObjectiveType `json:"type"`
	Priority       string        `json:"priority"` // A, B or C
	Date           time.Time     `json:"date"`
	DistanceKm     float64       `json:"distanceKm,omitempty"`
	ElevationGainM float64       `json:"elevationGainM,omitempty"`
	ElevationLossM float64       `json:"elevationLossM,omitempty"`
}
