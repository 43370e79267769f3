package training

import (
	"encoding/xml"
	"fmt"
	"time"
)

// PlanExport is the shareable snapshot of the planned schedule. It
// round-trips through ParsePlanDocument, so an exported plan can be
// pasted back into another dashboard.
type PlanExport struct {
	ExportedAt time.Time       `json:"exportedAt"`
	Phases     []TrainingPhase `json:"phases,omitempty"`
	Sessions   []Session       `json:"sessions"`
}

// NewPlanExport builds an export document out of the given planned
// sessions. Outcome fields and annotations are stripped, only the
// planned intent travels.
func NewPlanExport(planned []Session, phases []TrainingPhase, now time.Time) PlanExport {
	sessions := make([]Session, 0, len(planned))
	for _, s := range planned {
		sessions = append(sessions, Session{
			Origin:      OriginPlanned,
			Sport:       s.Sport,
			Type:        s.Type,
			Title:       s.Title,
			Date:        s.Date,
			DurationMin: s.DurationMin,
			Description: s.Description,
			Plan:        s.Plan,
		})
	}
	return PlanExport{
		ExportedAt: now,
		Phases:     phases,
		Sessions:   sessions,
	}
}

// zwo workout file shapes, per the Zwift workout XML format

type zwoFile struct {
	XMLName     xml.Name   `xml:"workout_file"`
	Author      string     `xml:"author"`
	Name        string     `xml:"name"`
	Description string     `xml:"description"`
	SportType   string     `xml:"sportType"`
	Workout     zwoWorkout `xml:"workout"`
}

type zwoWorkout struct {
	Steps []any
}

func (w zwoWorkout) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, step := range w.Steps {
		if err := e.Encode(step); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

type zwoSteadyState struct {
	XMLName     xml.Name `xml:"SteadyState"`
	DurationSec int      `xml:"Duration,attr"`
	Power       float64  `xml:"Power,attr"`
}

type zwoIntervals struct {
	XMLName     xml.Name `xml:"IntervalsT"`
	Repeat      int      `xml:"Repeat,attr"`
	OnDuration  int      `xml:"OnDuration,attr"`
	OffDuration int      `xml:"OffDuration,attr"`
	OnPower     float64  `xml:"OnPower,attr"`
	OffPower    float64  `xml:"OffPower,attr"`
}

var ErrNoStructuredPlan = fmt.Errorf("session has no structured plan")

// ExportZWO renders a structured cycling session as a Zwift workout
// file. Plan step intensities are percentages of FTP, which maps
// directly onto the zwo Power fraction.
func ExportZWO(session Session) ([]byte, error) {
	if session.Sport != SportCycling {
		return nil, fmt.Errorf("zwo export supports cycling only, got %s", session.Sport)
	}
	if len(session.Plan) == 0 {
		return nil, ErrNoStructuredPlan
	}

	file := zwoFile{
		Author:      "trainlog",
		Name:        session.Title,
		Description: session.Description,
		SportType:   "bike",
	}

	// work on a copy, the off-interval bookkeeping below zeroes out
	// consumed recovery steps and must not leak into the stored plan
	steps := append([]PlanStep(nil), session.Plan...)
	for i, step := range steps {
		durationSec := int(step.DurationMin * 60)
		power := zwoPower(step)

		// a repeated step followed by a recovery step folds into one
		// IntervalsT block
		if step.Repeat > 1 && i+1 < len(steps) && steps[i+1].Repeat == 0 {
			recovery := steps[i+1]
			file.Workout.Steps = append(file.Workout.Steps, zwoIntervals{
				Repeat:      step.Repeat,
				OnDuration:  durationSec,
				OffDuration: int(recovery.DurationMin * 60),
				OnPower:     power,
				OffPower:    zwoPower(recovery),
			})
			steps[i+1].DurationMin = 0 // consumed as the off-interval
			continue
		}
		if durationSec == 0 {
			continue
		}

		repeat := step.Repeat
		if repeat < 1 {
			repeat = 1
		}
		for j := 0; j < repeat; j++ {
			file.Workout.Steps = append(file.Workout.Steps, zwoSteadyState{
				DurationSec: durationSec,
				Power:       power,
			})
		}
	}

	out, err := xml.MarshalIndent(file, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal zwo: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// zwoPower picks the midpoint of the step's intensity band, with a
// sane endurance default for steps carrying no intensity at all.
func zwoPower(step PlanStep) float64 {
	low, high := step.IntensityLowPct, step.IntensityHighPct
	if low == 0 && high == 0 {
		return 0.65
	}
	if high == 0 {
		high = low
	}
	return (low + high) / 2 / 100
}
