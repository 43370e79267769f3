package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnrecognizedPlanDocument = errors.New("unrecognized plan document")

// ImportDocument is a parsed pasted plan: the sessions to schedule,
// plus an optional training phase the plan belongs to.
type ImportDocument struct {
	Phase    *TrainingPhase
	Sessions []Session
}

// planSessionWire is the JSON shape chat assistants are asked to emit
// for a plan. Dates come as plain "YYYY-MM-DD" strings.
type planSessionWire struct {
	Date        string     `json:"date"`
	Sport       Sport      `json:"sport"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	DurationMin int        `json:"durationMin"`
	Description string     `json:"description"`
	Plan        []PlanStep `json:"plan"`
}

type planDocumentWire struct {
	Phase    *phaseWire        `json:"phase"`
	Sessions []planSessionWire `json:"sessions"`
}

type phaseWire struct {
	Name        string `json:"name"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description"`
	Goal        string `json:"goal"`
}

// ParsePlanDocument parses a pasted plan. The text usually comes
// straight out of a chat assistant, so the parser is deliberately
// forgiving: markdown code fences are stripped, and several top-level
// shapes are accepted, tried in order:
//
//  1. a flat array of sessions;
//  2. an object with "sessions" (and optionally "phase");
//  3. two or more top-level JSON values pasted back to back, in which
//     case the first decodable one wins;
//  4. an array of arrays of sessions (one inner array per week), which
//     is flattened.
func ParsePlanDocument(raw string) (ImportDocument, error) {
	text := stripCodeFences(raw)
	if strings.TrimSpace(text) == "" {
		return ImportDocument{}, ErrUnrecognizedPlanDocument
	}

	var flat []planSessionWire
	if err := json.Unmarshal([]byte(text), &flat); err == nil {
		return wire2document(nil, flat)
	}

	var doc planDocumentWire
	if err := json.Unmarshal([]byte(text), &doc); err == nil && len(doc.Sessions) > 0 {
		return wire2document(doc.Phase, doc.Sessions)
	}

	if first, ok := firstJSONValue(text); ok && first != text {
		if parsed, err := ParsePlanDocument(first); err == nil {
			return parsed, nil
		}
	}

	var nested [][]planSessionWire
	if err := json.Unmarshal([]byte(text), &nested); err == nil {
		var flattened []planSessionWire
		for _, week := range nested {
			flattened = append(flattened, week...)
		}
		if len(flattened) > 0 {
			return wire2document(nil, flattened)
		}
	}

	return ImportDocument{}, ErrUnrecognizedPlanDocument
}

func wire2document(phase *phaseWire, sessions []planSessionWire) (ImportDocument, error) {
	if len(sessions) == 0 {
		return ImportDocument{}, ErrUnrecognizedPlanDocument
	}

	out := ImportDocument{
		Sessions: make([]Session, 0, len(sessions)),
	}

	for i, s := range sessions {
		if s.Title == "" {
			return ImportDocument{}, fmt.Errorf("session %d: missing title", i)
		}
		date, err := parsePlanDate(s.Date)
		if err != nil {
			return ImportDocument{}, fmt.Errorf("session %d (%s): %w", i, s.Title, err)
		}
		sport := s.Sport
		if sport == "" {
			sport = SportCycling
		}
		out.Sessions = append(out.Sessions, Session{
			Origin:      OriginPlanned,
			Sport:       sport,
			Type:        s.Type,
			Title:       s.Title,
			Date:        date,
			DurationMin: s.DurationMin,
			Description: s.Description,
			Plan:        s.Plan,
		})
	}

	if phase != nil && phase.Name != "" {
		start, err := parsePlanDate(phase.StartDate)
		if err != nil {
			return ImportDocument{}, fmt.Errorf("phase %s: %w", phase.Name, err)
		}
		end, err := parsePlanDate(phase.EndDate)
		if err != nil {
			return ImportDocument{}, fmt.Errorf("phase %s: %w", phase.Name, err)
		}
		out.Phase = &TrainingPhase{
			Name:        phase.Name,
			StartDate:   start,
			EndDate:     end,
			Description: phase.Description,
			Goal:        phase.Goal,
		}
	}

	return out, nil
}

func parsePlanDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing date")
	}
	date, err := time.Parse("2006-01-02", s)
	if err != nil {
		// some assistants emit full timestamps despite being asked not to
		date, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable date %q", s)
		}
	}
	return dayOf(date), nil
}

// stripCodeFences removes a surrounding markdown fence (```json ... ```)
// and any prose the assistant wrote around it.
func stripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	fenceStart := strings.Index(text, "```")
	if fenceStart == -1 {
		return text
	}

	text = text[fenceStart+3:]
	// drop the language tag on the fence line
	if nl := strings.IndexByte(text, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(text[:nl])
		if len(firstLine) < 20 && !strings.ContainsAny(firstLine, "{}[]") {
			text = text[nl+1:]
		}
	}
	if fenceEnd := strings.LastIndex(text, "```"); fenceEnd != -1 {
		text = text[:fenceEnd]
	}
	return strings.TrimSpace(text)
}

// firstJSONValue extracts the first complete top-level JSON value from
// text that may contain several values pasted back to back.
func firstJSONValue(text string) (string, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	var first json.RawMessage
	if err := dec.Decode(&first); err != nil {
		return "", false
	}
	return string(first), true
}
