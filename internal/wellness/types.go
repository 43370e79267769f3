package wellness

import "fmt"

// Day is one day of wellness data from the wellness API. CTL and ATL
// are the chronic and acute training loads the platform computes from
// the athlete's history.
type Day struct {
	Date       string   `json:"id"` // YYYY-MM-DD
	CTL        float64  `json:"ctl"`
	ATL        float64  `json:"atl"`
	RestingHR  *int     `json:"restingHR,omitempty"`
	HRV        *float64 `json:"hrv,omitempty"`
	SleepSecs  *int     `json:"sleepSecs,omitempty"`
	WeightKg   *float64 `json:"weight,omitempty"`
}

// FormStatus is a coarse qualitative bucket over the form value.
type FormStatus string

const (
	StatusTransition FormStatus = "transition"
	StatusFresh      FormStatus = "fresh"
	StatusNeutral    FormStatus = "neutral"
	StatusOptimal    FormStatus = "optimal"
	StatusHighRisk   FormStatus = "high risk"
)

// Form is the freshness balance: chronic load minus acute load.
// Positive means rested, strongly negative means accumulated fatigue.
func (d Day) Form() float64 {
	return d.CTL - d.ATL
}

// FormPct normalizes form against the chronic load, which is what the
// status buckets are defined on.
func (d Day) FormPct() float64 {
	if d.CTL == 0 {
		return 0
	}
	return d.Form() / d.CTL * 100
}

// Status buckets follow the usual form interpretation bands: slightly
// negative is where productive training happens, strongly negative is
// overreaching territory.
func (d Day) Status() FormStatus {
	pct := d.FormPct()
	switch {
	case pct > 20:
		return StatusTransition
	case pct > 5:
		return StatusFresh
	case pct > -10:
		return StatusNeutral
	case pct > -30:
		return StatusOptimal
	default:
		return StatusHighRisk
	}
}

// Summary renders one day as a short line for coach prompts.
func (d Day) Summary() string {
	return fmt.Sprintf("Forme: %s (%.0f), fitness (CTL) %.0f, fatigue (ATL) %.0f",
		d.Status(), d.Form(), d.CTL, d.ATL)
}
