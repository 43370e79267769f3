package settings

import (
	"time"

	"github.com/2beens/trainlog/internal/training"
)

// Settings is the single-user dashboard configuration. One row, edited
// in place.
type Settings struct {
	Theme      string                   `json:"theme"`
	Phases     []training.TrainingPhase `json:"phases"`
	Objectives []training.Objective     `json:"objectives"`
	UpdatedAt  time.Time                `json:"updatedAt,omitempty"`
}

func Default() Settings {
	return Settings{
		Theme:      "dark",
		Phases:     []training.TrainingPhase{},
		Objectives: []training.Objective{},
	}
}
