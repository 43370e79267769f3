package strava

import (
	"strconv"
	"time"

	"github.com/2beens/trainlog/internal/training"
)

// wire shapes of the activity API, only the fields we read

type Activity struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	SportType          string  `json:"sport_type"`
	StartDateLocal     string  `json:"start_date_local"`
	DistanceMeters     float64 `json:"distance"`
	MovingTimeSec      int     `json:"moving_time"`
	ElapsedTimeSec     int     `json:"elapsed_time"`
	TotalElevationGain float64 `json:"total_elevation_gain"`
	AverageHeartrate   float64 `json:"average_heartrate"`
	MaxHeartrate       float64 `json:"max_heartrate"`
	AverageWatts       float64 `json:"average_watts"`
	MaxWatts           float64 `json:"max_watts"`
	AverageCadence     float64 `json:"average_cadence"`
}

type Lap struct {
	Name             string  `json:"name"`
	ElapsedTimeSec   float64 `json:"elapsed_time"`
	MovingTimeSec    float64 `json:"moving_time"`
	DistanceMeters   float64 `json:"distance"`
	AverageSpeedMs   float64 `json:"average_speed"`
	MaxSpeedMs       float64 `json:"max_speed"`
	AverageHeartrate float64 `json:"average_heartrate"`
	AverageWatts     float64 `json:"average_watts"`
	AverageCadence   float64 `json:"average_cadence"`
	ElevationGain    float64 `json:"total_elevation_gain"`
}

// sportMapping is a closed list. Activity types outside of it (swims,
// hikes, yoga, ...) are not part of the training schedule and get
// excluded from the import.
var sportMapping = map[string]training.Sport{
	"Ride":             training.SportCycling,
	"VirtualRide":      training.SportCycling,
	"GravelRide":       training.SportCycling,
	"MountainBikeRide": training.SportCycling,
	"EBikeRide":        training.SportCycling,

	"Run":        training.SportRunning,
	"TrailRun":   training.SportRunning,
	"VirtualRun": training.SportRunning,

	"WeightTraining": training.SportStrength,
	"Workout":        training.SportStrength,
	"Crossfit":       training.SportStrength,
}

// MapSport translates an activity sport type to a schedule sport.
// The second return is false for types outside the closed list.
func MapSport(sportType string) (training.Sport, bool) {
	sport, ok := sportMapping[sportType]
	return sport, ok
}

// ToSession maps an activity (plus its laps, possibly nil) onto an
// actual session. Returns false for activity types outside the closed
// sport list.
func ToSession(activity Activity, laps []Lap) (training.Session, bool) {
	sport, ok := MapSport(activity.SportType)
	if !ok {
		return training.Session{}, false
	}

	date, err := time.Parse(time.RFC3339, activity.StartDateLocal)
	if err != nil {
		// the local start date sometimes comes without a zone
		date, err = time.Parse("2006-01-02T15:04:05", activity.StartDateLocal)
		if err != nil {
			return training.Session{}, false
		}
	}

	session := training.Session{
		Origin:      training.OriginActual,
		Sport:       sport,
		Title:       activity.Name,
		Date:        date,
		DurationMin: activity.MovingTimeSec / 60,
		ExternalID:  activity.ExternalID(),
	}
	if activity.DistanceMeters > 0 {
		distanceKm := activity.DistanceMeters / 1000
		session.DistanceKm = &distanceKm
	}
	if activity.TotalElevationGain > 0 {
		elevation := activity.TotalElevationGain
		session.ElevationM = &elevation
	}
	session.AvgHeartRate = roundedIntOrNil(activity.AverageHeartrate)
	session.MaxHeartRate = roundedIntOrNil(activity.MaxHeartrate)
	session.AvgPower = roundedIntOrNil(activity.AverageWatts)
	session.MaxPower = roundedIntOrNil(activity.MaxWatts)
	session.AvgCadence = roundedIntOrNil(activity.AverageCadence)

	for _, lap := range laps {
		sessionLap := training.Lap{
			Name:        lap.Name,
			ElapsedSec:  lap.ElapsedTimeSec,
			MovingSec:   lap.MovingTimeSec,
			DistanceKm:  lap.DistanceMeters / 1000,
			AvgSpeedKmh: lap.AverageSpeedMs * 3.6,
			MaxSpeedKmh: lap.MaxSpeedMs * 3.6,
		}
		sessionLap.AvgHeartRate = roundedIntOrNil(lap.AverageHeartrate)
		sessionLap.AvgPower = roundedIntOrNil(lap.AverageWatts)
		sessionLap.AvgCadence = roundedIntOrNil(lap.AverageCadence)
		if lap.ElevationGain > 0 {
			gain := lap.ElevationGain
			sessionLap.ElevationGain = &gain
		}
		session.Laps = append(session.Laps, sessionLap)
	}

	return session, true
}

func (a Activity) ExternalID() string {
	return "strava-" + strconv.FormatInt(a.ID, 10)
}

func roundedIntOrNil(v float64) *int {
	if v <= 0 {
		return nil
	}
	rounded := int(v + 0.5)
	return &rounded
}
