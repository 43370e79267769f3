package strava

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/metrics"
	"github.com/2beens/trainlog/internal/telemetry/tracing"
	"github.com/2beens/trainlog/internal/training"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type activitiesAPI interface {
	FetchRecent(ctx context.Context, days int) ([]Activity, error)
	FetchLaps(ctx context.Context, activityID int64) ([]Lap, error)
}

type activityReconciler interface {
	ImportActivities(ctx context.Context, incoming []training.Session, mode training.ImportMode) training.ImportResult
}

// Service turns tracker activities into actual sessions on the
// schedule. Both the user-triggered import and the periodic background
// import run through here.
type Service struct {
	client     activitiesAPI
	reconciler activityReconciler
	metrics    *metrics.Manager
}

func NewService(client activitiesAPI, reconciler activityReconciler, metricsManager *metrics.Manager) *Service {
	return &Service{
		client:     client,
		reconciler: reconciler,
		metrics:    metricsManager,
	}
}

// Import fetches activities of the last `days` days and reconciles
// them into the schedule. Lap details are fetched per activity and
// skipped on failure, a summary-only session beats no session.
func (s *Service) Import(ctx context.Context, days int, mode training.ImportMode) (_ training.ImportResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "strava.service.import")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("days", days), attribute.String("mode", string(mode)))

	startedAt := time.Now()
	defer func() {
		s.metrics.HistActivityImportDuration.Observe(time.Since(startedAt).Seconds())
	}()

	activities, err := s.client.FetchRecent(ctx, days)
	if err != nil {
		return training.ImportResult{}, fmt.Errorf("fetch recent activities: %w", err)
	}

	incoming := make([]training.Session, 0, len(activities))
	excluded := 0
	for _, activity := range activities {
		if _, ok := MapSport(activity.SportType); !ok {
			excluded++
			continue
		}

		// laps are a detail call per activity, only spent on kept ones
		laps, err := s.client.FetchLaps(ctx, activity.ID)
		if err != nil {
			log.Warnf("strava import: fetch laps for activity %d: %s", activity.ID, err)
			laps = nil
		}

		session, ok := ToSession(activity, laps)
		if !ok {
			excluded++
			continue
		}
		incoming = append(incoming, session)
	}

	if excluded > 0 {
		log.Debugf("strava import: %d activities excluded by sport type", excluded)
	}

	result := s.reconciler.ImportActivities(ctx, incoming, mode)
	log.Infof(
		"strava import done: %d activities fetched, %d inserted, %d updated, %d skipped, %d displaced",
		len(activities), result.Inserted, result.Updated, result.Skipped, result.Displaced,
	)
	return result, nil
}
