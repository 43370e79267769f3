package training

import (
	"context"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/metrics"
	"github.com/2beens/trainlog/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ImportMode decides what happens when an incoming activity matches an
// already-imported session (same title and day).
type ImportMode string

const (
	// ImportModeSkip leaves the existing session untouched. Used by the
	// periodic background import, which must never clobber user edits.
	ImportModeSkip ImportMode = "skip"
	// ImportModeUpdate refreshes the outcome fields of the existing
	// session in place. Used for explicit, user-triggered imports.
	ImportModeUpdate ImportMode = "update"
)

// ImportResult summarizes one reconciliation run.
type ImportResult struct {
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped"`
	Displaced int    `json:"displaced"`
	// SpotlightID points at the most recently inserted session, the one
	// the dashboard scrolls to after an import.
	SpotlightID string `json:"spotlightId,omitempty"`
}

// Reconciler merges imported activities and pasted plans into the
// session store without creating duplicates, and handles the planned
// session displacement rule.
type Reconciler struct {
	store   *Store
	metrics *metrics.Manager
}

func NewReconciler(store *Store, metricsManager *metrics.Manager) *Reconciler {
	return &Reconciler{
		store:   store,
		metrics: metricsManager,
	}
}

// ImportActivities merges a batch of actual sessions (already mapped
// from the tracker's wire format) into the store:
//
//   - an incoming session whose title+day matches an existing one is a
//     duplicate: skipped, or refreshed in place depending on mode;
//   - otherwise, if a planned session exists on the same day with the
//     same sport, the actual session displaces it: the planned one is
//     removed and its title/description are snapshotted on the actual
//     session so the planned intent can be restored later;
//   - otherwise the session is simply inserted.
//
// Incoming sessions are processed in the given order, sequentially, so
// results are deterministic.
func (r *Reconciler) ImportActivities(ctx context.Context, incoming []Session, mode ImportMode) ImportResult {
	ctx, span := tracing.GlobalTracer.Start(ctx, "reconciler.importActivities")
	defer span.End()
	span.SetAttributes(
		attribute.Int("incoming.count", len(incoming)),
		attribute.String("mode", string(mode)),
	)

	var result ImportResult
	for _, session := range incoming {
		session.Origin = OriginActual
		session.Date = dayOf(session.Date)

		if existing, ok := r.findByKey(session.Key()); ok {
			if mode == ImportModeUpdate {
				refreshed := mergeOutcome(existing, session)
				if r.store.Overwrite(ctx, refreshed) {
					result.Updated++
					continue
				}
			}
			result.Skipped++
			r.metrics.CounterSkippedDuplicates.Inc()
			continue
		}

		if planned, ok := r.findPlanned(session.Date, session.Sport); ok {
			session.ReplacedTitle = planned.Title
			session.ReplacedDescription = planned.Description
			r.store.Remove(ctx, planned.ID)
			result.Displaced++
			r.metrics.CounterDisplacedPlanned.Inc()
			log.Debugf("reconciler: actual session %q displaced planned %q on %s",
				session.Title, planned.Title, session.Date.Format("2006-01-02"))
		}

		added := r.store.Add(ctx, session)
		result.Inserted++
		result.SpotlightID = added.ID
		r.metrics.CounterImportedSessions.Inc()
	}

	log.Infof("reconciler: import done: %d inserted, %d updated, %d skipped, %d displaced",
		result.Inserted, result.Updated, result.Skipped, result.Displaced)
	return result
}

// BulkImport adds a whole pasted plan of planned sessions. With
// replaceExisting set, planned sessions on the days the incoming batch
// covers are removed first; planned sessions on other days and actual
// sessions are never touched. An incoming item matching an existing
// planned session by title and day overwrites it in place, one
// matching an actual session is skipped. Items already carrying an
// identifier keep it, which is what lets an exported plan be restored
// as-is.
func (r *Reconciler) BulkImport(ctx context.Context, incoming []Session, replaceExisting bool) ImportResult {
	ctx, span := tracing.GlobalTracer.Start(ctx, "reconciler.bulkImport")
	defer span.End()
	span.SetAttributes(
		attribute.Int("incoming.count", len(incoming)),
		attribute.Bool("replaceExisting", replaceExisting),
	)

	var result ImportResult

	if replaceExisting {
		batchDays := make(map[string]struct{}, len(incoming))
		for _, session := range incoming {
			batchDays[session.Date.Format("2006-01-02")] = struct{}{}
		}
		for _, planned := range r.store.ExportPlanned() {
			if _, ok := batchDays[planned.Date.Format("2006-01-02")]; ok {
				r.store.Remove(ctx, planned.ID)
			}
		}
	}

	toAdd := make([]Session, 0, len(incoming))
	for _, session := range incoming {
		session.Origin = OriginPlanned
		session.Date = dayOf(session.Date)

		if existing, ok := r.findByKey(session.Key()); ok {
			if existing.IsActual() {
				result.Skipped++
				r.metrics.CounterSkippedDuplicates.Inc()
				continue
			}
			session.ID = existing.ID
			if r.store.Overwrite(ctx, session) {
				result.Updated++
				continue
			}
		}
		toAdd = append(toAdd, session)
	}

	added := r.store.AddMany(ctx, toAdd)
	result.Inserted = len(added)
	if len(added) > 0 {
		result.SpotlightID = added[len(added)-1].ID
	}

	log.Infof("reconciler: bulk import done: %d inserted, %d updated, %d skipped (replace=%t)",
		result.Inserted, result.Updated, result.Skipped, replaceExisting)
	return result
}

func (r *Reconciler) findByKey(key DedupKey) (Session, bool) {
	for _, session := range r.store.Sessions() {
		if session.Key() == key {
			return session, true
		}
	}
	return Session{}, false
}

// findPlanned returns the first planned session on the given day with
// the given sport, in list order. With several candidates on the same
// day the first one wins; the schedule rarely has more than one planned
// session per sport per day.
func (r *Reconciler) findPlanned(date time.Time, sport Sport) (Session, bool) {
	day := dayOf(date)
	for _, session := range r.store.Sessions() {
		if session.Origin == OriginPlanned && session.Sport == sport && dayOf(session.Date).Equal(day) {
			return session, true
		}
	}
	return Session{}, false
}

// mergeOutcome refreshes the outcome fields of an existing actual
// session from a newly fetched copy, keeping user annotations intact.
func mergeOutcome(existing, fresh Session) Session {
	existing.DurationMin = fresh.DurationMin
	existing.DistanceKm = fresh.DistanceKm
	existing.ElevationM = fresh.ElevationM
	existing.AvgHeartRate = fresh.AvgHeartRate
	existing.MaxHeartRate = fresh.MaxHeartRate
	existing.AvgPower = fresh.AvgPower
	existing.MaxPower = fresh.MaxPower
	existing.AvgCadence = fresh.AvgCadence
	existing.Laps = fresh.Laps
	if fresh.ExternalID != "" {
		existing.ExternalID = fresh.ExternalID
	}
	return existing
}
