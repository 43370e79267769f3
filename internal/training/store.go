package training

import (
	"context"
	"sync"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/metrics"
	"github.com/2beens/trainlog/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
)

const remoteOpTimeout = 30 * time.Second

type sessionsRepo interface {
	ListAll(ctx context.Context) ([]Session, error)
	Insert(ctx context.Context, session Session) error
	InsertMany(ctx context.Context, sessions []Session) error
	Update(ctx context.Context, session Session) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

type sessionsCache interface {
	Load(ctx context.Context) ([]Session, error)
	Save(ctx context.Context, sessions []Session) error
	Clear(ctx context.Context) error
}

// Store owns the authoritative in-memory session list. Every mutation
// is applied locally first (optimistic), then written to the cache,
// then propagated to the remote persistence store on a best-effort
// basis. A failed remote write never rolls back the local mutation;
// it is logged, counted and surfaced on SyncErrors, and a later
// Initialize is the repair mechanism.
type Store struct {
	mu       sync.Mutex
	sessions []Session

	repo    sessionsRepo
	cache   sessionsCache
	metrics *metrics.Manager

	syncErr  error
	syncErrs chan error
	inflight sync.WaitGroup
}

func NewStore(repo sessionsRepo, cache sessionsCache, metricsManager *metrics.Manager) *Store {
	return &Store{
		sessions: make([]Session, 0),
		repo:     repo,
		cache:    cache,
		metrics:  metricsManager,
		syncErrs: make(chan error, 16),
	}
}

// Initialize hydrates the store: the cache is loaded synchronously for
// instant display, the full remote list is fetched in the background
// and replaces in-memory state when it arrives. A failed remote fetch
// leaves the cache-derived state in place and raises the sync-error
// flag, the store stays usable on stale data.
func (s *Store) Initialize(ctx context.Context) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.training.initialize")
	defer span.End()

	cached, err := s.cache.Load(ctx)
	if err != nil {
		log.Errorf("session store: load cache: %s", err)
	} else {
		s.mu.Lock()
		s.sessions = cached
		s.mu.Unlock()
		s.metrics.GaugeSessions.Set(float64(len(cached)))
		log.Debugf("session store: %d sessions loaded from cache", len(cached))
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteOpTimeout)
		defer cancel()

		remote, err := s.repo.ListAll(fetchCtx)
		if err != nil {
			log.Errorf("session store: remote fetch failed, staying on cached data: %s", err)
			s.noteSyncErr(err)
			return
		}

		s.mu.Lock()
		s.sessions = remote
		s.syncErr = nil
		s.mu.Unlock()
		s.metrics.GaugeSessions.Set(float64(len(remote)))

		if err := s.cache.Save(fetchCtx, remote); err != nil {
			log.Errorf("session store: refresh cache after remote fetch: %s", err)
		}
		log.Debugf("session store: hydrated with %d sessions from remote", len(remote))
	}()
}

// Sessions returns a copy of the current session list, in stable order.
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return s.sessions[i], true
		}
	}
	return Session{}, false
}

// Create makes a new planned session from the given template, scheduled
// on the given day.
func (s *Store) Create(ctx context.Context, template Session, date time.Time) Session {
	template.Origin = OriginPlanned
	template.Date = dayOf(date)
	return s.Add(ctx, template)
}

// CreateMany is Create for a whole batch; the remote persistence is a
// single batched call.
func (s *Store) CreateMany(ctx context.Context, templates []Session, date time.Time) []Session {
	for i := range templates {
		templates[i].Origin = OriginPlanned
		templates[i].Date = dayOf(date)
	}
	return s.AddMany(ctx, templates)
}

// Add appends a full session record as-is (assigning an identifier if
// it carries none), then syncs cache and remote.
func (s *Store) Add(ctx context.Context, session Session) Session {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.training.add")
	defer span.End()

	if session.ID == "" {
		session.ID = NewSessionID()
	}
	span.SetAttributes(attribute.String("session.id", session.ID))

	s.mu.Lock()
	s.sessions = append(s.sessions, session)
	sessionCount := len(s.sessions)
	s.mu.Unlock()
	s.metrics.GaugeSessions.Set(float64(sessionCount))

	s.saveCache(ctx)
	s.propagate(ctx, "insert", func(ctx context.Context) error {
		return s.repo.Insert(ctx, session)
	})
	return session
}

func (s *Store) AddMany(ctx context.Context, sessions []Session) []Session {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.training.addMany")
	defer span.End()
	span.SetAttributes(attribute.Int("sessions.count", len(sessions)))

	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = NewSessionID()
		}
	}

	s.mu.Lock()
	s.sessions = append(s.sessions, sessions...)
	sessionCount := len(s.sessions)
	s.mu.Unlock()
	s.metrics.GaugeSessions.Set(float64(sessionCount))

	s.saveCache(ctx)
	batch := make([]Session, len(sessions))
	copy(batch, sessions)
	s.propagate(ctx, "insert-many", func(ctx context.Context) error {
		return s.repo.InsertMany(ctx, batch)
	})
	return sessions
}

// Overwrite replaces the stored session carrying the same identifier.
// Returns false (and changes nothing) when the identifier is unknown.
func (s *Store) Overwrite(ctx context.Context, session Session) bool {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.training.overwrite")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", session.ID))

	s.mu.Lock()
	found := false
	for i := range s.sessions {
		if s.sessions[i].ID == session.ID {
			s.sessions[i] = session
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return false
	}

	s.saveCache(ctx)
	s.propagate(ctx, "update", func(ctx context.Context) error {
		return s.repo.Update(ctx, session)
	})
	return true
}

// UpdateDate reschedules a session to another day. No-op for unknown
// identifiers.
func (s *Store) UpdateDate(ctx context.Context, id string, newDate time.Time) bool {
	return s.mutate(ctx, id, func(session *Session) {
		session.Date = dayOf(newDate)
	})
}

func (s *Store) UpdateFeedback(ctx context.Context, id, feedback string) bool {
	return s.mutate(ctx, id, func(session *Session) {
		session.CoachFeedback = feedback
	})
}

// UpdateEditableFields relabels a session. It is the only sanctioned
// way to touch an actual session's title/description.
func (s *Store) UpdateEditableFields(ctx context.Context, id, title, description string) bool {
	return s.mutate(ctx, id, func(session *Session) {
		session.Title = title
		session.Description = description
	})
}

func (s *Store) mutate(ctx context.Context, id string, apply func(*Session)) bool {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.training.mutate")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	s.mu.Lock()
	var updated Session
	found := false
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			apply(&s.sessions[i])
			updated = s.sessions[i]
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return false
	}

	s.saveCache(ctx)
	s.propagate(ctx, "update", func(ctx context.Context) error {
		return s.repo.Update(ctx, updated)
	})
	return true
}

// Remove deletes a session regardless of its origin. Refusing to
// delete actual sessions is a caller contract enforced at the handler
// level; reconciliation legitimately removes sessions through here.
func (s *Store) Remove(ctx context.Context, id string) bool {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.training.remove")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	s.mu.Lock()
	found := false
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			found = true
			break
		}
	}
	sessionCount := len(s.sessions)
	s.mu.Unlock()
	if !found {
		return false
	}
	s.metrics.GaugeSessions.Set(float64(sessionCount))

	s.saveCache(ctx)
	s.propagate(ctx, "delete", func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	return true
}

// ExportPlanned returns all planned sessions (actual ones represent
// completed events and are not part of a shareable plan).
func (s *Store) ExportPlanned() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	planned := make([]Session, 0)
	for _, session := range s.sessions {
		if session.Origin == OriginPlanned {
			planned = append(planned, session)
		}
	}
	return planned
}

// Reset wipes everything: memory, cache and remote persistence. Unlike
// regular mutations this is an explicit destructive user action, so
// remote failures are returned to the caller instead of fire-and-forget.
func (s *Store) Reset(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.training.reset")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mu.Lock()
	s.sessions = make([]Session, 0)
	s.syncErr = nil
	s.mu.Unlock()
	s.metrics.GaugeSessions.Set(0)

	if cacheErr := s.cache.Clear(ctx); cacheErr != nil {
		err = multierr.Append(err, cacheErr)
	}
	if remoteErr := s.repo.DeleteAll(ctx); remoteErr != nil {
		err = multierr.Append(err, remoteErr)
	}
	return err
}

// SyncError reports the last remote synchronization failure, nil when
// the store and the remote are believed to be in sync.
func (s *Store) SyncError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncErr
}

// SyncErrors exposes remote propagation failures as an observable
// channel (the UI shows a non-blocking error indicator off of it).
func (s *Store) SyncErrors() <-chan error {
	return s.syncErrs
}

// Flush blocks until all in-flight remote propagation finished. Used
// on graceful shutdown and in tests; regular callers never wait on
// remote durability.
func (s *Store) Flush() {
	s.inflight.Wait()
}

func (s *Store) saveCache(ctx context.Context) {
	s.mu.Lock()
	snapshot := make([]Session, len(s.sessions))
	copy(snapshot, s.sessions)
	s.mu.Unlock()

	if err := s.cache.Save(ctx, snapshot); err != nil {
		// non-fatal, the remote store still holds the data
		log.Errorf("session store: cache save failed: %s", err)
	}
}

func (s *Store) propagate(ctx context.Context, op string, fn func(ctx context.Context) error) {
	s.inflight.Add(1)
	detachedCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.inflight.Done()

		opCtx, cancel := context.WithTimeout(detachedCtx, remoteOpTimeout)
		defer cancel()

		if err := fn(opCtx); err != nil {
			log.Errorf("session store: remote sync [%s] failed: %s", op, err)
			s.metrics.CounterRemoteSyncFailures.Inc()
			s.noteSyncErr(err)
		}
	}()
}

func (s *Store) noteSyncErr(err error) {
	s.mu.Lock()
	s.syncErr = err
	s.mu.Unlock()

	select {
	case s.syncErrs <- err:
	default:
		// nobody is draining the channel, drop instead of blocking
	}
}
