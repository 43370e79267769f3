package gcal

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/metrics"
	"github.com/2beens/trainlog/internal/telemetry/tracing"
	"github.com/2beens/trainlog/internal/training"
	"github.com/2beens/trainlog/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// SyncResult reports what one calendar sync did.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Service mirrors the displayed week's sessions into a calendar as
// all-day events. Events it created carry a marker tag in their
// description, nothing else in the calendar is ever touched.
type Service struct {
	calendarID string
	eventTag   string
	newAPI     func(ctx context.Context, ts oauth2.TokenSource) (*calendar.Service, error)
	tokens     oauth2TokenSourceProvider
	metrics    *metrics.Manager
}

type oauth2TokenSourceProvider interface {
	TokenSource(ctx context.Context) oauth2.TokenSource
}

func NewService(
	calendarID string,
	eventTag string,
	tokens oauth2TokenSourceProvider,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		calendarID: calendarID,
		eventTag:   eventTag,
		newAPI: func(ctx context.Context, ts oauth2.TokenSource) (*calendar.Service, error) {
			return calendar.NewService(ctx, option.WithTokenSource(ts))
		},
		tokens:  tokens,
		metrics: metricsManager,
	}
}

// SyncWeek pushes all sessions of the given week to the calendar. The
// scope is deliberately one week, the one on screen; older weeks are
// history and future weeks are still in flux.
func (s *Service) SyncWeek(ctx context.Context, sessions []training.Session, weekOf time.Time) (_ SyncResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "gcal.service.syncWeek")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	api, err := s.newAPI(ctx, s.tokens.TokenSource(ctx))
	if err != nil {
		return SyncResult{}, fmt.Errorf("create calendar service: %w", err)
	}

	weekStart := pkg.WeekStartOf(weekOf)
	weekEnd := weekStart.AddDate(0, 0, 7)
	span.SetAttributes(attribute.String("week.start", weekStart.Format("2006-01-02")))

	var result SyncResult
	var errs error
	for _, session := range sessions {
		if session.Date.Before(weekStart) || !session.Date.Before(weekEnd) {
			continue
		}

		created, err := s.upsertEvent(ctx, api, session)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", session.ID, err))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		s.metrics.CounterCalendarEventsSync.Inc()
	}

	log.Infof("calendar sync for week %s done: %d created, %d updated",
		weekStart.Format("2006-01-02"), result.Created, result.Updated)
	return result, errs
}

// upsertEvent updates the session's event in place, falling back to a
// create when the event does not exist yet. Update-first keeps the
// common case (resyncing an already-synced week) a single round trip.
func (s *Service) upsertEvent(ctx context.Context, api *calendar.Service, session training.Session) (created bool, err error) {
	event := s.sessionEvent(session)
	eventID := EventID(session.ID)

	_, err = api.Events.Update(s.calendarID, eventID, event).Context(ctx).Do()
	if err == nil {
		return false, nil
	}
	if !isNotFound(err) {
		return false, fmt.Errorf("update event: %w", err)
	}

	event.Id = eventID
	if _, err := api.Events.Insert(s.calendarID, event).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	return true, nil
}

// ClearManagedEvents deletes every event carrying the tag. Per-event
// failures are collected and do not stop the rest of the cleanup.
func (s *Service) ClearManagedEvents(ctx context.Context) (deleted int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "gcal.service.clearManagedEvents")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	api, err := s.newAPI(ctx, s.tokens.TokenSource(ctx))
	if err != nil {
		return 0, fmt.Errorf("create calendar service: %w", err)
	}

	var errs error
	pageToken := ""
	for {
		call := api.Events.List(s.calendarID).Q(s.eventTag).MaxResults(250).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		events, err := call.Do()
		if err != nil {
			return deleted, multierr.Append(errs, fmt.Errorf("list events: %w", err))
		}

		for _, event := range events.Items {
			// Q matches titles too, only trust the description marker
			if !strings.Contains(event.Description, s.eventTag) {
				continue
			}
			if err := api.Events.Delete(s.calendarID, event.Id).Context(ctx).Do(); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("delete event %s: %w", event.Id, err))
				continue
			}
			deleted++
		}

		pageToken = events.NextPageToken
		if pageToken == "" {
			break
		}
	}

	span.SetAttributes(attribute.Int("events.deleted", deleted))
	log.Infof("calendar cleanup done: %d events deleted", deleted)
	return deleted, errs
}

func (s *Service) sessionEvent(session training.Session) *calendar.Event {
	day := session.Date.Format("2006-01-02")
	description := session.Description
	if session.DurationMin > 0 {
		description = fmt.Sprintf("%s, %d min\n%s", session.Sport, session.DurationMin, session.Description)
	}
	description = strings.TrimSpace(description) + "\n\n" + s.eventTag
	return &calendar.Event{
		Summary:     session.Title,
		Description: strings.TrimSpace(description),
		Start:       &calendar.EventDateTime{Date: day},
		End:         &calendar.EventDateTime{Date: day},
	}
}

// EventID derives a stable calendar event ID from the session ID, so
// resyncing updates events instead of duplicating them. The calendar
// API only allows lowercase base32hex characters in IDs.
func EventID(sessionID string) string {
	cleaned := strings.ToLower(strings.ReplaceAll(sessionID, "-", ""))
	if !isBase32Hex(cleaned) {
		// non-uuid session ids get hex-encoded to stay in the allowed alphabet
		cleaned = hex.EncodeToString([]byte(sessionID))
	}
	return "trainlog" + cleaned
}

func isBase32Hex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'v') {
			return false
		}
	}
	return s != ""
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 || apiErr.Code == 410
	}
	return false
}
