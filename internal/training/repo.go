package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrSessionNotFound = errors.New("session not found")

// Repo is the remote persistence store for sessions. While the app is
// running it is a downstream mirror of the in-memory store, never the
// source of truth; it only becomes the source of truth at startup,
// when the store hydrates from it.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) ListAll(ctx context.Context) (_ []Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.training.listAll")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT
			id, origin, sport, session_type, title, session_date, duration_min, description,
			plan, external_id, distance_km, elevation_m, avg_heart_rate, max_heart_rate,
			avg_power, max_power, avg_cadence, laps, coach_feedback,
			replaced_title, replaced_description, created_at, updated_at
		FROM training_session
		ORDER BY session_date, created_at;
	`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	sessions, err := r.rows2sessions(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2sessions: %w", err)
	}

	span.SetAttributes(attribute.Int("sessions.count", len(sessions)))
	return sessions, nil
}

func (r *Repo) Insert(ctx context.Context, session Session) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.training.insert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", session.ID))

	planJson, lapsJson, err := marshalSessionJSON(session)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, insertSessionSQL, insertSessionArgs(session, planJson, lapsJson)...)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// InsertMany persists the whole batch with a single round trip.
func (r *Repo) InsertMany(ctx context.Context, sessions []Session) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.training.insertMany")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("sessions.count", len(sessions)))

	if len(sessions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, session := range sessions {
		planJson, lapsJson, err := marshalSessionJSON(session)
		if err != nil {
			return err
		}
		batch.Queue(insertSessionSQL, insertSessionArgs(session, planJson, lapsJson)...)
	}

	results := r.db.SendBatch(ctx, batch)
	defer func() {
		if closeErr := results.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for range sessions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert session batch: %w", err)
		}
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, session Session) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.training.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", session.ID))

	planJson, lapsJson, err := marshalSessionJSON(session)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE training_session SET
			origin = $2, sport = $3, session_type = $4, title = $5, session_date = $6,
			duration_min = $7, description = $8, plan = $9, external_id = $10,
			distance_km = $11, elevation_m = $12, avg_heart_rate = $13, max_heart_rate = $14,
			avg_power = $15, max_power = $16, avg_cadence = $17, laps = $18,
			coach_feedback = $19, replaced_title = $20, replaced_description = $21,
			updated_at = NOW()
		WHERE id = $1;`,
		session.ID, session.Origin, session.Sport, session.Type, session.Title, session.Date,
		session.DurationMin, session.Description, planJson, nullIfEmpty(session.ExternalID),
		session.DistanceKm, session.ElevationM, session.AvgHeartRate, session.MaxHeartRate,
		session.AvgPower, session.MaxPower, session.AvgCadence, lapsJson,
		session.CoachFeedback, session.ReplacedTitle, session.ReplacedDescription,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.training.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", id))

	tag, err := r.db.Exec(ctx, `DELETE FROM training_session WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Repo) DeleteAll(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.training.deleteAll")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := r.db.Exec(ctx, `DELETE FROM training_session;`); err != nil {
		return fmt.Errorf("delete all sessions: %w", err)
	}
	return nil
}

const insertSessionSQL = `
	INSERT INTO training_session (
		id, origin, sport, session_type, title, session_date, duration_min, description,
		plan, external_id, distance_km, elevation_m, avg_heart_rate, max_heart_rate,
		avg_power, max_power, avg_cadence, laps, coach_feedback,
		replaced_title, replaced_description
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
	)
	ON CONFLICT (id) DO NOTHING;`

func insertSessionArgs(session Session, planJson, lapsJson []byte) []any {
	return []any{
		session.ID, session.Origin, session.Sport, session.Type, session.Title, session.Date,
		session.DurationMin, session.Description, planJson, nullIfEmpty(session.ExternalID),
		session.DistanceKm, session.ElevationM, session.AvgHeartRate, session.MaxHeartRate,
		session.AvgPower, session.MaxPower, session.AvgCadence, lapsJson,
		session.CoachFeedback, session.ReplacedTitle, session.ReplacedDescription,
	}
}

func marshalSessionJSON(session Session) (planJson, lapsJson []byte, err error) {
	planJson, err = json.Marshal(session.Plan)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal plan: %w", err)
	}
	lapsJson, err = json.Marshal(session.Laps)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal laps: %w", err)
	}
	return planJson, lapsJson, nil
}

// external_id carries a UNIQUE constraint used as a natural dedup key
// at the storage layer, so empty values have to be stored as NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *Repo) rows2sessions(rows pgx.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		var s Session
		var externalID *string
		var planBytes, lapsBytes []byte
		var createdAt, updatedAt time.Time
		if err := rows.Scan(
			&s.ID, &s.Origin, &s.Sport, &s.Type, &s.Title, &s.Date, &s.DurationMin, &s.Description,
			&planBytes, &externalID, &s.DistanceKm, &s.ElevationM, &s.AvgHeartRate, &s.MaxHeartRate,
			&s.AvgPower, &s.MaxPower, &s.AvgCadence, &lapsBytes, &s.CoachFeedback,
			&s.ReplacedTitle, &s.ReplacedDescription, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}

		if externalID != nil {
			s.ExternalID = *externalID
		}
		if len(planBytes) > 0 {
			if err := json.Unmarshal(planBytes, &s.Plan); err != nil {
				return nil, fmt.Errorf("unmarshal plan for session %s: %w", s.ID, err)
			}
		}
		if len(lapsBytes) > 0 {
			if err := json.Unmarshal(lapsBytes, &s.Laps); err != nil {
				return nil, fmt.Errorf("unmarshal laps for session %s: %w", s.ID, err)
			}
		}
		s.CreatedAt = createdAt
		s.UpdatedAt = updatedAt

		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if sessions == nil {
		sessions = make([]Session, 0)
	}
	return sessions, nil
}
