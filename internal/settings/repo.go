package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// the settings table holds exactly one row
const settingsRowID = 1

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Get returns the stored settings, or the defaults when nothing was
// saved yet.
func (r *Repo) Get(ctx context.Context) (_ Settings, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.settings.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var s Settings
	var phasesBytes, objectivesBytes []byte
	var updatedAt time.Time
	err = r.db.QueryRow(ctx, `
		SELECT theme, phases, objectives, updated_at
		FROM dashboard_settings
		WHERE id = $1;`,
		settingsRowID,
	).Scan(&s.Theme, &phasesBytes, &objectivesBytes, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}

	if err := json.Unmarshal(phasesBytes, &s.Phases); err != nil {
		return Settings{}, fmt.Errorf("unmarshal phases: %w", err)
	}
	if err := json.Unmarshal(objectivesBytes, &s.Objectives); err != nil {
		return Settings{}, fmt.Errorf("unmarshal objectives: %w", err)
	}
	s.UpdatedAt = updatedAt
	return s, nil
}

func (r *Repo) Save(ctx context.Context, s Settings) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.settings.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	phasesJson, err := json.Marshal(s.Phases)
	if err != nil {
		return fmt.Errorf("marshal phases: %w", err)
	}
	objectivesJson, err := json.Marshal(s.Objectives)
	if err != nil {
		return fmt.Errorf("marshal objectives: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO dashboard_settings (id, theme, phases, objectives, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			theme = EXCLUDED.theme,
			phases = EXCLUDED.phases,
			objectives = EXCLUDED.objectives,
			updated_at = NOW();`,
		settingsRowID, s.Theme, phasesJson, objectivesJson,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
