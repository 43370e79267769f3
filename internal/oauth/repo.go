package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/trainlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrTokenNotFound = errors.New("token not found")

// Repo persists one token set per provider, so connections survive
// service restarts.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Get(ctx context.Context, provider string) (_ TokenSet, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.oauth.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("provider", provider))

	var tokens TokenSet
	err = r.db.QueryRow(ctx, `
		SELECT access_token, refresh_token, expires_at
		FROM oauth_token
		WHERE provider = $1;`,
		provider,
	).Scan(&tokens.AccessToken, &tokens.RefreshToken, &tokens.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenSet{}, ErrTokenNotFound
		}
		return TokenSet{}, fmt.Errorf("get tokens: %w", err)
	}
	return tokens, nil
}

func (r *Repo) Save(ctx context.Context, provider string, tokens TokenSet) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.oauth.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("provider", provider))

	_, err = r.db.Exec(ctx, `
		INSERT INTO oauth_token (provider, access_token, refresh_token, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW();`,
		provider, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, provider string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.oauth.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("provider", provider))

	if _, err := r.db.Exec(ctx, `DELETE FROM oauth_token WHERE provider = $1;`, provider); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}
