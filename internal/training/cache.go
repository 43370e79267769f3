package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/trainlog/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
)

const sessionsCacheKey = "trainlog::sessions"

// Cache mirrors the in-memory session list in redis so the dashboard
// has something to show instantly on startup, before (or instead of,
// when the network is down) the remote fetch completes.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{
		rdb: rdb,
	}
}

func (c *Cache) Load(ctx context.Context) (_ []Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cache.training.load")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cmd := c.rdb.Get(ctx, sessionsCacheKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return []Session{}, nil
		}
		return nil, fmt.Errorf("get cached sessions: %w", err)
	}

	var sessions []Session
	if err := json.Unmarshal([]byte(cmd.Val()), &sessions); err != nil {
		return nil, fmt.Errorf("unmarshal cached sessions: %w", err)
	}
	return sessions, nil
}

func (c *Cache) Save(ctx context.Context, sessions []Session) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cache.training.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	sessionsJson, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}

	if err := c.rdb.Set(ctx, sessionsCacheKey, sessionsJson, 0).Err(); err != nil {
		return fmt.Errorf("set cached sessions: %w", err)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cache.training.clear")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := c.rdb.Del(ctx, sessionsCacheKey).Err(); err != nil {
		return fmt.Errorf("delete cached sessions: %w", err)
	}
	return nil
}
