package training

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Load_emptyOnMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	cache := NewCache(db)

	mock.ExpectGet(sessionsCacheKey).RedisNil()

	sessions, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_LoadSaved(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	cache := NewCache(db)

	sessions := []Session{
		testSession("cached ride", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), OriginPlanned, SportCycling),
	}
	sessionsJson, err := json.Marshal(sessions)
	require.NoError(t, err)

	mock.ExpectSet(sessionsCacheKey, sessionsJson, 0).SetVal("OK")
	require.NoError(t, cache.Save(context.Background(), sessions))

	mock.ExpectGet(sessionsCacheKey).SetVal(string(sessionsJson))
	loaded, err := cache.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "cached ride", loaded[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_Load_corruptPayload(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	cache := NewCache(db)

	mock.ExpectGet(sessionsCacheKey).SetVal("{not json")

	_, err := cache.Load(context.Background())
	assert.ErrorContains(t, err, "unmarshal cached sessions")
}

func TestCache_Clear(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	cache := NewCache(db)

	mock.ExpectDel(sessionsCacheKey).SetVal(1)
	require.NoError(t, cache.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
