package integration_testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/2beens/trainlog/internal/training"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var httpClient = &http.Client{
	Timeout: 10 * time.Second,
}

func doRequest(t *testing.T, ctx context.Context, method, path string, body []byte) *http.Response {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-TRAINLOG-TOKEN", dashboardSecret)

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	return resp
}

func waitServerUp(t *testing.T) {
	t.Helper()
	for i := 0; i < 50; i++ {
		resp, err := httpClient.Get(serverEndpoint + "/")
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("server did not come up")
}

// remote persistence is best effort and asynchronous, poll for it
func waitSessionCount(t *testing.T, suite *Suite, want int) {
	t.Helper()
	var count int
	for i := 0; i < 50; i++ {
		err := suite.DB.QueryRow(`SELECT COUNT(*) FROM training_session;`).Scan(&count)
		require.NoError(t, err)
		if count == want {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("expected %d sessions in postgres, got %d", want, count)
}

func TestSessionsAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	suite := newSuite(ctx)
	defer suite.cleanup()

	waitServerUp(t)

	t.Run("version", func(t *testing.T) {
		resp := doRequest(t, ctx, "GET", "/version", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("no token means no entry", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, "GET", serverEndpoint+"/sessions", nil)
		require.NoError(t, err)
		resp, err := httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	var createdID string
	t.Run("create session", func(t *testing.T) {
		body, err := json.Marshal(training.CreateSessionRequest{
			Session: training.Session{
				Sport:       training.SportCycling,
				Title:       "Endurance Z2",
				DurationMin: 90,
			},
			Date: "2025-03-14",
		})
		require.NoError(t, err)

		resp := doRequest(t, ctx, "POST", "/sessions", body)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created []training.Session
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		require.Len(t, created, 1)
		require.NotEmpty(t, created[0].ID)
		createdID = created[0].ID

		waitSessionCount(t, suite, 1)
	})

	t.Run("list sessions", func(t *testing.T) {
		resp := doRequest(t, ctx, "GET", "/sessions", nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var listResp training.ListSessionsResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&listResp))
		require.Len(t, listResp.Sessions, 1)
		assert.Equal(t, "Endurance Z2", listResp.Sessions[0].Title)
		assert.Empty(t, listResp.SyncError)
	})

	t.Run("import plan", func(t *testing.T) {
		planText := `[
			{"date": "2025-03-15", "sport": "running", "title": "Footing 45min", "durationMin": 45},
			{"date": "2025-03-16", "sport": "cycling", "title": "Sortie longue", "durationMin": 180}
		]`
		body, err := json.Marshal(training.ImportPlanRequest{Text: planText})
		require.NoError(t, err)

		resp := doRequest(t, ctx, "POST", "/sessions/import-plan", body)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result training.ImportResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, 2, result.Inserted)

		waitSessionCount(t, suite, 3)
	})

	t.Run("week stats", func(t *testing.T) {
		resp := doRequest(t, ctx, "GET", "/stats/week?date=2025-03-14", nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var stats training.WeekStats
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
		require.NotEmpty(t, stats.PerSport)

		var plannedHours float64
		for _, sportStats := range stats.PerSport {
			plannedHours += sportStats.PlannedHours
		}
		assert.InDelta(t, 5.25, plannedHours, 0.001) // 90 + 45 + 180 min
	})

	t.Run("update session date", func(t *testing.T) {
		resp := doRequest(t, ctx, "PUT",
			fmt.Sprintf("/sessions/%s/date", createdID),
			[]byte(`{"date": "2025-03-17"}`),
		)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("delete planned session", func(t *testing.T) {
		resp := doRequest(t, ctx, "DELETE", "/sessions/"+createdID, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		waitSessionCount(t, suite, 2)
	})

	t.Run("reset", func(t *testing.T) {
		resp := doRequest(t, ctx, "POST", "/sessions/reset", nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		waitSessionCount(t, suite, 0)
	})
}
