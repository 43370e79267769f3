package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/tracing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const activitiesPageSize = 50

type tokenProvider interface {
	GetValidToken(ctx context.Context) (string, error)
}

// Client talks to the activity tracker API. Authentication is fully
// delegated to the token provider, the client never sees a refresh.
type Client struct {
	baseURL    string
	tokens     tokenProvider
	httpClient *http.Client
}

func NewClient(baseURL string, tokens tokenProvider) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// FetchRecent lists the athlete's activities of the last `days` days.
func (c *Client) FetchRecent(ctx context.Context, days int) (_ []Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "strava.client.fetchRecent")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("days", days))

	after := time.Now().AddDate(0, 0, -days).Unix()
	params := url.Values{}
	params.Set("after", strconv.FormatInt(after, 10))
	params.Set("per_page", strconv.Itoa(activitiesPageSize))

	var activities []Activity
	if err := c.getJSON(ctx, "/athlete/activities?"+params.Encode(), &activities); err != nil {
		return nil, fmt.Errorf("fetch activities: %w", err)
	}

	span.SetAttributes(attribute.Int("activities.count", len(activities)))
	return activities, nil
}

// FetchLaps gets the lap breakdown of one activity.
func (c *Client) FetchLaps(ctx context.Context, activityID int64) (_ []Lap, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "strava.client.fetchLaps")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("activity.id", activityID))

	var laps []Lap
	if err := c.getJSON(ctx, fmt.Sprintf("/activities/%d/laps", activityID), &laps); err != nil {
		return nil, fmt.Errorf("fetch laps: %w", err)
	}
	return laps, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	accessToken, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
