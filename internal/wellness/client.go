package wellness

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	cacheSizeBytes      = 512 * 1024
	cacheExpireSeconds  = 15 * 60
	wellnessAPIUsername = "API_KEY"
)

// Client reads wellness data from the wellness platform. Strictly
// read-only; the dashboard never writes anything back. Responses are
// cached in-process since the upstream data changes at most a few
// times a day.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *freecache.Cache
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   20 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache: freecache.NewCache(cacheSizeBytes),
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// FetchRange returns the last `days` days of wellness data, most
// recent last.
func (c *Client) FetchRange(ctx context.Context, days int) (_ []Day, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "wellness.client.fetchRange")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("days", days))

	if !c.Enabled() {
		return nil, fmt.Errorf("wellness api key not configured")
	}

	cacheKey := []byte("wellness::" + strconv.Itoa(days))
	if cached, err := c.cache.Get(cacheKey); err == nil {
		var cachedDays []Day
		if err := json.Unmarshal(cached, &cachedDays); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cachedDays, nil
		}
	}

	now := time.Now()
	params := url.Values{}
	params.Set("oldest", now.AddDate(0, 0, -days).Format("2006-01-02"))
	params.Set("newest", now.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		c.baseURL+"/athlete/0/wellness?"+params.Encode(),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(wellnessAPIUsername, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var wellnessDays []Day
	if err := json.NewDecoder(resp.Body).Decode(&wellnessDays); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if daysJson, err := json.Marshal(wellnessDays); err == nil {
		if err := c.cache.Set(cacheKey, daysJson, cacheExpireSeconds); err != nil {
			log.Warnf("wellness: cache response: %s", err)
		}
	}

	span.SetAttributes(attribute.Int("days.count", len(wellnessDays)))
	return wellnessDays, nil
}

// PromptSummary returns the latest wellness line for coach prompts.
// Empty when the adapter is not configured or the upstream is down;
// prompts simply skip the wellness block then.
func (c *Client) PromptSummary(ctx context.Context) string {
	if !c.Enabled() {
		return ""
	}
	day, err := c.Latest(ctx, 7)
	if err != nil {
		log.Debugf("wellness: prompt summary unavailable: %s", err)
		return ""
	}
	return day.Summary()
}

// Latest returns the most recent wellness day of the given range.
func (c *Client) Latest(ctx context.Context, days int) (Day, error) {
	wellnessDays, err := c.FetchRange(ctx, days)
	if err != nil {
		return Day{}, err
	}
	if len(wellnessDays) == 0 {
		return Day{}, fmt.Errorf("no wellness data in the last %d days", days)
	}
	return wellnessDays[len(wellnessDays)-1], nil
}
