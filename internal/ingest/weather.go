package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"paceload/internal/store"
)

// DefaultWeatherURL is the Open-Meteo historical weather endpoint.
const DefaultWeatherURL = "https://archive-api.open-meteo.com/v1/archive"

// WeatherStore persists weather observations.
type WeatherStore interface {
	UpdateWeather(ctx context.Context, id int64, tempC *float64, code *int) error
}

// WeatherEnricher looks up the hourly weather at an activity's start point.
type WeatherEnricher struct {
	baseURL    string
	httpClient *http.Client
	db         WeatherStore
	retry      RetryPolicy
	logger     *slog.Logger
}

// NewWeatherEnricher creates an enricher. An empty baseURL uses Open-Meteo.
func NewWeatherEnricher(baseURL string, db WeatherStore, retry RetryPolicy, logger *slog.Logger) *WeatherEnricher {
	if baseURL == "" {
		baseURL = DefaultWeatherURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherEnricher{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		db:         db,
		retry:      retry,
		logger:     logger,
	}
}

type hourlyWeather struct {
	Hourly struct {
		Time        []string   `json:"time"`
		Temperature []*float64 `json:"temperature_2m"`
		WeatherCode []*int     `json:"weather_code"`
	} `json:"hourly"`
}

// Enrich records the temperature and WMO weather code for the hour the
// activity started. Activities without a position are skipped. Failures are
// logged and never returned; only context errors propagate.
func (w *WeatherEnricher) Enrich(ctx context.Context, a *store.Activity, points []store.StreamPoint) error {
	lat, lng, ok := startPosition(points)
	if !ok {
		weatherLookups.WithLabelValues("no_position").Inc()
		return nil
	}

	start := a.StartDate.UTC()
	var obs *hourlyWeather
	err := Retry(ctx, w.retry, func() error {
		var err error
		obs, err = w.fetch(ctx, lat, lng, start)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		weatherLookups.WithLabelValues("error").Inc()
		w.logger.Warn("weather lookup failed", "activity_id", a.ID, "error", err)
		return nil
	}

	tempC, code := obs.at(start)
	if tempC == nil && code == nil {
		weatherLookups.WithLabelValues("missing").Inc()
		return nil
	}
	if err := w.db.UpdateWeather(ctx, a.ID, tempC, code); err != nil {
		weatherLookups.WithLabelValues("error").Inc()
		w.logger.Warn("saving weather failed", "activity_id", a.ID, "error", err)
		return nil
	}
	weatherLookups.WithLabelValues("ok").Inc()
	return nil
}

func (w *WeatherEnricher) fetch(ctx context.Context, lat, lng float64, start time.Time) (*hourlyWeather, error) {
	day := start.Format(store.DateLayout)
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lng, 'f', 4, 64))
	params.Set("start_date", day)
	params.Set("end_date", day)
	params.Set("hourly", "temperature_2m,weather_code")
	params.Set("timezone", "GMT")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("weather API error %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var obs hourlyWeather
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding weather: %w", err))
	}
	return &obs, nil
}

// at returns the observation for the hour containing t.
func (h *hourlyWeather) at(t time.Time) (*float64, *int) {
	hour := t.Truncate(time.Hour).Format("2006-01-02T15:04")
	for i, ts := range h.Hourly.Time {
		if ts != hour {
			continue
		}
		var tempC *float64
		var code *int
		if i < len(h.Hourly.Temperature) {
			tempC = h.Hourly.Temperature[i]
		}
		if i < len(h.Hourly.WeatherCode) {
			code = h.Hourly.WeatherCode[i]
		}
		return tempC, code
	}
	return nil, nil
}

func startPosition(points []store.StreamPoint) (lat, lng float64, ok bool) {
	for _, p := range points {
		if p.Lat != nil && p.Lng != nil {
			return *p.Lat, *p.Lng, true
		}
	}
	return 0, 0, false
}
