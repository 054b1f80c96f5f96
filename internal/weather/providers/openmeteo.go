package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-recorder/internal/weather"
	"github.com/sony/gobreaker"
)

// ErrMissingField is returned when the response lacks one of the requested
// current-condition values.
var ErrMissingField = errors.New("missing current field")

// currentFields is the request order; the response is mapped back by name.
var currentFields = []string{
	"temperature_2m",
	"precipitation",
	"pressure_msl",
	"wind_speed_10m",
	"wind_direction_10m",
}

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
type OpenMeteoProvider struct {
	name         string
	baseURL      string
	coords       weather.Coordinates
	forecastDays int
	httpCfg      HTTPClientConfig
	circuit      *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, coords weather.Coordinates) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:         "openmeteo",
		baseURL:      "https://api.open-meteo.com/v1/forecast",
		coords:       coords,
		forecastDays: 1,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Current(ctx context.Context) (weather.Conditions, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(p.coords.Latitude, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(p.coords.Longitude, 'f', -1, 64))
		values.Set("current", strings.Join(currentFields, ","))
		values.Set("timezone", p.coords.Timezone)
		values.Set("forecast_days", strconv.Itoa(p.forecastDays))
		// Open-Meteo reports km/h unless asked otherwise.
		values.Set("wind_speed_unit", "ms")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Conditions{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		UTCOffsetSeconds int `json:"utc_offset_seconds"`
		Current          struct {
			Time          string   `json:"time"`
			Temperature   *float64 `json:"temperature_2m"`
			Precipitation *float64 `json:"precipitation"`
			Pressure      *float64 `json:"pressure_msl"`
			WindSpeed     *float64 `json:"wind_speed_10m"`
			WindDirection *float64 `json:"wind_direction_10m"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Conditions{}, fmt.Errorf("decode openmeteo response: %w", err)
	}

	cur := payload.Current
	values := []*float64{cur.Temperature, cur.Precipitation, cur.Pressure, cur.WindSpeed, cur.WindDirection}
	for i, v := range values {
		if v == nil {
			return weather.Conditions{}, fmt.Errorf("%w: %s", ErrMissingField, currentFields[i])
		}
	}

	return weather.Conditions{
		ProviderName:  p.name,
		ObservedAt:    parseObservedAt(cur.Time, payload.UTCOffsetSeconds),
		TemperatureC:  *cur.Temperature,
		PrecipMm:      *cur.Precipitation,
		PressureHpa:   *cur.Pressure,
		WindSpeedMS:   *cur.WindSpeed,
		WindDirection: *cur.WindDirection,
	}, nil
}

// parseObservedAt reads Open-Meteo's local "2006-01-02T15:04" timestamps.
// Zero is returned when the value cannot be parsed; it is informational only.
func parseObservedAt(s string, offsetSeconds int) time.Time {
	loc := time.FixedZone("", offsetSeconds)
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339} {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
