package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/i474232898/openweathermap-agent/internal/weather"
)

// DefaultOpenWeatherURL is the current-weather endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

var errNoHTTPClient = errors.New("http client not configured")

// OpenWeatherProvider implements weather.Fetcher for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	baseURL string
	client  *http.Client
}

var _ weather.Fetcher = (*OpenWeatherProvider)(nil)

func NewOpenWeatherProvider(client *http.Client) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		baseURL: DefaultOpenWeatherURL,
		client:  client,
	}
}

// WithBaseURL points the provider at another endpoint, e.g. a test server.
func (p *OpenWeatherProvider) WithBaseURL(u string) *OpenWeatherProvider {
	p.baseURL = u
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// CurrentWeatherURL builds the request URL. Values are substituted verbatim;
// nothing is escaped.
func (p *OpenWeatherProvider) CurrentWeatherURL(q weather.CurrentWeatherQuery) string {
	return fmt.Sprintf("%s?lat=%s&lon=%s&appid=%s", p.baseURL, q.Lat, q.Lon, q.Token)
}

// FetchCurrentWeather issues one GET and returns the raw status and body.
// Non-2xx statuses are not errors; transport failures are.
func (p *OpenWeatherProvider) FetchCurrentWeather(ctx context.Context, q weather.CurrentWeatherQuery) (weather.Response, error) {
	if p.client == nil {
		return weather.Response{}, errNoHTTPClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.CurrentWeatherURL(q), nil)
	if err != nil {
		return weather.Response{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return weather.Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return weather.Response{}, fmt.Errorf("read %s response: %w", p.name, err)
	}

	return weather.Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}
