package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/openweathermap-agent/internal/weather"
)

func TestCurrentWeatherURL(t *testing.T) {
	p := NewOpenWeatherProvider(http.DefaultClient)

	got := p.CurrentWeatherURL(weather.CurrentWeatherQuery{Lat: "48.8667", Lon: "2.3333", Token: "secret"})
	assert.Equal(t, "https://api.openweathermap.org/data/2.5/weather?lat=48.8667&lon=2.3333&appid=secret", got)
}

func TestCurrentWeatherURLDoesNotEscape(t *testing.T) {
	p := NewOpenWeatherProvider(http.DefaultClient).WithBaseURL("http://example.test/w")

	got := p.CurrentWeatherURL(weather.CurrentWeatherQuery{Lat: "1", Lon: "2&units=metric", Token: "k"})
	assert.Equal(t, "http://example.test/w?lat=1&lon=2&units=metric&appid=k", got)
}

func TestFetchCurrentWeather(t *testing.T) {
	var gotQuery string
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cod":200,"main":{"temp":300.35}}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client()).WithBaseURL(srv.URL)
	resp, err := p.FetchCurrentWeather(context.Background(), weather.CurrentWeatherQuery{Lat: "37.7771", Lon: "-122.4196", Token: "abc"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "lat=37.7771&lon=-122.4196&appid=abc", gotQuery)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"cod":200,"main":{"temp":300.35}}`, string(resp.Body))
}

func TestFetchCurrentWeatherNon2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client()).WithBaseURL(srv.URL)
	resp, err := p.FetchCurrentWeather(context.Background(), weather.CurrentWeatherQuery{Lat: "1", Lon: "2", Token: "bad"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "Invalid API key")
}

func TestFetchCurrentWeatherTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewOpenWeatherProvider(&http.Client{Timeout: time.Second}).WithBaseURL(url)
	_, err := p.FetchCurrentWeather(context.Background(), weather.CurrentWeatherQuery{Lat: "1", Lon: "2", Token: "k"})
	assert.Error(t, err)
}

func TestFetchCurrentWeatherWithoutClient(t *testing.T) {
	p := NewOpenWeatherProvider(nil)
	_, err := p.FetchCurrentWeather(context.Background(), weather.CurrentWeatherQuery{})
	assert.ErrorIs(t, err, errNoHTTPClient)
}
