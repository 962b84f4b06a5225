package weather

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// CurrentWeatherQuery carries the values substituted into the request URL.
type CurrentWeatherQuery struct {
	Lat   string
	Lon   string
	Token string
}

// Response is the raw upstream answer: status code and body, untouched.
type Response struct {
	StatusCode int
	Body       []byte
}

// Fetcher abstracts the OpenWeatherMap HTTP call.
type Fetcher interface {
	FetchCurrentWeather(ctx context.Context, q CurrentWeatherQuery) (Response, error)
}

// Logger receives agent log lines. Error lines count against agent health.
type Logger interface {
	Info(ctx context.Context, msg string)
	Error(ctx context.Context, msg string)
}

// EventSink creates events on behalf of the agent. The host assigns the id,
// owner and timestamp.
type EventSink interface {
	CreateEvent(ctx context.Context, payload json.RawMessage) (Event, error)
}

// ActivityTracker exposes host bookkeeping used for health checks. Zero
// times mean "never".
type ActivityTracker interface {
	LastEventAt(ctx context.Context) (time.Time, error)
	LastErrorLogAt(ctx context.Context) (time.Time, error)
}

// Store is the contract the host stores (in-memory and SQLite) must satisfy.
type Store interface {
	SaveEvent(ctx context.Context, e Event) error
	ListEvents(ctx context.Context, agentID string, limit int) ([]Event, error)
	LastEventAt(ctx context.Context, agentID string) (time.Time, error)

	SaveLog(ctx context.Context, entry LogEntry) error
	ListLogs(ctx context.Context, agentID string, limit int) ([]LogEntry, error)
	LastErrorLogAt(ctx context.Context, agentID string) (time.Time, error)

	SaveOptions(ctx context.Context, agentID string, opts Options) error
	LoadOptions(ctx context.Context, agentID string) (Options, error)
}

// ErrNotFound is returned by stores when nothing is recorded for a key.
var ErrNotFound = errors.New("not found")
