package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ActionType selects what the agent does when it is triggered.
type ActionType string

const (
	ActionCurrentWeather ActionType = "current_weather"
)

// Option keys understood by the agent.
const (
	OptionType                        = "type"
	OptionToken                       = "token"
	OptionLimit                       = "limit"
	OptionLat                         = "lat"
	OptionLon                         = "lon"
	OptionDebug                       = "debug"
	OptionEmitEvents                  = "emit_events"
	OptionExpectedReceivePeriodInDays = "expected_receive_period_in_days"
)

// Options is the raw, user-editable option map as persisted by the host.
// Values are usually strings but JSON booleans and numbers are accepted.
type Options map[string]any

// DefaultOptions returns the options a freshly created agent starts with.
func DefaultOptions() Options {
	return Options{
		OptionType:                        "",
		OptionToken:                       "",
		OptionLimit:                       "",
		OptionLat:                         "",
		OptionLon:                         "",
		OptionDebug:                       "false",
		OptionEmitEvents:                  "true",
		OptionExpectedReceivePeriodInDays: "2",
	}
}

// Has reports whether key is set at all, even to an empty value.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// String returns the value under key rendered as a string.
func (o Options) String(key string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Clone returns a shallow copy.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Config is the typed view of Options used past the validation boundary.
type Config struct {
	Type       ActionType
	Token      string
	Lat        string
	Lon        string
	Limit      string // accepted for compatibility, never read
	Debug      bool
	EmitEvents bool

	ExpectedReceivePeriodInDays int
}

// Event is an immutable JSON payload produced or consumed by an agent.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	AgentID   string          `json:"agent_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"` // always UTC
}

// Bindings returns the payload as an interpolation context. Payloads that
// are not JSON objects yield an empty context. Whole numbers decode as int64
// so templates render them without an exponent.
func (e Event) Bindings() map[string]any {
	if len(e.Payload) == 0 {
		return map[string]any{}
	}

	d := json.NewDecoder(bytes.NewReader(e.Payload))
	d.UseNumber()
	var m map[string]any
	if err := d.Decode(&m); err != nil || m == nil {
		return map[string]any{}
	}
	return normalizeNumbers(m).(map[string]any)
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

// LogLevel follows the host convention for agent logs.
type LogLevel int

const (
	LogLevelInfo  LogLevel = 3
	LogLevelError LogLevel = 4
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelInfo:
		return "info"
	default:
		return "level" + strconv.Itoa(int(l))
	}
}

// LogEntry is one line of an agent's log as kept by the host.
type LogEntry struct {
	ID        int64     `json:"id"`
	AgentID   string    `json:"agent_id"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
