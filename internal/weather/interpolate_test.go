package weather

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	opts := Options{
		OptionLat:        "{{ coord.lat }}",
		OptionLon:        "{{coord.lon}}",
		OptionToken:      "plain",
		OptionEmitEvents: true,
	}
	bindings := map[string]any{
		"coord": map[string]any{"lat": "40.7128", "lon": "-74.0060"},
	}

	got, err := Interpolate(opts, bindings)
	require.NoError(t, err)
	assert.Equal(t, "40.7128", got[OptionLat])
	assert.Equal(t, "-74.0060", got[OptionLon])
	assert.Equal(t, "plain", got[OptionToken])
	assert.Equal(t, true, got[OptionEmitEvents])

	// The input is left alone.
	assert.Equal(t, "{{ coord.lat }}", opts[OptionLat])
}

func TestInterpolateMissingValueRendersEmpty(t *testing.T) {
	got, err := Interpolate(Options{OptionLat: "{{ nope }}"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", got[OptionLat])
}

func TestInterpolateFilters(t *testing.T) {
	got, err := Interpolate(Options{OptionType: "{{ kind | downcase }}"}, map[string]any{"kind": "CURRENT_WEATHER"})
	require.NoError(t, err)
	assert.Equal(t, "current_weather", got[OptionType])
}

func TestInterpolateError(t *testing.T) {
	_, err := Interpolate(Options{OptionLat: "{% if x %}1"}, nil)
	assert.Error(t, err)
}

func TestEventBindings(t *testing.T) {
	ev := Event{Payload: json.RawMessage(`{"lat":"1.5","nested":{"k":"v"}}`)}
	b := ev.Bindings()
	assert.Equal(t, "1.5", b["lat"])
	assert.Equal(t, map[string]any{"k": "v"}, b["nested"])

	assert.Empty(t, Event{Payload: json.RawMessage(`[1,2]`)}.Bindings())
	assert.Empty(t, Event{Payload: json.RawMessage(`"text"`)}.Bindings())
	assert.Empty(t, Event{}.Bindings())
}

func TestEventBindingsKeepIntegersExact(t *testing.T) {
	ev := Event{Payload: json.RawMessage(
		`{"dt":1656004271,"id":6545270,"n":10,"coord":{"lat":48.8667},"list":[{"dt":1656007871}]}`)}
	b := ev.Bindings()
	assert.Equal(t, int64(1656004271), b["dt"])
	assert.Equal(t, 48.8667, b["coord"].(map[string]any)["lat"])

	got, err := Interpolate(Options{
		"dt":   "{{ dt }}",
		"id":   "{{ id }}",
		"n":    "{{ n }}",
		"lat":  "{{ coord.lat }}",
		"next": "{{ list[0].dt }}",
	}, b)
	require.NoError(t, err)
	assert.Equal(t, "1656004271", got["dt"])
	assert.Equal(t, "6545270", got["id"])
	assert.Equal(t, "10", got["n"])
	assert.Equal(t, "48.8667", got["lat"])
	assert.Equal(t, "1656007871", got["next"])
}

func TestOptionsString(t *testing.T) {
	opts := Options{
		"s":   "x",
		"b":   true,
		"f":   float64(2),
		"f2":  1.25,
		"i":   3,
		"nil": nil,
	}
	assert.Equal(t, "x", opts.String("s"))
	assert.Equal(t, "true", opts.String("b"))
	assert.Equal(t, "2", opts.String("f"))
	assert.Equal(t, "1.25", opts.String("f2"))
	assert.Equal(t, "3", opts.String("i"))
	assert.Equal(t, "", opts.String("nil"))
	assert.Equal(t, "", opts.String("missing"))
	assert.True(t, opts.Has("nil"))
	assert.False(t, opts.Has("missing"))
}
