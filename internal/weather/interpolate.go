package weather

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/i474232898/openweathermap-agent/internal/common"
)

var liquidEngine = liquid.NewEngine()

// Interpolate renders every string option as a Liquid template against
// bindings. Non-string values are copied as they are.
func Interpolate(opts Options, bindings map[string]any) (Options, error) {
	if bindings == nil {
		bindings = map[string]any{}
	}

	out := make(Options, len(opts))
	for key, v := range opts {
		s, ok := v.(string)
		if !ok || !common.HasAny(s, "{{", "{%") {
			out[key] = v
			continue
		}

		rendered, err := liquidEngine.ParseAndRenderString(s, bindings)
		if err != nil {
			return nil, fmt.Errorf("interpolate option %q: %w", key, err)
		}
		out[key] = rendered
	}
	return out, nil
}
