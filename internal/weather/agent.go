package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Agent is the contract a host drives. Implementations hold a snapshot of
// their options and receive every collaborator through Deps.
type Agent interface {
	Descriptor() Descriptor
	ValidateOptions(opts Options) ValidationErrors
	Check(ctx context.Context) error
	Receive(ctx context.Context, events []Event) error
	IsWorking(ctx context.Context) (bool, error)
}

// Deps are the host capabilities an agent instance works with.
type Deps struct {
	Fetcher  Fetcher
	Logger   Logger
	Events   EventSink
	Activity ActivityTracker
	Now      func() time.Time
}

// errorLogGrace is how far before the last event an error log still makes
// the agent unhealthy.
const errorLogGrace = 2 * time.Minute

var errMissingDeps = errors.New("agent dependencies not configured")

// PollerAgent fetches the current weather for a coordinate and forwards the
// response as an event.
type PollerAgent struct {
	options Options
	deps    Deps
}

var _ Agent = (*PollerAgent)(nil)

// NewPollerAgent creates an agent over a copy of opts. Options are expected
// to have passed ValidateOptions already; the host rejects them at save time.
func NewPollerAgent(opts Options, deps Deps) (*PollerAgent, error) {
	if deps.Fetcher == nil || deps.Logger == nil || deps.Events == nil {
		return nil, errMissingDeps
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &PollerAgent{options: opts.Clone(), deps: deps}, nil
}

func (a *PollerAgent) Descriptor() Descriptor {
	return PollerDescriptor()
}

func (a *PollerAgent) ValidateOptions(opts Options) ValidationErrors {
	return ValidateOptions(opts)
}

// Check runs the configured action once. It is what a scheduler calls.
func (a *PollerAgent) Check(ctx context.Context) error {
	cfg, err := a.resolve(nil)
	if err != nil {
		return err
	}
	return a.trigger(ctx, cfg)
}

// Receive runs the configured action once per inbound event, in order, with
// options interpolated from that event's payload.
func (a *PollerAgent) Receive(ctx context.Context, events []Event) error {
	for _, ev := range events {
		a.deps.Logger.Info(ctx, fmt.Sprintf("received event %s: %s", ev.ID, string(ev.Payload)))

		cfg, err := a.resolve(ev.Bindings())
		if err != nil {
			return fmt.Errorf("event %s: %w", ev.ID, err)
		}
		if err := a.trigger(ctx, cfg); err != nil {
			return fmt.Errorf("event %s: %w", ev.ID, err)
		}
	}
	return nil
}

// IsWorking reports whether an event was created within the expected period
// and no error has been logged since (allowing a short grace window).
func (a *PollerAgent) IsWorking(ctx context.Context) (bool, error) {
	if a.deps.Activity == nil {
		return false, errMissingDeps
	}

	days := decodeConfig(a.options).ExpectedReceivePeriodInDays
	if days <= 0 {
		return false, nil
	}

	lastEvent, err := a.deps.Activity.LastEventAt(ctx)
	if err != nil {
		return false, fmt.Errorf("last event: %w", err)
	}
	if lastEvent.IsZero() || !lastEvent.After(a.deps.Now().AddDate(0, 0, -days)) {
		return false, nil
	}

	lastError, err := a.deps.Activity.LastErrorLogAt(ctx)
	if err != nil {
		return false, fmt.Errorf("last error log: %w", err)
	}
	if !lastError.IsZero() && lastError.After(lastEvent.Add(-errorLogGrace)) {
		return false, nil
	}
	return true, nil
}

func (a *PollerAgent) resolve(bindings map[string]any) (Config, error) {
	opts, err := Interpolate(a.options, bindings)
	if err != nil {
		return Config{}, err
	}
	return decodeConfig(opts), nil
}

func (a *PollerAgent) trigger(ctx context.Context, cfg Config) error {
	switch cfg.Type {
	case ActionCurrentWeather:
		return a.currentWeather(ctx, cfg)
	default:
		a.deps.Logger.Error(ctx, fmt.Sprintf("Error: type has an invalid value (%s)", cfg.Type))
		return nil
	}
}

func (a *PollerAgent) currentWeather(ctx context.Context, cfg Config) error {
	resp, err := a.deps.Fetcher.FetchCurrentWeather(ctx, CurrentWeatherQuery{
		Lat:   cfg.Lat,
		Lon:   cfg.Lon,
		Token: cfg.Token,
	})
	if err != nil {
		return fmt.Errorf("fetch current weather: %w", err)
	}
	return a.handleResponse(ctx, cfg, resp)
}

func (a *PollerAgent) handleResponse(ctx context.Context, cfg Config, resp Response) error {
	a.deps.Logger.Info(ctx, fmt.Sprintf("request status : %d", resp.StatusCode))

	if cfg.Debug {
		a.deps.Logger.Info(ctx, "body: "+string(resp.Body))
	}

	if !cfg.EmitEvents {
		return nil
	}
	if _, err := a.deps.Events.CreateEvent(ctx, eventPayload(resp.Body)); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// eventPayload passes a JSON body through untouched. Anything else is kept
// as a JSON string so stored payloads are always valid JSON.
func eventPayload(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(append([]byte(nil), body...))
	}
	b, _ := json.Marshal(string(body))
	return b
}
