package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the host side of one agent instance: it owns the persisted
// options and backs the agent's logger, event sink and activity tracker
// with a Store.
type Service struct {
	agentID string
	store   Store
	fetcher Fetcher
	logger  *zap.Logger
	now     func() time.Time

	mu         sync.RWMutex
	options    Options
	configured bool
}

// ErrNotConfigured is returned by operations that run the agent while its
// options have not passed validation yet.
var ErrNotConfigured = errors.New("agent is not configured: save valid options first")

// NewService creates a new Service. The agent holds DefaultOptions and is
// not runnable until LoadOptions or UpdateOptions accepts valid options.
func NewService(agentID string, store Store, fetcher Fetcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		agentID: agentID,
		store:   store,
		fetcher: fetcher,
		logger:  logger.With(zap.String("agent_id", agentID)),
		now:     time.Now,
		options: DefaultOptions(),
	}
}

// WithClock replaces the time source. Meant for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AgentID returns the id events and logs are recorded under.
func (s *Service) AgentID() string {
	return s.agentID
}

// Descriptor returns the static agent description.
func (s *Service) Descriptor() Descriptor {
	return PollerDescriptor()
}

// Options returns a copy of the current options.
func (s *Service) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options.Clone()
}

// LoadOptions restores persisted options, or saves fallback when nothing is
// persisted yet. Persisted options must validate. An invalid fallback is held
// unsaved and the agent stays unconfigured until UpdateOptions succeeds.
func (s *Service) LoadOptions(ctx context.Context, fallback Options) error {
	opts, err := s.store.LoadOptions(ctx, s.agentID)
	switch {
	case err == nil:
		if errs := ValidateOptions(opts); errs != nil {
			return fmt.Errorf("invalid persisted options: %w", errs)
		}
		s.setOptions(opts, true)
		return nil
	case errors.Is(err, ErrNotFound):
	default:
		return fmt.Errorf("load options: %w", err)
	}

	if errs := ValidateOptions(fallback); errs != nil {
		s.logger.Warn("agent options are not valid; waiting for options to be saved",
			zap.String("errors", errs.Error()))
		s.setOptions(fallback, false)
		return nil
	}
	if err := s.store.SaveOptions(ctx, s.agentID, fallback); err != nil {
		return fmt.Errorf("save options: %w", err)
	}
	s.setOptions(fallback, true)
	return nil
}

// Configured reports whether the current options passed validation.
func (s *Service) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configured
}

func (s *Service) setOptions(opts Options, configured bool) {
	s.mu.Lock()
	s.options = opts.Clone()
	s.configured = configured
	s.mu.Unlock()
}

// UpdateOptions validates and persists opts. Invalid options are rejected
// with every violated rule and the previous options stay in effect.
func (s *Service) UpdateOptions(ctx context.Context, opts Options) (ValidationErrors, error) {
	if errs := ValidateOptions(opts); errs != nil {
		return errs, nil
	}
	if err := s.store.SaveOptions(ctx, s.agentID, opts); err != nil {
		return nil, fmt.Errorf("save options: %w", err)
	}

	s.setOptions(opts, true)
	s.logger.Info("agent options updated")
	return nil, nil
}

// Check runs the agent's scheduled action once.
func (s *Service) Check(ctx context.Context) error {
	agent, err := s.agent()
	if err != nil {
		return err
	}

	start := s.now()
	if err := agent.Check(ctx); err != nil {
		s.recordFailure(ctx, "check", err)
		return err
	}
	s.logger.Debug("check completed", zap.Duration("duration", s.now().Sub(start)))
	return nil
}

// Receive hands inbound events to the agent, one at a time.
func (s *Service) Receive(ctx context.Context, events []Event) error {
	agent, err := s.agent()
	if err != nil {
		return err
	}
	if err := agent.Receive(ctx, events); err != nil {
		s.recordFailure(ctx, "receive", err)
		return err
	}
	return nil
}

// Working reports agent health from host bookkeeping. An unconfigured agent
// is not working.
func (s *Service) Working(ctx context.Context) (bool, error) {
	agent, err := s.agent()
	if errors.Is(err, ErrNotConfigured) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return agent.IsWorking(ctx)
}

// DryRunResult is what a dry run would have logged and emitted.
type DryRunResult struct {
	Events []Event    `json:"events"`
	Logs   []LogEntry `json:"logs"`
	Error  string     `json:"error,omitempty"`
	Took   Duration   `json:"took"`
}

// Duration renders as a Go duration string in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// DryRun performs a real upstream call but keeps logs and events in memory.
// With a nil event it runs Check, otherwise it receives that one event.
func (s *Service) DryRun(ctx context.Context, event *Event) (DryRunResult, error) {
	if !s.Configured() {
		return DryRunResult{}, ErrNotConfigured
	}

	rec := &recorder{agentID: s.agentID, now: s.now, events: []Event{}, logs: []LogEntry{}}
	agent, err := NewPollerAgent(s.Options(), Deps{
		Fetcher:  s.fetcher,
		Logger:   rec,
		Events:   rec,
		Activity: storeActivity{s},
		Now:      s.now,
	})
	if err != nil {
		return DryRunResult{}, err
	}

	start := s.now()
	var runErr error
	if event != nil {
		runErr = agent.Receive(ctx, []Event{*event})
	} else {
		runErr = agent.Check(ctx)
	}

	res := DryRunResult{
		Events: rec.events,
		Logs:   rec.logs,
		Took:   Duration(s.now().Sub(start)),
	}
	if runErr != nil {
		res.Error = runErr.Error()
	}
	return res, nil
}

// Events returns the most recent events, newest first.
func (s *Service) Events(ctx context.Context, limit int) ([]Event, error) {
	return s.store.ListEvents(ctx, s.agentID, limit)
}

// Logs returns the most recent agent log lines, newest first.
func (s *Service) Logs(ctx context.Context, limit int) ([]LogEntry, error) {
	return s.store.ListLogs(ctx, s.agentID, limit)
}

func (s *Service) agent() (*PollerAgent, error) {
	s.mu.RLock()
	opts, configured := s.options.Clone(), s.configured
	s.mu.RUnlock()
	if !configured {
		return nil, ErrNotConfigured
	}

	return NewPollerAgent(opts, Deps{
		Fetcher:  s.fetcher,
		Logger:   storeLogger{s},
		Events:   storeSink{s},
		Activity: storeActivity{s},
		Now:      s.now,
	})
}

func (s *Service) recordFailure(ctx context.Context, op string, err error) {
	s.writeLog(ctx, LogLevelError, fmt.Sprintf("%s failed: %v", op, err))
}

func (s *Service) writeLog(ctx context.Context, level LogLevel, msg string) {
	entry := LogEntry{
		AgentID:   s.agentID,
		Level:     level,
		Message:   msg,
		CreatedAt: s.now().UTC(),
	}

	if level >= LogLevelError {
		s.logger.Error("agent log", zap.String("message", msg))
	} else {
		s.logger.Info("agent log", zap.String("message", msg))
	}

	if err := s.store.SaveLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist agent log", zap.Error(err))
	}
}

type storeLogger struct{ s *Service }

func (l storeLogger) Info(ctx context.Context, msg string)  { l.s.writeLog(ctx, LogLevelInfo, msg) }
func (l storeLogger) Error(ctx context.Context, msg string) { l.s.writeLog(ctx, LogLevelError, msg) }

type storeSink struct{ s *Service }

func (k storeSink) CreateEvent(ctx context.Context, payload json.RawMessage) (Event, error) {
	ev := Event{
		ID:        uuid.New(),
		AgentID:   k.s.agentID,
		Payload:   payload,
		CreatedAt: k.s.now().UTC(),
	}
	if err := k.s.store.SaveEvent(ctx, ev); err != nil {
		return Event{}, err
	}
	k.s.logger.Info("event created", zap.String("event_id", ev.ID.String()))
	return ev, nil
}

type storeActivity struct{ s *Service }

func (a storeActivity) LastEventAt(ctx context.Context) (time.Time, error) {
	return a.s.store.LastEventAt(ctx, a.s.agentID)
}

func (a storeActivity) LastErrorLogAt(ctx context.Context) (time.Time, error) {
	return a.s.store.LastErrorLogAt(ctx, a.s.agentID)
}

// recorder captures dry-run output.
type recorder struct {
	agentID string
	now     func() time.Time
	events  []Event
	logs    []LogEntry
}

func (r *recorder) Info(_ context.Context, msg string)  { r.log(LogLevelInfo, msg) }
func (r *recorder) Error(_ context.Context, msg string) { r.log(LogLevelError, msg) }

func (r *recorder) log(level LogLevel, msg string) {
	r.logs = append(r.logs, LogEntry{
		ID:        int64(len(r.logs) + 1),
		AgentID:   r.agentID,
		Level:     level,
		Message:   msg,
		CreatedAt: r.now().UTC(),
	})
}

func (r *recorder) CreateEvent(_ context.Context, payload json.RawMessage) (Event, error) {
	ev := Event{ID: uuid.New(), AgentID: r.agentID, Payload: payload, CreatedAt: r.now().UTC()}
	r.events = append(r.events, ev)
	return ev, nil
}
