package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/openweathermap-agent/internal/weather"
)

var (
	// ErrNotFound is returned when nothing is stored for an agent.
	ErrNotFound = weather.ErrNotFound

	errInvalidLimit = errors.New("limit must be greater than zero")
)

var _ weather.Store = (*MemoryStore)(nil)

// agentHistory holds the time-ordered events and logs of one agent. The
// last-activity times survive retention.
type agentHistory struct {
	events  []weather.Event
	logs    []weather.LogEntry
	options weather.Options

	lastEventAt    time.Time
	lastErrorLogAt time.Time
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: agent id
	data map[string]*agentHistory

	nextLogID int64

	// retention configuration
	maxHistory int           // max number of events and of logs per agent
	maxAge     time.Duration // optional max age for events and logs
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*agentHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

func (s *MemoryStore) history(agentID string) *agentHistory {
	h, ok := s.data[agentID]
	if !ok {
		h = &agentHistory{}
		s.data[agentID] = h
	}
	return h
}

// SaveEvent appends an event and enforces retention.
func (s *MemoryStore) SaveEvent(_ context.Context, e weather.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history(e.AgentID)
	h.events = append(h.events, e)
	if e.CreatedAt.After(h.lastEventAt) {
		h.lastEventAt = e.CreatedAt
	}
	h.events = retain(h.events, s.maxHistory, s.maxAge, func(e weather.Event) time.Time { return e.CreatedAt })
	return nil
}

// ListEvents returns up to limit events, newest first.
func (s *MemoryStore) ListEvents(_ context.Context, agentID string, limit int) ([]weather.Event, error) {
	if limit <= 0 {
		return nil, errInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[agentID]
	if !ok {
		return []weather.Event{}, nil
	}
	return newestFirst(h.events, limit), nil
}

// LastEventAt returns the creation time of the newest event, or zero.
func (s *MemoryStore) LastEventAt(_ context.Context, agentID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[agentID]
	if !ok {
		return time.Time{}, nil
	}
	return h.lastEventAt, nil
}

// SaveLog appends a log line, assigning its id.
func (s *MemoryStore) SaveLog(_ context.Context, entry weather.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	entry.ID = s.nextLogID

	h := s.history(entry.AgentID)
	h.logs = append(h.logs, entry)
	if entry.Level >= weather.LogLevelError && entry.CreatedAt.After(h.lastErrorLogAt) {
		h.lastErrorLogAt = entry.CreatedAt
	}
	h.logs = retain(h.logs, s.maxHistory, s.maxAge, func(l weather.LogEntry) time.Time { return l.CreatedAt })
	return nil
}

// ListLogs returns up to limit log lines, newest first.
func (s *MemoryStore) ListLogs(_ context.Context, agentID string, limit int) ([]weather.LogEntry, error) {
	if limit <= 0 {
		return nil, errInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[agentID]
	if !ok {
		return []weather.LogEntry{}, nil
	}
	return newestFirst(h.logs, limit), nil
}

// LastErrorLogAt returns the time of the newest error-level log, or zero.
func (s *MemoryStore) LastErrorLogAt(_ context.Context, agentID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[agentID]
	if !ok {
		return time.Time{}, nil
	}
	return h.lastErrorLogAt, nil
}

// SaveOptions replaces the persisted options of an agent.
func (s *MemoryStore) SaveOptions(_ context.Context, agentID string, opts weather.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history(agentID).options = opts.Clone()
	return nil
}

// LoadOptions returns the persisted options or ErrNotFound.
func (s *MemoryStore) LoadOptions(_ context.Context, agentID string) (weather.Options, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[agentID]
	if !ok || h.options == nil {
		return nil, ErrNotFound
	}
	return h.options.Clone(), nil
}

// retain enforces retention by count and then by age. Items are assumed to
// be in insertion (time) order.
func retain[T any](items []T, maxHistory int, maxAge time.Duration, ts func(T) time.Time) []T {
	if maxHistory > 0 && len(items) > maxHistory {
		over := len(items) - maxHistory
		items = items[over:]
	}

	if maxAge > 0 {
		cutoff := time.Now().Add(-maxAge)
		i := 0
		for ; i < len(items); i++ {
			if !ts(items[i]).Before(cutoff) {
				break
			}
		}
		items = items[i:]
	}
	return items
}

func newestFirst[T any](items []T, limit int) []T {
	n := len(items)
	if limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := len(items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, items[i])
	}
	return out
}
