package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Service appends to and reads audit logs. Appends are serialized so a
// shared global log has a single writer within the process.
type Service struct {
	repo   Repository
	scope  Scope
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewService creates a new audit service.
func NewService(repo Repository, scope Scope, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		scope:  scope,
		logger: logger,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
}

// WithClock replaces the wall clock; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ParseScope validates a configured scope value.
func ParseScope(value string) (Scope, error) {
	switch Scope(value) {
	case ScopePerUser, ScopeGlobal:
		return Scope(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, value)
	}
}

// Scope returns the configured scope.
func (s *Service) Scope() Scope {
	return s.scope
}

// KeyFor returns the log key events of username are written to.
func (s *Service) KeyFor(username string) string {
	if s.scope == ScopeGlobal {
		return GlobalKey
	}
	if username == "" {
		return UnattributedKey
	}
	return username
}

// Append stamps the event and writes it synchronously. Timestamps are
// strictly increasing within a log.
func (s *Service) Append(ctx context.Context, key string, event *Event) error {
	if event == nil || event.Action == "" || key == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.last[key]
	if !ok {
		var err error
		last, err = s.lastTimestamp(ctx, key)
		if err != nil {
			return err
		}
	}

	ts := s.now().Truncate(time.Microsecond)
	if !ts.After(last) {
		ts = last.Add(time.Microsecond)
	}
	event.Timestamp = ts
	event.LogKey = key

	if err := s.repo.Append(ctx, key, event); err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	s.last[key] = ts

	if s.logger != nil {
		s.logger.DebugContext(ctx, "audit event", "log", key, "action", event.Action, "username", event.Username)
	}
	return nil
}

// ReadAll returns every event of a log in append order.
func (s *Service) ReadAll(ctx context.Context, key string) ([]Event, error) {
	events, err := s.repo.List(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	return events, nil
}

// Keys lists the logs that exist.
func (s *Service) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.repo.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}
	return keys, nil
}

// Load reloads a log from storage and returns its length. A log that does
// not exist yet loads as empty.
func (s *Service) Load(ctx context.Context, key string) (int, error) {
	events, err := s.repo.List(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("loading audit log: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var last time.Time
	if n := len(events); n > 0 {
		last = events[n-1].Timestamp
	}
	if prev, ok := s.last[key]; !ok || last.After(prev) {
		s.last[key] = last
	}
	return len(events), nil
}

// Flush forces buffered writes of a log to storage.
func (s *Service) Flush(ctx context.Context, key string) error {
	flusher, ok := s.repo.(Flusher)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := flusher.Flush(ctx, key); err != nil {
		return fmt.Errorf("flushing audit log: %w", err)
	}
	return nil
}

func (s *Service) lastTimestamp(ctx context.Context, key string) (time.Time, error) {
	events, err := s.repo.List(ctx, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading audit log: %w", err)
	}
	if len(events) == 0 {
		return time.Time{}, nil
	}
	return events[len(events)-1].Timestamp, nil
}
