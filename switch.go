package main

import (
	"context"
	"log/slog"
	"sync"
)

// Switch is the actuator driven by the /on and /off routes.
type Switch interface {
	Set(ctx context.Context, on bool) error
	State() bool
}

// LogSwitch only records and logs its state. It stands in for a relay or
// GPIO line on hosts without one.
type LogSwitch struct {
	Logger *slog.Logger

	mu sync.Mutex
	on bool
}

func (s *LogSwitch) Set(_ context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.on != on && s.Logger != nil {
		s.Logger.Info("switch changed", "on", on)
	}
	s.on = on
	return nil
}

func (s *LogSwitch) State() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}
