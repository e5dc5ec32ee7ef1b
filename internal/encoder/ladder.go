// Package encoder runs ordered fallback strategies that turn rendered frames
// (or an existing video) into a playable file.
package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Strategy is one way of producing an output file.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context) error
}

// Func adapts a plain function to a Strategy.
type Func struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (f Func) Name() string                      { return f.Label }
func (f Func) Attempt(ctx context.Context) error { return f.Fn(ctx) }

// Ladder tries strategies in order until one succeeds.
type Ladder struct {
	Strategies []Strategy
	// Verify, when set, runs after a strategy reports success. A verify
	// error counts as that strategy failing.
	Verify func() error
	Logger *slog.Logger
}

// Run returns the name of the winning strategy, or every attempt's error
// when none succeeded. A cancelled context stops the ladder early.
func (l Ladder) Run(ctx context.Context) (string, []error) {
	var attempts []error
	for i, s := range l.Strategies {
		if err := ctx.Err(); err != nil {
			return "", append(attempts, err)
		}

		start := time.Now()
		err := s.Attempt(ctx)
		if err == nil && l.Verify != nil {
			err = l.Verify()
		}
		if err == nil {
			l.Logger.Info("encode strategy succeeded", "strategy", s.Name(), "position", i+1, "elapsed", time.Since(start).Round(time.Millisecond))
			return s.Name(), nil
		}

		l.Logger.Warn("encode strategy failed", "strategy", s.Name(), "position", i+1, "error", err)
		attempts = append(attempts, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return "", attempts
}
