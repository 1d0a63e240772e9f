package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
)

// WaitForRun polls the store until the given run reaches a terminal status or
// the timeout expires.
func WaitForRun(ctx context.Context, s Store, clk clock.Clock, runID string, timeout time.Duration) (*Run, error) {
	if timeout == 0 {
		timeout = time.Second * 20
	}

	b := backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond * 1,
		MaxInterval:         time.Second * 1,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      timeout,
		Stop:                backoff.Stop,
		Clock:               clk,
	}
	b.Reset()

	ticker := backoff.NewTicker(&b)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case _, ok := <-ticker.C:
			if !ok {
				return nil, errors.New("run did not finish in specified timeout")
			}

			run, err := s.GetRun(ctx, runID)
			if err != nil {
				if errors.Is(err, ErrRunNotFound) {
					continue
				}

				return nil, fmt.Errorf("getting run: %w", err)
			}

			if run.Status == RunStatusCompleted || run.Status == RunStatusFailed {
				return run, nil
			}
		}
	}
}
