package service

import (
	"context"
	"time"
)

const (
	retryAttempts = 3
	retryDelay    = time.Second
)

// retry runs op up to attempts times, sleeping delay between failures. It
// returns nil on the first success, otherwise the last error. A cancelled
// ctx stops the loop early.
func retry(ctx context.Context, attempts int, delay time.Duration, op func(context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
