package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/lib/pq"
)

const (
	maxWriteAttempts  = 3
	writeRetryBackoff = 50 * time.Millisecond
)

// isTransientStorageError reports whether a failed write may succeed if
// simply re-run: broken connections, serialization failures, deadlocks, and
// an overloaded server. Version conflicts are NOT transient; retrying a
// stale write would just lose the race again with the same stale state.
func isTransientStorageError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" { // connection exceptions
			return true
		}
		switch pqErr.Code {
		case "40001", "40P01", "57P03": // serialization, deadlock, cannot connect now
			return true
		}
	}
	return false
}

// withWriteRetry runs the attempt up to maxWriteAttempts times, sleeping a
// fixed backoff between tries, and retries ONLY transient storage errors.
// Anything else, version conflicts included, surfaces immediately.
func withWriteRetry(ctx context.Context, attempt func(ctx context.Context) error) error {
	var lastErr error
	for try := 0; try < maxWriteAttempts; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(writeRetryBackoff):
			}
		}
		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransientStorageError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
