package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/smk-league/repositories"
)

func TestIsTransientStorageError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"wrapped bad conn", fmt.Errorf("write failed: %w", driver.ErrBadConn), true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"cannot connect now", &pq.Error{Code: "57P03"}, true},
		{"connection exception class", &pq.Error{Code: "08006"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"version conflict", repositories.ErrMatchVersionConflict, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isTransientStorageError(tc.err))
		})
	}
}

func TestWithWriteRetryRetriesOnlyTransientErrors(t *testing.T) {
	calls := 0
	err := withWriteRetry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return driver.ErrBadConn
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithWriteRetrySurfacesNonTransientImmediately(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := withWriteRetry(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithWriteRetryVersionConflictNotRetried(t *testing.T) {
	calls := 0
	err := withWriteRetry(context.Background(), func(context.Context) error {
		calls++
		return repositories.ErrMatchVersionConflict
	})
	assert.ErrorIs(t, err, repositories.ErrMatchVersionConflict)
	assert.Equal(t, 1, calls)
}

func TestWithWriteRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := withWriteRetry(context.Background(), func(context.Context) error {
		calls++
		return driver.ErrBadConn
	})
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.Equal(t, maxWriteAttempts, calls)
}

func TestWithWriteRetryStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := withWriteRetry(ctx, func(context.Context) error {
		calls++
		cancel()
		return driver.ErrBadConn
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
