package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryRerunsOnConflict(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", 5, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return ErrConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnBusinessError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), "test", 5, func(ctx context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustedIsTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", 3, func(ctx context.Context) error {
		calls++
		return ErrConflict
	})
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 3, calls)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, "test", 5, func(ctx context.Context) error {
		calls++
		cancel()
		return ErrConflict
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestMatchFilters(t *testing.T) {
	doc := []byte(`{"status":"pending","to_staff_id":"staff-1","is_sales_run":true,"count":3}`)

	ok, err := MatchFilters(doc, []Filter{Where("status", "pending"), Where("to_staff_id", "staff-1")})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MatchFilters(doc, []Filter{Where("is_sales_run", true), Where("count", 3)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MatchFilters(doc, []Filter{Where("status", "active")})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = MatchFilters(doc, []Filter{Where("missing", "x")})
	require.NoError(t, err)
	assert.False(t, ok)
}
