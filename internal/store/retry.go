package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("bms/store")

// DefaultMaxAttempts bounds how often a conflicting transaction body is re-run.
const DefaultMaxAttempts = 5

const (
	baseBackoff = 2 * time.Millisecond
	maxBackoff  = 50 * time.Millisecond
)

// Retry runs attempt until it returns something other than ErrConflict.
// Once maxAttempts conflicts were seen the result wraps ErrTransient.
func Retry(ctx context.Context, backend string, maxAttempts int, attempt func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	ctx, span := tracer.Start(ctx, "store.transaction",
		trace.WithAttributes(attribute.String("store.backend", backend)))
	defer span.End()

	var err error
	for n := 1; n <= maxAttempts; n++ {
		err = attempt(ctx)
		span.SetAttributes(attribute.Int("tx.attempts", n))
		if !errors.Is(err, ErrConflict) {
			if err != nil {
				span.RecordError(err)
			}
			return err
		}
		if n == maxAttempts {
			break
		}
		if werr := wait(ctx, n); werr != nil {
			span.SetStatus(codes.Error, "cancelled")
			return werr
		}
	}

	span.SetStatus(codes.Error, "retries exhausted")
	return fmt.Errorf("%w after %d attempts: %v", ErrTransient, maxAttempts, err)
}

func wait(ctx context.Context, attempt int) error {
	d := baseBackoff << (attempt - 1)
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d)))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
