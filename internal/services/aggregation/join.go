// Package aggregation answers questions that span the user and policy
// collections by chaining one lookup into another.
package aggregation

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/koman-maciej/insurance/internal/telemetry"
	"github.com/koman-maciej/insurance/internal/upstream"
)

// Hop identifies which lookup of a two-step join failed.
type Hop int

const (
	// HopResolve is the lookup that finds the starting entity.
	HopResolve Hop = 1
	// HopFollow is the lookup keyed by the result of HopResolve.
	HopFollow Hop = 2
)

func (h Hop) String() string {
	switch h {
	case HopResolve:
		return "resolve"
	case HopFollow:
		return "follow"
	default:
		return fmt.Sprintf("hop(%d)", int(h))
	}
}

// JoinError reports the hop a join failed on. Err wraps either
// upstream.ErrNotFound or an upstream failure.
type JoinError struct {
	Hop Hop
	Err error
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("%s: %v", e.Hop, e.Err)
}

func (e *JoinError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the hop failed because an entity was absent.
func (e *JoinError) NotFound() bool {
	return errors.Is(e.Err, upstream.ErrNotFound)
}

// Join runs resolve, feeds its result into follow and returns the result of
// follow. The two hops run sequentially and neither is retried.
func Join[A, B any](ctx context.Context, resolve func(context.Context) (A, error), follow func(context.Context, A) (B, error)) (B, error) {
	var zero B

	a, err := runHop(ctx, HopResolve, resolve)
	if err != nil {
		return zero, &JoinError{Hop: HopResolve, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return zero, &JoinError{Hop: HopFollow, Err: err}
	}

	b, err := runHop(ctx, HopFollow, func(ctx context.Context) (B, error) { return follow(ctx, a) })
	if err != nil {
		return zero, &JoinError{Hop: HopFollow, Err: err}
	}
	return b, nil
}

func runHop[T any](ctx context.Context, hop Hop, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerAggregation, "join."+hop.String(),
		attribute.Int(telemetry.AttrJoinHop, int(hop)),
	)
	defer span.End()

	v, err := fn(ctx)
	if errors.Is(err, upstream.ErrNotFound) {
		telemetry.AddEvent(span, "entity.not_found")
	} else {
		telemetry.RecordError(span, err)
	}
	return v, err
}
