// Package ratelimit paces outbound channel requests under a channel's
// published requests-per-minute ceiling.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is invoked by a connector before every outbound request.
type Limiter interface {
	Wait(ctx context.Context) error
}

type Kind string

const (
	// KindPacer pays a fixed delay on every call. It is cooperative and
	// assumes one caller at a time per connector.
	KindPacer Kind = "pacer"
	// KindTokenBucket is concurrency-safe; used when channels sync in parallel.
	KindTokenBucket Kind = "token_bucket"
)

// New returns the limiter implementation for kind at rpm requests/minute.
// A non-positive rpm means no limit.
func New(kind Kind, rpm int) (Limiter, error) {
	switch kind {
	case KindPacer, "":
		if rpm <= 0 {
			return Unlimited{}, nil
		}
		return NewPacer(rpm), nil
	case KindTokenBucket:
		if rpm <= 0 {
			return Unlimited{}, nil
		}
		return NewTokenBucket(rpm), nil
	default:
		return nil, fmt.Errorf("unknown limiter kind %q", kind)
	}
}

// Delay returns ceil(60000 / rpm) milliseconds, or 0 for rpm <= 0.
func Delay(rpm int) time.Duration {
	if rpm <= 0 {
		return 0
	}
	ms := math.Ceil(60000 / float64(rpm))
	return time.Duration(ms) * time.Millisecond
}

// Pacer suspends every caller for the same fixed delay. This caps
// throughput and burstiness alike; there is no burst capacity.
type Pacer struct {
	delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPacer(rpm int) *Pacer {
	return &Pacer{delay: Delay(rpm), sleep: sleepCtx}
}

// WithSleep swaps the suspension primitive (tests).
func (p *Pacer) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Pacer {
	p.sleep = fn
	return p
}

func (p *Pacer) Delay() time.Duration { return p.delay }

func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, p.delay)
}

// TokenBucket spaces requests at rpm/minute with a burst of one.
type TokenBucket struct {
	lim *rate.Limiter
}

func NewTokenBucket(rpm int) *TokenBucket {
	if rpm <= 0 {
		return &TokenBucket{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &TokenBucket{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)}
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.lim.Wait(ctx)
}

// Unlimited never waits. New returns it for a non-positive rpm.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
