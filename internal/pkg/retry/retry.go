package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/TemirB/coursemarket/internal/config"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error that another attempt cannot fix. Do returns it
// immediately without sleeping.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, the attempts run out or ctx is done. The
// delay starts at policy.Base, doubles after every failure, is capped by
// policy.Max and is spread by policy.JitterFactor.
func Do(ctx context.Context, policy config.Retry, fn func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	d := policy.Base
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if i == attempts-1 {
			break
		}

		delay := d
		if policy.JitterFactor > 0 {
			jitter := 1 + policy.JitterFactor*(2*r.Float64()-1)
			delay = time.Duration(float64(delay) * jitter)
		}
		if policy.Max > 0 && delay > policy.Max {
			delay = policy.Max
		}

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}

		d *= 2
		if policy.Max > 0 && d > policy.Max {
			d = policy.Max
		}
	}
	return err
}
