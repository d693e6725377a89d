// Package retry wraps an HTTP client with an explicit retry policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Doer is the subset of *http.Client used by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Policy decides whether and when a failed request is attempted again.
type Policy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// Backoff returns the wait before retry n (0-based).
	Backoff func(n int) time.Duration
	// Retryable reports whether the outcome of an attempt should be retried.
	Retryable func(resp *http.Response, err error) bool
	// Sleep waits for d or until ctx is done. Defaults to a timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default is 3 retries with 1s, 2s, 4s backoff on network errors and 5xx responses.
func Default() Policy {
	return Policy{
		MaxRetries: 3,
		Backoff:    Exponential(time.Second),
		Retryable:  Transient,
		Sleep:      sleepCtx,
	}
}

// Exponential doubles base for every retry.
func Exponential(base time.Duration) func(int) time.Duration {
	return func(n int) time.Duration {
		return base * time.Duration(1<<n)
	}
}

// Transient treats network failures and 5xx responses as retryable. Context
// cancellation is never retried.
func Transient(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return resp != nil && resp.StatusCode >= http.StatusInternalServerError
}

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

// Client applies a Policy around a Doer.
type Client struct {
	http   Doer
	policy Policy
}

// New wraps doer with policy, filling unset policy fields from Default.
func New(doer Doer, policy Policy) *Client {
	def := Default()
	if policy.Backoff == nil {
		policy.Backoff = def.Backoff
	}
	if policy.Retryable == nil {
		policy.Retryable = def.Retryable
	}
	if policy.Sleep == nil {
		policy.Sleep = def.Sleep
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &Client{http: doer, policy: policy}
}

// Do sends req, retrying according to the policy. Request bodies are replayed
// through req.GetBody, so requests built with http.NewRequest are safe to retry.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.http.Do(req)
		if attempt >= c.policy.MaxRetries || !c.policy.Retryable(resp, err) {
			return resp, err
		}

		wait := c.policy.Backoff(attempt)
		ev := log.Warn().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("attempt", attempt+1).
			Dur("wait", wait)
		if err != nil {
			ev = ev.Err(err)
		} else {
			ev = ev.Int("status", resp.StatusCode)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		ev.Msg("Retrying upstream request")

		if err := c.policy.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}
