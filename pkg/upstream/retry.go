package upstream

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/minichat/relay/pkg/api"
)

// callState is one state of the non-streaming call's retry loop. The loop in
// Client.Complete transitions between these states with explicit guards per
// failure class; there is no implicit fallthrough.
type callState int

const (
	// stateAttempting issues one upstream request and classifies the result.
	stateAttempting callState = iota
	// stateBackoffWait sleeps the exponential backoff before the next attempt.
	stateBackoffWait
	// stateSucceeded ends the loop with an answer.
	stateSucceeded
	// stateFailedTerminal ends the loop with a classified failure.
	stateFailedTerminal
)

// attemptResult is the classified outcome of a single attempt. retryable
// marks failures that may consume retry budget: transport timeouts,
// connection failures, and 5xx statuses. Authentication failures, other 4xx
// statuses, malformed bodies, and business-layer timeouts are never
// retryable.
type attemptResult struct {
	answer    string
	err       *api.Error
	retryable bool
	duration  time.Duration
}

// backoffDelay returns the wait before the next attempt: 2^attempt seconds
// plus uniform jitter in [0,1), where attempt is the zero-based index of the
// attempt that just failed. The jitter desynchronizes concurrent retries
// against the upstream service.
func backoffDelay(attempt int) time.Duration {
	secs := math.Pow(2, float64(attempt)) + rand.Float64()
	return time.Duration(secs * float64(time.Second))
}

// exhaust converts the last retryable failure into the terminal error for a
// spent retry budget. Repeated 5xx statuses surface as KindExhausted; a
// final transport timeout or connection failure keeps its own kind so the
// transport layer can map it to the right status.
func exhaust(last *api.Error, attempts int) *api.Error {
	if last.Kind == api.KindUpstream {
		return api.NewExhaustedError(
			fmt.Sprintf("%s (gave up after %d attempts)", last.Message, attempts))
	}
	return last
}
