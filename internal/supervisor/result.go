// Package supervisor runs the agent's periodic loops. Each loop step reports
// a Result and the supervisor decides centrally whether to retry, skip
// ahead after a cooldown, or stop the loop.
package supervisor

import (
	"context"
	"errors"
	"fmt"
)

// Outcome tells the supervisor what to do after a step.
type Outcome int

const (
	// OK continues after the loop interval.
	OK Outcome = iota
	// Retry re-runs the step immediately, up to the retry limit.
	Retry
	// Skip logs, waits the error cooldown and moves to the next iteration.
	Skip
	// Abort stops the loop.
	Abort
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Retry:
		return "retry"
	case Skip:
		return "skip"
	case Abort:
		return "abort"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is what a loop step returns.
type Result struct {
	Outcome Outcome
	Err     error
}

// Done is the successful result.
func Done() Result { return Result{Outcome: OK} }

// RetryErr asks for the step to be re-run.
func RetryErr(err error) Result { return Result{Outcome: Retry, Err: err} }

// SkipErr gives up on this iteration.
func SkipErr(err error) Result { return Result{Outcome: Skip, Err: err} }

// AbortErr stops the loop.
func AbortErr(err error) Result { return Result{Outcome: Abort, Err: err} }

// Classify maps a plain error to a Result. Cancellation aborts; every other
// failure, including service, validation and not-found errors, skips.
func Classify(err error) Result {
	switch {
	case err == nil:
		return Done()
	case errors.Is(err, context.Canceled):
		return AbortErr(err)
	}
	return SkipErr(err)
}
