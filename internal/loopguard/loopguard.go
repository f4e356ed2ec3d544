// Package loopguard detects a model repeating the same action step after step.
package loopguard

import (
	"fmt"

	"github.com/mrz1836/deskpilot/internal/constants"
	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// Verdict is the outcome of observing one signature.
type Verdict int

// Verdicts in increasing severity.
const (
	OK Verdict = iota
	Warn
	Abort
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case Warn:
		return "warn"
	case Abort:
		return "abort"
	default:
		return "ok"
	}
}

// Signature identifies an action for repeat detection: the tag plus the app
// name for open_app, otherwise the literal text, otherwise nothing.
func Signature(a *domain.Action) string {
	if a == nil {
		return ""
	}
	salient := a.Args.App
	if salient == "" {
		salient = a.Args.Text
	}
	if salient == "" {
		if s, ok := a.Params.String("app"); ok {
			salient = s
		} else if s, ok := a.Params.String("text"); ok {
			salient = s
		}
	}
	return a.Tag + "_" + salient
}

// Result is the guard state after an observation.
type Result struct {
	Signature string
	Count     int
	Verdict   Verdict
	Message   string
}

// Guard counts consecutive repeats of the same signature. The first
// occurrence counts zero; any change resets to zero.
type Guard struct {
	warnAt  int
	abortAt int
	last    string
	count   int
	started bool
}

// New creates a Guard. Non-positive thresholds fall back to the defaults.
func New(warnAt, abortAt int) *Guard {
	if warnAt <= 0 {
		warnAt = constants.DefaultLoopWarnThreshold
	}
	if abortAt <= 0 {
		abortAt = constants.DefaultLoopAbortThreshold
	}
	return &Guard{warnAt: warnAt, abortAt: abortAt}
}

// Observe records sig and returns the updated repeat count and verdict.
func (g *Guard) Observe(sig string) Result {
	if g.started && sig == g.last {
		g.count++
	} else {
		g.count = 0
	}
	g.last, g.started = sig, true

	res := Result{Signature: sig, Count: g.count}
	switch {
	case g.count >= g.abortAt:
		res.Verdict = Abort
		res.Message = fmt.Sprintf("Repeated %q %d times, aborting: likely infinite loop", sig, g.count)
	case g.count >= g.warnAt:
		res.Verdict = Warn
		res.Message = fmt.Sprintf("Same action repeated %d times", g.count)
	}
	return res
}

// Err returns ErrLoopDetected for an Abort result and nil otherwise.
func (r Result) Err() error {
	if r.Verdict != Abort {
		return nil
	}
	return fmt.Errorf("%w: %s repeated %d times", dperrors.ErrLoopDetected, r.Signature, r.Count)
}

// Reset forgets the last signature.
func (g *Guard) Reset() {
	g.last, g.count, g.started = "", 0, false
}

// Count returns the current repeat count.
func (g *Guard) Count() int { return g.count }
