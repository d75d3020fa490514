package core

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// WaitOutcome is the terminal result of a Waiter resolution.
type WaitOutcome string

const (
	WaitMatched WaitOutcome = "matched"
	WaitExited  WaitOutcome = "exited"
	WaitTimeout WaitOutcome = "timeout"
)

// WaitResult is delivered on a Waiter's completion channel exactly once.
type WaitResult struct {
	Outcome WaitOutcome
	Exit    *Exit
}

// Predicate is a conjunction of content/timing conditions a Waiter blocks
// on. A nil field is not part of the conjunction.
type Predicate struct {
	Contains string
	Regex    *regexp.Regexp
	// StableFor, if non-zero, requires no transcript append for this long.
	StableFor time.Duration
	// OnExit, if true, requires the agent to have exited (any outcome).
	OnExit bool
}

// satisfiedByContent reports whether the content-based clauses of p (those
// evaluated on every transcript append) currently hold against text.
func (p Predicate) satisfiedByContent(text string) bool {
	if p.Contains != "" && !contains(text, p.Contains) {
		return false
	}
	if p.Regex != nil && !p.Regex.MatchString(text) {
		return false
	}
	return true
}

func contains(haystack, needle string) bool {
	return len(needle) == 0 || strings.Contains(haystack, needle)
}

// Waiter is a single pending wait predicate registered against an Agent.
// Subscribe-before-check ordering (see Agent.Wait) guarantees a
// transcript append or exit that races the registration is never missed.
type Waiter struct {
	pred     Predicate
	deadline time.Time
	done     chan WaitResult
	resolved bool
}

// newWaiter constructs a Waiter with an absolute deadline. timeout<=0 means
// no deadline (the caller's context governs cancellation instead).
func newWaiter(pred Predicate, timeout time.Duration) *Waiter {
	w := &Waiter{pred: pred, done: make(chan WaitResult, 1)}
	if timeout > 0 {
		w.deadline = time.Now().Add(timeout)
	}
	return w
}

func (w *Waiter) resolve(res WaitResult) bool {
	if w.resolved {
		return false
	}
	w.resolved = true
	w.done <- res
	close(w.done)
	return true
}

// Wait registers a predicate against agent and blocks until it resolves,
// the deadline elapses, or ctx is cancelled. Registration happens before
// the initial content check so an append landing between the two can never
// be missed: this mirrors the subscribe-then-check ordering used for
// lifecycle waits elsewhere in the corpus.
func (a *Agent) Wait(ctx context.Context, pred Predicate, timeout time.Duration) WaitResult {
	w := newWaiter(pred, timeout)
	id := a.addWaiter(w)
	defer a.removeWaiter(id)

	if res, ok := a.checkWaiterNow(w); ok {
		return res
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	if !w.deadline.IsZero() {
		timer = time.NewTimer(time.Until(w.deadline))
		timerC = timer.C
		defer timer.Stop()
	}
	// Fall back to a coarse poll for stable(idle_ms) predicates, which are
	// evaluated on tick rather than on append.
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-w.done:
			return res
		case <-timerC:
			w.resolve(WaitResult{Outcome: WaitTimeout})
			return WaitResult{Outcome: WaitTimeout}
		case <-ticker.C:
			if res, ok := a.checkWaiterNow(w); ok {
				return res
			}
		case <-ctx.Done():
			w.resolve(WaitResult{Outcome: WaitTimeout})
			return WaitResult{Outcome: WaitTimeout}
		}
	}
}

// checkWaiterNow evaluates w against the agent's current state without
// waiting; used both for the immediate post-registration check and the
// periodic tick fallback.
func (a *Agent) checkWaiterNow(w *Waiter) (WaitResult, bool) {
	if w.pred.OnExit {
		if exit := a.Exit(); exit != nil {
			return WaitResult{Outcome: WaitExited, Exit: exit}, true
		}
	}
	if w.pred.StableFor > 0 {
		if a.idleFor() >= w.pred.StableFor {
			if a.contentPredicateHolds(w.pred) {
				return WaitResult{Outcome: WaitMatched}, true
			}
		}
	}
	if w.pred.StableFor == 0 && !w.pred.OnExit && (w.pred.Contains != "" || w.pred.Regex != nil) {
		if a.contentPredicateHolds(w.pred) {
			return WaitResult{Outcome: WaitMatched}, true
		}
	}
	return WaitResult{}, false
}

// contentPredicateHolds evaluates pred against the transcript, not the
// rendered screen: text that has scrolled off the visible grid, or a match
// split across a line-wrap boundary, is still present in the transcript,
// and a wait registered against it must resolve without further PTY
// output arriving to force a rescroll.
func (a *Agent) contentPredicateHolds(pred Predicate) bool {
	text := ansi.Strip(string(a.Transcript.Contents()))
	return pred.satisfiedByContent(text)
}

func (a *Agent) idleFor() time.Duration {
	return time.Since(a.lastOutputAt())
}

// evaluateWaiters is called by the I/O pump after each transcript append,
// resolving any content-predicate waiters now satisfied. Waiters whose
// conjunction also includes stable or exit are left to the tick and reap.
func (a *Agent) evaluateWaiters() {
	for _, w := range a.pendingWaiters() {
		if (w.pred.Contains == "" && w.pred.Regex == nil) || w.pred.StableFor > 0 || w.pred.OnExit {
			continue
		}
		if a.contentPredicateHolds(w.pred) {
			w.resolve(WaitResult{Outcome: WaitMatched})
		}
	}
}

// resolveWaitersOnExit is called by the pump on reap, resolving every
// remaining waiter with Exited.
func (a *Agent) resolveWaitersOnExit(exit Exit) {
	for _, w := range a.pendingWaiters() {
		w.resolve(WaitResult{Outcome: WaitExited, Exit: &exit})
	}
}
