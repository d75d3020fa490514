package core

import (
	"context"
	"syscall"
	"time"
)

// SpawnPlan augments a SpawnRequest with orchestrator-level dependency
// gating, evaluated before the underlying Registry.Spawn is called.
type SpawnPlan struct {
	Request SpawnRequest
	// After lists agent ids that must all reach Exited before this spawn
	// proceeds, regardless of their exit code.
	After []string
	// WaitFor lists (agent id, pattern) pairs; this spawn blocks until each
	// referenced agent's transcript contains the pattern.
	WaitFor []WaitForClause
}

// WaitForClause is one --wait-for A:PATTERN dependency.
type WaitForClause struct {
	AgentID string
	Pattern string
}

// TimeoutGrace is the delay between SIGTERM and SIGKILL for a --timeout
// enforcement, matching the spec's 5s grace window.
const TimeoutGrace = 5 * time.Second

// Orchestrator sits above a Registry, gating spawns on dependencies and
// scheduling timeout-driven termination.
type Orchestrator struct {
	registry *Registry
}

// NewOrchestrator constructs an Orchestrator over registry.
func NewOrchestrator(registry *Registry) *Orchestrator {
	return &Orchestrator{registry: registry}
}

// Spawn blocks until every dependency in plan is satisfied, then spawns the
// agent and schedules its --timeout enforcement if configured. ctx governs
// the dependency wait only; once the underlying process is started it runs
// independent of ctx.
func (o *Orchestrator) Spawn(ctx context.Context, plan SpawnPlan) (*Agent, error) {
	for _, depID := range plan.After {
		dep, err := o.registry.Get(depID)
		if err != nil {
			return nil, Errorf(ErrorKindUsage, "Spawn", "unknown --after dependency %q", depID)
		}
		if dep.Exit() == nil {
			res := dep.Wait(ctx, Predicate{OnExit: true}, 0)
			if res.Outcome != WaitExited {
				return nil, Errorf(ErrorKindTimeout, "Spawn", "dependency %q did not exit before spawn context was cancelled", depID)
			}
		}
	}
	for _, clause := range plan.WaitFor {
		dep, err := o.registry.Get(clause.AgentID)
		if err != nil {
			return nil, Errorf(ErrorKindUsage, "Spawn", "unknown --wait-for dependency %q", clause.AgentID)
		}
		res := dep.Wait(ctx, Predicate{Contains: clause.Pattern}, 0)
		if res.Outcome == WaitTimeout {
			return nil, Errorf(ErrorKindTimeout, "Spawn", "--wait-for %q:%q did not match before spawn context was cancelled", clause.AgentID, clause.Pattern)
		}
		if res.Outcome == WaitExited {
			return nil, Errorf(ErrorKindWaitUnsatisfied, "Spawn", "--wait-for %q:%q: dependency exited without matching", clause.AgentID, clause.Pattern)
		}
	}

	agent, err := o.registry.Spawn(plan.Request)
	if err != nil {
		return nil, err
	}
	if plan.Request.Limits.Timeout > 0 {
		go o.enforceTimeout(agent, plan.Request.Limits.Timeout)
	}
	return agent, nil
}

// enforceTimeout delivers SIGTERM at spawn_time+timeout, then SIGKILL after
// TimeoutGrace if the agent has not yet exited.
func (o *Orchestrator) enforceTimeout(a *Agent, timeout time.Duration) {
	deadline := a.StartedAt.Add(timeout)
	wait := time.Until(deadline)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-exitedCh(a):
			return
		}
	}
	if a.Exit() != nil {
		return
	}
	a.setPendingExitReason(ExitTimeout)
	a.MarkExiting()
	_ = a.PTY.Signal(syscall.SIGTERM)

	graceTimer := time.NewTimer(TimeoutGrace)
	defer graceTimer.Stop()
	select {
	case <-graceTimer.C:
		if a.Exit() == nil {
			_ = a.PTY.Signal(syscall.SIGKILL)
		}
	case <-exitedCh(a):
	}
}

// exitedCh returns a channel that closes once a reaches Exited, backed by
// a dedicated Wait call so it composes with select without polling.
func exitedCh(a *Agent) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		a.Wait(context.Background(), Predicate{OnExit: true}, 0)
		close(ch)
	}()
	return ch
}

// Shutdown transitions the server to draining: refuse new spawns (enforced
// by the caller no longer routing to Spawn), SIGKILL every live agent, and
// block until all are reaped or ctx expires.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.registry.Shutdown(ctx, func(a *Agent) error {
		return a.PTY.Signal(syscall.SIGKILL)
	})
}
