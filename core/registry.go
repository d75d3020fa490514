package core

import (
	"context"
	"path/filepath"
	"regexp"
	"sync"
)

// SpawnRequest describes a new agent to start.
type SpawnRequest struct {
	Name   string
	Argv   []string
	Env    []string
	Labels []string
	Size   Size
	Limits Limits
}

// Registry owns every Agent by value for the lifetime of the server.
// Everything else holds a revocable handle keyed by id: a lookup that no
// longer resolves yields ErrAgentNotFound rather than a stale pointer.
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]*Agent
	pub      EventPublisher
	transCap int
}

// NewRegistry constructs an empty Registry. transcriptCapacity bounds every
// spawned agent's ring buffer; pub receives lifecycle and output events.
func NewRegistry(transcriptCapacity int, pub EventPublisher) *Registry {
	return &Registry{
		agents:   make(map[string]*Agent),
		pub:      pub,
		transCap: transcriptCapacity,
	}
}

// Spawn allocates a PTY, starts argv, and registers a new Agent under a
// user-supplied or generated id. The id space and the live-agent map share
// one lock: once assigned, an id is reserved until Gc even after the agent
// exits, so a new spawn can never collide with an id still present in the
// registry.
func (r *Registry) Spawn(req SpawnRequest) (*Agent, error) {
	r.mu.Lock()
	id := req.Name
	if id != "" {
		if !ValidateName(id) {
			r.mu.Unlock()
			return nil, Errorf(ErrorKindUsage, "Spawn", "invalid name %q", id)
		}
		if _, exists := r.agents[id]; exists {
			r.mu.Unlock()
			return nil, Errorf(ErrorKindNameInUse, "Spawn", "name %q already in use", id)
		}
	} else {
		generated, err := generateHandle(func(candidate string) bool {
			_, exists := r.agents[candidate]
			return exists
		})
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		id = generated
	}

	size := req.Size
	if size.Rows == 0 && size.Cols == 0 {
		size = DefaultSize
	}
	agent := NewAgent(id, req.Argv, req.Env, req.Labels, size, req.Limits, r.transCap)
	r.agents[id] = agent
	r.mu.Unlock()

	pty, pid, err := StartPTY(req.Argv, req.Env, size)
	if err != nil {
		r.mu.Lock()
		delete(r.agents, id)
		r.mu.Unlock()
		return nil, err
	}
	agent.PTY = pty
	agent.SetPID(pid)
	agent.MarkRunning()

	go runPump(agent, r.pub)

	return agent, nil
}

// Get resolves id to a live or exited-but-not-gc'd Agent.
func (r *Registry) Get(id string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return a, nil
}

// List returns every registered agent, live or exited, in no particular order.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// Gc removes every Exited agent from the registry, freeing their ids for
// reuse, and returns the ids removed.
func (r *Registry) Gc() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for id, a := range r.agents {
		if a.State() == Exited {
			delete(r.agents, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Kill resolves selector and delivers sig to every matched agent. An empty
// selection succeeds (idempotent cleanup), matching the resolution rules
// for destructive-but-safe operations.
func (r *Registry) Kill(sel Selector, sig func(*Agent) error) error {
	matched := r.Resolve(sel)
	for _, a := range matched {
		if a.State() == Exited {
			// Already reaped: nothing to signal, and the process the OS
			// would look up no longer exists. Repeated kill on an exited
			// agent is success, not an error.
			continue
		}
		a.setPendingExitReason(ExitKilled)
		a.MarkExiting()
		if err := sig(a); err != nil {
			return NewError(ErrorKindPTY, "Kill", err)
		}
	}
	return nil
}

// Resolve returns every registered agent matched by sel, including exited
// agents not yet removed by Gc. Non-destructive callers
// (send, snapshot, wait, ...) should treat an empty result as
// ErrAgentNotFound; Kill treats it as success.
func (r *Registry) Resolve(sel Selector) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch sel.Kind {
	case SelectorAll:
		out := make([]*Agent, 0, len(r.agents))
		for _, a := range r.agents {
			out = append(out, a)
		}
		return out
	case SelectorID:
		if a, ok := r.agents[sel.Value]; ok {
			return []*Agent{a}
		}
		return nil
	case SelectorLabel:
		var out []*Agent
		for _, a := range r.agents {
			if a.HasLabel(sel.Value) {
				out = append(out, a)
			}
		}
		return out
	case SelectorProcMatch:
		re, err := regexp.Compile(sel.Value)
		if err != nil {
			return nil
		}
		var out []*Agent
		for _, a := range r.agents {
			if len(a.Argv) == 0 {
				continue
			}
			if re.MatchString(filepath.Base(a.Argv[0])) {
				out = append(out, a)
			}
		}
		return out
	default:
		return nil
	}
}

// ResolveOne resolves sel to exactly one agent, returning ErrAgentNotFound
// for an empty or ambiguous (more than one match, for a non-All
// selector kind) result.
func (r *Registry) ResolveOne(sel Selector) (*Agent, error) {
	matched := r.Resolve(sel)
	if len(matched) == 0 || (len(matched) > 1 && sel.Kind != SelectorAll) {
		return nil, ErrAgentNotFound
	}
	return matched[0], nil
}

// Shutdown transitions every live agent to Exiting, delivers SIGKILL, and
// waits (bounded by ctx) for all to reach Exited.
func (r *Registry) Shutdown(ctx context.Context, killSignal func(*Agent) error) {
	agents := r.List()
	for _, a := range agents {
		if a.State() == Exited {
			continue
		}
		a.setPendingExitReason(ExitKilled)
		a.MarkExiting()
		_ = killSignal(a)
	}
	for _, a := range agents {
		a.Wait(ctx, Predicate{OnExit: true}, 0)
	}
}
