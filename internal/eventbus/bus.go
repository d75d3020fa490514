package eventbus

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"

	"pty.systems/botty/core"
)

// Kind identifies the event payload carried by an Event.
type Kind string

const (
	KindAgentSpawned Kind = "agent_spawned"
	KindAgentExited  Kind = "agent_exited"
	KindOutput       Kind = "output"
	KindResized      Kind = "resized"
)

// Event is a tagged record published on the bus. Only the field matching
// Kind is populated.
type Event struct {
	Kind Kind
	At   time.Time

	AgentID string
	Exit    *core.Exit
	// OutputBytes is the number of bytes read in the Output event that
	// triggered this publish; subscribers wanting the bytes themselves read
	// the agent's transcript/screen, this bus never carries payload bytes.
	OutputBytes int
	Rows, Cols  int

	// Lagged reports what a slow subscriber missed before this event: for
	// Output events, the number of bytes dropped (matching how tail/
	// subscribe consumers reason about the gap); for every other kind, the
	// number of events dropped.
	Lagged int
}

// Filter narrows a subscription to a subset of agents/kinds. A nil or
// empty field imposes no restriction on that dimension.
type Filter struct {
	IDs    []string
	Labels []string
	Kinds  []Kind
}

func (f Filter) matches(e Event, labelsOf func(id string) []string) bool {
	if len(f.Kinds) > 0 && !kindIn(f.Kinds, e.Kind) {
		return false
	}
	if len(f.IDs) > 0 && !stringIn(f.IDs, e.AgentID) {
		return false
	}
	if len(f.Labels) > 0 {
		agentLabels := labelsOf(e.AgentID)
		if !anyLabelMatches(f.Labels, agentLabels) {
			return false
		}
	}
	return true
}

func kindIn(kinds []Kind, k Kind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

func stringIn(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func anyLabelMatches(want, have []string) bool {
	for _, w := range want {
		if stringIn(have, w) {
			return true
		}
	}
	return false
}

const defaultQueueDepth = 256

// lifecyclePublishTimeout bounds the blocking attempt to deliver a
// lifecycle event (AgentSpawned/AgentExited) before falling back to
// drop-oldest, per the guaranteed-delivery policy for lifecycle events.
const lifecyclePublishTimeout = 50 * time.Millisecond

type subscriber struct {
	ch     chan Event
	filter Filter
	mu     sync.Mutex
	lagged int
}

// Bus fans events out to any number of subscribers, each with its own
// bounded queue. Output events are best-effort (drop-oldest on a full
// queue); lifecycle events are attempted with a short blocking send before
// falling back to the same drop-oldest policy, so a stalled subscriber can
// never stall a producer.
type Bus struct {
	mu        sync.Mutex
	subs      map[*subscriber]struct{}
	labelsOf  func(id string) []string
	log       pslog.Logger
	depth     int
}

// New constructs a Bus. labelsOf resolves an agent id to its current label
// set for label-filtered subscriptions; the Registry supplies this.
func New(logger pslog.Logger, labelsOf func(id string) []string) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if labelsOf == nil {
		labelsOf = func(string) []string { return nil }
	}
	return &Bus{
		subs:     make(map[*subscriber]struct{}),
		labelsOf: labelsOf,
		log:      logger,
		depth:    defaultQueueDepth,
	}
}

// Subscribe registers a filtered subscriber and returns its channel plus a
// cancel func that must be called to release it.
func (b *Bus) Subscribe(filter Filter) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, b.depth), filter: filter}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub.ch, func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		close(sub.ch)
	}
}

// PublishOutput implements core.EventPublisher.
func (b *Bus) PublishOutput(id string, n int) {
	b.publish(Event{Kind: KindOutput, At: time.Now(), AgentID: id, OutputBytes: n}, false)
}

// PublishExited implements core.EventPublisher.
func (b *Bus) PublishExited(id string, exit core.Exit) {
	if exit.Reason == core.ExitInternal {
		b.log.With("agent", id).Warn("agent pump recovered from panic", "exit_code", exit.Code)
	}
	b.publish(Event{Kind: KindAgentExited, At: time.Now(), AgentID: id, Exit: &exit}, true)
}

// PublishSpawned publishes an AgentSpawned lifecycle event.
func (b *Bus) PublishSpawned(id string) {
	b.publish(Event{Kind: KindAgentSpawned, At: time.Now(), AgentID: id}, true)
}

// PublishResized publishes a Resized lifecycle event.
func (b *Bus) PublishResized(id string, rows, cols int) {
	b.publish(Event{Kind: KindResized, At: time.Now(), AgentID: id, Rows: rows, Cols: cols}, true)
}

func (b *Bus) publish(e Event, lifecycle bool) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.filter.matches(e, b.labelsOf) {
			continue
		}
		b.deliver(sub, e, lifecycle)
	}
}

// deliver attempts to hand e to sub. Lifecycle events get one short
// blocking attempt first; both paths fall back to drop-oldest, which never
// blocks and always makes room for the newest event.
func (b *Bus) deliver(sub *subscriber, e Event, lifecycle bool) {
	if lifecycle {
		timer := time.NewTimer(lifecyclePublishTimeout)
		defer timer.Stop()
		select {
		case sub.ch <- withLagged(sub, e):
			return
		case <-timer.C:
		}
	} else {
		select {
		case sub.ch <- withLagged(sub, e):
			return
		default:
		}
	}
	b.dropOldestAndInsert(sub, e)
}

func (b *Bus) dropOldestAndInsert(sub *subscriber, e Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	select {
	case old := <-sub.ch:
		sub.lagged += laggedUnits(old)
	default:
	}
	e.Lagged = sub.lagged
	select {
	case sub.ch <- e:
		sub.lagged = 0
	default:
		// Another producer raced us and refilled the queue; count this
		// event as lagged too rather than blocking the publisher further.
		sub.lagged += laggedUnits(e)
	}
}

// laggedUnits is the amount a dropped event adds to a subscriber's lagged
// counter: bytes for Output (what a tail/subscribe reader actually lost),
// one event for everything else.
func laggedUnits(e Event) int {
	if e.Kind == KindOutput && e.OutputBytes > 0 {
		return e.OutputBytes
	}
	return 1
}

func withLagged(sub *subscriber, e Event) Event {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.lagged > 0 {
		e.Lagged = sub.lagged
		sub.lagged = 0
	}
	return e
}
