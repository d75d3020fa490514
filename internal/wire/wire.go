// Package wire defines the newline-delimited JSON request/response types
// exchanged on botty's Unix-domain socket. One JSON object per line;
// requests are tagged by Kind, responses either close the connection after
// one line or promote it to a stream of StreamItem lines.
package wire

import (
	"time"

	"pty.systems/botty/core"
)

// Kind discriminates a Request's payload, mirroring the exhaustive request
// list a connection may send.
type Kind string

const (
	KindSpawn     Kind = "spawn"
	KindList      Kind = "list"
	KindSend      Kind = "send"
	KindSendBytes Kind = "send_bytes"
	KindSnapshot  Kind = "snapshot"
	KindTail      Kind = "tail"
	KindDump      Kind = "dump"
	KindSubscribe Kind = "subscribe"
	KindEvents    Kind = "events"
	KindWait      Kind = "wait"
	KindKill      Kind = "kill"
	KindResize    Kind = "resize"
	KindAttach    Kind = "attach"
	KindShutdown  Kind = "shutdown"
	KindPing      Kind = "ping"
	KindGc        Kind = "gc"
	KindDebug     Kind = "debug"
)

// Request is the single envelope type read from a connection's first line.
// Exactly one of the Kind-specific fields is populated per the Kind tag.
type Request struct {
	ID   string `json:"id,omitempty"`
	Kind Kind   `json:"kind"`

	Spawn     *SpawnRequest     `json:"spawn,omitempty"`
	Send      *SendRequest      `json:"send,omitempty"`
	SendBytes *SendBytesRequest `json:"send_bytes,omitempty"`
	Snapshot  *SnapshotRequest  `json:"snapshot,omitempty"`
	Tail      *TailRequest      `json:"tail,omitempty"`
	Dump      *DumpRequest      `json:"dump,omitempty"`
	Subscribe *SubscribeRequest `json:"subscribe,omitempty"`
	Events    *EventsRequest    `json:"events,omitempty"`
	Wait      *WaitRequest      `json:"wait,omitempty"`
	Kill      *KillRequest      `json:"kill,omitempty"`
	Resize    *ResizeRequest    `json:"resize,omitempty"`
	Attach    *AttachRequest    `json:"attach,omitempty"`
	Debug     *DebugRequest     `json:"debug,omitempty"`
}

// DebugRequest asks for a raw internal state dump of one agent.
type DebugRequest struct {
	ID string `json:"id"`
}

// DebugInfoWire is the internal-state dump served by KindDebug, beyond
// what Snapshot exposes to ordinary clients.
type DebugInfoWire struct {
	ID                 string   `json:"id"`
	State              string   `json:"state"`
	PID                int      `json:"pid"`
	Rows               int      `json:"rows"`
	Cols               int      `json:"cols"`
	Argv               []string `json:"argv"`
	Labels             []string `json:"labels"`
	LimitsTimeoutMs    int64    `json:"limits_timeout_ms,omitempty"`
	LimitsMaxOutput    int64    `json:"limits_max_output,omitempty"`
	WaiterCount        int      `json:"waiter_count"`
	TranscriptLen      int      `json:"transcript_len"`
	TranscriptCapacity int      `json:"transcript_capacity"`
	TranscriptVersion  uint64   `json:"transcript_version"`
	TranscriptEpoch    uint64   `json:"transcript_epoch"`
}

// SelectorWire is the wire form of core.Selector.
type SelectorWire struct {
	ID        string `json:"id,omitempty"`
	Label     string `json:"label,omitempty"`
	ProcMatch string `json:"proc_match,omitempty"`
	All       bool   `json:"all,omitempty"`
}

// ToSelector converts the wire form to a core.Selector.
func (s SelectorWire) ToSelector() core.Selector {
	switch {
	case s.All:
		return core.SelectAll()
	case s.Label != "":
		return core.SelectByLabel(s.Label)
	case s.ProcMatch != "":
		return core.SelectByProcMatch(s.ProcMatch)
	default:
		return core.SelectByID(s.ID)
	}
}

// SpawnRequest starts a new agent, optionally gated by orchestrator
// dependencies.
type SpawnRequest struct {
	Name       string   `json:"name,omitempty"`
	Argv       []string `json:"argv"`
	Env        []string `json:"env,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	Rows       int      `json:"rows,omitempty"`
	Cols       int      `json:"cols,omitempty"`
	TimeoutMs  int64    `json:"timeout_ms,omitempty"`
	MaxOutput  int64    `json:"max_output,omitempty"`
	After      []string `json:"after,omitempty"`
	WaitFor    []string `json:"wait_for,omitempty"` // "agent_id:pattern"
}

// SendRequest writes text (optionally newline-terminated) to an agent's PTY.
type SendRequest struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AppendNewline bool   `json:"append_newline,omitempty"`
}

// SendBytesRequest writes raw bytes to an agent's PTY.
type SendBytesRequest struct {
	ID    string `json:"id"`
	Bytes []byte `json:"bytes"`
}

// SnapshotRequest requests the current screen contents.
type SnapshotRequest struct {
	ID        string `json:"id"`
	Format    string `json:"format,omitempty"` // "text" | "cells"
	Normalize bool   `json:"normalize,omitempty"`
}

// TailRequest streams or fetches recent transcript bytes. Raw=false (the
// default) strips ANSI escape sequences from the returned bytes for
// readability; Raw=true returns exactly what the pty wrote.
type TailRequest struct {
	ID     string `json:"id"`
	N      int    `json:"n,omitempty"`
	Follow bool   `json:"follow,omitempty"`
	Raw    bool   `json:"raw,omitempty"`
}

// DumpRequest returns the full or since-offset transcript.
type DumpRequest struct {
	ID     string        `json:"id"`
	Since  *core.Offset  `json:"since,omitempty"`
	Format string        `json:"format,omitempty"`
}

// SubscribeRequest opens a live event/output stream for matched agents.
type SubscribeRequest struct {
	Filter        FilterWire `json:"filter"`
	IncludeOutput bool       `json:"include_output,omitempty"`
	Format        string     `json:"format,omitempty"`
}

// EventsRequest opens a lifecycle-only event stream.
type EventsRequest struct {
	Filter FilterWire `json:"filter"`
}

// FilterWire is the wire form of eventbus.Filter (kept dependency-free of
// eventbus here so wire has no import of internal packages beyond core).
type FilterWire struct {
	IDs    []string `json:"ids,omitempty"`
	Labels []string `json:"labels,omitempty"`
	Kinds  []string `json:"kinds,omitempty"`
}

// WaitRequest blocks the stream until predicate resolves or timeout elapses.
type WaitRequest struct {
	ID        string          `json:"id"`
	Predicate PredicateWire   `json:"predicate"`
	TimeoutMs int64           `json:"timeout_ms,omitempty"`
}

// PredicateWire is the wire form of core.Predicate.
type PredicateWire struct {
	Contains  string `json:"contains,omitempty"`
	Regex     string `json:"regex,omitempty"`
	StableMs  int64  `json:"stable_ms,omitempty"`
	OnExit    bool   `json:"exit,omitempty"`
}

// KillRequest signals every agent matched by Selector.
type KillRequest struct {
	Selector SelectorWire `json:"selector"`
	Signal   int          `json:"signal,omitempty"`
}

// ResizeRequest changes an agent's terminal geometry.
type ResizeRequest struct {
	ID              string `json:"id"`
	Rows            int    `json:"rows"`
	Cols            int    `json:"cols"`
	ClearTranscript bool   `json:"clear_transcript,omitempty"`
}

// AttachRequest opens a full-duplex bridge to an agent's PTY.
type AttachRequest struct {
	ID       string `json:"id"`
	Readonly bool   `json:"readonly,omitempty"`
}

// ResponseKind discriminates a Response payload.
type ResponseKind string

const (
	ResponseOK           ResponseKind = "ok"
	ResponseError        ResponseKind = "error"
	ResponseStream       ResponseKind = "stream"
	ResponseAttachStart  ResponseKind = "attach_started"
)

// Response is the single-line reply to any request that doesn't promote to
// a stream. Kind=Stream means the connection continues with StreamItem
// lines; Kind=AttachStarted means raw duplex forwarding begins next.
type Response struct {
	ID   string       `json:"id,omitempty"`
	Kind ResponseKind `json:"kind"`

	Agent    *core.Snapshot `json:"agent,omitempty"`
	Agents   []core.Snapshot `json:"agents,omitempty"`
	Text     string         `json:"text,omitempty"`
	Bytes    []byte         `json:"bytes,omitempty"`
	Version  uint64         `json:"version,omitempty"`
	Offset   *core.Offset   `json:"offset,omitempty"`
	Wait     *WaitResultWire `json:"wait,omitempty"`
	Killed   []string       `json:"killed,omitempty"`
	Gc       []string       `json:"gc,omitempty"`
	Debug    *DebugInfoWire `json:"debug,omitempty"`

	Rows int `json:"rows,omitempty"`
	Cols int `json:"cols,omitempty"`

	Err *ErrorWire `json:"error,omitempty"`
}

// WaitResultWire is the wire form of core.WaitResult.
type WaitResultWire struct {
	Outcome string     `json:"outcome"`
	Exit    *core.Exit `json:"exit,omitempty"`
}

// ErrorWire carries a classified failure back to the client.
type ErrorWire struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorFrom converts a classified core error (or any error) into an
// ErrorWire, defaulting to ErrorKindInternal for unclassified errors.
func ErrorFrom(err error) *ErrorWire {
	if err == nil {
		return nil
	}
	return &ErrorWire{Kind: string(core.KindOf(err)), Message: err.Error()}
}

// StreamItem is one line of a promoted stream (Subscribe, Events, Tail
// with follow=true).
type StreamItem struct {
	At      time.Time  `json:"at"`
	AgentID string     `json:"agent_id,omitempty"`
	Kind    string     `json:"kind"`
	Bytes   []byte     `json:"bytes,omitempty"`
	Text    string     `json:"text,omitempty"`
	Exit    *core.Exit `json:"exit,omitempty"`
	Lagged  int        `json:"lagged,omitempty"`
	// Truncated marks a tail --follow item as following a gap: the
	// transcript evicted bytes, or cleared, before this read caught up.
	Truncated bool `json:"truncated,omitempty"`
}
