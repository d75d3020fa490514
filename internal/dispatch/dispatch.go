// Package dispatch implements the request dispatcher described in the
// server design: newline-delimited JSON request/response framing over a
// Unix socket connection, with per-agent write serialization and stream
// promotion for tail/subscribe/events/attach.
package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/x/ansi"

	"pkt.systems/pslog"

	"pty.systems/botty/core"
	"pty.systems/botty/internal/eventbus"
	"pty.systems/botty/internal/logx"
	"pty.systems/botty/internal/wire"
)

// Deps are the subsystems a Server needs to service requests.
type Deps struct {
	Registry     *core.Registry
	Orchestrator *core.Orchestrator
	Bus          *eventbus.Bus
	Logger       pslog.Logger
	// ShuttingDown is polled by Spawn to refuse new work once draining has
	// started, per the orchestrator's "refuse new spawns" shutdown step.
	ShuttingDown func() bool
	// TriggerShutdown begins server-wide draining; wired to the process
	// lifecycle wrapper by the caller.
	TriggerShutdown func()
}

// Server handles connections accepted on the socket listener, one
// goroutine per connection. Per-agent write access (transcript/screen/
// state mutation) is serialized by a lock keyed on agent id; handlers
// otherwise run fully concurrently.
type Server struct {
	deps Deps

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Server over deps.
func New(deps Deps) *Server {
	return &Server{deps: deps, locks: make(map[string]*sync.Mutex)}
}

func (s *Server) agentLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Serve accepts connections on ln until ctx is cancelled or ln is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn reads exactly one request line, dispatches it, and either
// writes a single response line then closes, or promotes the connection to
// a stream / duplex bridge.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReaderSize(conn, 64*1024)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return
	}

	var req wire.Request
	if err := json.Unmarshal(line, &req); err != nil {
		writeLine(conn, wire.Response{Kind: wire.ResponseError, Err: &wire.ErrorWire{
			Kind: string(core.ErrorKindUsage), Message: "malformed request: " + err.Error(),
		}})
		return
	}

	logx.WithRequest(ctx, req.ID).With("kind", string(req.Kind)).Debug("dispatch request")

	s.safeDispatch(ctx, conn, reader, req)
}

// safeDispatch runs dispatch with panic containment: a handler that panics
// is logged and answered with an Internal error response for this
// connection, rather than taking down the accept loop and every other
// connection it serves.
func (s *Server) safeDispatch(ctx context.Context, conn net.Conn, reader *bufio.Reader, req wire.Request) {
	defer func() {
		if r := recover(); r != nil {
			logx.WithRequest(ctx, req.ID).Error("dispatch handler panic", "recovered", fmt.Sprintf("%v", r))
			writeLine(conn, errResponse(req.ID, core.Errorf(core.ErrorKindInternal, "dispatch", "internal error")))
		}
	}()
	s.dispatch(ctx, conn, reader, req)
}

func (s *Server) dispatch(ctx context.Context, conn net.Conn, reader *bufio.Reader, req wire.Request) {
	switch req.Kind {
	case wire.KindPing:
		writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Text: "pong"})
	case wire.KindSpawn:
		s.handleSpawn(ctx, conn, req)
	case wire.KindList:
		s.handleList(conn, req)
	case wire.KindSend:
		s.handleSend(conn, req)
	case wire.KindSendBytes:
		s.handleSendBytes(conn, req)
	case wire.KindSnapshot:
		s.handleSnapshot(conn, req)
	case wire.KindTail:
		s.handleTail(ctx, conn, req)
	case wire.KindDump:
		s.handleDump(conn, req)
	case wire.KindSubscribe:
		s.handleSubscribe(ctx, conn, req)
	case wire.KindEvents:
		s.handleEvents(ctx, conn, req)
	case wire.KindWait:
		s.handleWait(ctx, conn, reader, req)
	case wire.KindKill:
		s.handleKill(conn, req)
	case wire.KindResize:
		s.handleResize(conn, req)
	case wire.KindAttach:
		s.handleAttach(ctx, conn, reader, req)
	case wire.KindShutdown:
		s.handleShutdown(conn, req)
	case wire.KindGc:
		s.handleGc(conn, req)
	case wire.KindDebug:
		s.handleDebug(conn, req)
	default:
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "unknown request kind %q", req.Kind)))
	}
}

// Errorf is a small local helper so handlers don't have to import
// core.Errorf under a different name for op-less usage errors.
func Errorf(kind core.ErrorKind, format string, args ...any) error {
	return core.Errorf(kind, "dispatch", format, args...)
}

func writeLine(conn net.Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	b = append(b, '\n')
	_, _ = conn.Write(b)
}

func errResponse(id string, err error) wire.Response {
	return wire.Response{ID: id, Kind: wire.ResponseError, Err: wire.ErrorFrom(err)}
}

func (s *Server) handleSpawn(ctx context.Context, conn net.Conn, req wire.Request) {
	if req.Spawn == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "spawn requires a payload")))
		return
	}
	if s.deps.ShuttingDown != nil && s.deps.ShuttingDown() {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "server is shutting down, refusing new spawns")))
		return
	}
	sr := req.Spawn
	size := core.Size{Rows: sr.Rows, Cols: sr.Cols}
	limits := core.Limits{
		Timeout:   time.Duration(sr.TimeoutMs) * time.Millisecond,
		MaxOutput: sr.MaxOutput,
	}
	plan := core.SpawnPlan{
		Request: core.SpawnRequest{
			Name: sr.Name, Argv: sr.Argv, Env: sr.Env, Labels: sr.Labels,
			Size: size, Limits: limits,
		},
		After:   sr.After,
		WaitFor: parseWaitFor(sr.WaitFor),
	}
	agent, err := s.deps.Orchestrator.Spawn(ctx, plan)
	if err != nil {
		writeLine(conn, errResponse(req.ID, err))
		return
	}
	if s.deps.Bus != nil {
		s.deps.Bus.PublishSpawned(agent.ID)
	}
	snap := agent.Snapshot()
	writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Agent: &snap})
}

func parseWaitFor(clauses []string) []core.WaitForClause {
	out := make([]core.WaitForClause, 0, len(clauses))
	for _, c := range clauses {
		idx := indexByte(c, ':')
		if idx < 0 {
			continue
		}
		out = append(out, core.WaitForClause{AgentID: c[:idx], Pattern: c[idx+1:]})
	}
	return out
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func (s *Server) handleList(conn net.Conn, req wire.Request) {
	agents := s.deps.Registry.List()
	snaps := make([]core.Snapshot, 0, len(agents))
	for _, a := range agents {
		snaps = append(snaps, a.Snapshot())
	}
	writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Agents: snaps})
}

func (s *Server) withAgent(conn net.Conn, id string, reqID string, fn func(a *core.Agent)) {
	a, err := s.deps.Registry.Get(id)
	if err != nil {
		writeLine(conn, errResponse(reqID, err))
		return
	}
	lock := s.agentLock(id)
	lock.Lock()
	defer lock.Unlock()
	fn(a)
}

func (s *Server) handleSend(conn net.Conn, req wire.Request) {
	if req.Send == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "send requires a payload")))
		return
	}
	sr := req.Send
	s.withAgent(conn, sr.ID, req.ID, func(a *core.Agent) {
		text := sr.Text
		if sr.AppendNewline {
			text += "\n"
		}
		if _, err := a.PTY.Write([]byte(text)); err != nil {
			writeLine(conn, errResponse(req.ID, core.NewError(core.ErrorKindBrokenPipe, "send", err)))
			return
		}
		writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK})
	})
}

func (s *Server) handleSendBytes(conn net.Conn, req wire.Request) {
	if req.SendBytes == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "send_bytes requires a payload")))
		return
	}
	sb := req.SendBytes
	s.withAgent(conn, sb.ID, req.ID, func(a *core.Agent) {
		if _, err := a.PTY.Write(sb.Bytes); err != nil {
			writeLine(conn, errResponse(req.ID, core.NewError(core.ErrorKindBrokenPipe, "send_bytes", err)))
			return
		}
		writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK})
	})
}

func (s *Server) handleSnapshot(conn net.Conn, req wire.Request) {
	if req.Snapshot == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "snapshot requires a payload")))
		return
	}
	sr := req.Snapshot
	s.withAgent(conn, sr.ID, req.ID, func(a *core.Agent) {
		if sr.Format == "cells" {
			b, _ := json.Marshal(a.Screen.SnapshotCells())
			writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Bytes: b})
			return
		}
		text := a.Screen.SnapshotText(core.SnapshotOpts{StripColor: sr.Normalize})
		writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Text: text})
	})
}

func (s *Server) handleDump(conn net.Conn, req wire.Request) {
	if req.Dump == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "dump requires a payload")))
		return
	}
	dr := req.Dump
	s.withAgent(conn, dr.ID, req.ID, func(a *core.Agent) {
		var data []byte
		var offset core.Offset
		if dr.Since != nil {
			data, offset, _ = a.Transcript.Since(*dr.Since)
		} else {
			data = a.Transcript.Contents()
			offset = a.Transcript.Head()
		}
		writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Bytes: data, Offset: &offset})
	})
}

func (s *Server) handleResize(conn net.Conn, req wire.Request) {
	if req.Resize == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "resize requires a payload")))
		return
	}
	rr := req.Resize
	s.withAgent(conn, rr.ID, req.ID, func(a *core.Agent) {
		size := core.Size{Rows: rr.Rows, Cols: rr.Cols}
		if err := a.PTY.Resize(size); err != nil {
			writeLine(conn, errResponse(req.ID, err))
			return
		}
		a.Screen.Resize(rr.Rows, rr.Cols)
		a.SetSize(size)
		if rr.ClearTranscript {
			a.Transcript.Clear()
		}
		if s.deps.Bus != nil {
			s.deps.Bus.PublishResized(a.ID, rr.Rows, rr.Cols)
		}
		writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Rows: rr.Rows, Cols: rr.Cols})
	})
}

func (s *Server) handleKill(conn net.Conn, req wire.Request) {
	if req.Kill == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "kill requires a payload")))
		return
	}
	kr := req.Kill
	sig := kr.Signal
	if sig == 0 {
		sig = 9
	}
	sel := kr.Selector.ToSelector()
	var killedIDs []string
	err := s.deps.Registry.Kill(sel, func(a *core.Agent) error {
		killedIDs = append(killedIDs, a.ID)
		return a.PTY.Signal(syscall.Signal(sig))
	})
	if err != nil {
		writeLine(conn, errResponse(req.ID, err))
		return
	}
	writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Killed: killedIDs})
}

func (s *Server) handleGc(conn net.Conn, req wire.Request) {
	removed := s.deps.Registry.Gc()
	writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Gc: removed})
}

func (s *Server) handleDebug(conn net.Conn, req wire.Request) {
	if req.Debug == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "debug requires a payload")))
		return
	}
	dr := req.Debug
	s.withAgent(conn, dr.ID, req.ID, func(a *core.Agent) {
		snap := a.Snapshot()
		limits := a.Limits()
		info := &wire.DebugInfoWire{
			ID:                 snap.ID,
			State:              snap.State,
			PID:                snap.PID,
			Rows:               snap.Rows,
			Cols:               snap.Cols,
			Argv:               snap.Argv,
			Labels:             snap.Labels,
			LimitsTimeoutMs:    limits.Timeout.Milliseconds(),
			LimitsMaxOutput:    limits.MaxOutput,
			WaiterCount:        a.WaiterCount(),
			TranscriptLen:      a.Transcript.Len(),
			TranscriptCapacity: a.Transcript.Capacity(),
			TranscriptVersion:  a.Transcript.Version(),
			TranscriptEpoch:    a.Transcript.Head().Epoch,
		}
		writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Debug: info})
	})
}

func (s *Server) handleShutdown(conn net.Conn, req wire.Request) {
	writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK})
	if s.deps.TriggerShutdown != nil {
		s.deps.TriggerShutdown()
	}
}

func (s *Server) handleWait(ctx context.Context, conn net.Conn, reader *bufio.Reader, req wire.Request) {
	if req.Wait == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "wait requires a payload")))
		return
	}
	wr := req.Wait
	a, err := s.deps.Registry.Get(wr.ID)
	if err != nil {
		writeLine(conn, errResponse(req.ID, err))
		return
	}
	pred := core.Predicate{
		Contains:  wr.Predicate.Contains,
		StableFor: time.Duration(wr.Predicate.StableMs) * time.Millisecond,
		OnExit:    wr.Predicate.OnExit,
	}
	if wr.Predicate.Regex != "" {
		re, err := regexp.Compile(wr.Predicate.Regex)
		if err != nil {
			writeLine(conn, errResponse(req.ID, core.NewError(core.ErrorKindUsage, "wait", err)))
			return
		}
		pred.Regex = re
	}
	timeout := time.Duration(wr.TimeoutMs) * time.Millisecond

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watchDisconnect(reader, cancel)

	res := a.Wait(waitCtx, pred, timeout)
	writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Wait: &wire.WaitResultWire{
		Outcome: string(res.Outcome), Exit: res.Exit,
	}})
}

// watchDisconnect blocks on a single read from reader and calls cancel once
// it errors, which happens as soon as the peer closes its side of the
// connection. wait is the one non-streaming handler that can block for a
// long time on nothing but a deadline; this lets a client disconnect
// deregister its wait immediately instead of leaving it to time out.
// Harmless if the client never sends anything further: the read simply
// blocks until the connection closes at RunE's own conn.Close, and this
// goroutine exits with it.
func watchDisconnect(reader *bufio.Reader, cancel context.CancelFunc) {
	buf := make([]byte, 1)
	if _, err := reader.Read(buf); err != nil {
		cancel()
	}
}

func (s *Server) handleTail(ctx context.Context, conn net.Conn, req wire.Request) {
	if req.Tail == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "tail requires a payload")))
		return
	}
	tr := req.Tail
	a, err := s.deps.Registry.Get(tr.ID)
	if err != nil {
		writeLine(conn, errResponse(req.ID, err))
		return
	}

	contents := a.Transcript.Contents()
	if tr.N > 0 && len(contents) > tr.N {
		contents = contents[len(contents)-tr.N:]
	}
	if !tr.Raw {
		contents = stripANSI(contents)
	}
	if !tr.Follow {
		writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseOK, Bytes: contents})
		return
	}

	writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseStream})
	streamItem(conn, wire.StreamItem{Kind: "output", AgentID: a.ID, Bytes: contents})

	ch, cancel := s.deps.Bus.Subscribe(eventbus.Filter{IDs: []string{a.ID}, Kinds: []eventbus.Kind{eventbus.KindOutput, eventbus.KindAgentExited}})
	defer cancel()
	off := a.Transcript.Head()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Kind == eventbus.KindAgentExited {
				streamItem(conn, wire.StreamItem{Kind: "exit", AgentID: a.ID, Exit: ev.Exit})
				return
			}
			// Re-reads everything appended since off rather than the bytes
			// this one event announced, so a burst of coalesced output
			// events yields one chunk covering all of them. ev.Lagged is
			// this single event's own drop count, not necessarily the size
			// of that chunk — an accurate figure would need to accumulate
			// Lagged across every event folded into this read.
			data, next, truncated := a.Transcript.Since(off)
			off = next
			if !tr.Raw {
				data = stripANSI(data)
			}
			if len(data) > 0 || truncated {
				if !streamItem(conn, wire.StreamItem{Kind: "output", AgentID: a.ID, Bytes: data, Lagged: ev.Lagged, Truncated: truncated}) {
					return
				}
			}
		}
	}
}

// stripANSI removes escape sequences from a tail chunk when the caller
// asked for cooked rather than raw output. Applied per-chunk rather than
// across the whole stream, so an escape sequence split across two follow
// chunks survives as literal bytes in the first chunk instead of being
// reassembled; acceptable for a human-readable tail, unlike Screen's
// cell-accurate parser.
func stripANSI(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	return []byte(ansi.Strip(string(b)))
}

// streamItem writes one StreamItem line, returning false if the write
// failed (peer gone), signalling the caller to stop streaming.
func streamItem(conn net.Conn, item wire.StreamItem) bool {
	if item.At.IsZero() {
		item.At = time.Now()
	}
	b, err := json.Marshal(item)
	if err != nil {
		return true
	}
	b = append(b, '\n')
	_, err = conn.Write(b)
	return err == nil
}

func (s *Server) handleSubscribe(ctx context.Context, conn net.Conn, req wire.Request) {
	if req.Subscribe == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "subscribe requires a payload")))
		return
	}
	sr := req.Subscribe
	kinds := kindsFromWire(sr.Filter.Kinds)
	if !sr.IncludeOutput && len(kinds) == 0 {
		kinds = []eventbus.Kind{eventbus.KindAgentSpawned, eventbus.KindAgentExited, eventbus.KindResized}
	}
	filter := eventbus.Filter{IDs: sr.Filter.IDs, Labels: sr.Filter.Labels, Kinds: kinds}
	s.streamEvents(ctx, conn, req.ID, filter)
}

func (s *Server) handleEvents(ctx context.Context, conn net.Conn, req wire.Request) {
	if req.Events == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "events requires a payload")))
		return
	}
	er := req.Events
	filter := eventbus.Filter{
		IDs: er.Filter.IDs, Labels: er.Filter.Labels,
		Kinds: []eventbus.Kind{eventbus.KindAgentSpawned, eventbus.KindAgentExited, eventbus.KindResized},
	}
	s.streamEvents(ctx, conn, req.ID, filter)
}

func kindsFromWire(kinds []string) []eventbus.Kind {
	out := make([]eventbus.Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, eventbus.Kind(k))
	}
	return out
}

func (s *Server) streamEvents(ctx context.Context, conn net.Conn, reqID string, filter eventbus.Filter) {
	writeLine(conn, wire.Response{ID: reqID, Kind: wire.ResponseStream})
	ch, cancel := s.deps.Bus.Subscribe(filter)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			item := wire.StreamItem{At: ev.At, AgentID: ev.AgentID, Kind: string(ev.Kind), Exit: ev.Exit, Lagged: ev.Lagged}
			if !streamItem(conn, item) {
				return
			}
		}
	}
}
