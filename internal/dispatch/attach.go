package dispatch

import (
	"bufio"
	"context"
	"net"

	"pty.systems/botty/core"
	"pty.systems/botty/internal/logx"
	"pty.systems/botty/internal/wire"
)

// attachReadBuf is the scratch size for copying client input to the PTY
// master; small enough to keep attach latency low, large enough to avoid
// a syscall per byte on a fast typist or a pasted block.
const attachReadBuf = 8 * 1024

// handleAttach implements the four-step protocol: AttachStarted, then the
// screen's full-state replay, then full-duplex raw forwarding until the
// client disconnects. The server never parses detach sequences; the
// client alone decides when to close its socket.
func (s *Server) handleAttach(ctx context.Context, conn net.Conn, reader *bufio.Reader, req wire.Request) {
	if req.Attach == nil {
		writeLine(conn, errResponse(req.ID, Errorf(core.ErrorKindUsage, "attach requires a payload")))
		return
	}
	ar := req.Attach
	a, err := s.deps.Registry.Get(ar.ID)
	if err != nil {
		writeLine(conn, errResponse(req.ID, err))
		return
	}

	size := a.Size()
	writeLine(conn, wire.Response{ID: req.ID, Kind: wire.ResponseAttachStart, Rows: size.Rows, Cols: size.Cols})

	if _, err := conn.Write(a.Screen.RenderFullScreen()); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		pumpMasterToSocket(a, conn)
	}()

	if !ar.Readonly {
		s.pumpSocketToMaster(ctx, reader, a)
	} else {
		<-ctxOrDone(ctx, done)
	}
	<-done
}

// pumpMasterToSocket forwards live PTY output to conn until the agent's
// pump exits (channel closed) or the write to conn fails (client
// detached). It never reads the master fd itself: the pump is the sole
// reader for the agent's lifetime, and Attach subscribes to its output
// instead, so the transcript and an attached client always see the same
// bytes in the same order.
func pumpMasterToSocket(a *core.Agent, conn net.Conn) {
	id, ch := a.SubscribeOutput()
	defer a.UnsubscribeOutput(id)
	for chunk := range ch {
		if _, err := conn.Write(chunk); err != nil {
			return
		}
	}
}

// pumpSocketToMaster copies raw client input to the PTY master. Each write
// blocks until the master accepts it, so a child that stops reading its
// input also stalls this loop; a write that fails is logged and its bytes
// are dropped.
func (s *Server) pumpSocketToMaster(ctx context.Context, reader *bufio.Reader, a *core.Agent) {
	buf := make([]byte, attachReadBuf)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := reader.Read(buf)
		if n > 0 {
			if _, werr := a.PTY.Write(buf[:n]); werr != nil {
				logx.WithAgent(ctx, a.ID).Warn("attach input dropped", "error", werr)
			}
		}
		if err != nil {
			return
		}
	}
}

func ctxOrDone(ctx context.Context, done <-chan struct{}) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		select {
		case <-ctx.Done():
		case <-done:
		}
	}()
	return out
}
