package core

import (
	"syscall"
)

// EventPublisher is the narrow interface the pump needs from the event
// bus, kept minimal so core does not import internal/eventbus directly.
type EventPublisher interface {
	PublishOutput(id string, n int)
	PublishExited(id string, exit Exit)
}

const pumpScratchSize = 32 * 1024

// runPump is the per-agent I/O pump: read from the master, fan the bytes
// out to the transcript, the screen parser, the event bus, and pending
// waiters, then enforce max_output. It runs on its own goroutine for the
// lifetime of the agent and returns once the master reports EOF/EIO and
// the child has been reaped. It is the only goroutine that ever reads the
// master fd; Attach and other live consumers subscribe via
// Agent.SubscribeOutput instead of opening a second reader.
//
// A panic here is contained to this agent: it is reaped as Exited{Internal}
// and the goroutine returns normally, so one broken agent never takes down
// the server or any other agent's pump.
func runPump(a *Agent, pub EventPublisher) {
	defer func() {
		if r := recover(); r != nil {
			a.setPendingExitReason(ExitInternal)
			a.MarkExiting()
			if a.PTY != nil {
				_ = a.PTY.Signal(syscall.SIGKILL)
			}
			reap(a, pub, ExitInternal)
		}
	}()

	buf := make([]byte, pumpScratchSize)
	var total int64
	limits := a.Limits()

	for {
		n, err := a.PTY.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			a.Transcript.Append(chunk)
			a.Screen.Write(chunk)
			a.markOutput()
			a.publishOutput(chunk)
			if pub != nil {
				pub.PublishOutput(a.ID, n)
			}
			a.evaluateWaiters()

			total += int64(n)
			if limits.MaxOutput > 0 && total > limits.MaxOutput {
				a.setPendingExitReason(ExitMaxOutput)
				a.MarkExiting()
				_ = a.PTY.Signal(syscall.SIGKILL)
			}
		}
		if err != nil {
			reap(a, pub, exitReasonFor(a))
			return
		}
	}
}

// exitReasonFor resolves the reason to attribute to a reap: whatever an
// external actor (Kill, the orchestrator's timeout, the pump's own
// max_output enforcement) recorded via setPendingExitReason, defaulting to
// Natural for an unforced EOF.
func exitReasonFor(a *Agent) ExitReason {
	if r := a.pendingExitReason(); r != "" {
		return r
	}
	return ExitNatural
}

// reap waits for the child, records the exit, resolves waiters, and
// releases the PTY. Called exactly once per agent, from the pump goroutine.
func reap(a *Agent, pub EventPublisher, reason ExitReason) {
	code, signal, err := a.PTY.Wait()
	if err != nil {
		code, signal = -1, 0
	}
	exit := Exit{Code: code, Signal: signal, Reason: reason}
	if a.MarkExited(exit) {
		a.resolveWaitersOnExit(exit)
		if pub != nil {
			pub.PublishExited(a.ID, exit)
		}
	}
	a.closeOutputSubs()
	_ = a.PTY.Close()
}
