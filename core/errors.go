package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a core-level failure for user-facing hints, mirroring
// the classified-error idiom the teacher uses for runner failures.
type ErrorKind string

const (
	// ErrorKindUsage indicates a malformed or invalid request.
	ErrorKindUsage ErrorKind = "usage_error"
	// ErrorKindNotFound indicates a selector resolved to nothing where one
	// live agent was required.
	ErrorKindNotFound ErrorKind = "agent_not_found"
	// ErrorKindNameInUse indicates a requested name collides with a live agent.
	ErrorKindNameInUse ErrorKind = "name_in_use"
	// ErrorKindSpawnFailed indicates the OS refused to start a child process.
	ErrorKindSpawnFailed ErrorKind = "spawn_failed"
	// ErrorKindPTY indicates a PTY allocation, resize, or ioctl failure.
	ErrorKindPTY ErrorKind = "pty_error"
	// ErrorKindTimeout indicates a wait deadline elapsed.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindWaitUnsatisfied indicates a wait predicate never matched.
	ErrorKindWaitUnsatisfied ErrorKind = "wait_unsatisfied"
	// ErrorKindBrokenPipe indicates a write to a dead client or child.
	ErrorKindBrokenPipe ErrorKind = "broken_pipe"
	// ErrorKindLagged indicates a subscriber missed events to backpressure.
	ErrorKindLagged ErrorKind = "lagged"
	// ErrorKindLimitExceeded indicates a configured limit (timeout, max-output) fired.
	ErrorKindLimitExceeded ErrorKind = "limit_exceeded"
	// ErrorKindInternal indicates an unexpected internal failure, e.g. a
	// contained panic in a pump or handler.
	ErrorKindInternal ErrorKind = "internal"
)

// Error wraps a core-level failure with a stable classification, so callers
// across the dispatcher and CLI can map it to an exit code or Err{kind}
// payload without string matching.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// NewError constructs a classified Error.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf constructs a classified Error with a formatted message.
func Errorf(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return "core error"
	}
	if e.Message != "" {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s", e.Op, e.Message)
		}
		return e.Message
	}
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
		}
		return e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return "core error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrAgentNotFound is returned by handle resolution when an id/name no
// longer resolves to a live agent.
var ErrAgentNotFound = errors.New("agent not found")

// KindOf extracts the ErrorKind from err, defaulting to ErrorKindInternal
// for unclassified errors.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, ErrAgentNotFound) {
		return ErrorKindNotFound
	}
	return ErrorKindInternal
}
