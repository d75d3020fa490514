// Command botty is the CLI front end for a botty server: every subcommand
// dials the Unix socket, writes one wire.Request line, and either prints a
// single wire.Response or drains a promoted stream.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pty.systems/botty/core"
	"pty.systems/botty/internal/appconfig"
	"pty.systems/botty/internal/wire"
)

// Exit codes per the CLI surface's contract: 0 success, 2 usage, 3 agent
// not found, 4 wait timeout, 5 server unreachable, 1 other.
const (
	exitOK             = 0
	exitOther          = 1
	exitUsage          = 2
	exitAgentNotFound  = 3
	exitWaitTimeout    = 4
	exitUnreachable    = 5
)

// cliError carries the process exit code a failure should produce,
// distinct from cobra's own usage-vs-execution error split.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func newCliError(code int, err error) *cliError {
	return &cliError{code: code, err: err}
}

// exitCodeFor maps a returned error to a process exit code, defaulting to
// exitOther for anything not classified.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitOther
}

func exitCodeForKind(kind string) int {
	switch core.ErrorKind(kind) {
	case core.ErrorKindUsage:
		return exitUsage
	case core.ErrorKindNotFound:
		return exitAgentNotFound
	case core.ErrorKindTimeout, core.ErrorKindWaitUnsatisfied:
		return exitWaitTimeout
	default:
		return exitOther
	}
}

// resolveSocketPath loads the config (only to inherit its socket path
// resolution) unless an explicit override was passed on the command line.
func resolveSocketPath(cfgPath, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return "", newCliError(exitOther, err)
	}
	return cfg.Socket.Path, nil
}

// dialServer connects to the socket, translating connection failure into
// the server-unreachable exit code the spec reserves for it.
func dialServer(socketPath string) (net.Conn, error) {
	conn, err := net.DialTimeout("unix", socketPath, 3*time.Second)
	if err != nil {
		return nil, newCliError(exitUnreachable, fmt.Errorf("botty server unreachable at %s: %w", socketPath, err))
	}
	return conn, nil
}

func newRequestID() string {
	return uuid.NewString()
}

// roundTrip sends one request and reads exactly one response line. It is
// not valid for requests that promote to a stream (tail --follow,
// subscribe, events, attach); those manage the connection themselves.
func roundTrip(conn net.Conn, req wire.Request) (wire.Response, error) {
	if err := writeRequest(conn, req); err != nil {
		return wire.Response{}, newCliError(exitOther, err)
	}
	reader := bufio.NewReaderSize(conn, 64*1024)
	return readResponse(reader)
}

func writeRequest(conn net.Conn, req wire.Request) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	_, err := conn.Write(buf.Bytes())
	return err
}

func readResponse(reader *bufio.Reader) (wire.Response, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return wire.Response{}, newCliError(exitUnreachable, fmt.Errorf("read response: %w", err))
	}
	var resp wire.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return wire.Response{}, newCliError(exitOther, fmt.Errorf("malformed response: %w", err))
	}
	if resp.Kind == wire.ResponseError && resp.Err != nil {
		return resp, newCliError(exitCodeForKind(resp.Err.Kind), errors.New(resp.Err.Message))
	}
	return resp, nil
}

// readStreamItems decodes StreamItem lines until the connection closes or
// fn returns false, requesting an early stop.
func readStreamItems(reader *bufio.Reader, fn func(wire.StreamItem) bool) error {
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var item wire.StreamItem
			if uerr := json.Unmarshal(line, &item); uerr == nil {
				if !fn(item) {
					return nil
				}
			}
		}
		if err != nil {
			return nil
		}
	}
}

// runClient is the shared skeleton every subcommand's RunE follows: resolve
// the socket, dial, send req, print via render, translate errors to exit
// codes via cobra's SilenceUsage/SilenceErrors + os.Exit in main.go.
func runClient(cmd *cobra.Command, cfgPath, socketOverride string, req wire.Request, render func(wire.Response) error) error {
	socketPath, err := resolveSocketPath(cfgPath, socketOverride)
	if err != nil {
		return err
	}
	conn, err := dialServer(socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	req.ID = newRequestID()
	resp, err := roundTrip(conn, req)
	if err != nil {
		return err
	}
	return render(resp)
}

func fprintln(cmd *cobra.Command, a ...any) {
	fmt.Fprintln(cmd.OutOrStdout(), a...)
}
