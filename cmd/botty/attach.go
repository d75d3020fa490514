package main

import (
	"bufio"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pty.systems/botty/internal/wire"
)

func newAttachCmd(cfgPath, socketOverride *string) *cobra.Command {
	var readonly bool
	cmd := &cobra.Command{
		Use:   "attach ID [--readonly]",
		Short: "Open a full-duplex bridge to an agent's PTY on the local terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttach(cmd, *cfgPath, *socketOverride, args[0], readonly)
		},
	}
	cmd.Flags().BoolVar(&readonly, "readonly", false, "watch output without forwarding keystrokes")
	return cmd
}

func runAttach(cmd *cobra.Command, cfgPath, socketOverride, id string, readonly bool) error {
	socketPath, err := resolveSocketPath(cfgPath, socketOverride)
	if err != nil {
		return err
	}
	conn, err := dialServer(socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	req := wire.Request{ID: newRequestID(), Kind: wire.KindAttach, Attach: &wire.AttachRequest{
		ID: id, Readonly: readonly,
	}}
	if err := writeRequest(conn, req); err != nil {
		return newCliError(exitOther, err)
	}
	reader := bufio.NewReaderSize(conn, 64*1024)
	resp, err := readResponse(reader)
	if err != nil {
		return err
	}
	if resp.Kind != wire.ResponseAttachStart {
		return nil
	}

	stdinFd := int(os.Stdin.Fd())
	var restore *term.State
	if !readonly && term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err == nil {
			restore = oldState
			defer term.Restore(stdinFd, restore)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(os.Stdout, reader)
	}()

	if !readonly {
		_, _ = io.Copy(conn, os.Stdin)
	}
	<-done
	return nil
}
