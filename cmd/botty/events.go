package main

import (
	"bufio"
	"encoding/json"

	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newEventsCmd(cfgPath, socketOverride *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream lifecycle events (spawned/exited/resized) for every agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := wire.Request{ID: newRequestID(), Kind: wire.KindEvents, Events: &wire.EventsRequest{}}
			return streamAndPrint(cmd, *cfgPath, *socketOverride, req)
		},
	}
	return cmd
}

// streamAndPrint dials, sends req, then prints one JSON line per
// wire.StreamItem it receives until the connection closes.
func streamAndPrint(cmd *cobra.Command, cfgPath, socketOverride string, req wire.Request) error {
	socketPath, err := resolveSocketPath(cfgPath, socketOverride)
	if err != nil {
		return err
	}
	conn, err := dialServer(socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := writeRequest(conn, req); err != nil {
		return newCliError(exitOther, err)
	}
	reader := bufio.NewReaderSize(conn, 64*1024)
	resp, err := readResponse(reader)
	if err != nil {
		return err
	}
	if resp.Kind != wire.ResponseStream {
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	return readStreamItems(reader, func(item wire.StreamItem) bool {
		_ = enc.Encode(item)
		return true
	})
}
