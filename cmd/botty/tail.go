package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newTailCmd(cfgPath, socketOverride *string) *cobra.Command {
	var n int
	var follow bool
	var raw bool

	cmd := &cobra.Command{
		Use:   "tail ID [-n N] [-f] [--raw]",
		Short: "Print (or follow) an agent's recent transcript bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			socketPath, err := resolveSocketPath(*cfgPath, *socketOverride)
			if err != nil {
				return err
			}
			conn, err := dialServer(socketPath)
			if err != nil {
				return err
			}
			defer conn.Close()

			req := wire.Request{ID: newRequestID(), Kind: wire.KindTail, Tail: &wire.TailRequest{
				ID: args[0], N: n, Follow: follow, Raw: raw,
			}}
			if err := writeRequest(conn, req); err != nil {
				return newCliError(exitOther, err)
			}
			reader := bufio.NewReaderSize(conn, 64*1024)
			resp, err := readResponse(reader)
			if err != nil {
				return err
			}
			if resp.Kind != wire.ResponseStream {
				os.Stdout.Write(resp.Bytes)
				return nil
			}
			return readStreamItems(reader, func(item wire.StreamItem) bool {
				if item.Truncated {
					fmt.Fprintln(os.Stderr, "tail: output gap, some bytes were evicted before they could be read")
				}
				if len(item.Bytes) > 0 {
					os.Stdout.Write(item.Bytes)
				}
				return item.Kind != "exit"
			})
		},
	}
	cmd.Flags().IntVarP(&n, "n", "n", 0, "only show the last N bytes (0 = full transcript)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep streaming as new output arrives")
	cmd.Flags().BoolVar(&raw, "raw", false, "keep raw bytes including escape sequences")
	return cmd
}
