package main

import (
	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newPingCmd(cfgPath, socketOverride *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that a botty server is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, *cfgPath, *socketOverride, wire.Request{Kind: wire.KindPing}, func(resp wire.Response) error {
				fprintln(cmd, resp.Text)
				return nil
			})
		},
	}
}
