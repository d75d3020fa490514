package main

import (
	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newGcCmd(cfgPath, socketOverride *string) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Drop retained Exited agents from the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, *cfgPath, *socketOverride, wire.Request{Kind: wire.KindGc}, func(resp wire.Response) error {
				for _, id := range resp.Gc {
					fprintln(cmd, id)
				}
				return nil
			})
		},
	}
}
