package main

import (
	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newKillCmd(cfgPath, socketOverride *string) *cobra.Command {
	var label string
	var procMatch string
	var all bool
	var term bool

	cmd := &cobra.Command{
		Use:   "kill [ID|--label L|--proc R|--all]",
		Short: "Signal every agent matched by the selector",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := wire.SelectorWire{All: all, Label: label, ProcMatch: procMatch}
			if len(args) == 1 {
				sel.ID = args[0]
			}
			sig := 9
			if term {
				sig = 15
			}
			req := wire.Request{Kind: wire.KindKill, Kill: &wire.KillRequest{Selector: sel, Signal: sig}}
			return runClient(cmd, *cfgPath, *socketOverride, req, func(resp wire.Response) error {
				for _, id := range resp.Killed {
					fprintln(cmd, id)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "kill every agent carrying this label")
	cmd.Flags().StringVar(&procMatch, "proc", "", "kill every agent whose argv[0] basename matches this regex")
	cmd.Flags().BoolVar(&all, "all", false, "kill every live agent")
	cmd.Flags().BoolVarP(&term, "term", "t", false, "send SIGTERM instead of the default SIGKILL (-9)")
	return cmd
}
