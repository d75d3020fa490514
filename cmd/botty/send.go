package main

import (
	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newSendCmd(cfgPath, socketOverride *string) *cobra.Command {
	var noNewline bool
	cmd := &cobra.Command{
		Use:   "send ID TEXT",
		Short: "Write text to an agent's PTY, newline-terminated by default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := wire.Request{Kind: wire.KindSend, Send: &wire.SendRequest{
				ID: args[0], Text: args[1], AppendNewline: !noNewline,
			}}
			return runClient(cmd, *cfgPath, *socketOverride, req, func(resp wire.Response) error { return nil })
		},
	}
	cmd.Flags().BoolVar(&noNewline, "no-newline", false, "do not append a trailing newline")
	return cmd
}
