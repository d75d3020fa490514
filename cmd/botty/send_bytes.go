package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newSendBytesCmd(cfgPath, socketOverride *string) *cobra.Command {
	var hexStr string
	cmd := &cobra.Command{
		Use:   "send-bytes ID --hex HEX",
		Short: "Write raw bytes to an agent's PTY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(hexStr)
			if err != nil {
				return newCliError(exitUsage, err)
			}
			req := wire.Request{Kind: wire.KindSendBytes, SendBytes: &wire.SendBytesRequest{
				ID: args[0], Bytes: data,
			}}
			return runClient(cmd, *cfgPath, *socketOverride, req, func(resp wire.Response) error { return nil })
		},
	}
	cmd.Flags().StringVar(&hexStr, "hex", "", "hex-encoded bytes to write")
	_ = cmd.MarkFlagRequired("hex")
	return cmd
}
