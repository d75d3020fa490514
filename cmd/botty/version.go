package main

import (
	"github.com/spf13/cobra"

	"pty.systems/botty/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print botty's module and build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fprintln(cmd, version.Module(), version.Current())
			return nil
		},
	}
}
