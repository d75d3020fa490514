package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	var socketOverride string

	root := &cobra.Command{
		Use:           "botty",
		Short:         "botty spawns and multiplexes headless PTY sessions behind a Unix socket",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to botty config.yaml (defaults to $XDG_CONFIG_HOME/botty/config.yaml)")
	root.PersistentFlags().StringVar(&socketOverride, "socket", "", "override the server socket path (defaults to $BOTTY_SOCKET or config)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSpawnCmd(&cfgPath, &socketOverride))
	root.AddCommand(newListCmd(&cfgPath, &socketOverride))
	root.AddCommand(newSendCmd(&cfgPath, &socketOverride))
	root.AddCommand(newSendBytesCmd(&cfgPath, &socketOverride))
	root.AddCommand(newTailCmd(&cfgPath, &socketOverride))
	root.AddCommand(newSnapshotCmd(&cfgPath, &socketOverride))
	root.AddCommand(newWaitCmd(&cfgPath, &socketOverride))
	root.AddCommand(newKillCmd(&cfgPath, &socketOverride))
	root.AddCommand(newAttachCmd(&cfgPath, &socketOverride))
	root.AddCommand(newEventsCmd(&cfgPath, &socketOverride))
	root.AddCommand(newSubscribeCmd(&cfgPath, &socketOverride))
	root.AddCommand(newResizeCmd(&cfgPath, &socketOverride))
	root.AddCommand(newShutdownCmd(&cfgPath, &socketOverride))
	root.AddCommand(newPingCmd(&cfgPath, &socketOverride))
	root.AddCommand(newDoctorCmd(&cfgPath, &socketOverride))
	root.AddCommand(newGcCmd(&cfgPath, &socketOverride))
	root.AddCommand(newDebugCmd(&cfgPath, &socketOverride))
	root.AddCommand(newVersionCmd())

	return root
}
