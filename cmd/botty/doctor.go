package main

import (
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
)

func newDoctorCmd(cfgPath, socketOverride *string) *cobra.Command {
	var unlinkStale bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the local environment botty's server would run in",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			socketPath, err := resolveSocketPath(*cfgPath, *socketOverride)
			if err != nil {
				return err
			}
			if err := doctorSocketDir(logger, socketPath); err != nil {
				return newCliError(exitOther, err)
			}
			doctorExistingSocket(logger, socketPath, unlinkStale)
			doctorShell(logger)
			logger.Info("doctor ok", "socket", socketPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unlinkStale, "unlink-stale", false, "remove the socket file if it is present but unconnectable")
	return cmd
}

func doctorSocketDir(logger pslog.Logger, socketPath string) error {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0o077 != 0 {
		logger.With("dir", dir, "mode", info.Mode().Perm()).Warn("doctor socket dir permissive", "want", "0700")
	} else {
		logger.With("dir", dir).Info("doctor socket dir ok")
	}
	return nil
}

func doctorExistingSocket(logger pslog.Logger, socketPath string, unlinkStale bool) {
	if _, err := os.Stat(socketPath); errors.Is(err, os.ErrNotExist) {
		logger.With("socket", socketPath).Info("doctor socket absent, server not running")
		return
	}
	conn, err := net.Dial("unix", socketPath)
	if err == nil {
		conn.Close()
		logger.With("socket", socketPath).Info("doctor socket connectable, server running")
		return
	}
	logger.With("socket", socketPath, "error", err).Warn("doctor socket stale, unconnectable")
	if unlinkStale {
		if rmErr := os.Remove(socketPath); rmErr != nil {
			logger.With("socket", socketPath, "error", rmErr).Error("doctor failed to remove stale socket")
			return
		}
		logger.With("socket", socketPath).Info("doctor removed stale socket")
	}
}

func doctorShell(logger pslog.Logger) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	if path, err := exec.LookPath(shell); err != nil {
		logger.With("shell", shell, "error", err).Warn("doctor shell not found on PATH")
	} else {
		logger.With("shell", path).Info("doctor shell ok")
	}
}
