package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"

	"pty.systems/botty"
	"pty.systems/botty/internal/appconfig"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var viewerAddr string
	var viewerHostKeyPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the botty server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}

			var opts []botty.ServerOption
			if viewerAddr != "" {
				opts = append(opts, botty.WithViewer(viewerAddr, viewerHostKeyPath))
			}
			srv, err := botty.New(cfg, botty.ServerDeps{Logger: logger}, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()

			logger.Info("botty listening", "socket", cfg.Socket.Path)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			return srv.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to botty config.yaml")
	cmd.Flags().StringVar(&viewerAddr, "viewer-addr", "", "enable the read-mostly SSH viewer on this address (e.g. :2222)")
	cmd.Flags().StringVar(&viewerHostKeyPath, "viewer-host-key", "", "path to persist the viewer's SSH host key")
	return cmd
}
