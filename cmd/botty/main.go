package main

import (
	"context"
	"errors"
	"log"
	"os"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		var ce *cliError
		if errors.As(err, &ce) {
			if ce.code != exitUsage {
				pslog.Ctx(ctx).With("err", err).Error("botty command failed")
			}
			return ce.code
		}
		pslog.Ctx(ctx).With("err", err).Error("botty command failed")
		return exitOther
	}
	return exitOK
}
