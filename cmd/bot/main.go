package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hwbot/internal/app"
	"hwbot/internal/config"
	logx "hwbot/pkg/logx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	boot := logx.NewConsole("info").With(logx.String("comp", "boot"))

	if err := config.LoadDotEnv(); err != nil {
		boot.Warn("could not load .env", logx.Err(err))
	}
	creds, err := config.LoadCredentials(os.LookupEnv)
	if err != nil {
		var missing *config.EnvVariableMissingError
		if errors.As(err, &missing) {
			boot.Critical("required environment variables are missing; refusing to start",
				logx.Strs("missing", missing.Names))
		} else {
			boot.Critical("cannot read credentials", logx.Err(err))
		}
		os.Exit(1)
	}

	cfgm := config.NewManager(os.Getenv(config.EnvConfigPath), boot)
	if _, err := cfgm.Load(); err != nil {
		boot.Critical("cannot load config", logx.String("path", cfgm.Path()), logx.Err(err))
		os.Exit(1)
	}

	a, err := app.New(creds, cfgm)
	if err != nil {
		boot.Critical("cannot build app", logx.Err(err))
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		boot.Critical("cannot start app", logx.Err(err))
		os.Exit(1)
	}

	<-a.Done()
	reason := app.StopSignal
	if ctx.Err() == nil {
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
}
