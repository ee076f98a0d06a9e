// Package app wires the simulation server, logging, configuration, and
// diagnostics together into a runnable process.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	server "shared-jello/server"
	"shared-jello/server/internal/config"
	"shared-jello/server/internal/diag"
	"shared-jello/server/internal/geom"
	"shared-jello/server/internal/telemetry"
	"shared-jello/server/logging"
	loggingsinks "shared-jello/server/logging/sinks"
)

// Run brings the server up, runs the simulation loop until ctx is
// cancelled, and tears everything down. It returns only fatal bring-up
// errors.
func Run(ctx context.Context, args []string) error {
	opts, err := ParseArgs(args)
	if err != nil {
		return err
	}

	// Pipe errors surface through the wire codec, not through signals.
	signal.Ignore(syscall.SIGPIPE)

	telemetryLogger := telemetry.WrapLogger(log.Default())

	logConfig := logging.DefaultConfig()
	router := logging.NewRouter(logging.SystemClock{}, logConfig, []logging.NamedSink{
		{Name: "console", Sink: loggingsinks.NewConsoleSink(os.Stdout, logConfig.Console)},
	})
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	counters := telemetry.NewCounters()

	srv, err := server.NewServer(server.Config{
		NumAtoms:       opts.NumAtoms,
		Port:           opts.Port,
		UpdateInterval: opts.UpdateInterval(),
		Logger:         telemetryLogger,
		Publisher:      router,
		Counters:       counters,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Shutdown()

	if opts.ConfigPath != "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return err
		}
		srv.SetParameters(serverParams(cfg.Params))

		watcher, err := config.NewWatcher(opts.ConfigPath, telemetryLogger, func(p config.Params) {
			srv.SetParameters(serverParams(p))
		})
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		defer watcher.Close()
	}

	if opts.DiagAddr != "" {
		diagSrv := &http.Server{
			Addr:    opts.DiagAddr,
			Handler: diag.NewHandler(srv, telemetryLogger),
		}
		go func() {
			if err := diagSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				telemetryLogger.Printf("diagnostics server failed: %v", err)
			}
		}()
		defer diagSrv.Close()
	}

	telemetryLogger.Printf("shared Jell-O server listening on port %d", srv.Port())

	stop := make(chan struct{})
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		srv.Run(stop)
	}()

	<-ctx.Done()
	close(stop)
	<-loopDone
	return nil
}

func serverParams(p config.Params) server.Params {
	return server.Params{
		AtomMass:    geom.Scalar(p.AtomMass),
		Attenuation: geom.Scalar(p.Attenuation),
		Gravity:     geom.Scalar(p.Gravity),
	}
}
