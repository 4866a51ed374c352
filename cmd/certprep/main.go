package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-certprep-session/internal/config"
	"github.com/jrsteele09/go-certprep-session/internal/logging"
	"github.com/jrsteele09/go-certprep-session/internal/metrics"
	"github.com/jrsteele09/go-certprep-session/navigation"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("certprep stopped")
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())
	logger := logging.Setup(c.GetEnv(), c.GetLogLevel(), os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.demo != nil {
		fmt.Printf("demo account: %s / %s\n\n", demoEmail, demoPassword)
	}

	var metricsServer *http.Server
	if addr := c.GetMetricsAddr(); addr != "" {
		metricsServer = &http.Server{Addr: addr, Handler: metrics.SetupMetricsRoute(a.registry), ReadHeaderTimeout: 5 * time.Second}
		go listenAndServe(metricsServer)
	}

	a.coordinator.BootstrapSession(ctx)

	go func() {
		err := a.gate.Run(ctx, func(r navigation.Route) {
			fmt.Fprintf(os.Stdout, "-> %s\n", r)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("navigation gate stopped")
		}
	}()

	sh := newShell(a, os.Stdout)
	done := make(chan error, 1)
	go func() {
		done <- sh.Run(ctx, os.Stdin)
	}()

	select {
	case <-ctx.Done():
	case returnError = <-done:
	}

	if metricsServer != nil {
		if err := shutdown(metricsServer); err != nil && returnError == nil {
			returnError = err
		}
	}
	return returnError
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("metrics listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server failed")
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
