// Command agent runs the QAPI agent core as a standalone process,
// grounded on the teacher's main.go/cmd/single/main.go pattern: flag-based
// debug override, automaxprocs for correct GOMAXPROCS inside a container,
// LoadConfig, structured logger construction and signal-driven graceful
// shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/ioticlabs/qapi-core/config"
	"github.com/ioticlabs/qapi-core/internal/flush"
	"github.com/ioticlabs/qapi-core/internal/metrics"
	"github.com/ioticlabs/qapi-core/internal/monitoring"
	"github.com/ioticlabs/qapi-core/internal/protocol"
	"github.com/ioticlabs/qapi-core/internal/stash"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	flag.Parse()

	bootLogger := log.New(os.Stdout, "[qapi-agent] ", log.LstdFlags)

	// automaxprocs rounds GOMAXPROCS down to the nearest whole CPU from
	// the container's cgroup limit; this is logged, not overridden, since
	// the flush/callback pool sizes come from explicit config instead.
	bootLogger.Printf("GOMAXPROCS: %d (via automaxprocs)", runtime.GOMAXPROCS(0))

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		bootLogger.Fatalf("failed to load configuration: %v", err)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	cfg.Print()

	logger := monitoring.NewLogger(monitoring.LoggerConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	cfg.LogConfig(logger)

	client := protocol.New(cfg.ProtocolConfig(logger))
	if err := client.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start protocol client")
	}

	pool := flush.New("agent", client, cfg.StashWorkers, logger)

	store, err := stash.New(cfg.StashFile, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load stash")
	}
	store.Start()

	sampleCtx, stopSampling := context.WithCancel(context.Background())
	defer stopSampling()
	metrics.StartProcessSampler(sampleCtx, cfg.MetricsInterval, logger)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case <-pool.Abort():
		logger.Error().Msg("flush pool aborted, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SocketTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	store.Stop()
	pool.Stop()
	client.Stop()
	logger.Info().Msg("shutdown complete")
}
