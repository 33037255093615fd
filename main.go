package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/api"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/config"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/monitoring"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/segmentcache"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/segments"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/signals"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/telemetry"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/units"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/version"
)

var (
	listen       = flag.String("listen", "", "Listen address (default :8000)")
	telemetryDir = flag.String("telemetry", "", "Directory containing recorded session databases")
	cachePath    = flag.String("cache", "", "Path to the segment cache database")
	unitsFlag    = flag.String("units", "", "Speed units: ms, kmh, or mph")
	configPath   = flag.String("config", "", "Path to JSON config file")
	verbose      = flag.Bool("verbose", false, "Enable debug logging")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		log.Printf("lmu-telemetry-analyzer %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	// Flags override the config file.
	listenAddr := cfg.GetListenAddr()
	if *listen != "" {
		listenAddr = *listen
	}
	dir := cfg.GetTelemetryDir()
	if *telemetryDir != "" {
		dir = *telemetryDir
	}
	cacheFile := cfg.GetCachePath()
	if *cachePath != "" {
		cacheFile = *cachePath
	}
	speedUnits := cfg.GetSpeedUnits()
	if *unitsFlag != "" {
		speedUnits = *unitsFlag
	}
	if !units.IsValid(speedUnits) {
		log.Fatalf("invalid units %q, valid units are: %s", speedUnits, units.GetValidUnitsString())
	}
	monitoring.Verbose = *verbose || cfg.GetVerbose()

	manager := telemetry.NewManager(dir)
	sessions := manager.ListSessions()
	log.Printf("found %d sessions in %s", len(sessions), dir)

	cache, err := segmentcache.Open(cacheFile)
	if err != nil {
		log.Fatalf("failed to open segment cache: %v", err)
	}
	defer cache.Close()

	signalService := signals.NewService(manager)
	segmentService := segments.NewService(manager, signalService, cache, cfg.DetectorParams())

	server := api.NewServer(manager, signalService, segmentService, cache, speedUnits, cfg.GetMaxChartPoints())

	mux := server.ServeMux()
	cache.AttachAdminRoutes(mux)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		httpServer := &http.Server{
			Addr:    listenAddr,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s (units=%s)", listenAddr, speedUnits)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}
