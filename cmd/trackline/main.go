package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/trackline/internal/api"
	"github.com/banshee-data/trackline/internal/config"
	"github.com/banshee-data/trackline/internal/db"
	"github.com/banshee-data/trackline/internal/monitoring"
	"github.com/banshee-data/trackline/internal/sim"
	"github.com/banshee-data/trackline/internal/timeutil"
	"github.com/banshee-data/trackline/internal/tracks"
	"github.com/banshee-data/trackline/internal/units"
	"github.com/banshee-data/trackline/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON simulation config (defaults built in)")
	listen      = flag.String("listen", "", "Listen address (overrides config)")
	dbPath      = flag.String("db", "", "Lap database path (overrides config)")
	presetsFile = flag.String("presets", "", "YAML file with extra track presets (overrides config)")
	trackID     = flag.String("track", "", "Initial track id (overrides config)")
	noRecord    = flag.Bool("no-record", false, "Do not store laps in the database")
	autostart   = flag.Bool("autostart", false, "Start the session immediately")
	speedUnits  = flag.String("units", units.KPH, "Units for reported lap speeds (mps, mph, kmph, kph)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("trackline", version.String())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(os.Stdout, flag.Args()[1:], cfg.GetDBPath()); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	if !units.IsValid(*speedUnits) {
		log.Fatalf("invalid -units %q; want one of %v", *speedUnits, units.ValidUnits)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("trackline: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// loadConfig reads -config when set and applies flag overrides.
func loadConfig() (*config.SimConfig, error) {
	cfg := config.EmptySimConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadSimConfig(*configPath); err != nil {
			return nil, err
		}
	}
	applyFlagOverrides(cfg)
	return cfg, cfg.Validate()
}

func applyFlagOverrides(cfg *config.SimConfig) {
	if *listen != "" {
		cfg.Listen = listen
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}
	if *presetsFile != "" {
		cfg.PresetsFile = presetsFile
	}
	if *trackID != "" {
		cfg.Track = trackID
	}
	if *noRecord {
		off := false
		cfg.RecordLaps = &off
	}
}

// buildSession assembles the registry, cache and session described by cfg.
// sink may be nil.
func buildSession(cfg *config.SimConfig, clock timeutil.Clock, sink sim.LapSink) (*sim.Session, *tracks.Cache, error) {
	reg := tracks.Builtin()
	if path := cfg.GetPresetsFile(); path != "" {
		n, err := reg.LoadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load presets: %w", err)
		}
		log.Printf("loaded %d presets from %s", n, path)
	}
	cache := tracks.NewCache(reg)

	setup := cfg.GetSetup()
	opts := sim.Options{
		Clock:        clock,
		Cache:        cache,
		SampleCount:  cfg.GetSampleCount(),
		Viewport:     cfg.GetViewport(),
		Precision:    cfg.GetGeomPrecision(),
		TickInterval: cfg.GetTickInterval(),
		MaxElapsed:   cfg.GetMaxElapsed(),
		BaseSpeed:    cfg.GetBaseSpeed(),
		RunDuration:  cfg.GetRunDuration(),
		Setup:        &setup,
		Sink:         sink,
	}
	s, err := sim.New(opts, cfg.GetTrack())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, cache, nil
}

func run(ctx context.Context, cfg *config.SimConfig) error {
	monitoring.SetLogger(log.Printf)

	store, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	var sink sim.LapSink
	if cfg.GetRecordLaps() {
		sink = store
	}

	session, cache, err := buildSession(cfg, timeutil.RealClock{}, sink)
	if err != nil {
		return err
	}
	if *autostart {
		session.Start()
	}

	srv := api.NewServer(session, cache, store, *speedUnits)
	mux := http.NewServeMux()
	mux.Handle("/api/", srv.ServeMux())
	srv.AttachDebugRoutes(mux)
	if err := store.AttachAdminRoutes(mux); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.GetListen(),
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := session.Run(ctx)
		log.Print("session loop terminated")
		return err
	})

	g.Go(func() error {
		log.Printf("listening on %s (track %s)", server.Addr, session.Geometry().TrackID)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}
