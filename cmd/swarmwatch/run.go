package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"swarmwatch/internal/api"
	"swarmwatch/internal/catalog"
	"swarmwatch/internal/config"
	"swarmwatch/internal/db"
	"swarmwatch/internal/health"
	"swarmwatch/internal/logger"
	"swarmwatch/internal/metrics"
	"swarmwatch/internal/sampler"
	"swarmwatch/internal/store"
	"swarmwatch/internal/swarm"

	"github.com/spf13/cobra"
)

var (
	flagMode     string
	flagManifest string
	flagOnce     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the health-check loop",
	Long:  `Run the sampling orchestrator: pick a candidate swarm, probe its peer counts, compute trend metrics against history, persist, sleep, repeat. Mode "catalog" samples a static CSV manifest; mode "gossip" samples content received from peers.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}
		if flagMode != "" {
			cfg.Sampler.Mode = flagMode
		}
		if flagManifest != "" {
			cfg.Manifest.Path = flagManifest
		}
		if cfg.Sampler.Mode != "catalog" && cfg.Sampler.Mode != "gossip" {
			logger.Log.Fatalf("Unknown mode %q (want catalog or gossip)", cfg.Sampler.Mode)
		}

		database, err := db.Connect(cfg.Database.Path)
		if err != nil {
			logger.Log.Fatalf("Error connecting to DB: %v", err)
		}
		defer db.Close(database)
		if err := db.Migrate(database); err != nil {
			logger.Log.Fatalf("Error migrating DB: %v", err)
		}
		st := store.New(database)

		session := swarm.NewTrackerSession(swarm.Options{
			Trackers:     cfg.Probe.Trackers,
			ScrapePerSec: cfg.Probe.ScrapePerSec,
			ScrapeBurst:  cfg.Probe.ScrapeBurst,
			CacheSize:    cfg.Probe.CacheSize,
			CacheTTL:     cfg.Probe.CacheTTL,
			MaxTries:     cfg.Probe.MaxScrapeTry,
		}, logger.Log)
		prober := swarm.NewProber(session, cfg.Probe.PollInterval, logger.Log)

		var source catalog.Source
		switch cfg.Sampler.Mode {
		case "catalog":
			loader := catalog.NewLoader(cfg.Manifest.Path)
			count, err := loader.Load()
			if err != nil {
				logger.Log.Fatalf("Error loading manifest: %v", err)
			}
			logger.Log.Infof("Loaded %d entries, %d with magnet links", count, len(loader.WithMagnets()))
			source = catalog.NewStaticSource(loader)
		case "gossip":
			known, err := st.KnownInfohashes()
			if err != nil {
				logger.Log.Fatalf("Error reading received content: %v", err)
			}
			logger.Log.Infof("Gossip mode: %d entries available from received content", len(known))
			source = catalog.NewGossipSource(st, cfg.Sampler.CandidatePool)
		}

		if cfg.API.Enabled {
			logger.Log.Infof("API listening on %s", cfg.API.Listen)
			go api.NewServer(st, logger.Log).Serve(cfg.API.Listen)
		}
		if cfg.Metrics.Enabled {
			logger.Log.Infof("Metrics listening on %s", cfg.Metrics.Listen)
			go metrics.Serve(cfg.Metrics.Listen, logger.Log)
		}

		s := sampler.New(source, prober, st, sampler.Options{
			Interval:     cfg.Sampler.Interval,
			Timeout:      cfg.Probe.Timeout,
			HistoryLimit: cfg.Sampler.HistoryLimit,
			Weights:      weightsFrom(cfg.Scoring),
			MarkChecked:  cfg.Sampler.Mode == "gossip",
		}, logger.Log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if flagOnce {
			if _, err := s.RunOnce(ctx); err != nil {
				logger.Log.Fatalf("Storage failure: %v", err)
			}
			return
		}
		if err := s.Run(ctx); err != nil {
			logger.Log.Fatalf("Storage failure, loop terminated: %v", err)
		}
	},
}

func weightsFrom(sc config.Scoring) health.Weights {
	return health.Weights{
		WindowHours:     sc.WindowHours,
		GrowthCap:       sc.GrowthCap,
		AccelerationCap: sc.AccelerationCap,
		DensityCap:      sc.DensityCap,
		ScaleCap:        sc.ScaleCap,
	}
}

func init() {
	runCmd.Flags().StringVar(&flagMode, "mode", "", "Candidate source: catalog or gossip (overrides config)")
	runCmd.Flags().StringVar(&flagManifest, "manifest", "", "CSV manifest path (catalog mode)")
	runCmd.Flags().BoolVar(&flagOnce, "once", false, "Run a single check cycle and exit")
	rootCmd.AddCommand(runCmd)
}
