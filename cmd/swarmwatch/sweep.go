package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"swarmwatch/internal/catalog"
	"swarmwatch/internal/config"
	"swarmwatch/internal/db"
	"swarmwatch/internal/logger"
	"swarmwatch/internal/sampler"
	"swarmwatch/internal/store"
	"swarmwatch/internal/swarm"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var flagSweepManifest string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Probe every manifest entry once",
	Long:  `Walk the whole CSV manifest and record one sample per swarm. Useful for seeding history before starting the continuous loop.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}
		if flagSweepManifest != "" {
			cfg.Manifest.Path = flagSweepManifest
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

		loader := catalog.NewLoader(cfg.Manifest.Path)
		count, err := loader.Load()
		if err != nil {
			logger.Log.Fatalf("Error loading manifest: %v", err)
		}
		entries := loader.Entries()
		if count == 0 {
			logger.Log.Warn("Manifest is empty, nothing to sweep.")
			return
		}
		logger.Log.Infof("Sweeping %d entries...", count)

		session := swarm.NewTrackerSession(swarm.Options{
			Trackers:     cfg.Probe.Trackers,
			ScrapePerSec: cfg.Probe.ScrapePerSec,
			ScrapeBurst:  cfg.Probe.ScrapeBurst,
			CacheSize:    cfg.Probe.CacheSize,
			CacheTTL:     cfg.Probe.CacheTTL,
			MaxTries:     cfg.Probe.MaxScrapeTry,
		}, logger.Log)
		prober := swarm.NewProber(session, cfg.Probe.PollInterval, logger.Log)

		s := sampler.New(nil, prober, st, sampler.Options{
			Timeout:      cfg.Probe.Timeout,
			HistoryLimit: cfg.Sampler.HistoryLimit,
			Weights:      weightsFrom(cfg.Scoring),
		}, logger.Log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bar := progressbar.NewOptions(len(entries),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(15),
			progressbar.OptionSetDescription("[cyan]Probing...[reset]"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)

		healthy := 0
		for i := range entries {
			if ctx.Err() != nil {
				logger.Log.Warn("Sweep interrupted.")
				break
			}
			row, err := s.Check(ctx, &entries[i])
			if err != nil {
				logger.Log.Fatalf("Storage failure: %v", err)
			}
			if row.Status == sampler.StatusHealthy {
				healthy++
				bar.Describe(fmt.Sprintf("[cyan]Alive: %d[reset]", healthy))
			}
			bar.Add(1)
		}
		bar.Finish()
		fmt.Print("\n")
		logger.Log.Infof("Sweep complete. Healthy swarms: %d/%d", healthy, len(entries))
	},
}

func init() {
	sweepCmd.Flags().StringVar(&flagSweepManifest, "manifest", "", "CSV manifest path (overrides config)")
	rootCmd.AddCommand(sweepCmd)
}
