package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"swarmwatch/internal/config"
	"swarmwatch/internal/db"
	"swarmwatch/internal/logger"
	"swarmwatch/internal/store"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database statistics and top swarms",
	Long:  `Displays a dashboard of the current database state: sample counts, received-content backlog, disk usage, and the swarms with the highest exploding scores.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}

		database, err := db.Connect(cfg.Database.Path)
		if err != nil {
			logger.Log.Fatalf("Error connecting to DB: %v", err)
		}
		defer db.Close(database)
		st := store.New(database)

		totalSamples, _ := st.CountSamples()
		distinct, _ := st.DistinctSwarms()
		received, _ := st.CountReceived()
		latest, err := st.LatestPerKey(1000)
		if err != nil {
			logger.Log.Fatalf("Error reading samples: %v", err)
		}

		dbSize := getFileSize(cfg.Database.Path)
		walSize := getFileSize(cfg.Database.Path + "-wal")

		healthy := 0
		for _, row := range latest {
			if row.Status == "healthy" {
				healthy++
			}
		}

		sort.Slice(latest, func(i, j int) bool { return latest[i].Exploding > latest[j].Exploding })
		top := latest
		if len(top) > 5 {
			top = top[:5]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		fmt.Println("\n📊 \033[1mSWARMWATCH STATUS\033[0m")
		fmt.Println("────────────────────────────────────────")

		fmt.Fprintln(w, "\033[1;36m[ SYSTEM ]\033[0m\t")
		fmt.Fprintf(w, "  Database Path:\t%s\n", cfg.Database.Path)
		fmt.Fprintf(w, "  DB Size:\t%s\n", formatBytes(dbSize))
		if walSize > 0 {
			fmt.Fprintf(w, "  WAL Size:\t%s (pending checkpoint)\n", formatBytes(walSize))
		}
		fmt.Fprintf(w, "  Total Samples:\t%d\n", totalSamples)
		fmt.Fprintf(w, "  Tracked Swarms:\t%d (%d healthy at last check)\n", distinct, healthy)
		fmt.Fprintf(w, "  Received Backlog:\t%d\n", received)
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ TOP EXPLODING ]\033[0m\t")
		if len(top) == 0 {
			fmt.Fprintln(w, "  (No samples recorded)")
		} else {
			for _, row := range top {
				age := time.Since(time.Unix(row.TS, 0)).Round(time.Minute)
				fmt.Fprintf(w, "  %s\t%.1f pts\t%d peers\t%s ago\n",
					shortHash(row.Infohash), row.Exploding, row.TotalPeers, age)
			}
		}

		w.Flush()
		fmt.Println("")
	},
}

// Helpers

func getFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func shortHash(infohash string) string {
	if infohash == "" {
		return "(no infohash)"
	}
	if len(infohash) > 16 {
		return infohash[:16]
	}
	return infohash
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
