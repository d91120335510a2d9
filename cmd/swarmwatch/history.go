package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"swarmwatch/internal/config"
	"swarmwatch/internal/db"
	"swarmwatch/internal/logger"
	"swarmwatch/internal/store"

	"github.com/spf13/cobra"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history <infohash>",
	Short: "Show the sample history of one swarm",
	Args:  cobra.ExactArgs(1),
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

		rows, err := store.New(database).Recent(args[0], flagHistoryLimit)
		if err != nil {
			logger.Log.Fatalf("Error reading samples: %v", err)
		}
		if len(rows) == 0 {
			fmt.Printf("No samples recorded for %s\n", args[0])
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tPEERS\tSEEDERS\tLEECHERS\tGROWTH\tSHRINK\tEXPLODING\tSTATUS")
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f%%\t%.2f%%\t%.2f\t%s\n",
				time.Unix(row.TS, 0).Format("2006-01-02 15:04:05"),
				row.TotalPeers, row.Seeders, row.Leechers,
				row.Growth, row.Shrink, row.Exploding, row.Status)
		}
		w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "Maximum rows to show")
	rootCmd.AddCommand(historyCmd)
}
