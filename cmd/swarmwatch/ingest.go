package main

import (
	"fmt"
	"time"

	"swarmwatch/internal/config"
	"swarmwatch/internal/db"
	"swarmwatch/internal/logger"
	"swarmwatch/internal/model"
	"swarmwatch/internal/store"
	"swarmwatch/internal/swarm"

	"github.com/spf13/cobra"
)

var (
	flagIngestURL     string
	flagIngestLicense string
	flagIngestMagnet  string
	flagIngestPeer    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Manually add a received swarm",
	Long:  `Insert one entry into the received-content catalog, the same path the gossip feed uses. A duplicate infohash is reported, not an error.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}

		infohash := swarm.ExtractInfohash(flagIngestMagnet)
		if infohash == "" {
			logger.Log.Fatalf("Magnet link has no extractable infohash: %s", flagIngestMagnet)
		}

		database, err := db.Connect(cfg.Database.Path)
		if err != nil {
			logger.Log.Fatalf("Error connecting to DB: %v", err)
		}
		defer db.Close(database)
		if err := db.Migrate(database); err != nil {
			logger.Log.Fatalf("Error migrating DB: %v", err)
		}

		inserted, err := store.New(database).InsertReceived(&model.ReceivedContent{
			Infohash:   infohash,
			URL:        flagIngestURL,
			License:    flagIngestLicense,
			MagnetLink: flagIngestMagnet,
			ReceivedAt: time.Now().UTC().Unix(),
			SourcePeer: flagIngestPeer,
		})
		if err != nil {
			logger.Log.Fatalf("Error inserting: %v", err)
		}
		if inserted {
			fmt.Printf("Inserted %s (%s)\n", infohash, flagIngestURL)
		} else {
			fmt.Printf("Already known: %s\n", infohash)
		}
	},
}

func init() {
	ingestCmd.Flags().StringVar(&flagIngestURL, "url", "", "Origin URL of the content")
	ingestCmd.Flags().StringVar(&flagIngestLicense, "license", "", "License tag")
	ingestCmd.Flags().StringVar(&flagIngestMagnet, "magnet", "", "Magnet link")
	ingestCmd.Flags().StringVar(&flagIngestPeer, "source-peer", "manual", "Source peer identifier")
	_ = ingestCmd.MarkFlagRequired("url")
	_ = ingestCmd.MarkFlagRequired("license")
	_ = ingestCmd.MarkFlagRequired("magnet")
	rootCmd.AddCommand(ingestCmd)
}
