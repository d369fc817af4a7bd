package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"BioMedNews/internal/fetch"
)

var fetchDays int

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch papers from the configured sources without scoring",
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().IntVar(&fetchDays, "days", 0, "look back N days (default: config lookbackDays)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	days := fetchDays
	if days <= 0 {
		days = cfg.Sources.LookbackDays
	}
	until := time.Now().UTC()
	since := until.AddDate(0, 0, -days)

	papers := fetch.All(cmd.Context(), application.Sources, since, until, logger)
	fmt.Printf("Fetched %d papers\n", len(papers))

	stored, err := application.Pipeline.Ingest(cmd.Context(), papers)
	if err != nil {
		return err
	}
	fmt.Printf("Stored %d papers in database\n", stored)
	return nil
}
