package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"BioMedNews/internal/usecase"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: fetch, score, and deliver the digest",
	RunE:  runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := application.Pipeline.Run(cmd.Context())
	if errors.Is(err, usecase.ErrPipelineBusy) {
		fmt.Println("Pipeline already running.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Fetched: %d\n", summary.Fetched)
	fmt.Printf("Stored:  %d\n", summary.Stored)
	fmt.Printf("Scored:  %d\n", summary.Scored)
	fmt.Printf("Digest:  %d papers\n", summary.DigestSize)
	if summary.DeliveryStatus != "" {
		fmt.Printf("Delivery: %s\n", summary.DeliveryStatus)
	}
	return nil
}
