package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"BioMedNews/internal/domain"
)

var digestLimit int

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Render and deliver the digest of top-scored papers",
	RunE:  runDigest,
}

func init() {
	rootCmd.AddCommand(digestCmd)
	digestCmd.Flags().IntVar(&digestLimit, "limit", 0, "max papers in the digest (default: config digest.limit)")
}

func runDigest(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := application.Pipeline.DigestOnly(cmd.Context(), digestLimit)
	if err != nil {
		return err
	}

	// The printed fallback already wrote the digest text to stdout.
	switch {
	case summary.DigestSize == 0:
		fmt.Println("No papers above threshold.")
	case summary.DeliveryStatus == string(domain.DeliverySent):
		fmt.Println("Digest sent.")
	case summary.DeliveryStatus == string(domain.DeliveryFailed):
		fmt.Println("Failed to send digest.")
	}
	return nil
}
