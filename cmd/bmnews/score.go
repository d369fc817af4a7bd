package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score publications that have no score yet",
	RunE:  runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	scored, err := application.Pipeline.ScoreOnly(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Scored %d publications\n", scored)
	return nil
}
