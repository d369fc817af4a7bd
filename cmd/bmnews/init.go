package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"BioMedNews/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialise the database and write a starter config",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	fmt.Printf("Database initialised (%s)\n", cfg.Database.Backend)

	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}
	if err := writeStarterConfig(path); err != nil {
		return fmt.Errorf("write starter config: %w", err)
	}
	fmt.Printf("Config written to %s\n", path)
	return nil
}

func writeStarterConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
