package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"WeatherCast/pkg/config"
)

var (
	// Global flags
	configFile string
	modelDir   string
	modelFile  string
	dataDir    string
	target     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "weathercast",
		Short:         "Autoregressive daily weather forecasting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&modelDir, "model-dir", "", "directory holding model files")
	rootCmd.PersistentFlags().StringVar(&modelFile, "model-file", "", "model file name inside the model directory")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding observation files")
	rootCmd.PersistentFlags().StringVar(&target, "target", "", "field to forecast")

	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the global flags. A missing
// file is fine unless --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		path = ""
	}
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	if modelDir != "" {
		cfg.Store.ModelDir = modelDir
	}
	if modelFile != "" {
		cfg.Forecast.ModelName = modelFile
	}
	if dataDir != "" {
		cfg.Source.DataDir = dataDir
	}
	if target != "" {
		cfg.Forecast.Target = target
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
