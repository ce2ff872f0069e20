package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"WeatherCast/internal/di"
	"WeatherCast/internal/domain/models"
	"WeatherCast/internal/usecase"
)

func predictCmd() *cobra.Command {
	var (
		recentPath string
		source     string
		location   string
		daysAhead  int
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Forecast the next days from recent observations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if recentPath == "" && location == "" {
				return fmt.Errorf("one of --recent-data or --location is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if daysAhead <= 0 {
				daysAhead = cfg.Forecast.DaysAhead
			}
			tools, cleanup, err := di.InitializeTools(cfg)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer cleanup()

			ctx := context.Background()
			var fc *models.Forecast
			if recentPath != "" {
				recent, err := loadFile(ctx, resolveDataPath(cfg.Source.DataDir, recentPath), cfg.Source.DateColumn)
				if err != nil {
					return err
				}
				fc, err = tools.Forecast.PredictSeries(ctx, cfg.Forecast.ModelName, recent, daysAhead)
				if err != nil {
					return err
				}
			} else {
				fc, err = tools.Forecast.Predict(ctx, usecase.ForecastParams{
					ModelName: cfg.Forecast.ModelName,
					Source:    source,
					Location:  location,
					Days:      daysAhead,
				})
				if err != nil {
					return err
				}
			}

			fmt.Printf("Predictions for the next %d days:\n", daysAhead)
			for _, s := range fc.Steps {
				fmt.Printf("Day %d: %.2f\n", s.Day, s.Value)
			}
			if fc.Truncated {
				fmt.Fprintf(os.Stderr, "only %d of %d days could be predicted: recent data holds fewer days than the model's lag depth\n",
					len(fc.Steps), fc.Requested)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&recentPath, "recent-data", "", "observation file (CSV or JSON) with the most recent days")
	cmd.Flags().StringVar(&source, "source", "", "configured source to read --location from")
	cmd.Flags().StringVar(&location, "location", "", "location to load from the configured source")
	cmd.Flags().IntVar(&daysAhead, "days-ahead", 0, "number of days to forecast")

	return cmd
}
