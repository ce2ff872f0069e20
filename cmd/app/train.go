package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"WeatherCast/internal/di"
	"WeatherCast/internal/domain/models"
	"WeatherCast/internal/repository"
	"WeatherCast/internal/usecase"
	"WeatherCast/pkg/config"
)

type trainFlags struct {
	dataPath     string
	source       string
	location     string
	lagDepth     int
	testFraction float64
}

func (f *trainFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dataPath, "data", "", "observation file (CSV or JSON) to train on")
	cmd.Flags().StringVar(&f.source, "source", "", "configured source to read --location from")
	cmd.Flags().StringVar(&f.location, "location", "", "location to load from the configured source")
	cmd.Flags().IntVar(&f.lagDepth, "lag-depth", 0, "number of lagged days per field")
	cmd.Flags().Float64Var(&f.testFraction, "test-fraction", 0, "share of rows held out for evaluation, in (0, 1)")
}

// params maps the flags onto a training request; zero values fall back to
// the configured defaults.
func (f *trainFlags) params(cfg *config.Config) (usecase.TrainParams, error) {
	if f.dataPath == "" && f.location == "" {
		return usecase.TrainParams{}, fmt.Errorf("one of --data or --location is required")
	}
	if f.testFraction != 0 && (f.testFraction <= 0 || f.testFraction >= 1) {
		return usecase.TrainParams{}, fmt.Errorf("--test-fraction must be between 0 and 1, got %g", f.testFraction)
	}
	return usecase.TrainParams{
		Source:       f.source,
		Location:     f.location,
		Target:       cfg.Forecast.Target,
		LagDepth:     f.lagDepth,
		TestFraction: f.testFraction,
		ModelName:    cfg.Forecast.ModelName,
	}, nil
}

func trainCmd() *cobra.Command {
	f := &trainFlags{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model from historical observations and save it",
		Long: `Trains the forecasting model either from a single observation file
(--data) or from a location served by the configured source (--location),
prints the held-out evaluation metrics and saves the model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := f.params(cfg)
			if err != nil {
				return err
			}
			tools, cleanup, err := di.InitializeTools(cfg)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer cleanup()

			ctx := context.Background()

			var res *models.TrainResult
			if f.dataPath != "" {
				series, err := loadFile(ctx, resolveDataPath(cfg.Source.DataDir, f.dataPath), cfg.Source.DateColumn)
				if err != nil {
					return err
				}
				p.Location = series.Location
				res, err = tools.Train.TrainSeries(ctx, p, series)
				if err != nil {
					return err
				}
			} else {
				res, err = tools.Train.Train(ctx, p)
				if err != nil {
					return err
				}
			}

			printMetrics(res)
			if path, err := repository.NewFileModelStore(cfg.Store.ModelDir).Path(res.Model); err == nil && cfg.Store.Type == "file" {
				fmt.Printf("Model saved to %s\n", path)
			} else {
				fmt.Printf("Model saved as %s\n", res.Model)
			}
			return nil
		},
	}

	f.bind(cmd)

	return cmd
}

func printMetrics(res *models.TrainResult) {
	m := res.Metrics
	fmt.Printf("Trained on %d rows (%d train, %d test)\n", res.Rows, m.TrainRows, m.TestRows)
	fmt.Println("Model evaluation metrics:")
	fmt.Printf("  mean_squared_error: %.4f\n", m.MSE)
	fmt.Printf("  root_mean_squared_error: %.4f\n", m.RMSE)
	fmt.Printf("  mean_absolute_error: %.4f\n", m.MAE)
	fmt.Printf("  r2_score: %.4f\n", m.R2)
}

// resolveDataPath looks for path as given first, then under dataDir.
func resolveDataPath(dataDir, path string) string {
	if filepath.IsAbs(path) || dataDir == "" {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(dataDir, path)
}

// loadFile reads one observation file, picking the format from its extension.
func loadFile(ctx context.Context, path, dateColumn string) (models.TimeSeries, error) {
	dir, name := filepath.Split(path)
	var src *repository.FileSeriesSource
	if filepath.Ext(name) == ".json" {
		src = repository.NewJSONSeriesSource(dir)
	} else {
		src = repository.NewCSVSeriesSource(dir)
	}
	src.SetDateColumn(dateColumn)
	return src.LoadSeries(ctx, name)
}
