package main

import (
	"flag"
	"os"

	"refuge/internal/training"
	"refuge/pkg/logger"
)

func main() {
	defaults := training.DefaultOptions()

	var opts training.Options
	flag.StringVar(&opts.DataPath, "data", "asylum_seekers.csv", "path to the asylum decisions CSV")
	flag.StringVar(&opts.OutDir, "out", defaults.OutDir, "directory to write model artifacts")
	flag.IntVar(&opts.Trees, "trees", defaults.Trees, "number of boosting rounds")
	flag.IntVar(&opts.MaxDepth, "depth", defaults.MaxDepth, "maximum tree depth")
	flag.Float64Var(&opts.LearningRate, "lr", defaults.LearningRate, "learning rate")
	flag.Int64Var(&opts.Seed, "seed", defaults.Seed, "train/test split seed")
	flag.BoolVar(&opts.Quantiles, "quantiles", defaults.Quantiles,
		"train 5th/95th percentile models (residual stats are saved instead when disabled)")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	if err := logger.Init(*logLevel, "development"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()

	report, err := training.Run(opts, log)
	if err != nil {
		log.Errorf("Training failed: %v", err)
		os.Exit(1)
	}

	log.Infof("Models saved in %s", opts.OutDir)
	log.Infow("Training complete",
		"rmse", report.RMSE,
		"mae", report.MAE,
		"train_samples", report.NSamplesTrain,
		"test_samples", report.NSamplesTest,
		"quantile_models", report.Quantiles,
	)
}
