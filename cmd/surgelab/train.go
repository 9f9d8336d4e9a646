package main

import (
	"time"

	"github.com/spf13/cobra"

	"solana-surge-lab/internal/reporting"
	"solana-surge-lab/internal/storage/flatfile"
)

var (
	trainFresh  bool
	trainReport string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Label the candle history, train the classifier and evaluate it",
	Long: `train loads the raw snapshot (or collects fresh data with --fresh),
cleans it, builds labeled feature rows per token, fits the classifier on a
stratified split and saves the model artifact.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		start := time.Now()
		m := newMetrics(nil)
		raw, collection, err := loadRaw(ctx, m, trainFresh)
		if err != nil {
			return err
		}

		orch, err := newOrchestrator(m)
		if err != nil {
			return err
		}
		if _, err := orch.Load(ctx, raw); err != nil {
			return err
		}

		res, err := orch.Train(ctx)
		if err != nil {
			return err
		}
		for _, e := range res.Errors {
			logger.Warn().Msg(e)
		}

		printOut(reporting.MetricsTable(res.Evaluation))
		printOut(reporting.ClassReportTable(res.Evaluation))

		if trainReport != "" {
			r, err := orch.Report(ctx, collection, res, nil)
			if err != nil {
				return err
			}
			if err := flatfile.WriteText(trainReport, reporting.RenderMarkdown(r)); err != nil {
				return err
			}
			logger.Info().Str("path", trainReport).Msg("report written")
		}

		logger.Info().Dur("elapsed", time.Since(start)).Str("model", cfg.Paths.Model).Msg("training complete")
		return nil
	},
}

func init() {
	trainCmd.Flags().BoolVar(&trainFresh, "fresh", false, "Collect fresh data instead of reading the raw snapshot")
	trainCmd.Flags().StringVar(&trainReport, "report", "", "Write a markdown run report to this path")
}
