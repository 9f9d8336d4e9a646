package main

import (
	"strings"

	"github.com/spf13/cobra"

	"solana-surge-lab/internal/reporting"
	"solana-surge-lab/internal/storage/flatfile"
)

var (
	eventsFresh  bool
	eventsReport string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Detect price surges per window size and cluster what preceded them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		m := newMetrics(nil)
		raw, collection, err := loadRaw(ctx, m, eventsFresh)
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

		res, err := orch.Events(ctx)
		if err != nil {
			return err
		}
		for _, e := range res.Errors {
			logger.Warn().Msg(e)
		}

		r, err := orch.Report(ctx, collection, nil, res)
		if err != nil {
			return err
		}
		printOut(reporting.WindowTable(r.Windows))
		if len(r.Patterns) > 0 {
			printOut(strings.Join(r.Patterns, "\n") + "\n")
		}

		if eventsReport != "" {
			if err := flatfile.WriteText(eventsReport, reporting.RenderMarkdown(r)); err != nil {
				return err
			}
			logger.Info().Str("path", eventsReport).Msg("report written")
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().BoolVar(&eventsFresh, "fresh", false, "Collect fresh data instead of reading the raw snapshot")
	eventsCmd.Flags().StringVar(&eventsReport, "report", "", "Write a markdown run report to this path")
}
