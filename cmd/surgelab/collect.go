package main

import (
	"github.com/spf13/cobra"

	"solana-surge-lab/internal/reporting"
)

var collectTokens string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch candle history for the token list into the raw snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		res, err := collect(ctx, newMetrics(nil), collectTokens)
		if err != nil {
			return err
		}
		printOut(reporting.ResultsTable(res.Results))
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectTokens, "tokens", "", "Token list file (defaults to tokens.list_path)")
}
