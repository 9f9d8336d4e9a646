package main

import (
	"context"

	"github.com/spf13/cobra"

	"solana-surge-lab/internal/config"
	"solana-surge-lab/internal/notify"
	"solana-surge-lab/internal/predictor"
	"solana-surge-lab/internal/reporting"
	"solana-surge-lab/internal/storage/flatfile"
)

var (
	predictAddresses []string
	predictNotify    bool
	predictLog       string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score the newest listings (or --address) with the trained model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		m := newMetrics(nil)
		p, err := newPredictor(m)
		if err != nil {
			return err
		}

		var alerter *notify.Alerter
		if predictNotify {
			a, closeFn, err := newAlerter(m)
			if err != nil {
				return err
			}
			defer closeFn()
			alerter = a
		}

		res, err := predictOnce(ctx, p, alerter, predictAddresses)
		if err != nil {
			return err
		}
		printOut(reporting.PredictionsTable(res.Predictions))
		return nil
	},
}

func init() {
	predictCmd.Flags().StringSliceVar(&predictAddresses, "address", nil, "Score these token addresses instead of new listings")
	predictCmd.Flags().BoolVar(&predictNotify, "notify", false, "Send a Telegram alert for positive predictions")
	predictCmd.Flags().StringVar(&predictLog, "log", "data/predictions.csv", "Append predictions to this CSV (empty to disable)")
}

// predictOnce runs one prediction pass, logs it to CSV and alerts when an
// alerter is given.
func predictOnce(ctx context.Context, p *predictor.Predictor, alerter *notify.Alerter, addresses []string) (*predictor.Result, error) {
	var (
		res *predictor.Result
		err error
	)
	if len(addresses) > 0 {
		if addresses, err = config.NormalizeAddresses(addresses); err != nil {
			return nil, err
		}
		res, err = p.PredictAddresses(ctx, addresses)
	} else {
		res, err = p.Run(ctx)
	}
	if err != nil {
		return res, err
	}

	if predictLog != "" && len(res.Predictions) > 0 {
		if err := flatfile.AppendText(predictLog, reporting.PredictionsCSVHeader, reporting.RenderPredictionsCSV(res.Predictions)); err != nil {
			logger.Warn().Err(err).Msg("prediction log write failed")
		}
	}

	if alerter != nil {
		if _, err := alerter.Alert(ctx, res.Positives); err != nil {
			return res, err
		}
	}
	return res, nil
}
