package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/idhash"
	"solana-surge-lab/internal/observability"
)

// ErrNoNotifier is returned when the alerter has nothing to send through.
var ErrNoNotifier = errors.New("alerter: notifier is required")

// AlerterOptions configures an Alerter.
type AlerterOptions struct {
	Notifier Notifier
	// Cooldown is optional; without it every positive is alerted.
	Cooldown Cooldown
	// Channel namespaces cooldown keys. Defaults to "telegram".
	Channel string
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Alerter turns positive predictions into one alert message.
type Alerter struct {
	notifier Notifier
	cooldown Cooldown
	channel  string
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// AlertResult reports what one dispatch did.
type AlertResult struct {
	Sent       []*domain.Prediction
	Suppressed []*domain.Prediction
	Message    string
}

// NewAlerter creates an alerter.
func NewAlerter(opts AlerterOptions) (*Alerter, error) {
	if opts.Notifier == nil {
		return nil, ErrNoNotifier
	}
	channel := opts.Channel
	if channel == "" {
		channel = "telegram"
	}
	return &Alerter{
		notifier: opts.Notifier,
		cooldown: opts.Cooldown,
		channel:  channel,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}, nil
}

// Alert sends one message for the positive predictions that are not in
// cooldown. Negative predictions are ignored. A cooldown backend error lets
// the token through. When the send fails, acquired cooldowns are released.
func (a *Alerter) Alert(ctx context.Context, preds []*domain.Prediction) (*AlertResult, error) {
	res := &AlertResult{}
	var keys []string

	for _, p := range preds {
		if p == nil || !p.Positive {
			continue
		}
		if a.cooldown != nil {
			key := idhash.ComputeAlertKey(a.channel, p.Address)
			ok, err := a.cooldown.Acquire(ctx, key)
			if err != nil {
				a.logger.Warn().Err(err).Str("address", p.Address).Msg("cooldown check failed, alerting anyway")
				ok = true
			}
			if !ok {
				res.Suppressed = append(res.Suppressed, p)
				continue
			}
			if err == nil {
				keys = append(keys, key)
			}
		}
		res.Sent = append(res.Sent, p)
	}

	if len(res.Sent) == 0 {
		a.metrics.RecordAlert(0, len(res.Suppressed), nil)
		a.logger.Info().Int("suppressed", len(res.Suppressed)).Msg("no new tokens to alert")
		return res, nil
	}

	res.Message = FormatAlert(res.Sent)
	if err := a.notifier.Send(ctx, res.Message); err != nil {
		for _, key := range keys {
			if rerr := a.cooldown.Release(ctx, key); rerr != nil {
				a.logger.Warn().Err(rerr).Msg("cooldown release failed")
			}
		}
		a.metrics.RecordAlert(0, len(res.Suppressed), err)
		sent := res.Sent
		res.Sent = nil
		return res, fmt.Errorf("send alert for %d tokens: %w", len(sent), err)
	}

	a.metrics.RecordAlert(len(res.Sent), len(res.Suppressed), nil)
	a.logger.Info().
		Int("sent", len(res.Sent)).
		Int("suppressed", len(res.Suppressed)).
		Msg("alert sent")
	return res, nil
}
