package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"solana-surge-lab/internal/domain"
)

// EventsCSVHeader is the header line of an event export.
const EventsCSVHeader = "address,start_time,end_time,start_price,end_price,increase_factor,duration,total_volume\n"

// PredictionsCSVHeader is the header line of a prediction log.
const PredictionsCSVHeader = "run_id,timestamp,address,name,symbol,probability,positive\n"

// RenderEventsCSV renders events as CSV. Times are RFC3339 UTC and duration
// is minutes from start to peak.
func RenderEventsCSV(events []*domain.Event) string {
	var sb strings.Builder

	// Header
	sb.WriteString(EventsCSVHeader)

	// Rows
	for _, e := range events {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s\n",
			e.Address,
			formatTime(e.StartTimeMs),
			formatTime(e.EndTimeMs),
			formatFloat(e.StartPrice),
			formatFloat(e.EndPrice),
			formatFloat(e.IncreaseFactor),
			formatFloat(float64(e.DurationMs())/60_000),
			formatFloat(e.TotalVolume),
		))
	}

	return sb.String()
}

// RenderPredictionsCSV renders prediction rows without a header, for
// appending to a running log.
func RenderPredictionsCSV(preds []*domain.Prediction) string {
	var sb strings.Builder
	for _, p := range preds {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%.6f,%t\n",
			p.RunID,
			formatTime(p.TimestampMs),
			p.Address,
			csvField(p.Name),
			csvField(p.Symbol),
			p.Probability,
			p.Positive,
		))
	}
	return sb.String()
}

// EventsFileName returns the export file name for one window size,
// e.g. events_15m.csv.
func EventsFileName(window time.Duration) string {
	return "events_" + strconv.FormatInt(int64(window/time.Minute), 10) + "m.csv"
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// csvField quotes free text that would break the row.
func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
