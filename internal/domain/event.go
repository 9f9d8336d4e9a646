package domain

// Event is a detected sharp price increase within a bounded time window.
// Invariant: IncreaseFactor = EndPrice / StartPrice >= threshold used by the
// detector, TotalVolume >= the detector's volume floor.
type Event struct {
	EventID        string  // deterministic hash of (address, start, window)
	Address        string  // token address
	StartTimeMs    int64   // timestamp of the starting row
	EndTimeMs      int64   // timestamp of the maximum price within the window
	StartPrice     float64 // close at start
	EndPrice       float64 // maximum close within the window
	IncreaseFactor float64 // EndPrice / StartPrice
	WindowMs       int64   // scanned window size
	TotalVolume    float64 // volume summed over every row of the window
}

// DurationMs returns the time from start to peak.
func (e *Event) DurationMs() int64 {
	return e.EndTimeMs - e.StartTimeMs
}
