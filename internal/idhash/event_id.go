package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(address|start_time_ms|window_ms)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(address string, startTimeMs, windowMs int64) string {
	data := fmt.Sprintf("%s|%d|%d", address, startTimeMs, windowMs)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
