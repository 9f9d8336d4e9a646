package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeAlertKey computes the cooldown key for one token on one channel.
// Formula: SHA256(channel|address), first 16 bytes hex-encoded (32 characters).
func ComputeAlertKey(channel, address string) string {
	data := fmt.Sprintf("%s|%s", channel, address)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
