package idhash

import (
	"testing"
)

func TestComputeEventID(t *testing.T) {
	tests := []struct {
		name    string
		address string
		start   int64
		window  int64
		wantLen int
	}{
		{name: "15 minute window", address: "So11111111111111111111111111111111111111112", start: 1700000000000, window: 900000, wantLen: 64},
		{name: "zero start", address: "tok", start: 0, window: 60000, wantLen: 64},
		{name: "empty address", address: "", start: 1, window: 1, wantLen: 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeEventID(tt.address, tt.start, tt.window)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeEventID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Same inputs should produce same output
			got2 := ComputeEventID(tt.address, tt.start, tt.window)
			if got != got2 {
				t.Errorf("ComputeEventID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeEventID_DifferentInputs(t *testing.T) {
	base := ComputeEventID("tok", 1000, 900000)

	if base == ComputeEventID("other", 1000, 900000) {
		t.Error("Different address should produce different hash")
	}
	if base == ComputeEventID("tok", 2000, 900000) {
		t.Error("Different start should produce different hash")
	}
	if base == ComputeEventID("tok", 1000, 60000) {
		t.Error("Different window should produce different hash")
	}
}

func TestComputeEventID_KnownValue(t *testing.T) {
	// sha256("a|1|2")
	const want = "fe76ce5404c9a38b8ceb70fbbbfbc7913b5dda4e56f1708480862d5f487be26d"
	if got := ComputeEventID("a", 1, 2); got != want {
		t.Errorf("ComputeEventID() = %s, want %s", got, want)
	}
}

func TestComputeAlertKey(t *testing.T) {
	a := ComputeAlertKey("telegram:1", "tok")
	if len(a) != 32 {
		t.Errorf("ComputeAlertKey() length = %d, want 32", len(a))
	}
	if a != ComputeAlertKey("telegram:1", "tok") {
		t.Error("ComputeAlertKey() not deterministic")
	}
	if a == ComputeAlertKey("telegram:2", "tok") {
		t.Error("Different channel should produce different key")
	}
	if a == ComputeAlertKey("telegram:1", "other") {
		t.Error("Different address should produce different key")
	}
}
