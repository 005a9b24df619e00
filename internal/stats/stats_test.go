package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleAt(iface string, rx, tx uint64, at time.Time) InterfaceSample {
	return InterfaceSample{Interface: iface, RxBytes: rx, TxBytes: tx, Taken: at}
}

func TestDeriveRate(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		prev     InterfaceSample
		cur      InterfaceSample
		wantDown float64
		wantUp   float64
		wantOK   bool
	}{
		{
			name:     "one second interval",
			prev:     sampleAt("wg0", 1000, 500, base),
			cur:      sampleAt("wg0", 3000, 1500, base.Add(time.Second)),
			wantDown: 2000,
			wantUp:   1000,
			wantOK:   true,
		},
		{
			name:     "fractional interval",
			prev:     sampleAt("wg0", 0, 0, base),
			cur:      sampleAt("wg0", 1000, 1000, base.Add(500*time.Millisecond)),
			wantDown: 2000,
			wantUp:   2000,
			wantOK:   true,
		},
		{
			name:   "idle tunnel yields valid zero rate",
			prev:   sampleAt("wg0", 1000, 500, base),
			cur:    sampleAt("wg0", 1000, 500, base.Add(time.Second)),
			wantOK: true,
		},
		{
			name:   "rx counter decrease invalidates interval",
			prev:   sampleAt("wg0", 5000, 500, base),
			cur:    sampleAt("wg0", 100, 600, base.Add(time.Second)),
			wantOK: false,
		},
		{
			name:   "tx counter decrease invalidates interval",
			prev:   sampleAt("wg0", 5000, 500, base),
			cur:    sampleAt("wg0", 6000, 100, base.Add(time.Second)),
			wantOK: false,
		},
		{
			name:   "zero elapsed time",
			prev:   sampleAt("wg0", 1000, 500, base),
			cur:    sampleAt("wg0", 2000, 600, base),
			wantOK: false,
		},
		{
			name:   "negative elapsed time",
			prev:   sampleAt("wg0", 1000, 500, base.Add(time.Second)),
			cur:    sampleAt("wg0", 2000, 600, base),
			wantOK: false,
		},
		{
			name:   "stale gap after system sleep",
			prev:   sampleAt("wg0", 1000, 500, base),
			cur:    sampleAt("wg0", 2000, 600, base.Add(time.Minute)),
			wantOK: false,
		},
		{
			name:   "different interfaces",
			prev:   sampleAt("wg0", 1000, 500, base),
			cur:    sampleAt("tun0", 2000, 600, base.Add(time.Second)),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveRate(tt.prev, tt.cur, DefaultStaleAfter)
			assert.Equal(t, tt.wantOK, got.Valid)
			if tt.wantOK {
				assert.InDelta(t, tt.wantDown, got.DownBytesPerSec, 0.01)
				assert.InDelta(t, tt.wantUp, got.UpBytesPerSec, 0.01)
			} else {
				// Invalid rates must not leak partial values.
				assert.Zero(t, got.DownBytesPerSec)
				assert.Zero(t, got.UpBytesPerSec)
			}
		})
	}
}

func TestDeriveRate_GapWithinCustomStaleWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	prev := sampleAt("wg0", 0, 0, base)
	cur := sampleAt("wg0", 30000, 0, base.Add(30*time.Second))

	assert.False(t, DeriveRate(prev, cur, 5*time.Second).Valid)

	got := DeriveRate(prev, cur, time.Minute)
	assert.True(t, got.Valid)
	assert.InDelta(t, 1000.0, got.DownBytesPerSec, 0.01)
}
