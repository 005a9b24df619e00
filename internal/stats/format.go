package stats

import (
	"fmt"
	"time"
)

const (
	// Binary unit multipliers (1024-based).
	kib = 1024
	mib = kib * 1024
	gib = mib * 1024
	tib = gib * 1024
)

// FormatBytes formats a byte count using binary units (KiB, MiB, GiB, TiB).
func FormatBytes(bytes uint64) string {
	switch {
	case bytes >= tib:
		return fmt.Sprintf("%.1f TiB", float64(bytes)/float64(tib))
	case bytes >= gib:
		return fmt.Sprintf("%.1f GiB", float64(bytes)/float64(gib))
	case bytes >= mib:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/float64(mib))
	case bytes >= kib:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/float64(kib))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatRate formats a bytes-per-second rate using binary units.
func FormatRate(bytesPerSec float64) string {
	switch {
	case bytesPerSec >= float64(gib):
		return fmt.Sprintf("%.1f GiB/s", bytesPerSec/float64(gib))
	case bytesPerSec >= float64(mib):
		return fmt.Sprintf("%.1f MiB/s", bytesPerSec/float64(mib))
	case bytesPerSec >= float64(kib):
		return fmt.Sprintf("%.1f KiB/s", bytesPerSec/float64(kib))
	default:
		return fmt.Sprintf("%.0f B/s", bytesPerSec)
	}
}

// FormatDuration formats a session age for the dashboard.
// Durations under a day render as HH:MM:SS; longer ones as "1d 02h".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	secs := int64(d.Seconds())
	if secs >= 86400 {
		return fmt.Sprintf("%dd %02dh", secs/86400, (secs%86400)/3600)
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
