package monitor

import (
	"errors"
	"runtime"
)

var ErrUnsupported = errors.New("monitor: peak rss is not available on " + runtime.GOOS)

// Sampler returns the process peak resident set size in bytes.
type Sampler func() (int64, error)

// PeakRSS reads the peak resident set size of this process in bytes.
func PeakRSS() (int64, error) {
	return peakRSS()
}

// normalizeRSS converts a raw ru_maxrss to bytes: darwin reports bytes,
// the other unixes report KiB.
func normalizeRSS(raw int64, goos string) int64 {
	if goos == "darwin" {
		return raw
	}
	return raw * 1024
}
