//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package monitor

import (
	"runtime"

	"golang.org/x/sys/unix"
)

const sampleSupported = true

func peakRSS() (int64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	return normalizeRSS(int64(ru.Maxrss), runtime.GOOS), nil
}
