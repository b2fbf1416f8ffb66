//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package monitor

const sampleSupported = false

func peakRSS() (int64, error) {
	return 0, ErrUnsupported
}
