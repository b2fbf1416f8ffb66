package reactor

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// ListenTCP listens on the first free port of portRange: [] picks any free
// port, [port] that port, [low, high] the first of low..high that binds.
// When every port fails, the error of the last attempt is returned inside
// a *BindError.
func ListenTCP(ctx context.Context, portRange []int, host string) (net.Listener, error) {
	var low, high int
	switch len(portRange) {
	case 0:
	case 1:
		low, high = portRange[0], portRange[0]
	case 2:
		low, high = portRange[0], portRange[1]
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidPortRange, portRange)
	}
	if low > high || low < 0 || high > 65535 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPortRange, portRange)
	}

	var lc net.ListenConfig
	var lastErr error
	for port := low; port <= high; port++ {
		ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return ln, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, &BindError{Host: host, Port: port, Err: lastErr}
		}
	}
	return nil, &BindError{Host: host, Port: high, Err: lastErr}
}
