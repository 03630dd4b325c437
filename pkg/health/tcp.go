package health

import (
	"context"
	"net"
	"strconv"
	"time"
)

// TCPChecker checks that a node service accepts connections, e.g. the
// cored daemon of a cluster node.
type TCPChecker struct {
	// Address is host:port
	Address string

	// Timeout is the connection timeout (default: 5 seconds)
	Timeout time.Duration
}

// NewTCPChecker creates a checker for port on host
func NewTCPChecker(host string, port int) *TCPChecker {
	return &TCPChecker{
		Address: net.JoinHostPort(host, strconv.Itoa(port)),
		Timeout: 5 * time.Second,
	}
}

// Check dials the address
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return newResult(start, false, "connection to %s failed: %v", t.Address, err)
	}
	conn.Close()
	return newResult(start, true, "%s accepts connections", t.Address)
}

// Type returns the health check type
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
