package hostlookup

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"

	"github.com/miekg/dns"
)

// failureKind names a per-server failure for trace output. The engine
// treats every kind the same way: drop the server and move on.
func failureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return "unreachable"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var dnsErr *dns.Error
	if errors.As(err, &dnsErr) {
		return "malformed response"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "transport error: " + opErr.Err.Error()
	}
	return err.Error()
}
