package transport

import (
	"context"
	"net"
	"syscall"

	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/pkg/errors"
)

// classifyError maps a connection-level failure onto the error taxonomy
func classifyError(err error) *types.Error {
	return types.NewError(connectionKind(err), 0, err)
}

// retryable reports whether a connection-level failure should be retried
func retryable(err error) bool {
	return connectionKind(err) == types.KindUnknown && !errors.Is(err, context.Canceled)
}

func connectionKind(err error) types.Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsTimeout:
			return types.KindTimeout
		case dnsErr.IsNotFound:
			return types.KindUnreachable
		default:
			return types.KindNoInternet
		}
	}

	switch {
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.ENETDOWN):
		return types.KindNoInternet
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.EHOSTDOWN):
		return types.KindUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.KindTimeout
	}

	return types.KindUnknown
}
