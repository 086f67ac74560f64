package chain

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrReverted marks a mined transaction whose receipt status is failure.
var ErrReverted = errors.New("transaction reverted")

const maxAttempts = 3

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005")
}

// IsRevert reports whether err is an EVM revert rather than a transport error.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrReverted) || strings.Contains(err.Error(), "execution reverted")
}

// RevertReason trims an RPC error down to the revert message when there is one.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if i := strings.Index(s, "execution reverted"); i >= 0 {
		return s[i:]
	}
	return s
}

// Classify returns a short tag for user facing error lines.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case isRateLimitError(err):
		return "RATE_LIMIT"
	case IsRevert(err):
		return "REVERT"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case strings.Contains(err.Error(), "insufficient funds"):
		return "INSUFFICIENT_FUNDS"
	case strings.Contains(err.Error(), "nonce too low"), strings.Contains(err.Error(), "replacement transaction underpriced"):
		return "NONCE"
	default:
		return "RPC"
	}
}

// withRetry runs fn up to maxAttempts times with exponential backoff while the
// provider is throttling. Any other error is returned at once.
func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	backoff := 200 * time.Millisecond
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRateLimitError(err) || ctx.Err() != nil {
			break
		}
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return zero, lastErr
}
