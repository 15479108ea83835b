package outbox

import "time"

// backoffCapExponent stops the exponential growth beyond the 7th attempt;
// the delay is additionally clamped to maxDelay.
const backoffCapExponent = 6

// Backoff returns the delay before the next delivery attempt, given that
// attempts have already been made (attempts >= 1):
//
//	min(base * 2^min(attempts-1, 6), maxDelay)
func Backoff(attempts int, base, maxDelay time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	exp := attempts - 1
	if exp > backoffCapExponent {
		exp = backoffCapExponent
	}
	d := base * (1 << exp)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// truncateError caps stored error text so a pathological sink error cannot
// bloat the outbox table.
const maxStoredErrorLen = 2000

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxStoredErrorLen {
		return msg[:maxStoredErrorLen]
	}
	return msg
}
