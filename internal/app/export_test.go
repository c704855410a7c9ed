package app

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ShortenResubscribeBackOff makes bus consumers retry almost immediately.
func ShortenResubscribeBackOff(t testing.TB) {
	old := newBackOff
	newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(5 * time.Millisecond) }
	t.Cleanup(func() { newBackOff = old })
}
