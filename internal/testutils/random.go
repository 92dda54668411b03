package testutils

import (
	"math/rand"
	"testing"
	"time"
)

// RandomBytes returns sz pseudo-random bytes. The seed is logged so that
// failures can be reproduced.
func RandomBytes(t testing.TB, sz int) []byte {
	t.Helper()
	seed := time.Now().UnixNano()
	t.Logf("Random seed: %d", seed)
	rng := rand.New(rand.NewSource(seed))
	b := make([]byte, sz)
	rng.Read(b)
	return b
}
