//go:build !race

package assert

import "time"

// timeout is how long the chan and blocking assertions wait.
const timeout = 10 * time.Second
