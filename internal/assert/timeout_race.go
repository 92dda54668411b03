//go:build race

package assert

import "time"

const timeout = 30 * time.Second
