package audio

import "context"

// flowSignal is a single slot wake primitive used by the consumer to tell the
// producer that there is room for more data. Raising an already raised
// signal is a no-op.
type flowSignal struct {
	c chan struct{}
}

// newFlowSignal returns a signal that starts raised.
func newFlowSignal() *flowSignal {
	c := make(chan struct{}, 1)
	c <- struct{}{}
	return &flowSignal{c: c}
}

// raise wakes one waiter. It never blocks.
func (fs *flowSignal) raise() {
	select {
	case fs.c <- struct{}{}:
	default:
	}
}

// wait blocks until the signal is raised or ctx is done.
func (fs *flowSignal) wait(ctx context.Context) error {
	select {
	case <-fs.c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryWait consumes a raised signal without blocking. It returns false if the
// signal was not raised.
func (fs *flowSignal) tryWait() bool {
	select {
	case <-fs.c:
		return true
	default:
		return false
	}
}
