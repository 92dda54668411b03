package audio

import (
	"sync/atomic"

	"github.com/decred/slog"
)

// slotScheduler feeds the two output slots from the ring buffer. After start,
// all of its slot state is only accessed from the output device's completion
// context, through onReleased.
type slotScheduler struct {
	log   slog.Logger
	ring  *ringBuffer
	sig   *flowSignal
	stats *stats
	dev   OutputDevice

	// lowWater is the free space in the ring after which the producer is
	// signalled. It is the size of one decoded frame.
	lowWater int

	// inputDone is set by the producer after its last write.
	inputDone *atomic.Bool

	slots   [2][]byte
	audible [2]int

	// playing is the slot the device is playing. The other slot is
	// queued behind it. Only valid once started is set.
	playing SlotID
	started bool

	drained       chan struct{}
	drainedClosed bool

	// errChan receives the first error detected in the completion
	// context.
	errChan chan error
}

func newSlotScheduler(ring *ringBuffer, sig *flowSignal, slotSize, lowWater int,
	inputDone *atomic.Bool, st *stats, log slog.Logger) *slotScheduler {

	return &slotScheduler{
		log:       log,
		ring:      ring,
		sig:       sig,
		stats:     st,
		lowWater:  lowWater,
		inputDone: inputDone,
		slots:     [2][]byte{make([]byte, slotSize), make([]byte, slotSize)},
		drained:   make(chan struct{}),
		errChan:   make(chan error, 1),
	}
}

// fill fills the slot from the ring, padding any shortfall with silence, and
// returns the number of bytes of audio.
func (ss *slotScheduler) fill(id SlotID) int {
	buf := ss.slots[id]
	n := ss.ring.read(buf)
	clear(buf[n:])
	ss.audible[id] = n
	return n
}

// prime fills both slots. Unless the input is already done, the ring must
// hold enough data for both slots.
func (ss *slotScheduler) prime(inputDone bool) error {
	need := len(ss.slots[SlotA]) + len(ss.slots[SlotB])
	if !inputDone && ss.ring.len() < need {
		return codedErrorf(ErrOverflow, errNotPrimed, "ring has %d bytes, "+
			"need %d", ss.ring.len(), need)
	}
	ss.fill(SlotA)
	ss.fill(SlotB)
	return nil
}

// start hands both slots to the device. SlotB is queued before SlotA starts,
// so that it is in place when the device finishes SlotA.
func (ss *slotScheduler) start() error {
	ss.playing, ss.started = SlotA, true
	if err := ss.dev.SetNext(SlotB, ss.slots[SlotB]); err != nil {
		return err
	}
	return ss.dev.Start(SlotA, ss.slots[SlotA])
}

// reportErr sends err to errChan without blocking. Only the first error is
// kept.
func (ss *slotScheduler) reportErr(err error) {
	select {
	case ss.errChan <- err:
	default:
	}
}

// onReleased is the ReleasedFunc of the output device. It refills the slot
// that finished playing and queues it again. It never blocks.
func (ss *slotScheduler) onReleased(id SlotID) {
	if !id.valid() || !ss.started || id != ss.playing {
		ss.reportErr(codedErrorf(ErrSlotIdentity, nil, "released %s "+
			"while playing %s", id, ss.playing))
		return
	}
	ss.playing = id.other()

	// inputDone must be loaded before reading the ring so that a final
	// write is not missed.
	inputDone := ss.inputDone.Load()

	n := ss.fill(id)
	underrun := n < len(ss.slots[id]) && !inputDone
	ss.stats.slotRefilled(ss.ring.len(), underrun)
	if underrun && addDebugTrace {
		ss.log.Tracef("Underrun refilling slot %s (%d of %d bytes)", id,
			n, len(ss.slots[id]))
	}

	if err := ss.dev.SetNext(id, ss.slots[id]); err != nil {
		ss.reportErr(err)
		return
	}

	if ss.ring.free() >= ss.lowWater {
		ss.sig.raise()
	}

	if inputDone && n == 0 && ss.audible[id.other()] == 0 && !ss.drainedClosed {
		ss.drainedClosed = true
		close(ss.drained)
	}
}
