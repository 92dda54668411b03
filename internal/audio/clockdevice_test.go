package audio

import (
	"testing"
	"time"

	"github.com/companyzero/sdplayback/internal/assert"
)

// TestClockDevice tests that the clock device plays queued slots in order and
// stops playing audio once muted.
func TestClockDevice(t *testing.T) {
	t.Parallel()

	type playEvent struct {
		id  SlotID
		buf []byte
	}
	played := make(chan playEvent, 10)
	released := make(chan SlotID, 10)
	cd := newClockDevice(time.Millisecond, func(id SlotID) {
		released <- id
	}, func(id SlotID, buf []byte) {
		played <- playEvent{id: id, buf: buf}
	})

	assert.NilErr(t, cd.Start(SlotA, []byte{1}))
	assert.NonNilErr(t, cd.Start(SlotA, []byte{1}))
	assert.NilErr(t, cd.SetNext(SlotB, []byte{2}))

	assert.ChanWrittenWithVal(t, played, playEvent{id: SlotA, buf: []byte{1}})
	assert.ChanWrittenWithVal(t, released, SlotA)
	assert.ChanWrittenWithVal(t, played, playEvent{id: SlotB, buf: []byte{2}})
	assert.ChanWrittenWithVal(t, released, SlotB)

	// Nothing is queued, so the device idles until a slot is set.
	assert.ChanNotWritten(t, released, 10*time.Millisecond)
	assert.NilErr(t, cd.Mute())
	assert.NilErr(t, cd.SetNext(SlotA, []byte{3}))
	assert.ChanWrittenWithVal(t, released, SlotA)
	assert.ChanNotWritten(t, played, 20*time.Millisecond)

	assert.NilErr(t, cd.Stop())
	assert.NilErr(t, cd.Stop())
}

// TestClockDeviceStopUnstarted tests stopping a device that was never
// started.
func TestClockDeviceStopUnstarted(t *testing.T) {
	t.Parallel()
	cd := newClockDevice(time.Millisecond, func(SlotID) {}, nil)
	assert.DoesNotBlock(t, func() { assert.NilErr(t, cd.Stop()) })
}
