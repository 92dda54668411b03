package audio

import (
	"errors"
	"sync"
	"time"
)

// slotBuf is a slot handed to an output device.
type slotBuf struct {
	id  SlotID
	buf []byte
}

// clockDevice is an OutputDevice without audio hardware. It consumes one slot
// every period, as a real output would, and optionally hands each played slot
// to a sink.
type clockDevice struct {
	period   time.Duration
	released ReleasedFunc
	played   func(id SlotID, buf []byte)

	mtx     sync.Mutex
	cur     *slotBuf
	next    *slotBuf
	muted   bool
	started bool
	stopped bool

	stop chan struct{}
	done chan struct{}
}

func newClockDevice(period time.Duration, released ReleasedFunc,
	played func(id SlotID, buf []byte)) *clockDevice {

	if period <= 0 {
		period = time.Millisecond
	}
	return &clockDevice{
		period:   period,
		released: released,
		played:   played,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (cd *clockDevice) run() {
	defer close(cd.done)
	ticker := time.NewTicker(cd.period)
	defer ticker.Stop()
	for {
		select {
		case <-cd.stop:
			return
		case <-ticker.C:
			cd.tick()
		}
	}
}

// tick finishes the current slot and switches to the queued one.
func (cd *clockDevice) tick() {
	cd.mtx.Lock()
	cur := cd.cur
	cd.cur, cd.next = cd.next, nil
	muted := cd.muted
	cd.mtx.Unlock()

	if cur == nil {
		return
	}
	if cd.played != nil && !muted {
		cd.played(cur.id, cur.buf)
	}
	cd.released(cur.id)
}

func (cd *clockDevice) Start(id SlotID, buf []byte) error {
	cd.mtx.Lock()
	defer cd.mtx.Unlock()
	if cd.started {
		return errors.New("device already started")
	}
	cd.started = true
	cd.cur = &slotBuf{id: id, buf: buf}
	go cd.run()
	return nil
}

func (cd *clockDevice) SetNext(id SlotID, buf []byte) error {
	cd.mtx.Lock()
	cd.next = &slotBuf{id: id, buf: buf}
	cd.mtx.Unlock()
	return nil
}

func (cd *clockDevice) Mute() error {
	cd.mtx.Lock()
	cd.muted = true
	cd.mtx.Unlock()
	return nil
}

// Stop stops the clock. It must not be called from within the ReleasedFunc.
func (cd *clockDevice) Stop() error {
	cd.mtx.Lock()
	started, stopped := cd.started, cd.stopped
	cd.stopped = true
	cd.mtx.Unlock()

	if stopped {
		return nil
	}
	close(cd.stop)
	if started {
		<-cd.done
	}
	return nil
}
