package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"
)

// SessionState is the state of a playback session.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateHeaderRead
	StatePrimed
	StateStreaming
	StateDraining
	StateClosed
	StateError
)

func (st SessionState) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateHeaderRead:
		return "header read"
	case StatePrimed:
		return "primed"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int32(st))
	}
}

// isCancelErr returns true if err is the result of the session being stopped.
func isCancelErr(err error) bool {
	return errors.Is(err, context.Canceled)
}

// session plays a single source from start to end. A session is not
// reusable.
type session struct {
	name     string
	log      slog.Logger
	buf      Config
	mode     Mode
	deviceID DeviceID
	actx     audioContext
	stats    *stats
	open     func() (pcmSource, error)

	state  atomic.Int32
	active atomic.Bool

	src        pcmSource
	fmt        sourceFormat
	ring       *ringBuffer
	sig        *flowSignal
	sched      *slotScheduler
	dev        OutputDevice
	frameBytes int

	// inputDone is set once the producer wrote its last block.
	inputDone atomic.Bool

	// Mix mode fields. mixMtx serializes consumers of the ring buffer.
	primed        atomic.Bool
	mixMtx        sync.Mutex
	mixBuf        []byte
	mixMode       MixMode
	drained       chan struct{}
	drainedClosed bool

	// onStateChanged is called on every state change. Only set in tests.
	onStateChanged func(SessionState)
}

func (s *session) setState(st SessionState) {
	old := SessionState(s.state.Swap(int32(st)))
	if old == st {
		return
	}
	if addDebugTrace {
		s.log.Tracef("Session state %s -> %s", old, st)
	}
	if s.onStateChanged != nil {
		s.onStateChanged(st)
	}
}

func (s *session) getState() SessionState {
	return SessionState(s.state.Load())
}

// run plays the session until the source is exhausted and all of its audio
// has been played, ctx is done or an error happens. The session is always
// closed when run returns.
func (s *session) run(ctx context.Context) error {
	s.active.Store(true)
	err := s.play(ctx)
	return s.close(err)
}

func (s *session) play(ctx context.Context) error {
	src, err := s.open()
	if err != nil {
		return err
	}
	s.src = src
	s.fmt = src.format()
	s.frameBytes = s.fmt.frameBytes
	if err := s.buf.validate(s.frameBytes); err != nil {
		return err
	}
	s.ring = newRingBuffer(s.buf.RingCapacity)
	s.sig = newFlowSignal()
	s.setState(StateHeaderRead)
	s.log.Debugf("Opened %s: %d Hz, %d output channels, %d bytes "+
		"per %s frame", src, s.fmt.sampleRate, s.fmt.channels,
		s.frameBytes, s.fmt.frameDuration)

	inputDone, err := s.prefill()
	if err != nil {
		return err
	}
	if inputDone {
		s.inputDone.Store(true)
	}

	switch s.mode {
	case ModeMix:
		s.mixBuf = make([]byte, s.frameBytes)
		s.mixMode = MixMonoIntoStereoLeft
		if s.fmt.channels == 2 {
			s.mixMode = MixStereoIntoStereo
		}
		s.drained = make(chan struct{})
		s.setState(StatePrimed)
		s.primed.Store(true)
		s.mixMtx.Lock()
		s.checkMixDrained()
		s.mixMtx.Unlock()

	default:
		if err := s.startOutput(inputDone); err != nil {
			return err
		}
	}

	if s.ring.free() >= s.frameBytes {
		s.sig.raise()
	}

	s.setState(StateStreaming)
	g, gctx := errgroup.WithContext(ctx)
	if inputDone {
		s.setState(StateDraining)
	} else {
		g.Go(func() error { return s.produce(gctx) })
	}
	g.Go(func() error { return s.waitDrained(gctx) })
	return g.Wait()
}

// prefill fills the ring buffer with enough data to prime both output slots.
// It returns true if the source was exhausted.
func (s *session) prefill() (bool, error) {
	need := 2 * s.buf.SlotSize
	for s.ring.len() < need && s.ring.free() >= s.frameBytes {
		block, err := s.src.next()
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if err := s.ring.write(block); err != nil {
			return false, err
		}
		s.stats.frameCommitted(len(block))
	}
	return false, nil
}

// startOutput primes the output slots and starts the output device.
func (s *session) startOutput(inputDone bool) error {
	s.sched = newSlotScheduler(s.ring, s.sig, s.buf.SlotSize, s.frameBytes,
		&s.inputDone, s.stats, s.log)
	if err := s.sched.prime(inputDone); err != nil {
		return err
	}
	s.setState(StatePrimed)

	format := OutputFormat{
		SampleRate: s.fmt.sampleRate,
		Channels:   s.fmt.channels,
		SlotSize:   s.buf.SlotSize,
	}
	dev, err := s.actx.initOutput(s.deviceID, format, s.sched.onReleased)
	if err != nil {
		return fmt.Errorf("unable to init %s output: %w", s.actx.name(), err)
	}
	s.dev = dev
	s.sched.dev = dev
	return s.sched.start()
}

// produce decodes the rest of the source into the ring buffer. Each write
// waits for the flow signal and for enough free space.
func (s *session) produce(ctx context.Context) error {
	for {
		block, err := s.src.next()
		if errors.Is(err, io.EOF) {
			s.inputDone.Store(true)
			s.setState(StateDraining)
			if s.mode == ModeMix {
				s.mixMtx.Lock()
				s.checkMixDrained()
				s.mixMtx.Unlock()
			}
			return nil
		}
		if err != nil {
			return err
		}

		if err := s.waitSpace(ctx, len(block)); err != nil {
			return err
		}
		if err := s.ring.write(block); err != nil {
			return err
		}
		s.stats.frameCommitted(len(block))
	}
}

// waitSpace waits until the flow signal is raised with at least n bytes of
// free space in the ring.
func (s *session) waitSpace(ctx context.Context, n int) error {
	for {
		if err := s.sig.wait(ctx); err != nil {
			return err
		}
		if s.ring.free() >= n {
			return nil
		}
	}
}

// waitDrained waits until all audio has been consumed.
func (s *session) waitDrained(ctx context.Context) error {
	var errChan chan error
	drained := s.drained
	if s.sched != nil {
		errChan = s.sched.errChan
		drained = s.sched.drained
	}
	select {
	case <-drained:
		return nil
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkMixDrained ends a mix mode session once the input is done and the ring
// is empty. Must be called with mixMtx held.
func (s *session) checkMixDrained() {
	if !s.drainedClosed && s.inputDone.Load() && s.ring.len() == 0 {
		s.drainedClosed = true
		close(s.drained)
	}
}

// mixFrame pulls one decoded frame out of the ring buffer and mixes it into
// pcmA. Missing data is treated as silence. It never blocks on the producer.
func (s *session) mixFrame(pcmA []byte) error {
	if !s.primed.Load() {
		return nil
	}

	need := s.frameBytes
	if s.mixMode == MixMonoIntoStereoLeft {
		need *= 2
	}
	if len(pcmA) < need {
		return fmt.Errorf("%w: %d < %d", errMixBufferTooSmall, len(pcmA), need)
	}

	s.mixMtx.Lock()
	defer s.mixMtx.Unlock()

	inputDone := s.inputDone.Load()
	n := s.ring.read(s.mixBuf)
	clear(s.mixBuf[n:])
	if n < len(s.mixBuf) && !inputDone {
		s.stats.underran()
	}
	if s.ring.free() >= s.frameBytes {
		s.sig.raise()
	}
	if inputDone {
		s.checkMixDrained()
	}
	return pcmMix(pcmA, s.mixBuf, s.mixMode)
}

// close releases the resources of the session. It returns err, or a storage
// error if closing the source failed.
func (s *session) close(err error) error {
	if isCancelErr(err) {
		s.setState(StateDraining)
	}

	if s.dev != nil {
		if merr := s.dev.Mute(); merr != nil {
			s.log.Warnf("Unable to mute output: %v", merr)
		}
		if serr := s.dev.Stop(); serr != nil {
			s.log.Warnf("Unable to stop output: %v", serr)
		}
	}
	if s.src != nil {
		if cerr := s.src.close(); cerr != nil {
			if err == nil {
				err = makeCodedError(ErrStorage, cerr)
			} else {
				s.log.Warnf("Unable to close %s: %v", s.src, cerr)
			}
		}
	}
	s.active.Store(false)

	if err != nil && !isCancelErr(err) {
		s.setState(StateError)
	} else {
		s.setState(StateClosed)
	}
	return err
}
