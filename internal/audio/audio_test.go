package audio

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/companyzero/sdplayback/framefile"
	"github.com/companyzero/sdplayback/internal/assert"
	"github.com/companyzero/sdplayback/internal/segment"
	"github.com/companyzero/sdplayback/internal/testutils"
	"github.com/decred/slog"
)

// testDecoder is a FrameDecoder that returns a fixed error or copies the
// frame as samples.
type testDecoder struct {
	err error
}

func (td *testDecoder) Decode(data []byte, frameSize int, fec bool, out []int16) ([]int16, error) {
	if td.err != nil {
		return nil, td.err
	}
	return bytesToLES16Slice(data, out[:0]), nil
}

// testAudioContext is used to test sessions. Its outputs are clock devices
// that record every played slot.
type testAudioContext struct {
	t      testing.TB
	period time.Duration
	decErr error

	mtx     sync.Mutex
	played  bytes.Buffer
	formats []OutputFormat

	started chan struct{}
	stopped chan struct{}
}

func newTestAudioContext(t testing.TB) *testAudioContext {
	return &testAudioContext{
		t:       t,
		period:  2 * time.Millisecond,
		started: make(chan struct{}, 5),
		stopped: make(chan struct{}, 5),
	}
}

func (tac *testAudioContext) name() string {
	return "testaudio"
}

func (tac *testAudioContext) listDevices(log slog.Logger) ([]Device, error) {
	return []Device{{ID: "test", Name: "Test Device", IsDefault: true}}, nil
}

func (tac *testAudioContext) initOutput(deviceID DeviceID, format OutputFormat,
	released ReleasedFunc) (OutputDevice, error) {

	tac.mtx.Lock()
	tac.formats = append(tac.formats, format)
	tac.mtx.Unlock()

	sink := func(id SlotID, buf []byte) {
		tac.mtx.Lock()
		tac.played.Write(buf)
		tac.mtx.Unlock()
	}
	return &testClockOutput{
		clockDevice: newClockDevice(tac.period, released, sink),
		tac:         tac,
	}, nil
}

func (tac *testAudioContext) newDecoder(sampleRate, channels int) (streamDecoder, error) {
	return &testDecoder{err: tac.decErr}, nil
}

func (tac *testAudioContext) free() error {
	return nil
}

// playedAudio returns the audio played so far, without the trailing silence
// of the last slots.
func (tac *testAudioContext) playedAudio() []byte {
	tac.mtx.Lock()
	defer tac.mtx.Unlock()
	return bytes.TrimRight(tac.played.Bytes(), "\x00")
}

// testClockOutput reports device starts and stops to the test context.
type testClockOutput struct {
	*clockDevice
	tac *testAudioContext
}

func (tco *testClockOutput) Start(id SlotID, buf []byte) error {
	err := tco.clockDevice.Start(id, buf)
	select {
	case tco.tac.started <- struct{}{}:
	default:
	}
	return err
}

func (tco *testClockOutput) Stop() error {
	err := tco.clockDevice.Stop()
	select {
	case tco.tac.stopped <- struct{}{}:
	default:
	}
	return err
}

// testOutputDevice is an OutputDevice driven by the test through complete.
type testOutputDevice struct {
	t        testing.TB
	released ReleasedFunc

	mtx      sync.Mutex
	cur      *slotBuf
	next     *slotBuf
	muted    bool
	stopped  bool
	played   []SlotID
	setNexts []SlotID
}

func (tod *testOutputDevice) Start(id SlotID, buf []byte) error {
	tod.mtx.Lock()
	tod.cur = &slotBuf{id: id, buf: buf}
	tod.mtx.Unlock()
	return nil
}

func (tod *testOutputDevice) SetNext(id SlotID, buf []byte) error {
	tod.mtx.Lock()
	tod.next = &slotBuf{id: id, buf: buf}
	tod.setNexts = append(tod.setNexts, id)
	tod.mtx.Unlock()
	return nil
}

func (tod *testOutputDevice) Mute() error {
	tod.mtx.Lock()
	tod.muted = true
	tod.mtx.Unlock()
	return nil
}

func (tod *testOutputDevice) Stop() error {
	tod.mtx.Lock()
	tod.stopped = true
	tod.mtx.Unlock()
	return nil
}

// complete finishes the current slot and returns a copy of its contents.
func (tod *testOutputDevice) complete() (SlotID, []byte) {
	tod.t.Helper()
	tod.mtx.Lock()
	cur := tod.cur
	tod.cur, tod.next = tod.next, nil
	if cur != nil {
		tod.played = append(tod.played, cur.id)
	}
	tod.mtx.Unlock()

	if cur == nil {
		tod.t.Fatal("no slot is playing")
	}
	data := append([]byte(nil), cur.buf...)
	tod.released(cur.id)
	return cur.id, data
}

// testPattern returns n bytes of a pattern that never contains zero bytes.
func testPattern(n, seed int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte((i+seed)%251 + 1)
	}
	return b
}

// testFramedFile returns a framed file for a 48kHz, 10ms mono stream with the
// given frames.
func testFramedFile(t testing.TB, frames ...[]byte) []byte {
	t.Helper()
	samples := uint32(len(frames) * 480)
	hdr := framefile.Header{
		FileID:           framefile.FileID,
		HeaderSize:       framefile.HeaderSize,
		SampleRateDiv100: 480,
		BitRateDiv100:    7680,
		Channels:         1,
		FrameMsTimes100:  1000,
		SignalLenLow:     uint16(samples),
		SignalLenHigh:    uint16(samples >> 16),
	}
	b, err := hdr.MarshalBinary()
	assert.NilErr(t, err)
	for _, f := range frames {
		b = framefile.AppendFrame(b, f)
	}
	return b
}

// zeroPadStereo returns mono 16 bit samples as stereo samples with a silent
// right channel.
func zeroPadStereo(mono []byte) []byte {
	out := make([]byte, 0, len(mono)*2)
	for i := 0; i+1 < len(mono); i += 2 {
		out = append(out, mono[i], mono[i+1], 0, 0)
	}
	return out
}

// testPCMFrames returns nb frames of 960 bytes of pattern data.
func testPCMFrames(nb int) [][]byte {
	frames := make([][]byte, nb)
	for i := range frames {
		frames[i] = testPattern(960, i*7)
	}
	return frames
}

// withTestAudioContext makes the player use the given audio context.
func withTestAudioContext(actx audioContext) Option {
	return func(c *config) {
		c.newAudioContext = func() (audioContext, error) { return actx, nil }
	}
}

type sessionResultEvent struct {
	name string
	err  error
}

// testPlayer is a running player with a temp dir store.
type testPlayer struct {
	*Player
	t    testing.TB
	root string
	tac  *testAudioContext
	done chan sessionResultEvent
}

func newTestPlayer(t testing.TB, opts ...Option) *testPlayer {
	t.Helper()
	root := testutils.TempTestDir(t, "player")
	tac := newTestAudioContext(t)
	done := make(chan sessionResultEvent, 10)
	opts = append([]Option{
		WithLogger(testutils.TestLoggerSys(t, "PLAY")),
		WithStore(segment.NewDirStore(root)),
		WithCodec(CodecPCM),
		WithStatsReportInterval(0),
		withTestAudioContext(tac),
		WithSessionEndedHandler(func(name string, err error) {
			done <- sessionResultEvent{name: name, err: err}
		}),
	}, opts...)
	p, err := New(opts...)
	assert.NilErr(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		err := <-runErr
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected Run() error: %v", err)
		}
	})

	return &testPlayer{Player: p, t: t, root: root, tac: tac, done: done}
}

// writeFile writes a file into the store of the player.
func (tp *testPlayer) writeFile(name string, data []byte) {
	tp.t.Helper()
	testutils.WriteTestFile(tp.t, tp.root, name, data)
}

// sessionEnded waits for the next session to end and returns its error.
func (tp *testPlayer) sessionEnded() error {
	tp.t.Helper()
	return assert.ChanWritten(tp.t, tp.done).err
}
