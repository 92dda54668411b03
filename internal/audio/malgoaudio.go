//go:build cgo && !noaudio

package audio

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/companyzero/gopus"
	"github.com/decred/slog"

	"github.com/gen2brain/malgo"
)

// rawFormat is the malgo sample format matching rawFormatSampleSize.
var rawFormat = malgo.FormatS16

// toMalgoDeviceId converts a device id to a malgo device id.
func (id DeviceID) toMalgoDeviceId() malgo.DeviceID {
	var res malgo.DeviceID
	if runtime.GOOS == "android" {
		i, err := strconv.ParseInt(string(id), 10, 32)
		if err == nil {
			binary.LittleEndian.PutUint32(res[:], uint32(i))
		}

	} else {
		copy(res[:], id)
	}
	return res
}

func init() {
	newAudioContext = newMalgoContext
}

func listMalgoDevices(typ malgo.DeviceType, malgoCtx *malgo.AllocatedContext, log slog.Logger) ([]Device, error) {
	devices, err := malgoCtx.Devices(typ)
	if err != nil {
		return nil, err
	}

	res := make([]Device, 0, len(devices))
	setIds := make(map[DeviceID]struct{}, len(devices))
	for _, dev := range devices {
		full, err := malgoCtx.DeviceInfo(typ, dev.ID, malgo.Shared)
		if err != nil {
			log.Warnf("Unable to get audio device info: %v", err)
			continue
		}

		// Avoid duplicate device IDs.
		id := DeviceID(string(append([]byte(nil), full.ID[:]...)))
		if _, ok := setIds[id]; ok {
			continue
		}
		setIds[id] = struct{}{}

		res = append(res, Device{
			ID:        id,
			Name:      full.Name(),
			IsDefault: full.IsDefault == 1,
		})
	}

	return res, nil
}

// malgoContext is an implementation of audioContext which offloads the
// work to malgo library.
type malgoContext struct {
	malgoCtx *malgo.AllocatedContext
}

// emptyDeviceID is an empty malgo device id.
var emptyDeviceID malgo.DeviceID

// newMalgoContext creates a new audioContext using malgo.
func newMalgoContext() (audioContext, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}

	return &malgoContext{malgoCtx: malgoCtx}, nil
}

func (mpc *malgoContext) name() string {
	return "malgo"
}

func (mpc *malgoContext) free() error {
	if err := mpc.malgoCtx.Uninit(); err != nil {
		return err
	}
	mpc.malgoCtx.Free()
	return nil
}

func (mpc *malgoContext) listDevices(log slog.Logger) ([]Device, error) {
	return listMalgoDevices(malgo.Playback, mpc.malgoCtx, log)
}

// initOutput is part of the audioContext interface.
func (mpc *malgoContext) initOutput(deviceID DeviceID, format OutputFormat,
	released ReleasedFunc) (OutputDevice, error) {

	// Sanity check.
	sampleSizeInBytes := malgo.SampleSizeInBytes(rawFormat)
	if sampleSizeInBytes != rawFormatSampleSize {
		return nil, fmt.Errorf("malgo raw format has wrong sample size "+
			"(got %d, want %d)", sampleSizeInBytes, rawFormatSampleSize)
	}

	periodMS := uint32(format.SlotDuration() / time.Millisecond)
	if periodMS == 0 {
		periodMS = 1
	}

	out := &malgoOutput{
		channels: format.Channels,
		released: released,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	malgoDeviceID := deviceID.toMalgoDeviceId()
	if malgoDeviceID != emptyDeviceID {
		deviceConfig.Playback.DeviceID = malgoDeviceID.Pointer()
	}
	deviceConfig.PeriodSizeInMilliseconds = periodMS
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Playback.Format = rawFormat
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.Alsa.NoMMap = 1

	playbackCallbacks := malgo.DeviceCallbacks{
		Data: malgo.DataProc(out.onSendFrames),
	}

	device, err := malgo.InitDevice(mpc.malgoCtx.Context, deviceConfig, playbackCallbacks)
	if err != nil {
		return nil, err
	}
	out.device = device
	return out, nil
}

func (mpc *malgoContext) newDecoder(sampleRate, channels int) (streamDecoder, error) {
	return gopus.NewDecoder(sampleRate, channels)
}

// malgoOutput plays slots through a malgo playback device. The device pulls
// samples in periods that do not need to match the slot size, so a slot may
// span several data callbacks and a single callback may finish a slot.
type malgoOutput struct {
	device   *malgo.Device
	channels int
	released ReleasedFunc

	// cur and curOff are only accessed by the data callback once the
	// device is started.
	cur    slotBuf
	curOff int

	next     atomic.Pointer[slotBuf]
	muted    atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
}

func (mo *malgoOutput) onSendFrames(outSample, _ []byte, framecount uint32) {
	bytesToWrite := int(framecount) * mo.channels * rawFormatSampleSize
	if bytesToWrite > len(outSample) {
		bytesToWrite = len(outSample)
	}
	out := outSample[:bytesToWrite]

	for len(out) > 0 {
		if mo.stopped.Load() {
			clear(out)
			return
		}

		if mo.cur.buf == nil {
			next := mo.next.Swap(nil)
			if next == nil {
				// Underrun: nothing queued.
				clear(out)
				return
			}
			mo.cur, mo.curOff = *next, 0
			continue
		}

		n := copy(out, mo.cur.buf[mo.curOff:])
		if mo.muted.Load() {
			clear(out[:n])
		}
		out = out[n:]
		mo.curOff += n
		if mo.curOff < len(mo.cur.buf) {
			continue
		}

		// Finished the current slot. Switch to the queued one before
		// releasing the finished slot, so that the release may queue
		// it again.
		finished := mo.cur.id
		mo.cur, mo.curOff = slotBuf{}, 0
		if next := mo.next.Swap(nil); next != nil {
			mo.cur = *next
		}
		mo.released(finished)
	}
}

func (mo *malgoOutput) Start(id SlotID, buf []byte) error {
	mo.cur, mo.curOff = slotBuf{id: id, buf: buf}, 0
	return mo.device.Start()
}

func (mo *malgoOutput) SetNext(id SlotID, buf []byte) error {
	mo.next.Store(&slotBuf{id: id, buf: buf})
	return nil
}

func (mo *malgoOutput) Mute() error {
	mo.muted.Store(true)
	return nil
}

func (mo *malgoOutput) Stop() error {
	mo.stopOnce.Do(func() {
		mo.stopped.Store(true)
		mo.device.Uninit()
	})
	return nil
}
