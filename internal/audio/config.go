package audio

import (
	"fmt"
	"time"

	"github.com/companyzero/sdplayback/framefile"
	"github.com/companyzero/sdplayback/internal/segment"
	"github.com/decred/slog"
)

// Config are the buffer parameters of a playback session.
type Config struct {
	// RingCapacity is the size in bytes of the ring buffer between the
	// decoder and the output slots.
	RingCapacity int

	// SlotSize is the size in bytes of each of the two output slots.
	SlotSize int

	// MaxFrameSize is the largest accepted encoded frame.
	MaxFrameSize int

	// OutputChannels is the number of output channels (1 or 2).
	OutputChannels int

	// Expand selects how mono sources are played on stereo outputs.
	Expand ExpandMode
}

// DefaultConfig returns the default buffer parameters: a 1920 byte ring
// feeding two 480 byte slots of a mono output.
func DefaultConfig() Config {
	return Config{
		RingCapacity:   1920,
		SlotSize:       480,
		MaxFrameSize:   framefile.DefaultMaxFrameSize,
		OutputChannels: 1,
		Expand:         ExpandDuplicate,
	}
}

// validate checks the config can serve a source that produces frameBytes
// bytes per decoded frame. The ring must be able to hold both slots' worth of
// data plus one more frame so that the producer can always write once priming
// is done.
func (c *Config) validate(frameBytes int) error {
	sampleBytes := rawFormatSampleSize * c.OutputChannels
	switch {
	case c.OutputChannels != 1 && c.OutputChannels != 2:
		return fmt.Errorf("unsupported output channel count %d", c.OutputChannels)
	case c.SlotSize <= 0 || c.SlotSize%sampleBytes != 0:
		return fmt.Errorf("slot size %d is not a multiple of the %d "+
			"byte sample size", c.SlotSize, sampleBytes)
	case frameBytes <= 0:
		return fmt.Errorf("invalid frame size %d", frameBytes)
	case c.RingCapacity < 2*c.SlotSize+frameBytes:
		return fmt.Errorf("ring capacity %d is smaller than two slots "+
			"(%d) plus one frame (%d)", c.RingCapacity, 2*c.SlotSize,
			frameBytes)
	}
	return nil
}

// Mode is the operating mode of a player.
type Mode int

const (
	// ModeOutput plays sessions on an output device.
	ModeOutput Mode = iota

	// ModeMix has no output device. Decoded audio is pulled by an
	// external mixer through MixWithStream.
	ModeMix
)

func (m Mode) String() string {
	switch m {
	case ModeOutput:
		return "output"
	case ModeMix:
		return "mix"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// config determines a player config.
type config struct {
	log      slog.Logger
	store    segment.Store
	buf      Config
	mode     Mode
	deviceID DeviceID
	codec    string
	promAddr string

	// statsReportInterval is the interval to log stats. If zero, stats are
	// not logged.
	statsReportInterval time.Duration

	sessionEnded func(name string, err error)

	// newAudioContext overrides the backend. Only set in tests.
	newAudioContext func() (audioContext, error)
}

// fillConfig fills a new config with the default config values, then applies
// all specified options.
func fillConfig(opts ...Option) config {
	cfg := config{
		log:                 slog.Disabled,
		buf:                 DefaultConfig(),
		codec:               CodecOpus,
		statsReportInterval: time.Minute,
		newAudioContext:     newAudioContext,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option is a functional player config option.
type Option func(c *config)

// WithLogger sets the logger of the player.
func WithLogger(log slog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithStore sets the store that files are played from.
func WithStore(store segment.Store) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithConfig sets the buffer parameters of playback sessions.
func WithConfig(buf Config) Option {
	return func(c *config) {
		c.buf = buf
	}
}

// WithMode sets the operating mode of the player.
func WithMode(mode Mode) Option {
	return func(c *config) {
		c.mode = mode
	}
}

// WithDeviceID selects the output device. The default device is used if not
// set.
func WithDeviceID(id DeviceID) Option {
	return func(c *config) {
		c.deviceID = id
	}
}

// WithCodec sets the codec of framed files.
func WithCodec(codec string) Option {
	return func(c *config) {
		c.codec = codec
	}
}

// WithPrometheusListenAddr sets the address to offer Prometheus metrics
// endpoint collection.
func WithPrometheusListenAddr(addr string) Option {
	return func(c *config) {
		c.promAddr = addr
	}
}

// WithStatsReportInterval sets the interval to log playback stats. Zero
// disables it.
func WithStatsReportInterval(interval time.Duration) Option {
	return func(c *config) {
		c.statsReportInterval = interval
	}
}

// WithSessionEndedHandler sets a function called after every session ends,
// with the name of the played file and the session error. It is called from
// the player goroutine, so it must not block for long.
func WithSessionEndedHandler(h func(name string, err error)) Option {
	return func(c *config) {
		c.sessionEnded = h
	}
}
