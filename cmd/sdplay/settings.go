package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/companyzero/sdplayback/internal/audio"
	"github.com/vaughan0/go-ini"
)

const maxLogFiles = 20

type settings struct {
	Root             string
	ListenPrometheus string
	Device           string
	Codec            string
	Buffers          audio.Config
	WAV              audio.WAVParams

	// log section
	LogFile       string
	DebugLevel    string
	StatsInterval time.Duration

	// Actions.
	ListDevices bool
	ListDir     string
	PlayFile    string
	PlayWAV     string
	Mix         bool
}

// hasAction returns true if the command line asked for something to do.
func (s *settings) hasAction() bool {
	return s.ListDevices || s.ListDir != "" || s.PlayFile != "" || s.PlayWAV != ""
}

func obtainSettings() (*settings, error) {
	usr, err := user.Current()
	if err != nil {
		return nil, err
	}

	rootDir := filepath.Join(usr.HomeDir, ".sdplay")
	filename := flag.String("cfg", filepath.Join(rootDir, "sdplay.conf"), "config file")
	lsdev := flag.Bool("lsdev", false, "list output devices")
	ls := flag.String("ls", "", "list the contents of a dir of the media root")
	play := flag.String("play", "", "framed file to play")
	wav := flag.String("wav", "", "wav file to play")
	mix := flag.Bool("mix", false, "mix the played file into a silent stereo stream "+
		"instead of using an output device")
	flag.Parse()

	// Default settings.
	s := &settings{
		Root:          ".",
		Codec:         audio.CodecOpus,
		Buffers:       audio.DefaultConfig(),
		WAV:           audio.DefaultWAVParams,
		LogFile:       filepath.Join(rootDir, "logs", "sdplay.log"),
		DebugLevel:    "info",
		StatsInterval: time.Minute,
		ListDevices:   *lsdev,
		ListDir:       *ls,
		PlayFile:      *play,
		PlayWAV:       *wav,
		Mix:           *mix,
	}

	// The config file is optional.
	cfg, err := ini.LoadFile(*filename)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	get := func(s *string, section, field string) bool {
		v, ok := cfg.Get(section, field)
		if ok {
			*s = v
		}
		return ok
	}
	var intErr error
	getInt := func(i *int, section, field string) {
		s, ok := cfg.Get(section, field)
		if !ok {
			return
		}
		v, err := strconv.Atoi(s)
		if err != nil && intErr == nil {
			intErr = fmt.Errorf("invalid %s.%s: %v", section, field, err)
		}
		if err == nil {
			*i = v
		}
	}

	get(&s.LogFile, "log", "logfile")
	get(&s.DebugLevel, "log", "debuglevel")
	get(&s.ListenPrometheus, "", "listenprometheus")
	get(&s.Root, "playback", "root")
	get(&s.Codec, "playback", "codec")
	get(&s.Device, "playback", "device")
	getInt(&s.Buffers.RingCapacity, "playback", "ringcapacity")
	getInt(&s.Buffers.SlotSize, "playback", "slotsize")
	getInt(&s.Buffers.MaxFrameSize, "playback", "maxframesize")
	getInt(&s.Buffers.OutputChannels, "playback", "outputchannels")
	getInt(&s.WAV.SampleRate, "wav", "samplerate")
	getInt(&s.WAV.BitDepth, "wav", "bitdepth")
	getInt(&s.WAV.Channels, "wav", "channels")
	if intErr != nil {
		return nil, intErr
	}

	var expand string
	if get(&expand, "playback", "expand") {
		s.Buffers.Expand, err = audio.ParseExpandMode(expand)
		if err != nil {
			return nil, err
		}
	}

	var statsInterval string
	if get(&statsInterval, "log", "statsinterval") {
		if statsInterval != "" {
			interval, err := time.ParseDuration(statsInterval)
			if err != nil {
				return nil, fmt.Errorf("unable to parse stats interval duration: %v", err)
			}
			s.StatsInterval = interval
		} else {
			// Disabled.
			s.StatsInterval = 0
		}
	}

	var frameMs string
	if get(&frameMs, "wav", "framems") {
		ms, err := strconv.ParseFloat(frameMs, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid wav.framems: %v", err)
		}
		s.WAV.FrameDuration = time.Duration(ms * float64(time.Millisecond))
	}

	return s, nil
}
