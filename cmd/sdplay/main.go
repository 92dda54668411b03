package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/companyzero/sdplayback/internal/audio"
	"github.com/companyzero/sdplayback/internal/logutil"
	"github.com/companyzero/sdplayback/internal/segment"
	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"
)

func realMain() error {
	// Settings.
	cfg, err := obtainSettings()
	if err != nil {
		return err
	}
	if !cfg.hasAction() {
		return errors.New("nothing to do: use one of -lsdev, -ls, -play or -wav")
	}

	// Log.
	logBknd, err := logutil.NewBackend(os.Stdout, cfg.LogFile, maxLogFiles)
	if err != nil {
		return err
	}
	defer logBknd.Close()
	log, err := logBknd.Logger("MAIN", cfg.DebugLevel)
	if err != nil {
		return err
	}
	playLog, _ := logBknd.Logger("PLAY", cfg.DebugLevel)

	if cfg.ListDevices {
		return listDevices(log)
	}

	// Main context.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := segment.NewDirStore(cfg.Root)
	log.Debugf("Using store root %s", store.Root())
	if cfg.ListDir != "" {
		return listDir(store, cfg.ListDir)
	}

	if cfg.Device != "" && !cfg.Mix {
		dev := audio.FindDevice(audio.DeviceID(cfg.Device), log)
		if dev == nil {
			return fmt.Errorf("output device %q not found", cfg.Device)
		}
		log.Infof("Using output device %s", dev.Name)
	}

	// Player.
	ended := make(chan error, 1)
	mode := audio.ModeOutput
	if cfg.Mix {
		mode = audio.ModeMix
	}
	player, err := audio.New(
		audio.WithLogger(playLog),
		audio.WithStore(store),
		audio.WithConfig(cfg.Buffers),
		audio.WithMode(mode),
		audio.WithDeviceID(audio.DeviceID(cfg.Device)),
		audio.WithCodec(cfg.Codec),
		audio.WithPrometheusListenAddr(cfg.ListenPrometheus),
		audio.WithStatsReportInterval(cfg.StatsInterval),
		audio.WithSessionEndedHandler(func(name string, err error) {
			ended <- err
		}),
	)
	if err != nil {
		return err
	}

	if cfg.PlayFile != "" {
		err = player.PlayFile(cfg.PlayFile, "")
	} else {
		err = player.PlayWAV(cfg.PlayWAV, "", cfg.WAV)
	}
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopRun := context.WithCancel(gctx)
	g.Go(func() error { return player.Run(runCtx) })
	if cfg.Mix {
		g.Go(func() error { return runMixer(runCtx, player, log) })
	}
	g.Go(func() error {
		defer stopRun()
		select {
		case err := <-ended:
			if err != nil {
				return fmt.Errorf("playback failed (status %d): %w",
					audio.StatusCode(err), err)
			}
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// listDevices prints the available output devices.
func listDevices(log slog.Logger) error {
	devices, err := audio.ListDevices(log)
	if err != nil {
		return err
	}
	for _, dev := range devices {
		def := ""
		if dev.IsDefault {
			def = " (default)"
		}
		fmt.Printf("%s  %s%s\n", dev.ID, dev.Name, def)
	}
	return nil
}

// listDir prints the contents of a dir of the store.
func listDir(store segment.Store, dir string) error {
	entries, err := store.List(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Println(e)
	}
	return nil
}

// runMixer pulls frames of the playing file into a silent stereo stream at
// the rate of the output, reporting how much audio was mixed.
func runMixer(ctx context.Context, player *audio.Player, log slog.Logger) error {
	const frameDuration = 10 * time.Millisecond

	// Room for 20ms of 96kHz stereo.
	pcmA := make([]byte, 96000/50*2*2)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	var frames, audible int
	defer func() {
		log.Infof("Mixed %d frames (%d with audio)", frames, audible)
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		clear(pcmA)
		err := player.MixWithStream(pcmA)
		if err != nil {
			log.Tracef("Mix: %v", err)
			continue
		}
		frames++
		for _, b := range pcmA {
			if b != 0 {
				audible++
				break
			}
		}
	}
}

func main() {
	err := realMain()
	if err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}
