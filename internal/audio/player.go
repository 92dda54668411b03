package audio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/companyzero/sdplayback/internal/logutil"
	"github.com/companyzero/sdplayback/internal/segment"
	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// maxQueuedRequests is the number of play requests that may wait for the
// current session to end.
const maxQueuedRequests = 2

// playRequest is a request to play one file.
type playRequest struct {
	name string
	dir  string
	open func() (pcmSource, error)
}

// Player plays files from a store, one session at a time.
type Player struct {
	cfg   config
	log   slog.Logger
	stats *stats
	actx  audioContext

	reqs chan playRequest
	sess atomic.Pointer[session]

	mtx        sync.Mutex
	dir        string
	lastErr    error
	cancelSess context.CancelFunc
}

// New creates a new player. The player only processes requests while Run is
// executing.
func New(opts ...Option) (*Player, error) {
	cfg := fillConfig(opts...)
	if cfg.store == nil {
		return nil, errors.New("store not specified")
	}
	if cfg.newAudioContext == nil {
		return nil, errors.New("no audio backend")
	}
	actx, err := cfg.newAudioContext()
	if err != nil {
		return nil, fmt.Errorf("unable to init audio context: %w", err)
	}

	return &Player{
		cfg:   cfg,
		log:   cfg.log,
		stats: newStats(),
		actx:  actx,
		reqs:  make(chan playRequest, maxQueuedRequests),
		dir:   "/",
	}, nil
}

// Run processes play requests until ctx is done. The audio backend is freed
// when Run returns.
func (p *Player) Run(ctx context.Context) error {
	defer func() {
		if err := p.actx.free(); err != nil {
			p.log.Warnf("Unable to free %s audio context: %v", p.actx.name(), err)
		}
	}()

	p.log.Infof("Running player with %s backend in %s mode", p.actx.name(),
		p.cfg.mode)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.runRequests(gctx) })
	g.Go(func() error { return p.runReportStatsLoop(gctx, p.cfg.statsReportInterval) })
	if p.cfg.promAddr != "" {
		g.Go(func() error { return p.runPrometheusListener(gctx, p.cfg.promAddr) })
	}
	return g.Wait()
}

func (p *Player) runRequests(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-p.reqs:
			p.runSession(ctx, req)
		}
	}
}

// runSession runs a single session to completion.
func (p *Player) runSession(ctx context.Context, req playRequest) {
	s := &session{
		name:     req.name,
		log:      logutil.PrefixLogger(p.log, "["+req.name+"]"),
		buf:      p.cfg.buf,
		mode:     p.cfg.mode,
		deviceID: p.cfg.deviceID,
		actx:     p.actx,
		stats:    p.stats,
		open:     req.open,
	}

	sctx, cancel := context.WithCancel(ctx)
	p.mtx.Lock()
	p.cancelSess = cancel
	p.mtx.Unlock()
	p.sess.Store(s)

	p.log.Infof("Starting playback of %q in %q", req.name, req.dir)
	start := time.Now()
	err := s.run(sctx)
	cancel()

	switch {
	case err == nil:
		p.log.Infof("Finished playback of %q after %s", req.name,
			time.Since(start).Round(time.Millisecond))
	case isCancelErr(err):
		p.log.Infof("Stopped playback of %q", req.name)
		err = nil
	default:
		p.log.Errorf("Playback of %q failed (status %d): %v", req.name,
			StatusCode(err), err)
	}
	p.stats.sessions.WithLabelValues(sessionResult(err)).Inc()

	p.mtx.Lock()
	p.cancelSess = nil
	p.lastErr = err
	p.mtx.Unlock()

	if p.cfg.sessionEnded != nil {
		p.cfg.sessionEnded(req.name, err)
	}
}

// enqueue adds a request to the queue without blocking.
func (p *Player) enqueue(req playRequest) error {
	select {
	case p.reqs <- req:
		return nil
	default:
		return errQueueFull
	}
}

// dirOrCurrent returns dir, or the current dir if dir is empty.
func (p *Player) dirOrCurrent(dir string) string {
	if dir != "" {
		return dir
	}
	return p.Dir()
}

// PlayFile queues playback of the framed file name inside dir. An empty dir
// refers to the current dir. Errors during playback are available through
// LastErr once the session ends.
func (p *Player) PlayFile(name, dir string) error {
	dir = p.dirOrCurrent(dir)
	return p.enqueue(playRequest{
		name: name,
		dir:  dir,
		open: func() (pcmSource, error) {
			seg, err := p.cfg.store.Open(name, dir)
			if err != nil {
				return nil, makeCodedError(ErrStorage, err)
			}
			return openFramedSource(seg, p.actx, p.cfg.codec, &p.cfg.buf)
		},
	})
}

// PlayWAV queues playback of the WAV file name inside dir. The file must
// match the given parameters.
func (p *Player) PlayWAV(name, dir string, params WAVParams) error {
	dir = p.dirOrCurrent(dir)
	return p.enqueue(playRequest{
		name: name,
		dir:  dir,
		open: func() (pcmSource, error) {
			seg, err := p.cfg.store.Open(name, dir)
			if err != nil {
				return nil, makeCodedError(ErrStorage, err)
			}
			return openWAVSource(seg, params, &p.cfg.buf)
		},
	})
}

// IsActive returns true while a session is playing.
func (p *Player) IsActive() bool {
	s := p.sess.Load()
	return s != nil && s.active.Load()
}

// State returns the state of the current or last session.
func (p *Player) State() SessionState {
	s := p.sess.Load()
	if s == nil {
		return StateIdle
	}
	return s.getState()
}

// MixWithStream mixes the next decoded frame of the active session into the
// stereo samples in pcmA. It is only available in mix mode and never blocks
// waiting for the decoder; if no decoded data is available, pcmA is left
// unchanged.
func (p *Player) MixWithStream(pcmA []byte) error {
	if p.cfg.mode != ModeMix {
		return errNotMixMode
	}
	s := p.sess.Load()
	if s == nil || !s.active.Load() {
		return errNoActiveSession
	}
	return s.mixFrame(pcmA)
}

// Stop stops the current session. Queued requests are not affected.
func (p *Player) Stop() {
	p.mtx.Lock()
	cancel := p.cancelSess
	p.mtx.Unlock()
	if cancel != nil {
		cancel()
	}
}

// LastErr returns the error of the last finished session.
func (p *Player) LastErr() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.lastErr
}

// Dir returns the current dir.
func (p *Player) Dir() string {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.dir
}

// ChangeDir changes the current dir. Relative dirs are resolved from the
// current dir and "/" returns to the root of the store.
func (p *Player) ChangeDir(dir string) error {
	base := p.Dir()
	if strings.HasPrefix(dir, "/") {
		base = "/"
	}
	target, err := segment.Resolve(base, dir)
	if err != nil {
		return err
	}
	isDir, err := p.cfg.store.IsDir(target)
	if err != nil {
		return fmt.Errorf("unable to change dir to %q: %w", target, err)
	}
	if !isDir {
		return fmt.Errorf("unable to change dir to %q: %w", target,
			segment.ErrNotDir)
	}

	p.mtx.Lock()
	p.dir = target
	p.mtx.Unlock()
	p.log.Debugf("Changed dir to %q", target)
	return nil
}

// ListFiles lists the contents of dir. An empty dir lists the current dir.
func (p *Player) ListFiles(dir string) ([]segment.Entry, error) {
	base := p.Dir()
	if strings.HasPrefix(dir, "/") {
		base = "/"
	}
	target, err := segment.Resolve(base, dir)
	if err != nil {
		return nil, err
	}
	return p.cfg.store.List(target)
}

// runPrometheusListener runs the Prometheus metrics endpoint in the given
// address.
func (p *Player) runPrometheusListener(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	promHandler := promhttp.InstrumentMetricHandler(
		p.stats.reg, promhttp.HandlerFor(p.stats.reg, promhttp.HandlerOpts{}),
	)
	mux.Handle("/metrics", promHandler)
	hs := http.Server{
		Addr:        addr,
		BaseContext: func(net.Listener) context.Context { return ctx },
		Handler:     mux,
	}
	p.log.Infof("Exposing prometheus metrics on %s", addr)
	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hs.Shutdown(ctx)
	}()
	err := hs.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}
