// Package logutil holds the log plumbing shared by the player and its
// command.
package logutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// prefixLogger tags every message with a fixed prefix. Level handling is
// delegated to the wrapped logger.
type prefixLogger struct {
	slog.Logger
	prefix string
}

func (p *prefixLogger) withPrefix(v []interface{}) []interface{} {
	return append([]interface{}{p.prefix}, v...)
}

func (p *prefixLogger) Tracef(format string, params ...interface{}) {
	p.Logger.Tracef(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Debugf(format string, params ...interface{}) {
	p.Logger.Debugf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Infof(format string, params ...interface{}) {
	p.Logger.Infof(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Warnf(format string, params ...interface{}) {
	p.Logger.Warnf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Errorf(format string, params ...interface{}) {
	p.Logger.Errorf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Criticalf(format string, params ...interface{}) {
	p.Logger.Criticalf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Trace(v ...interface{})    { p.Logger.Trace(p.withPrefix(v)...) }
func (p *prefixLogger) Debug(v ...interface{})    { p.Logger.Debug(p.withPrefix(v)...) }
func (p *prefixLogger) Info(v ...interface{})     { p.Logger.Info(p.withPrefix(v)...) }
func (p *prefixLogger) Warn(v ...interface{})     { p.Logger.Warn(p.withPrefix(v)...) }
func (p *prefixLogger) Error(v ...interface{})    { p.Logger.Error(p.withPrefix(v)...) }
func (p *prefixLogger) Critical(v ...interface{}) { p.Logger.Critical(p.withPrefix(v)...) }

// PrefixLogger returns a logger that prepends a string in every message.
func PrefixLogger(log slog.Logger, prefix string) slog.Logger {
	return &prefixLogger{Logger: log, prefix: prefix}
}

// Backend writes log lines to an optional console writer and an optional
// rotated log file.
type Backend struct {
	mtx     sync.Mutex
	console io.Writer
	rotator *rotator.Rotator
}

// NewBackend creates a log backend. If logFile is not empty, its dir is
// created and the file is rotated every 1MiB, keeping up to maxLogFiles
// files.
func NewBackend(console io.Writer, logFile string, maxLogFiles int) (*Backend, error) {
	bknd := &Backend{console: console}
	if logFile == "" {
		return bknd, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 1024, false, maxLogFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to create file rotator: %w", err)
	}
	bknd.rotator = r
	return bknd, nil
}

func (bknd *Backend) Write(b []byte) (int, error) {
	bknd.mtx.Lock()
	defer bknd.mtx.Unlock()
	if bknd.console != nil {
		bknd.console.Write(b)
	}
	if bknd.rotator != nil {
		bknd.rotator.Write(b)
	}
	return len(b), nil
}

// Close flushes and closes the log file.
func (bknd *Backend) Close() error {
	bknd.mtx.Lock()
	defer bknd.mtx.Unlock()
	if bknd.rotator == nil {
		return nil
	}
	err := bknd.rotator.Close()
	bknd.rotator = nil
	return err
}

// Logger returns a logger for the subsystem sys at the level named by
// level.
func (bknd *Backend) Logger(sys, level string) (slog.Logger, error) {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	log := slog.NewBackend(bknd).Logger(sys)
	log.SetLevel(lvl)
	return log, nil
}
