/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package log provides the leveled, RFC5424-formatted diagnostics logger
// that cmd/precursor and the aggregate package use to report per-record
// decode/tag/hash failures without aborting a batch run.
package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

const (
	OFF Level = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
	FATAL
)

const (
	defaultCallDepth = 3

	defaultID = `precursor@1`

	maxAppname  = 48
	maxHostname = 255
)

var ErrInvalidLevel = errors.New("log level is invalid")

type Level int

// Logger is a small mutex-guarded, level-gated writer that renders every
// line as an RFC5424 structured-syslog message. It is the batch run's only
// diagnostics surface: nothing it reports aborts ingestion, a record that
// fails to decode, tag, or hash is logged and skipped.
type Logger struct {
	mtx      sync.Mutex
	wtr      io.Writer
	lvl      Level
	hostname string
	appname  string
}

// NewStderrLogger builds the Logger cmd/precursor runs with. When
// fileOverride is non-empty, every line is written to both stderr and the
// named file (opened in append mode, created if necessary).
func NewStderrLogger(fileOverride string) (*Logger, error) {
	wtr := io.Writer(os.Stderr)
	if fileOverride != `` {
		fout, err := os.OpenFile(fileOverride, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0660)
		if err != nil {
			return nil, err
		}
		wtr = io.MultiWriter(os.Stderr, fout)
	}
	return New(wtr), nil
}

// New creates a Logger at level INFO writing to wtr.
func New(wtr io.Writer) *Logger {
	l := &Logger{
		wtr: wtr,
		lvl: INFO,
	}
	l.guessHostnameAppname()
	return l
}

func (l *Logger) guessHostnameAppname() {
	if hn, err := os.Hostname(); err == nil {
		if len(hn) > maxHostname {
			hn = hn[:maxHostname]
		}
		l.hostname = hn
	}
	if args := os.Args; len(args) > 0 {
		exe := filepath.Base(args[0])
		if ext := filepath.Ext(exe); len(ext) > 0 && len(ext) < len(exe) {
			exe = strings.TrimSuffix(exe, ext)
		}
		if len(exe) > maxAppname {
			exe = exe[:maxAppname]
		}
		l.appname = exe
	}
}

// SetLevel sets the log level; OFF disables all output and any call below
// the configured level is dropped.
func (l *Logger) SetLevel(lvl Level) error {
	if !lvl.Valid() {
		return ErrInvalidLevel
	}
	l.mtx.Lock()
	l.lvl = lvl
	l.mtx.Unlock()
	return nil
}

// GetLevel returns the current logging level.
func (l *Logger) GetLevel() Level {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.lvl
}

func (l *Logger) Debugf(f string, args ...interface{}) error {
	return l.outputf(defaultCallDepth, DEBUG, f, args...)
}

func (l *Logger) Infof(f string, args ...interface{}) error {
	return l.outputf(defaultCallDepth, INFO, f, args...)
}

func (l *Logger) Warnf(f string, args ...interface{}) error {
	return l.outputf(defaultCallDepth, WARN, f, args...)
}

func (l *Logger) Errorf(f string, args ...interface{}) error {
	return l.outputf(defaultCallDepth, ERROR, f, args...)
}

func (l *Logger) Criticalf(f string, args ...interface{}) error {
	return l.outputf(defaultCallDepth, CRITICAL, f, args...)
}

// Fatalf logs at FATAL and terminates the process with exit code 1.
func (l *Logger) Fatalf(f string, args ...interface{}) {
	l.outputf(defaultCallDepth, FATAL, f, args...)
	os.Exit(1)
}

func (l *Logger) outputf(depth int, lvl Level, f string, args ...interface{}) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.lvl == OFF || lvl < l.lvl {
		return nil
	}
	b, err := genRFCMessage(time.Now(), lvl.priority(), l.hostname, l.appname, callLoc(depth), fmt.Sprintf(f, args...))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(l.wtr, "%s\n", b)
	return err
}

// genRFCMessage renders a single RFC5424 message per
// https://www.rfc-editor.org/rfc/rfc5424.html#section-6.2.7
func genRFCMessage(ts time.Time, prio rfc5424.Priority, hostname, appname, msgid, msg string) ([]byte, error) {
	m := rfc5424.Message{
		Priority:  prio,
		Timestamp: ts,
		Hostname:  trimLength(maxHostname, hostname),
		AppName:   trimLength(maxAppname, appname),
		MessageID: trimPathLength(32, msgid),
		Message:   []byte(msg),
	}
	return m.MarshalBinary()
}

// callLoc returns "file:line" for the caller depth frames up, so every log
// line can be traced back to the site that reported it.
func callLoc(depth int) (s string) {
	if _, file, line, ok := runtime.Caller(depth); ok {
		dir, file := filepath.Split(file)
		file = filepath.Join(filepath.Base(dir), file)
		s = fmt.Sprintf("%s:%d", file, line)
	}
	return
}

func (l Level) String() string {
	switch l {
	case OFF:
		return `OFF`
	case DEBUG:
		return `DEBUG`
	case INFO:
		return `INFO`
	case WARN:
		return `WARN`
	case ERROR:
		return `ERROR`
	case CRITICAL:
		return `CRITICAL`
	case FATAL:
		return `FATAL`
	}
	return `UNKNOWN`
}

func (l Level) Valid() bool {
	switch l {
	case OFF, DEBUG, INFO, WARN, ERROR, CRITICAL, FATAL:
		return true
	}
	return false
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case OFF:
		return 0
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	case CRITICAL:
		return rfc5424.User | rfc5424.Crit
	case FATAL:
		return rfc5424.User | rfc5424.Emergency
	}
	return rfc5424.User | rfc5424.Debug
}

// LevelFromString parses a case-insensitive level name, used to drive the
// logger from a --log-level style flag.
func LevelFromString(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case `OFF`:
		return OFF, nil
	case `DEBUG`:
		return DEBUG, nil
	case `INFO`:
		return INFO, nil
	case `WARN`:
		return WARN, nil
	case `ERROR`:
		return ERROR, nil
	case `CRITICAL`:
		return CRITICAL, nil
	case `FATAL`:
		return FATAL, nil
	default:
		return OFF, ErrInvalidLevel
	}
}

// trimPathLength trims input to no more than i bytes of its basename. For
// example "ingest/log/logging.go:42" trimmed to 10 becomes "logging.go:42"'s
// tail, matching the RFC5424 MSGID length limit.
func trimPathLength(i int, input string) string {
	if len(input) <= i {
		return input
	}
	return trimLength(i, filepath.Base(input))
}

func trimLength(i int, input string) string {
	if len(input) <= i {
		return input
	}
	return input[len(input)-i:]
}
