/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package fglog is the filter graph core's leveled logger, grounded on
// ingest/log's Logger (genRfcOutput/GenRFCMessage) — the same
// rfc5424.Message construction and level-to-priority mapping, trimmed to
// the subset the graph core's ambient logging needs: one Logger per
// session, one contextual child per filter instance.
package fglog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

// Level mirrors ingest/log's Level ladder.
type Level int

const (
	OFF Level = iota
	DEBUG
	INFO
	WARN
	ERROR
	CRITICAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	}
	return "OFF"
}

func (l Level) priority() rfc5424.Priority {
	switch l {
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
	}
	return rfc5424.User | rfc5424.Debug
}

const defaultID = "fg@1"

// Logger writes leveled, RFC5424-framed log lines to one or more
// io.Writers, following ingest/log.Logger's structure: a fixed
// hostname/appname pair stamped on every message, a level floor below
// which lines are dropped, and a msgid carrying the calling component's
// name (a filter's name, in this package's usage).
type Logger struct {
	mu       sync.Mutex
	wtrs     []io.Writer
	hostname string
	appname  string
	level    Level
}

// New returns a Logger writing to w (or os.Stderr if w is empty),
// tagged with appname for the AppName field of every emitted message.
func New(appname string, level Level, w ...io.Writer) *Logger {
	if len(w) == 0 {
		w = []io.Writer{os.Stderr}
	}
	hostname, _ := os.Hostname()
	return &Logger{wtrs: w, hostname: hostname, appname: appname, level: level}
}

// With returns a child logger sharing the parent's writers/level but
// tagged with a distinct message-id — used to scope log lines to a
// single filter instance (spec.md §3 Filter.name/id).
func (l *Logger) With(msgid string) *ScopedLogger {
	return &ScopedLogger{parent: l, msgid: msgid}
}

func (l *Logger) log(lvl Level, msgid, format string, args ...interface{}) error {
	if l.level == OFF || lvl < l.level {
		return nil
	}
	b, err := genRFCMessage(time.Now(), lvl.priority(), l.hostname, l.appname, msgid, fmt.Sprintf(format, args...))
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, w := range l.wtrs {
		if _, err := w.Write(append(b, '\n')); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Logger) Debug(format string, args ...interface{}) error {
	return l.log(DEBUG, defaultID, format, args...)
}
func (l *Logger) Info(format string, args ...interface{}) error {
	return l.log(INFO, defaultID, format, args...)
}
func (l *Logger) Warn(format string, args ...interface{}) error {
	return l.log(WARN, defaultID, format, args...)
}
func (l *Logger) Error(format string, args ...interface{}) error {
	return l.log(ERROR, defaultID, format, args...)
}

// ScopedLogger is a Logger bound to one msgid, satisfying fgraph's
// session-supplied logger needs without every call site repeating its
// own component name.
type ScopedLogger struct {
	parent *Logger
	msgid  string
}

func (s *ScopedLogger) Debug(format string, args ...interface{}) error {
	return s.parent.log(DEBUG, s.msgid, format, args...)
}
func (s *ScopedLogger) Info(format string, args ...interface{}) error {
	return s.parent.log(INFO, s.msgid, format, args...)
}
func (s *ScopedLogger) Warn(format string, args ...interface{}) error {
	return s.parent.log(WARN, s.msgid, format, args...)
}
func (s *ScopedLogger) Error(format string, args ...interface{}) error {
	return s.parent.log(ERROR, s.msgid, format, args...)
}

// genRFCMessage builds one RFC5424-framed line, mirroring ingest/log's
// GenRFCMessage (trimLength/trimPathLength on hostname/appname/msgid
// omitted here since fgconfig-supplied names are already short).
func genRFCMessage(ts time.Time, prio rfc5424.Priority, hostname, appname, msgid, msg string) ([]byte, error) {
	m := rfc5424.Message{
		Priority:  prio,
		Timestamp: ts,
		Hostname:  hostname,
		AppName:   appname,
		MessageID: msgid,
		Message:   []byte(msg),
	}
	return m.MarshalBinary()
}
