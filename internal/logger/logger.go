// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the structured, severity-filtered logging used
// throughout mmapfs. It is built on log/slog with a custom handler that
// renders one line per record, in either text or JSON form, and an optional
// rotated file sink for long-running CLI invocations.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"log/slog"

	"github.com/mmapfs/mmapfs/cfg"
	"github.com/mmapfs/mmapfs/clock"
	"github.com/mmapfs/mmapfs/common"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels. TRACE sits below slog's built-in Debug level and OFF
// sits above its built-in Error level, so every cfg.LogSeverity maps onto a
// distinct, orderable slog.Level.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

var severityLevels = map[cfg.LogSeverity]slog.Level{
	cfg.TraceLogSeverity:   LevelTrace,
	cfg.DebugLogSeverity:   LevelDebug,
	cfg.InfoLogSeverity:    LevelInfo,
	cfg.WarningLogSeverity: LevelWarn,
	cfg.ErrorLogSeverity:   LevelError,
	cfg.OffLogSeverity:     LevelOff,
}

func levelFor(sev cfg.LogSeverity) slog.Level {
	if l, ok := severityLevels[sev]; ok {
		return l
	}
	return LevelInfo
}

func severityName(level slog.Level) string {
	switch {
	case level < LevelDebug:
		return "TRACE"
	case level < LevelInfo:
		return "DEBUG"
	case level < LevelWarn:
		return "INFO"
	case level < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// lineHandler renders a record as a single line, text or JSON depending on
// format. It ignores attrs/groups: every call site in this codebase logs a
// preformatted message, never structured key/value pairs.
type lineHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	format string
}

func newLineHandler(out io.Writer, format string) *lineHandler {
	return &lineHandler{mu: &sync.Mutex{}, out: out, format: format}
}

func (h *lineHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sev := severityName(r.Level)
	if h.format == cfg.LogFormatJSON {
		entry := struct {
			Timestamp struct {
				Seconds int64 `json:"seconds"`
				Nanos   int   `json:"nanos"`
			} `json:"timestamp"`
			Severity string `json:"severity"`
			Message  string `json:"message"`
		}{Severity: sev, Message: r.Message}
		entry.Timestamp.Seconds = r.Time.Unix()
		entry.Timestamp.Nanos = r.Time.Nanosecond()
		return json.NewEncoder(h.out).Encode(entry)
	}

	_, err := fmt.Fprintf(h.out, "time=%q severity=%s message=%q\n", r.Time.Format("2006/01/02 15:04:05.000000"), sev, r.Message)
	return err
}

func (h *lineHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *lineHandler) WithGroup(string) slog.Handler       { return h }

// Logger is a severity-filtered, formatted log sink with an injectable time
// source so tests can assert exact timestamps.
type Logger struct {
	handler slog.Handler
	level   *slog.LevelVar
	clock   clock.Clock
}

// New builds a Logger writing to out in the given format, filtered at
// severity, timestamped by clk.
func New(out io.Writer, format string, severity cfg.LogSeverity, clk clock.Clock) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(levelFor(severity))
	return &Logger{handler: newLineHandler(out, format), level: lv, clock: clk}
}

// SetSeverity changes the minimum severity logged, taking effect on the
// next call.
func (l *Logger) SetSeverity(sev cfg.LogSeverity) { l.level.Set(levelFor(sev)) }

func (l *Logger) emit(level slog.Level, format string, args ...any) {
	if level < l.level.Level() {
		return
	}
	r := slog.NewRecord(l.clock.Now(), level, fmt.Sprintf(format, args...), 0)
	_ = l.handler.Handle(context.Background(), r)
}

func (l *Logger) Tracef(format string, args ...any) { l.emit(LevelTrace, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.emit(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.emit(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.emit(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.emit(LevelError, format, args...) }

var (
	defaultMu  sync.Mutex
	defaultLog = New(os.Stderr, cfg.LogFormatText, cfg.InfoLogSeverity, clock.RealClock{})
)

// SetDefault installs l as the logger used by the package-level
// Tracef/Debugf/.../Errorf functions.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLog = l
}

func get() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLog
}

func Tracef(format string, args ...any) { get().Tracef(format, args...) }
func Debugf(format string, args ...any) { get().Debugf(format, args...) }
func Infof(format string, args ...any)  { get().Infof(format, args...) }
func Warnf(format string, args ...any)  { get().Warnf(format, args...) }
func Errorf(format string, args ...any) { get().Errorf(format, args...) }

// Init builds the process-wide logger from conf and installs it as the
// default. When conf.FilePath is set, output is rotated through lumberjack
// and decoupled from the calling goroutine via an AsyncLogger, so a slow
// disk never blocks a Core API call; the returned ShutdownFn flushes and
// closes that sink. With no FilePath, logs go straight to stderr and the
// returned ShutdownFn is a no-op.
func Init(conf cfg.LoggingConfig, clk clock.Clock) (common.ShutdownFn, error) {
	if conf.FilePath == "" {
		SetDefault(New(os.Stderr, conf.Format, conf.Severity, clk))
		return func(context.Context) error { return nil }, nil
	}

	lj := &lumberjack.Logger{
		Filename:   string(conf.FilePath),
		MaxSize:    int(conf.LogRotate.MaxFileSizeMb),
		MaxBackups: int(conf.LogRotate.BackupFileCount),
		Compress:   conf.LogRotate.Compress,
	}
	async := NewAsyncLogger(lj, 4096)
	SetDefault(New(async, conf.Format, conf.Severity, clk))
	return func(context.Context) error { return async.Close() }, nil
}
