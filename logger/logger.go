// Package logger is picotm's leveled logger: a slog.Logger configured
// from cfg.LoggingConfig, writing text or JSON lines to stderr or a
// lumberjack-rotated file, at one of six severities (TRACE below
// DEBUG, OFF above ERROR) that plain slog doesn't have out of the box.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/picotm-go/picotm/cfg"
)

// Severity levels below slog's predefined ones extend naturally: TRACE
// is one notch below DEBUG, OFF one notch above ERROR, so a LevelVar
// set to LevelOff suppresses every call this package makes.
const (
	LevelTrace = slog.LevelDebug - 4
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.LevelError + 4
)

var severityToLevel = map[cfg.LogSeverity]slog.Level{
	cfg.TraceLogSeverity:   LevelTrace,
	cfg.DebugLogSeverity:   LevelDebug,
	cfg.InfoLogSeverity:    LevelInfo,
	cfg.WarningLogSeverity: LevelWarn,
	cfg.ErrorLogSeverity:   LevelError,
	cfg.OffLogSeverity:     LevelOff,
}

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

// loggerFactory owns the writer and rotation settings the current
// defaultLogger was built from, so SetLogFormat and Init can rebuild
// defaultLogger without callers having to re-supply everything.
type loggerFactory struct {
	file      *lumberjack.Logger
	sysWriter io.Writer
	format    string
	level     slog.Level
}

func (f *loggerFactory) writer() io.Writer {
	if f.file != nil {
		return f.file
	}
	if f.sysWriter != nil {
		return f.sysWriter
	}
	return os.Stderr
}

func (f *loggerFactory) createHandler(w io.Writer, programLevel *slog.LevelVar) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: programLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				if name, ok := levelNames[level]; ok {
					a.Value = slog.StringValue(name)
				}
				a.Key = "severity"
			}
			if a.Key == slog.TimeKey {
				a.Key = "time"
			}
			return a
		},
	}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var (
	programLevel         = new(slog.LevelVar)
	defaultLoggerFactory = &loggerFactory{format: "text", level: LevelInfo}
	defaultLogger        = slog.New(defaultLoggerFactory.createHandler(os.Stderr, programLevel))
)

// Init configures the package-level logger from a parsed
// cfg.LoggingConfig: severity, text/json format, and — when FilePath
// is non-empty — rotation via lumberjack.
func Init(lc cfg.LoggingConfig) error {
	level, ok := severityToLevel[lc.Severity]
	if !ok {
		return fmt.Errorf("unknown log severity %q", lc.Severity)
	}

	factory := &loggerFactory{format: lc.Format, level: level}
	if lc.FilePath != "" {
		factory.file = &lumberjack.Logger{
			Filename:   string(lc.FilePath),
			MaxSize:    lc.LogRotate.MaxFileSizeMb,
			MaxBackups: lc.LogRotate.BackupFileCount,
			Compress:   lc.LogRotate.Compress,
		}
	}

	programLevel.Set(level)
	defaultLoggerFactory = factory
	defaultLogger = slog.New(factory.createHandler(factory.writer(), programLevel))
	return nil
}

// SetLogFormat switches the running logger between "text" and "json"
// without touching its severity or destination. Any format other than
// "json", including the empty string, selects text.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createHandler(defaultLoggerFactory.writer(), programLevel))
}

func Tracef(format string, args ...any) { logf(LevelTrace, format, args...) }
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }

func logf(level slog.Level, format string, args ...any) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}
