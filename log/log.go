// Package log is a small leveled logger for command line output. Levels are log/slog levels,
// with an additional 'none' level that silences everything except --debug output.
package log

import (
	"fmt"
	syslog "log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// LevelNone disables all logging other than DEBUG messages enabled by SetDebug.
const LevelNone = slog.LevelError + 4

var (
	guard     sync.RWMutex
	logger    = syslog.New(os.Stderr, "", syslog.LstdFlags|syslog.LUTC)
	debugging = false
	threshold slog.LevelVar
)

var tags = map[slog.Level]func(a ...any) string{
	slog.LevelDebug: color.New(color.FgCyan).SprintFunc(),
	slog.LevelInfo:  color.New(color.FgGreen).SprintFunc(),
	slog.LevelWarn:  color.New(color.FgYellow).SprintFunc(),
	slog.LevelError: color.New(color.FgRed, color.Bold).SprintFunc(),
}

// SetDebug enables DEBUG messages irrespective of the log level.
func SetDebug(enabled bool) {
	guard.Lock()
	defer guard.Unlock()

	debugging = enabled
}

// SetLevel sets the minimum level for logged messages from one of none, debug, info, warn or
// error. Unrecognised levels are ignored.
func SetLevel(l string) {
	switch v := strings.ToLower(strings.TrimSpace(l)); v {
	case "none":
		threshold.Set(LevelNone)

	case "warning":
		threshold.Set(slog.LevelWarn)

	default:
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err == nil {
			threshold.Set(level)
		}
	}
}

func SetLogger(l *syslog.Logger) {
	guard.Lock()
	defer guard.Unlock()

	if l != nil {
		logger = l
	}
}

func Debugf(format string, args ...any) {
	guard.RLock()
	enabled := debugging
	guard.RUnlock()

	if enabled || isEnabled(slog.LevelDebug) {
		printf(slog.LevelDebug, format, args...)
	}
}

func Infof(format string, args ...any) {
	if isEnabled(slog.LevelInfo) {
		printf(slog.LevelInfo, format, args...)
	}
}

func Warnf(format string, args ...any) {
	if isEnabled(slog.LevelWarn) {
		printf(slog.LevelWarn, format, args...)
	}
}

func Errorf(format string, args ...any) {
	if isEnabled(slog.LevelError) {
		printf(slog.LevelError, format, args...)
	}
}

func isEnabled(l slog.Level) bool {
	lowest := threshold.Level()

	return lowest < LevelNone && l >= lowest
}

func printf(l slog.Level, format string, args ...any) {
	guard.RLock()
	defer guard.RUnlock()

	tag := fmt.Sprintf("%-5v", l)
	if f, ok := tags[l]; ok {
		tag = f(tag)
	}

	logger.Printf("%v  %v", tag, fmt.Sprintf(format, args...))
}
