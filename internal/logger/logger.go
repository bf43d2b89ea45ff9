// Package logger is the process-wide log sink: slog text output behind
// printf-style helpers, with the destination and level switchable at
// runtime (startup wires a file tee, the settings endpoint can drop to
// debug on a live process).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"log/slog"
)

var (
	level slog.LevelVar
	sink  atomic.Pointer[slog.Logger]
)

func init() {
	SetOutput(os.Stdout)
}

// SetOutput swaps the log destination. Safe under concurrent logging.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	sink.Store(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level})))
}

// SetLevel accepts debug, info, warn/warning or error; anything else
// falls back to info.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debugf(format string, args ...any) { sink.Load().Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { sink.Load().Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { sink.Load().Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { sink.Load().Error(fmt.Sprintf(format, args...)) }
