package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var Log *slog.Logger

var (
	sinkMu sync.Mutex
	sink   io.Closer
)

// Options controls where and how the global logger writes.
type Options struct {
	Level  string
	Format string
	// Sink is "stdout", "stderr" or "file:<path>".
	Sink string
}

// ParseLevel maps a config level string to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "info", "":
		return slog.LevelInfo, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

func Init(opts Options) error {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	sinkMu.Lock()
	defer sinkMu.Unlock()
	switch s := strings.TrimSpace(opts.Sink); {
	case s == "" || s == "stdout":
	case s == "stderr":
		w = os.Stderr
	case strings.HasPrefix(s, "file:"):
		path := strings.TrimPrefix(s, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log sink %s: %w", path, err)
		}
		if sink != nil {
			_ = sink.Close()
		}
		sink = f
		w = f
	default:
		return fmt.Errorf("unknown log sink %q", s)
	}

	ho := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(opts.Format, "json") {
		Log = slog.New(slog.NewJSONHandler(w, ho))
	} else {
		Log = slog.New(slog.NewTextHandler(w, ho))
	}
	return nil
}

// Sync closes a file sink if one is attached.
func Sync() {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if sink != nil {
		_ = sink.Close()
		sink = nil
	}
}

func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}

// RedactHeader hides credential-bearing header values before logging.
func RedactHeader(name, value string) string {
	switch strings.ToLower(name) {
	case "authorization", "x-api-key":
		if value == "" {
			return ""
		}
		return "[redacted]"
	}
	return value
}

// LogConfigSummary prints a titled, hyphenated block to stdout so startup
// configuration is readable regardless of the configured handler.
func LogConfigSummary(title string, items []string) {
	if len(items) == 0 {
		return
	}
	header := "== " + strings.ToUpper(strings.ReplaceAll(title, "_", " ")) + " "
	const width = 60
	if len(header) < width {
		header += strings.Repeat("=", width-len(header))
	}
	fmt.Fprintln(os.Stdout, header)
	for _, it := range items {
		fmt.Fprintln(os.Stdout, "- "+it)
	}
	fmt.Fprintln(os.Stdout)
	Info(title, "items", len(items))
}
