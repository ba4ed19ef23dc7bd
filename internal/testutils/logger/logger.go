package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/alphabill-org/guild/logger"
)

/*
New returns logger for test t on debug level. The output goes to t.Log so it
is only shown when the test fails or -v flag is used.
Environment variable GUILD_TEST_LOG_LEVEL may be used to change the level.
*/
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, levelFromEnv(slog.LevelDebug))
}

// NewLvl returns logger for test t on given level.
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	cfg := &logger.LogConfiguration{
		Level:      level.String(),
		Format:     "console",
		TimeFormat: "15:04:05.0000",
	}
	h, err := cfg.Handler(testWriter{t})
	if err != nil {
		t.Fatalf("creating logger handler: %v", err)
	}
	return slog.New(h)
}

/*
LoggerBuilder returns logger factory func which ignores the configuration and
always returns logger for the test t.
*/
func LoggerBuilder(t testing.TB) func(*logger.LogConfiguration) (*slog.Logger, error) {
	return func(*logger.LogConfiguration) (*slog.Logger, error) { return New(t), nil }
}

// NOP returns logger which discards everything.
func NOP() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func levelFromEnv(def slog.Level) slog.Level {
	s := os.Getenv("GUILD_TEST_LOG_LEVEL")
	if s == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return def
	}
	return lvl
}

type testWriter struct {
	t testing.TB
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Helper()
	tw.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
