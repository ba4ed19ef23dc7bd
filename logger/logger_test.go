package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func Test_LogConfiguration_logLevel(t *testing.T) {
	var cases = []struct {
		name  string
		level slog.Level
	}{
		{"", slog.LevelInfo},
		{"error", slog.LevelError},
		{"InfO", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"DEBUG", slog.LevelDebug},
		{"TRACE", LevelTrace},
		{"NONE", levelNone},
		{"info-1", slog.LevelInfo - 1},
		{"info+1", slog.LevelInfo + 1},
	}

	for _, tc := range cases {
		cfg := LogConfiguration{Level: tc.name}
		if lvl := cfg.logLevel(); lvl != tc.level {
			t.Errorf("expected %q to return %d (%s) but got %d (%s)", tc.name, tc.level, tc.level, lvl, lvl)
		}
	}

	cfg := LogConfiguration{Level: "info", OutputPath: "discard"}
	require.Equal(t, levelNone, cfg.logLevel())
	cfg = LogConfiguration{Level: "info", OutputPath: os.DevNull}
	require.Equal(t, levelNone, cfg.logLevel())
}

func Test_LogConfiguration_yaml(t *testing.T) {
	src := "defaultLevel: debug\nformat: ecs\noutputPath: stdout\ntimeFormat: none\n"
	cfg := &LogConfiguration{}
	require.NoError(t, yaml.Unmarshal([]byte(src), cfg))
	require.Equal(t, "debug", cfg.Level)
	require.Equal(t, "ecs", cfg.Format)
	require.Equal(t, "stdout", cfg.OutputPath)
	require.Equal(t, "none", cfg.TimeFormat)
}

func Test_New(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		l, err := New(nil)
		require.NoError(t, err)
		require.NotNil(t, l)
	})

	t.Run("unknown format", func(t *testing.T) {
		l, err := New(&LogConfiguration{Format: "xml"})
		require.EqualError(t, err, `creating handler: unknown log format "xml"`)
		require.Nil(t, l)
	})

	t.Run("log file", func(t *testing.T) {
		fn := filepath.Join(t.TempDir(), "logs", "guild.log")
		l, err := New(&LogConfiguration{Format: "json", OutputPath: fn, TimeFormat: "none"})
		require.NoError(t, err)
		l.Info("hello", MemberID(3))
		b, err := os.ReadFile(fn)
		require.NoError(t, err)
		require.JSONEq(t, `{"level":"INFO","msg":"hello","member_id":3}`, string(b))
	})
}

func Test_ecsFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := &LogConfiguration{Format: "ecs", Level: "info", TimeFormat: "none"}
	h, err := cfg.Handler(buf)
	require.NoError(t, err)

	slog.New(h).Info("order executed", MemberID(5), Error(errString("late")))
	m := map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	require.Equal(t, "order executed", m["message"])
	require.Equal(t, map[string]any{"id": float64(5)}, m["user"])
	require.Equal(t, map[string]any{"message": "late"}, m["error"])
}

func Test_roundHandler(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := &LogConfiguration{Format: "json", TimeFormat: "none"}
	h, err := cfg.Handler(buf)
	require.NoError(t, err)

	round := uint64(10)
	log := slog.New(NewRoundHandler(h, func() uint64 { return round })).With(Module("orders"))
	log.Info("first")
	round++
	log.Info("second")

	dec := json.NewDecoder(buf)
	for _, exp := range []float64{10, 11} {
		m := map[string]any{}
		require.NoError(t, dec.Decode(&m))
		require.Equal(t, exp, m[RoundKey])
		require.Equal(t, "orders", m[ModuleKey])
	}
}

type errString string

func (e errString) Error() string { return string(e) }
