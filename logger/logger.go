package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	LevelTrace slog.Level = slog.LevelDebug - 4
	levelNone  slog.Level = slog.LevelError + 100
)

/*
LogConfiguration describes the logger as loaded from the logger configuration
yaml file. Command line flags override the values read from the file.
*/
type LogConfiguration struct {
	Level      string `yaml:"defaultLevel"`
	Format     string `yaml:"format"`
	OutputPath string `yaml:"outputPath"`
	// TimeFormat is a Go time layout, "none" to drop the time field or empty
	// to use the default of the handler.
	TimeFormat string `yaml:"timeFormat"`

	writer io.Writer
}

/*
New creates logger based on the configuration. Nil configuration is accepted
and means "INFO level text output to stderr".
*/
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	h, err := cfg.Handler(nil)
	if err != nil {
		return nil, fmt.Errorf("creating handler: %w", err)
	}
	return slog.New(h), nil
}

/*
Handler returns slog.Handler for the configuration. When "out" is nil the
OutputPath of the configuration is used to create the writer.
*/
func (cfg *LogConfiguration) Handler(out io.Writer) (slog.Handler, error) {
	if out == nil {
		if err := cfg.initWriter(); err != nil {
			return nil, err
		}
		out = cfg.writer
	}

	opts := &slog.HandlerOptions{
		AddSource: cfg.logLevel() <= slog.LevelDebug,
		Level:     cfg.logLevel(),
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		opts.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat))
		return slog.NewJSONHandler(out, opts), nil
	case "ecs":
		opts.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatAttrECS)
		return slog.NewJSONHandler(out, opts), nil
	case "console":
		tf := cfg.TimeFormat
		if tf == "" {
			tf = "15:04:05.0000"
		}
		opts.AddSource = false
		opts.ReplaceAttr = composeAttrFmt(formatTimeAttr(tf), formatDataAttrAsJSON)
		return slog.NewTextHandler(out, opts), nil
	case "text", "":
		opts.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatDataAttrAsJSON)
		return slog.NewTextHandler(out, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func (cfg *LogConfiguration) initWriter() error {
	if cfg.writer != nil {
		return nil
	}
	switch strings.ToLower(cfg.OutputPath) {
	case "", "stderr":
		cfg.writer = os.Stderr
	case "stdout":
		cfg.writer = os.Stdout
	case "discard", os.DevNull:
		cfg.writer = io.Discard
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0700); err != nil {
			return fmt.Errorf("creating directory for log file: %w", err)
		}
		f, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		cfg.writer = f
	}
	return nil
}

/*
logLevel parses the Level string. Besides the slog level names "TRACE" and
"NONE" are supported and the name may have numeric offset, ie "info+2".
*/
func (cfg *LogConfiguration) logLevel() slog.Level {
	if cfg.OutputPath == "discard" || cfg.OutputPath == os.DevNull {
		return levelNone
	}

	name, offset := strings.ToUpper(cfg.Level), 0
	if idx := strings.IndexAny(name, "+-"); idx > 0 {
		n, err := strconv.Atoi(name[idx:])
		if err == nil {
			offset = n
		}
		name = name[:idx]
	}

	var lvl slog.Level
	switch name {
	case "TRACE":
		lvl = LevelTrace
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN", "WARNING":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	case "NONE":
		lvl = levelNone
	default:
		lvl = slog.LevelInfo
	}
	return lvl + slog.Level(offset)
}
