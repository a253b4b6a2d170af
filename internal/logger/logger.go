package logger

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// Options controls where logs go and how verbose they are.
type Options struct {
	Level string
	// File enables a rotated log file in addition to stdout when set.
	File string
	Env  string
}

// New builds the application logger. Development logs are human readable on stdout;
// everything else is JSON.
func New(opts Options) zerolog.Logger {
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "message"

	var stdout io.Writer = os.Stdout
	if opts.Env == "development" {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	output := stdout
	if opts.File != "" {
		output = zerolog.MultiLevelWriter(stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	return newWithWriter(output, opts.Level)
}

func newWithWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()
}
