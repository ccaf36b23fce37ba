package logs

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	SOURCE_LOG_FIELD_NAME = "src"

	FORMAT_JSON    = "json"
	FORMAT_CONSOLE = "console"
)

type Config struct {
	Level  string //defaults to info
	Format string //json or console, defaults to json

	//Output defaults to os.Stderr: in stdio mode stdout carries the protocol.
	Output io.Writer
}

func New(config Config) (zerolog.Logger, error) {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if config.Level != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(config.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", config.Level, err)
		}
		level = lvl
	}

	switch config.Format {
	case "", FORMAT_JSON:
	case FORMAT_CONSOLE:
		out = zerolog.ConsoleWriter{Out: out, NoColor: true}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", config.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Child returns a child logger whose entries carry the source field.
func Child(logger zerolog.Logger, src string) zerolog.Logger {
	return logger.With().Str(SOURCE_LOG_FIELD_NAME, src).Logger()
}
