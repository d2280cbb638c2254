// Package logging initializes the global zerolog logger. Grounded on
// woozymasta/zenit's internal/logger - the teacher has no structured logging
// of its own (it uses bare fmt.Printf), so this is sourced from the richest
// logging example in the retrieval pack rather than invented from scratch.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the level, output, and rendering of the global logger.
type Config struct {
	Level  string `long:"level" env:"LEVEL" description:"log level (trace, debug, info, warn, error)" default:"info"`
	Format string `long:"format" env:"FORMAT" description:"log format (console or json)" default:"console"`
	Output string `long:"output" env:"OUTPUT" description:"log output (stdout, stderr, or a file path)" default:"stderr"`
}

// Setup installs the global zerolog logger per cfg. Call once at startup.
func Setup(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writer io.Writer
	switch cfg.Output {
	case "stdout":
		writer = os.Stdout
	case "stderr", "":
		writer = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			fallback := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			fallback.Error().Err(err).Str("path", cfg.Output).Msg("failed to open log file, falling back to stderr")
			writer = os.Stderr
		} else {
			writer = file
		}
	}

	if cfg.Format == "json" {
		log.Logger = zerolog.New(writer).With().Timestamp().Logger()
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339})
}
