// Package logger provides the process-wide structured logger.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/samara-dev/mindstream/config"
)

// New returns a configured zerolog.Logger. Development environments get
// console-formatted, debug-level output; everything else gets
// JSON output at the level named in cfg.LogLevel.
func New(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stderr
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if cfg.IsDevelopment() {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(out).With().Timestamp().Str("mind_root", cfg.MindRoot).Logger()
}
