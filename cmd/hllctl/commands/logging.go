package commands

import (
	"os"

	"github.com/rs/zerolog"
)

// newLogger builds a structured console logger at the given level, following
// the pack's leveled structured-logging convention. Sketch construction and
// mode promotion log lines carry lg_config_k and encoding (promotions add a
// transition label), and each merged input carries lg_config_k and the
// same_k/cross_k kind; the current mode is not a separate log field.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
