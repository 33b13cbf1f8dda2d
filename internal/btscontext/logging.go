package btscontext

import (
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger builds the structured, leveled logger used by the CCCH
// scheduler, LAPDm entities, and the channel supervisor to record state
// transitions and failures (channel release, radio-link failure, T200
// exhaustion, RACH discard) via charmbracelet/log's leveled,
// field-tagged output.
func NewLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
