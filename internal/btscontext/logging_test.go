package btscontext

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerParsesLevel(t *testing.T) {
	l := NewLogger("debug")
	assert.Equal(t, log.DebugLevel, l.GetLevel())
}

func TestNewLoggerFallsBackToInfoOnInvalidLevel(t *testing.T) {
	l := NewLogger("not-a-level")
	assert.Equal(t, log.InfoLevel, l.GetLevel())
}
