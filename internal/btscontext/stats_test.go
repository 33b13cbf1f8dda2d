package btscontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsFilenameFormatsPattern(t *testing.T) {
	ts := time.Date(2026, 7, 31, 14, 5, 9, 0, time.UTC)
	name, err := StatsFilename("stats-%Y%m%d-%H%M%S.log", ts)
	require.NoError(t, err)
	assert.Equal(t, "stats-20260731-140509.log", name)
}

func TestStatsFilenameRejectsInvalidPattern(t *testing.T) {
	_, err := StatsFilename("stats-%Q.log", time.Now())
	assert.Error(t, err)
}
