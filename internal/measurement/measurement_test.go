package measurement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServingTrendAveragesValidPointsOnly(t *testing.T) {
	h := NewHistory(10, 0)
	h.AddServing(1, ServingPoint{Frame: 1, Valid: true, RXLEV: -90})
	h.AddServing(2, ServingPoint{Frame: 2, Valid: false, RXLEV: -40})
	h.AddServing(3, ServingPoint{Frame: 3, Valid: true, RXLEV: -94})

	avg, ok := h.ServingTrend(3)
	assert.True(t, ok)
	assert.InDelta(t, -92.0, avg, 0.001)
}

func TestHistoryTrimsToMaxPoints(t *testing.T) {
	h := NewHistory(3, 1000)
	for i := uint32(0); i < 10; i++ {
		h.AddServing(i, ServingPoint{Frame: i, Valid: true, RXLEV: -int(i)})
	}
	assert.Len(t, h.serving, 3)
}

func TestHistoryTrimsByAge(t *testing.T) {
	h := NewHistory(100, 50)
	h.AddServing(0, ServingPoint{Frame: 0, Valid: true, RXLEV: -80})
	h.AddServing(1000, ServingPoint{Frame: 1000, Valid: true, RXLEV: -70})
	assert.Len(t, h.serving, 1)
}

func TestFindBestNeighbourRequiresConsecutiveReports(t *testing.T) {
	h := NewHistory(10, 0)
	key := NeighbourKey{ARFCN: 512, BSIC: 12}
	h.AddNeighbour(1, key, NeighbourPoint{Frame: 1, RXLEV: -70})

	_, ok := h.FindBestNeighbour(1, 3, 3, nil)
	assert.False(t, ok)

	h.AddNeighbour(2, key, NeighbourPoint{Frame: 2, RXLEV: -72})
	h.AddNeighbour(3, key, NeighbourPoint{Frame: 3, RXLEV: -68})
	best, ok := h.FindBestNeighbour(3, 3, 3, nil)
	assert.True(t, ok)
	assert.Equal(t, key, best.Key)
}

func TestFindBestNeighbourSkipsPenalisedAndCongested(t *testing.T) {
	h := NewHistory(10, 0)
	strong := NeighbourKey{ARFCN: 100, BSIC: 1}
	weak := NeighbourKey{ARFCN: 200, BSIC: 2}
	for _, fn := range []uint32{1, 2, 3} {
		h.AddNeighbour(fn, strong, NeighbourPoint{Frame: fn, RXLEV: -60})
		h.AddNeighbour(fn, weak, NeighbourPoint{Frame: fn, RXLEV: -90})
	}
	h.PenaliseNeighbour(strong, 100)

	best, ok := h.FindBestNeighbour(3, 2, 3, nil)
	assert.True(t, ok)
	assert.Equal(t, weak, best.Key)

	best, ok = h.FindBestNeighbour(3, 2, 3, func(k NeighbourKey) bool { return k == weak })
	assert.False(t, ok)
}
