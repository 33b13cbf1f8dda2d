// Package measurement implements the SACCH measurement-history engine:
// per-channel serving-cell and per-neighbour-cell RXLEV deques, trend
// averaging for handover decisions (walk backward from the most recent
// point, skipping invalid points, and average the rest), and best-
// neighbour selection with penalty/congestion gating.
package measurement

import (
	"sync"

	"github.com/openbts-go/btscore/internal/l3"
)

// ServingPoint is one serving-cell measurement sample.
type ServingPoint struct {
	Frame  uint32
	Valid  bool
	RXLEV  int
	RXQUAL int
}

// NeighbourPoint is one neighbour-cell measurement sample.
type NeighbourPoint struct {
	Frame uint32
	RXLEV int
}

// NeighbourKey identifies a neighbour cell: ARFCN combined with BSIC
// into a map key.
type NeighbourKey struct {
	ARFCN uint16
	BSIC  uint8
}

type neighbourHistory struct {
	points       []NeighbourPoint // most recent at the end
	consecutive  int
	penaltyUntil uint32
	penaltyArmed bool
}

// History is the per-channel measurement-history deque pair: one
// serving-cell deque and a map of per-neighbour deques, each bounded to
// MaxPoints and age-trimmed to MaxAgeFrames.
type History struct {
	mu sync.Mutex

	MaxPoints    int // Handover.History.Max
	MaxAgeFrames uint32

	serving    []ServingPoint // most recent at the end
	neighbours map[NeighbourKey]*neighbourHistory
}

// NewHistory constructs a History bounded to maxPoints samples per
// deque. maxAgeFrames defaults to (maxPoints+1)*2*52 when zero is passed.
func NewHistory(maxPoints int, maxAgeFrames uint32) *History {
	if maxAgeFrames == 0 {
		maxAgeFrames = uint32(maxPoints+1) * 2 * 52
	}
	return &History{
		MaxPoints:    maxPoints,
		MaxAgeFrames: maxAgeFrames,
		neighbours:   make(map[NeighbourKey]*neighbourHistory),
	}
}

// AddServing appends a serving-cell sample and trims the deque.
func (h *History) AddServing(now uint32, pt ServingPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.serving = append(h.serving, pt)
	h.trimServing(now)
}

func (h *History) trimServing(now uint32) {
	if len(h.serving) > h.MaxPoints {
		h.serving = h.serving[len(h.serving)-h.MaxPoints:]
	}
	cut := 0
	for cut < len(h.serving) && ageOf(now, h.serving[cut].Frame) > h.MaxAgeFrames {
		cut++
	}
	h.serving = h.serving[cut:]
}

func ageOf(now, frame uint32) uint32 {
	if now >= frame {
		return now - frame
	}
	return 0
}

// AddNeighbour appends a neighbour-cell sample, keyed by (ARFCN, BSIC),
// and trims that neighbour's deque. Consecutive-report tracking
// increments whenever a point arrives within one reporting period of
// the previous one; a gap resets it, enforcing "never fewer than that
// many consecutive reports" at selection time.
func (h *History) AddNeighbour(now uint32, key NeighbourKey, pt NeighbourPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	nh, ok := h.neighbours[key]
	if !ok {
		nh = &neighbourHistory{}
		h.neighbours[key] = nh
	}
	const reportPeriodFrames = 2 * 52 // one SACCH multiframe period
	if len(nh.points) > 0 && ageOf(now, nh.points[len(nh.points)-1].Frame) <= reportPeriodFrames {
		nh.consecutive++
	} else {
		nh.consecutive = 1
	}
	nh.points = append(nh.points, pt)
	if len(nh.points) > h.MaxPoints {
		nh.points = nh.points[len(nh.points)-h.MaxPoints:]
	}
	cut := 0
	for cut < len(nh.points) && ageOf(now, nh.points[cut].Frame) > h.MaxAgeFrames {
		cut++
	}
	nh.points = nh.points[cut:]
}

// ServingTrend returns the mean RXLEV over the most recent n valid
// serving-cell points, invalid points skipped rather than counted,
// walking from most to least recent.
func (h *History) ServingTrend(n int) (avg float64, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sum := 0.0
	count := 0
	for i := len(h.serving) - 1; i >= 0 && count < n; i-- {
		pt := h.serving[i]
		if !pt.Valid {
			continue
		}
		sum += float64(pt.RXLEV)
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// NeighbourTrend returns the mean RXLEV over the most recent n points
// recorded for key.
func (h *History) NeighbourTrend(key NeighbourKey, n int) (avg float64, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	nh, present := h.neighbours[key]
	if !present {
		return 0, false
	}
	sum := 0.0
	count := 0
	for i := len(nh.points) - 1; i >= 0 && count < n; i-- {
		sum += float64(nh.points[i].RXLEV)
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// PenaliseNeighbour suppresses key from best-neighbour selection until
// untilFrame.
func (h *History) PenaliseNeighbour(key NeighbourKey, untilFrame uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	nh, ok := h.neighbours[key]
	if !ok {
		nh = &neighbourHistory{}
		h.neighbours[key] = nh
	}
	nh.penaltyArmed = true
	nh.penaltyUntil = untilFrame
}

// BestNeighbour is the outcome of FindBestNeighbour.
type BestNeighbour struct {
	Key   NeighbourKey
	RXLEV float64
}

// IsCongested reports whether a neighbour is currently excluded from
// selection by a peer-notification protocol; callers
// supply this as a predicate since congestion state lives outside the
// measurement history itself.
type IsCongested func(key NeighbourKey) bool

// FindBestNeighbour scans the neighbour map for the strongest RXLEV
// trend, skipping neighbours with fewer than requiredConsecutive
// reports, skipping any neighbour still under penalty at nowFrame, and
// skipping congested neighbours.
func (h *History) FindBestNeighbour(nowFrame uint32, requiredConsecutive, trendPoints int, congested IsCongested) (BestNeighbour, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var best BestNeighbour
	found := false
	for key, nh := range h.neighbours {
		if nh.consecutive < requiredConsecutive {
			continue
		}
		if nh.penaltyArmed && nowFrame < nh.penaltyUntil {
			continue
		}
		if congested != nil && congested(key) {
			continue
		}
		sum := 0.0
		count := 0
		for i := len(nh.points) - 1; i >= 0 && count < trendPoints; i-- {
			sum += float64(nh.points[i].RXLEV)
			count++
		}
		if count == 0 {
			continue
		}
		avg := sum / float64(count)
		if !found || avg > best.RXLEV {
			best = BestNeighbour{Key: key, RXLEV: avg}
			found = true
		}
	}
	return best, found
}

// IngestMeasurementReport records one decoded RR Measurement Report
// (internal/l3.MeasurementReport) into the serving and neighbour
// deques. The neighbour frequency index must already have been mapped
// to an ARFCN by the caller.
func (h *History) IngestMeasurementReport(now uint32, mr l3.MeasurementReport, freqIndexToARFCN func(freqIndex int) (uint16, bool)) {
	// A report measured over DTX frames covers too few bursts to trust;
	// record it as an invalid point so trend averaging skips it.
	h.AddServing(now, ServingPoint{
		Frame:  now,
		Valid:  !mr.DTXUsed,
		RXLEV:  int(mr.ServingRXLEV),
		RXQUAL: int(mr.ServingRXQUAL),
	})
	for _, n := range mr.Neighbours {
		arfcn, ok := freqIndexToARFCN(int(n.FreqIndex))
		if !ok {
			continue
		}
		h.AddNeighbour(now, NeighbourKey{ARFCN: arfcn, BSIC: n.BSIC}, NeighbourPoint{Frame: now, RXLEV: int(n.RXLEV)})
	}
}
