// Package tdma implements the GSM 05.02 Clause 7 multiplex tables: for
// each logical channel, which TDMA frame numbers (mod a repeat length)
// carry its bursts, and the inverse map from frame number back to burst
// index within the channel's repeating block.
package tdma

import "fmt"

// Mapping describes one line of GSM 05.02 Clause 7 Tables 1-4: the set
// of TDMA frame numbers (within a RepeatLength-frame period) a channel
// occupies, plus the reverse lookup used to recognize "this is burst i
// of this channel's repeating pattern" when a frame arrives.
type Mapping struct {
	Name         string
	Downlink     bool
	Uplink       bool
	RepeatLength uint32 // period, in TDMA frames, after which the pattern repeats
	Frames       []uint32 // frame numbers (mod RepeatLength) occupied, in block order
	reverse      []int32  // reverse[fn % RepeatLength] -> index into Frames, or -1
}

// NewMapping builds a Mapping and its reverse index, deriving a cached
// reverse-lookup table once at construction rather than scanning Frames
// on every lookup.
func NewMapping(name string, downlink, uplink bool, repeatLength uint32, frames []uint32) Mapping {
	rev := make([]int32, repeatLength)
	for i := range rev {
		rev[i] = -1
	}
	for i, fn := range frames {
		rev[fn%repeatLength] = int32(i)
	}
	return Mapping{
		Name: name, Downlink: downlink, Uplink: uplink,
		RepeatLength: repeatLength, Frames: frames, reverse: rev,
	}
}

// FrameNumber returns the TDMA frame number (mod RepeatLength) that
// carries burst index count of this channel's repeating block.
func (m Mapping) FrameNumber(count uint32) uint32 {
	return m.Frames[count%uint32(len(m.Frames))]
}

// BurstIndex returns which burst index of the repeating block frame fn
// belongs to, or -1 if this channel does not occupy fn.
func (m Mapping) BurstIndex(fn uint32) int32 {
	return m.reverse[fn%m.RepeatLength]
}

// Occupies reports whether fn (mod RepeatLength) is one of this
// channel's frames.
func (m Mapping) Occupies(fn uint32) bool { return m.BurstIndex(fn) >= 0 }

// Beacon channels, GSM 05.02 Clause 7 Table 3 lines 1-3.
var (
	FCCH = NewMapping("FCCH", true, false, 51, []uint32{0, 10, 20, 30, 40})
	SCH  = NewMapping("SCH", true, false, 51, []uint32{1, 11, 21, 31, 41})
	BCCH = NewMapping("BCCH", true, false, 51, []uint32{2, 3, 4, 5})
)

// RACH, GSM 05.02 Clause 7 Table 3 line 7 (combined CCCH configuration,
// excluding the SDCCH/4 + SACCH/C4 slots carved out of the same
// 51-multiframe).
var RACH = NewMapping("RACH", false, true, 51,
	[]uint32{4, 5, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32, 33, 34, 35, 36, 45, 46})

// CCCH downlink blocks B0-B8, GSM 05.02 Clause 7 Table 3 line 5.
var CCCH = [9]Mapping{
	NewMapping("CCCH_0", true, false, 51, []uint32{6, 7, 8, 9}),
	NewMapping("CCCH_1", true, false, 51, []uint32{12, 13, 14, 15}),
	NewMapping("CCCH_2", true, false, 51, []uint32{16, 17, 18, 19}),
	NewMapping("CCCH_3", true, false, 51, []uint32{22, 23, 24, 25}),
	NewMapping("CCCH_4", true, false, 51, []uint32{26, 27, 28, 29}),
	NewMapping("CCCH_5", true, false, 51, []uint32{32, 33, 34, 35}),
	NewMapping("CCCH_6", true, false, 51, []uint32{36, 37, 38, 39}),
	NewMapping("CCCH_7", true, false, 51, []uint32{42, 43, 44, 45}),
	NewMapping("CCCH_8", true, false, 51, []uint32{46, 47, 48, 49}),
}

// SDCCH/4 (combined with BCCH/CCCH on TS0), GSM 05.02 Table 3 line 10;
// subchannels 0-3, downlink/uplink pairs.
var SDCCH4 = [4]struct{ Downlink, Uplink Mapping }{
	{NewMapping("SDCCH/4(0)D", true, false, 51, []uint32{22, 23, 24, 25}),
		NewMapping("SDCCH/4(0)U", false, true, 51, []uint32{37, 38, 39, 40})},
	{NewMapping("SDCCH/4(1)D", true, false, 51, []uint32{26, 27, 28, 29}),
		NewMapping("SDCCH/4(1)U", false, true, 51, []uint32{41, 42, 43, 44})},
	{NewMapping("SDCCH/4(2)D", true, false, 51, []uint32{32, 33, 34, 35}),
		NewMapping("SDCCH/4(2)U", false, true, 51, []uint32{47, 48, 49, 50})},
	{NewMapping("SDCCH/4(3)D", true, false, 51, []uint32{36, 37, 38, 39}),
		NewMapping("SDCCH/4(3)U", false, true, 51, []uint32{0, 1, 2, 3})},
}

// SACCH/C4 companions for SDCCH/4, GSM 05.02 Table 3 line 10 continued.
var SACCHC4 = [4]struct{ Downlink, Uplink Mapping }{
	{NewMapping("SACCH/C4(0)D", true, false, 102, []uint32{42, 43, 44, 45}),
		NewMapping("SACCH/C4(0)U", false, true, 102, []uint32{57, 58, 59, 60})},
	{NewMapping("SACCH/C4(1)D", true, false, 102, []uint32{46, 47, 48, 49}),
		NewMapping("SACCH/C4(1)U", false, true, 102, []uint32{61, 62, 63, 64})},
	{NewMapping("SACCH/C4(2)D", true, false, 102, []uint32{93, 94, 95, 96}),
		NewMapping("SACCH/C4(2)U", false, true, 102, []uint32{6, 7, 8, 9})},
	{NewMapping("SACCH/C4(3)D", true, false, 102, []uint32{97, 98, 99, 100}),
		NewMapping("SACCH/C4(3)U", false, true, 102, []uint32{10, 11, 12, 13})},
}

// SDCCH/8, GSM 05.02 Table 3 line 8; subchannels 0-7 on a dedicated
// timeslot, downlink/uplink pairs.
var SDCCH8 = [8]struct{ Downlink, Uplink Mapping }{
	{NewMapping("SDCCH/8(0)D", true, false, 51, []uint32{0, 1, 2, 3}),
		NewMapping("SDCCH/8(0)U", false, true, 51, []uint32{15, 16, 17, 18})},
	{NewMapping("SDCCH/8(1)D", true, false, 51, []uint32{4, 5, 6, 7}),
		NewMapping("SDCCH/8(1)U", false, true, 51, []uint32{19, 20, 21, 22})},
	{NewMapping("SDCCH/8(2)D", true, false, 51, []uint32{8, 9, 10, 11}),
		NewMapping("SDCCH/8(2)U", false, true, 51, []uint32{23, 24, 25, 26})},
	{NewMapping("SDCCH/8(3)D", true, false, 51, []uint32{12, 13, 14, 15}),
		NewMapping("SDCCH/8(3)U", false, true, 51, []uint32{27, 28, 29, 30})},
	{NewMapping("SDCCH/8(4)D", true, false, 51, []uint32{16, 17, 18, 19}),
		NewMapping("SDCCH/8(4)U", false, true, 51, []uint32{31, 32, 33, 34})},
	{NewMapping("SDCCH/8(5)D", true, false, 51, []uint32{20, 21, 22, 23}),
		NewMapping("SDCCH/8(5)U", false, true, 51, []uint32{35, 36, 37, 38})},
	{NewMapping("SDCCH/8(6)D", true, false, 51, []uint32{24, 25, 26, 27}),
		NewMapping("SDCCH/8(6)U", false, true, 51, []uint32{39, 40, 41, 42})},
	{NewMapping("SDCCH/8(7)D", true, false, 51, []uint32{28, 29, 30, 31}),
		NewMapping("SDCCH/8(7)U", false, true, 51, []uint32{43, 44, 45, 46})},
}

// SACCH/C8 companions for SDCCH/8, GSM 05.02 Table 3 line 9.
var SACCHC8 = [8]struct{ Downlink, Uplink Mapping }{
	{NewMapping("SACCH/C8(0)D", true, false, 102, []uint32{32, 33, 34, 35}),
		NewMapping("SACCH/C8(0)U", false, true, 102, []uint32{47, 48, 49, 50})},
	{NewMapping("SACCH/C8(1)D", true, false, 102, []uint32{36, 37, 38, 39}),
		NewMapping("SACCH/C8(1)U", false, true, 102, []uint32{51, 52, 53, 54})},
	{NewMapping("SACCH/C8(2)D", true, false, 102, []uint32{40, 41, 42, 43}),
		NewMapping("SACCH/C8(2)U", false, true, 102, []uint32{55, 56, 57, 58})},
	{NewMapping("SACCH/C8(3)D", true, false, 102, []uint32{44, 45, 46, 47}),
		NewMapping("SACCH/C8(3)U", false, true, 102, []uint32{59, 60, 61, 62})},
	{NewMapping("SACCH/C8(4)D", true, false, 102, []uint32{83, 84, 85, 86}),
		NewMapping("SACCH/C8(4)U", false, true, 102, []uint32{98, 99, 100, 101})},
	{NewMapping("SACCH/C8(5)D", true, false, 102, []uint32{87, 88, 89, 90}),
		NewMapping("SACCH/C8(5)U", false, true, 102, []uint32{0, 1, 2, 3})},
	{NewMapping("SACCH/C8(6)D", true, false, 102, []uint32{91, 92, 93, 94}),
		NewMapping("SACCH/C8(6)U", false, true, 102, []uint32{4, 5, 6, 7})},
	{NewMapping("SACCH/C8(7)D", true, false, 102, []uint32{95, 96, 97, 98}),
		NewMapping("SACCH/C8(7)U", false, true, 102, []uint32{8, 9, 10, 11})},
}

// SACCH/TF (full-rate traffic channel SACCH), GSM 05.02 Table 1, the two
// mod-26 slot phases.
var SACCHTF = [2]Mapping{
	NewMapping("SACCH/TF(T0)", true, true, 104, []uint32{12, 38, 64, 90}),
	NewMapping("SACCH/TF(T1)", true, true, 104, []uint32{25, 51, 77, 103}),
}

// SACCHTFBySlotPhase returns the SACCH/TF mapping for a full-rate TCH
// whose assignment phase (0 or 1, determined by which mod-26 block the
// TCH assignment started in) is phase.
func SACCHTFBySlotPhase(phase int) (Mapping, error) {
	if phase < 0 || phase > 1 {
		return Mapping{}, fmt.Errorf("tdma: SACCH/TF phase %d out of range", phase)
	}
	return SACCHTF[phase], nil
}

// CCCHBlockIndex reports which of the 9 CCCH downlink blocks (B0-B8,
// GSM 05.02 Clause 7 Table 3 line 5) fn belongs to, or -1 if fn carries
// no CCCH block at all (e.g. it is an RACH/FCCH/SCH/BCCH slot instead).
// This is the precomputed reverse-index lookup CCCH's Mapping entries
// already carry; IsPagingSlot is built on top of it rather than a
// hand-derived frame-number arithmetic check.
func CCCHBlockIndex(fn uint32) int {
	for i := range CCCH {
		if CCCH[i].Occupies(fn) {
			return i
		}
	}
	return -1
}

// IsPagingSlot reports whether fn carries a CCCH downlink block at all,
// the condition internal/ccch.Scheduler.IsPagingSlot gates paging/AGCH
// delivery on.
func IsPagingSlot(fn uint32) bool {
	return CCCHBlockIndex(fn) >= 0
}
