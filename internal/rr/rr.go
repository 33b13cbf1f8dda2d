// Package rr implements the radio-resource front-end: classifying an
// inbound RACH burst's 8-bit channel-request reference into a channel
// type, and the AccessGrantResponder gate that decides whether a RACH
// is accepted at all before it reaches the CCCH scheduler's queue.
package rr

import "time"

// ChannelNeeded is the result of classifying a channel-request
// reference (GSM 04.08 §9.1.8).
type ChannelNeeded int

const (
	ChannelUndefined ChannelNeeded = iota
	ChannelSDCCH
	ChannelTCHF
	ChannelPSingleBlock1Phase
	ChannelPSingleBlock2Phase
)

// NECI is the "New Establishment Cause Indicator" cell option (GSM
// 04.08 §10.5.2.25a) that changes how RA=0/7 are interpreted.
type NECI bool

const (
	NECIOff NECI = false
	NECIOn  NECI = true
)

// DecodeChannelNeeded classifies an 8-bit RACH reference using the
// bit-pattern table derived from GSM 04.08 Table 9.9.
func DecodeChannelNeeded(ra byte, neci NECI, veryEarlyAssignment bool) ChannelNeeded {
	switch {
	case ra>>5 == 0b101:
		return ChannelTCHF // emergency call, regardless of NECI
	case ra>>5 == 0b100:
		return ChannelTCHF // answer to paging
	case ra>>4 == 0b0001:
		return ChannelSDCCH
	case ra>>4 == 0b0010, ra>>4 == 0b0011:
		return ChannelTCHF
	case ra == 0x7f:
		return ChannelUndefined // explicit carve-out
	case ra>>3 == 0b01111:
		return ChannelPSingleBlock1Phase
	case ra>>3 == 0b01110:
		return ChannelPSingleBlock2Phase
	}
	top3 := ra >> 5
	if !bool(neci) && (top3 == 0 || top3 == 7) {
		return ChannelSDCCH // location updating or mobile-originated call
	}
	if bool(neci) {
		if top3 == 7 && veryEarlyAssignment {
			return ChannelTCHF
		}
		if top3 == 0 || top3 == 7 {
			return ChannelSDCCH
		}
	}
	return ChannelUndefined
}

// RequestingLUR reports whether ra (with NECI off) is the RA pattern
// used for a location-updating request.
func RequestingLUR(ra byte) bool {
	return ra>>5 == 0
}

// RadioData is the raw physical-layer measurement accompanying a RACH
// burst (RSSI, timing error).
type RadioData struct {
	Valid       bool
	RSSI        float32
	TimingError float32 // symbol periods; clamped to [0, 62] before use
}

// Rach is a decoded channel-request record: the RA byte, arrival time,
// physical measurement, and (once preallocated by the CCCH layer) the
// channel the request has claimed and the time it becomes servable.
type Rach struct {
	RA        byte
	When      time.Time
	Frame     uint32
	Radio     RadioData
	Timeslot  int
	Channel   any // preallocated channel handle; opaque to this package
	ReadyTime time.Time
}

// AccessGrantResult is the outcome of AccessGrantResponder's admission
// checks, before the RACH is handed to the CCCH scheduler's queue.
type AccessGrantResult int

const (
	Accepted AccessGrantResult = iota
	RejectedHoldOff
	RejectedTimingError
)

// AccessGrantResponder runs the admission gate describes:
// reject while the BTS is in hold-off, reject a timing error beyond
// MS.TA.Max, otherwise clamp TE into [0, 62] and accept.
func AccessGrantResponder(r *Rach, holdOff bool, taMax float32) AccessGrantResult {
	if holdOff {
		return RejectedHoldOff
	}
	if r.Radio.TimingError > taMax {
		return RejectedTimingError
	}
	switch {
	case r.Radio.TimingError < 0:
		r.Radio.TimingError = 0
	case r.Radio.TimingError > 62:
		r.Radio.TimingError = 62
	}
	return Accepted
}
