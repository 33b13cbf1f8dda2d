package rr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeChannelNeededBoundaryBehaviors(t *testing.T) {
	// RA=0xA3 has top-3 bits 0b101, the GSM 04.08 Table 9.9 emergency-call
	// pattern (top-3 bits 0b111, as in 0xE3, instead collide with the
	// NECI-gated MOC/SDCCH pattern).
	assert.Equal(t, ChannelTCHF, DecodeChannelNeeded(0xA3, NECIOff, false))
	assert.Equal(t, ChannelPSingleBlock1Phase, DecodeChannelNeeded(0x7A, NECIOff, false))
	assert.Equal(t, ChannelUndefined, DecodeChannelNeeded(0x7F, NECIOff, false))
}

func TestDecodeChannelNeededLURAndMOC(t *testing.T) {
	assert.Equal(t, ChannelSDCCH, DecodeChannelNeeded(0x04, NECIOff, false))
	assert.True(t, RequestingLUR(0x04))
}

func TestDecodeChannelNeededNECIVeryEarlyAssignment(t *testing.T) {
	assert.Equal(t, ChannelTCHF, DecodeChannelNeeded(0xe0, NECIOn, true))
	assert.Equal(t, ChannelSDCCH, DecodeChannelNeeded(0xe0, NECIOn, false))
}

func TestAccessGrantResponderRejectsHoldOff(t *testing.T) {
	r := &Rach{Radio: RadioData{TimingError: 5}}
	assert.Equal(t, RejectedHoldOff, AccessGrantResponder(r, true, 63))
}

func TestAccessGrantResponderRejectsExcessiveTimingError(t *testing.T) {
	r := &Rach{Radio: RadioData{TimingError: 100}}
	assert.Equal(t, RejectedTimingError, AccessGrantResponder(r, false, 63))
}

func TestAccessGrantResponderClampsTimingError(t *testing.T) {
	r := &Rach{Radio: RadioData{TimingError: 70}}
	assert.Equal(t, Accepted, AccessGrantResponder(r, false, 100))
	assert.Equal(t, float32(62), r.Radio.TimingError)

	r2 := &Rach{Radio: RadioData{TimingError: -3}}
	assert.Equal(t, Accepted, AccessGrantResponder(r2, false, 100))
	assert.Equal(t, float32(0), r2.Radio.TimingError)
}
