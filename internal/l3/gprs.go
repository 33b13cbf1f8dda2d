package l3

import (
	"fmt"
)

// GPRS GMM/SM message envelope and BSSGP transport. This core parses
// but does not interpret GMM/SM messages: it only peels the BSSGP/NS
// envelope and the GMM/SM PD+MTI header off an uplink PDU -- or wraps
// one for downlink -- and leaves the body opaque for the SGSN
// collaborator.

// GPRS GMM/SM protocol discriminators share the 4-bit PD space with the
// circuit-switched messages in message.go (PDGPRSMobilityManagement,
// PDGPRSSessionManagement).

// GMM/SM message type codes this core recognizes by name for logging
// (GSM 04.08 Table 10.4/10.5); bodies are never decoded further.
const (
	MTIAttachRequest             byte = 0x01
	MTIAttachAccept              byte = 0x02
	MTIAttachComplete            byte = 0x03
	MTIAttachReject              byte = 0x04
	MTIDetachRequest             byte = 0x05
	MTIDetachAccept              byte = 0x06
	MTIRoutingAreaUpdateRequest  byte = 0x08
	MTIRoutingAreaUpdateAccept   byte = 0x09
	MTIRoutingAreaUpdateComplete byte = 0x0a
	MTIRoutingAreaUpdateReject   byte = 0x0b
	MTIPTMSIReallocationCommand  byte = 0x10
	MTIGMMStatus                 byte = 0x20
)

// gmmMessageNames is used only for diagnostics (GMMMessageName), mirroring
// the source's mtname() virtual used for logging.
var gmmMessageNames = map[byte]string{
	MTIAttachRequest:             "AttachRequest",
	MTIAttachAccept:              "AttachAccept",
	MTIAttachComplete:            "AttachComplete",
	MTIAttachReject:              "AttachReject",
	MTIDetachRequest:             "DetachRequest",
	MTIDetachAccept:              "DetachAccept",
	MTIRoutingAreaUpdateRequest:  "RoutingAreaUpdateRequest",
	MTIRoutingAreaUpdateAccept:   "RoutingAreaUpdateAccept",
	MTIRoutingAreaUpdateComplete: "RoutingAreaUpdateComplete",
	MTIRoutingAreaUpdateReject:   "RoutingAreaUpdateReject",
	MTIPTMSIReallocationCommand:  "PTMSIReallocationCommand",
	MTIGMMStatus:                 "GMMStatus",
}

// GMMMessageName returns the human-readable name for a GMM/SM message
// type, or "" if unrecognized (an unrecognized type is still ferried
// through unchanged; this core never rejects on it).
func GMMMessageName(mti byte) string {
	if name, ok := gmmMessageNames[mti]; ok {
		return name
	}
	return ""
}

// GprsL3Header is the PD/skip/MTI header GMM and SM messages carry (GSM
// 04.08 §10.2, byte-oriented rather than bit-field like the circuit-
// switched header since GPRS L3 frames arrive as byte vectors from
// RLC/LLC).
type GprsL3Header struct {
	PD            ProtocolDiscriminator
	SkipIndicator byte
	MessageType   byte
}

// GMMMessage is an opaque, parsed-but-not-interpreted GMM/SM PDU: header
// plus the raw information-element bytes that follow it.
type GMMMessage struct {
	Header GprsL3Header
	Body   []byte
}

// ParseGMMMessage splits raw into its header and opaque body. It never
// fails on an unrecognized message type (tolerance
// rule, extended here to the GPRS PDs): only a too-short buffer is an
// error.
func ParseGMMMessage(raw []byte) (GMMMessage, error) {
	if len(raw) < 2 {
		return GMMMessage{}, fmt.Errorf("%w: GMM/SM header", ErrTruncated)
	}
	return GMMMessage{
		Header: GprsL3Header{
			PD:            ProtocolDiscriminator(raw[0] & 0xf),
			SkipIndicator: (raw[0] >> 4) & 0xf,
			MessageType:   raw[1],
		},
		Body: append([]byte(nil), raw[2:]...),
	}, nil
}

// Encode renders m back to its wire bytes.
func (m GMMMessage) Encode() []byte {
	out := make([]byte, 2, 2+len(m.Body))
	out[0] = (m.Header.SkipIndicator&0xf)<<4 | byte(m.Header.PD)
	out[1] = m.Header.MessageType
	return append(out, m.Body...)
}

// BVCI is the BSSGP Virtual Connection Identifier (GSM 08.18 §5.4.1);
// SIGNALLING and PTM are reserved values, every other value designates a
// point-to-point data flow for one cell.
type BVCI uint16

const (
	BVCISignalling BVCI = 0
	BVCIPTM        BVCI = 1
)

// NSUnitdata is the NS-UNITDATA header BSSGP PDUs ride on the Gb
// interface: NSPDUType(1), unused(1), BVCI(2), then the BSSGP PDU.
type NSUnitdata struct {
	NSPDUType byte
	BVCI      BVCI
	BSSGPPDU  []byte // opaque: BSSGP PDU type + IEs, not interpreted by this core
}

const nsUnitdataPDUType = 0x00 // NS-UNITDATA, GSM 08.16 §9.2.1.1

// EncodeNSUnitdata renders the 4-octet NS-UNITDATA header followed by
// the BSSGP PDU bytes.
func EncodeNSUnitdata(n NSUnitdata) []byte {
	out := make([]byte, 4, 4+len(n.BSSGPPDU))
	out[0] = nsUnitdataPDUType
	out[1] = 0
	out[2] = byte(n.BVCI >> 8)
	out[3] = byte(n.BVCI)
	return append(out, n.BSSGPPDU...)
}

// ParseNSUnitdata parses the NS-UNITDATA header and returns the
// remaining BSSGP PDU bytes unconsumed.
func ParseNSUnitdata(raw []byte) (NSUnitdata, error) {
	if len(raw) < 4 {
		return NSUnitdata{}, fmt.Errorf("%w: NS-UNITDATA header", ErrTruncated)
	}
	if raw[0] != nsUnitdataPDUType {
		return NSUnitdata{}, fmt.Errorf("l3: NS PDU type 0x%x, want NS-UNITDATA (0x%x)", raw[0], nsUnitdataPDUType)
	}
	return NSUnitdata{
		NSPDUType: raw[0],
		BVCI:      BVCI(uint16(raw[2])<<8 | uint16(raw[3])),
		BSSGPPDU:  append([]byte(nil), raw[4:]...),
	}, nil
}
