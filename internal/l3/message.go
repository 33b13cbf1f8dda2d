// Package l3 implements the GSM Layer-3 message codec: typed
// encoders/decoders for RR, MM, CC, SS, SMS/SMS-CB, and GPRS GMM/SM
// messages on top of a BitVector. Each protocol discriminator gets a
// sum type (one Go struct per message type) plus a top-level Decode
// that dispatches on the wire header.
package l3

import (
	"errors"
	"fmt"

	"github.com/openbts-go/btscore/internal/bitvector"
)

// Errors distinguish "malformed message" (abort parsing, log and drop
// the frame) from "not for me" (TV/TLV peeks return a presence flag
// instead of an error).
var (
	ErrTruncated          = errors.New("l3: truncated frame")
	ErrMalformedLength    = errors.New("l3: malformed length field")
	ErrReservedIE         = errors.New("l3: reserved information element value")
	ErrMandatoryIEMissing = errors.New("l3: mandatory information element missing")
	ErrUnknownMessageType = errors.New("l3: unknown message type for this discriminator")
	ErrUnsupportedMessage = errors.New("l3: protocol discriminator not implemented")
)

// ProtocolDiscriminator is the 4-bit PD field (GSM 04.07 §11.2.3.1.1).
type ProtocolDiscriminator byte

const (
	PDGroupCallControl       ProtocolDiscriminator = 0x0
	PDCallControl            ProtocolDiscriminator = 0x3
	PDMobilityManagement     ProtocolDiscriminator = 0x5
	PDRadioResource          ProtocolDiscriminator = 0x6
	PDGPRSMobilityManagement ProtocolDiscriminator = 0x8
	PDSMS                    ProtocolDiscriminator = 0x9
	PDGPRSSessionManagement  ProtocolDiscriminator = 0xA
	PDNonCallSS              ProtocolDiscriminator = 0xB
)

// hasTI reports whether this discriminator carries a transaction
// identifier in the header's upper nibble (CC and SS do; MM/RR/SMS
// carry a "skip indicator" there instead).
func (pd ProtocolDiscriminator) hasTI() bool {
	return pd == PDCallControl || pd == PDNonCallSS || pd == PDGroupCallControl
}

// Header is the two-byte L3 header shared by (almost) every message:
// byte 0 is `(skip<<4)|PD` or `(TI<<4)|PD`, byte 1 is the message type.
// CC/SS additionally may carry a 7-bit extended TI in a following byte
// when the inline nibble is 0x7 (GSM 24.007 §11.2.3.1.3).
type Header struct {
	PD            ProtocolDiscriminator
	SkipIndicator byte // valid when !PD.hasTI()
	TI            byte // valid when PD.hasTI(); 0..6 inline, or extended (0..127)
	TIIsExtended  bool
	TIOriginator  bool // the top bit of the inline/extended TI byte
	MessageType   byte
}

// WriteHeader appends the header wire layout.
func WriteHeader(bv *bitvector.BitVector, h Header) error {
	if h.PD.hasTI() {
		if h.TI >= 7 && !h.TIIsExtended {
			return fmt.Errorf("l3: TI value 7 requires TIIsExtended")
		}
		nibble := h.TI & 0x7
		if h.TIIsExtended {
			nibble = 0x7
		}
		originBit := byte(0)
		if h.TIOriginator {
			originBit = 0x8
		}
		if err := bv.AppendByte((originBit|nibble)<<4 | byte(h.PD)); err != nil {
			return err
		}
		if err := bv.AppendByte(h.MessageType); err != nil {
			return err
		}
		if h.TIIsExtended {
			extOrigin := byte(0)
			if h.TIOriginator {
				extOrigin = 0x80
			}
			return bv.AppendByte(extOrigin | (h.TI & 0x7f))
		}
		return nil
	}
	if err := bv.AppendByte((h.SkipIndicator&0xf)<<4 | byte(h.PD)); err != nil {
		return err
	}
	return bv.AppendByte(h.MessageType)
}

// ReadHeader parses the header starting at bit offset 0, returning the
// bit offset immediately after it (where the body starts).
func ReadHeader(bv *bitvector.BitVector) (Header, int, error) {
	if bv.SizeBits() < 16 {
		return Header{}, 0, ErrTruncated
	}
	b0, err := bv.ReadByte(0)
	if err != nil {
		return Header{}, 0, err
	}
	pd := ProtocolDiscriminator(b0 & 0xf)
	nibble := (b0 >> 4) & 0x7
	origin := b0&0x80 != 0

	mti, err := bv.ReadByte(8)
	if err != nil {
		return Header{}, 0, err
	}

	h := Header{PD: pd, MessageType: mti}
	cursor := 16
	if pd.hasTI() {
		h.TIOriginator = origin
		if nibble == 0x7 {
			if bv.SizeBits() < 24 {
				return Header{}, 0, ErrTruncated
			}
			ext, err := bv.ReadByte(16)
			if err != nil {
				return Header{}, 0, err
			}
			h.TIIsExtended = true
			h.TIOriginator = ext&0x80 != 0
			h.TI = ext & 0x7f
			cursor = 24
		} else {
			h.TI = nibble
		}
	} else {
		h.SkipIndicator = nibble
	}
	return h, cursor, nil
}

// Message is the common interface every decoded L3 message implements.
// WriteBody/ParseBody operate purely on the body (after the header);
// Encode/Decode at the bottom of this file glue the header on.
type Message interface {
	PD() ProtocolDiscriminator
	MTI() byte
	// WriteBody writes the body (everything after the 2-byte header,
	// excluding rest octets) via sink.
	WriteBody(sink MsgSink)
	// ParseBody parses the body starting at bitOffset within bv,
	// returning a distinct error kind for truncated input, malformed
	// length fields, and missing mandatory IEs.
	ParseBody(bv *bitvector.BitVector, bitOffset int) error
}

// L2BodyLength returns the byte length of msg's body (header excluded,
// rest octets excluded).
func L2BodyLength(msg Message) int {
	h := NewLengthSink()
	msg.WriteBody(h)
	return h.Bytes()
}

// decoderFunc constructs a zero-value Message for a given MTI within one
// PD, ready to have ParseBody called on it.
type decoderFunc func(mti byte) (Message, bool)

var decoders = map[ProtocolDiscriminator]decoderFunc{}

// RegisterDecoder installs the MTI dispatch table for one protocol
// discriminator; called from each class's init() (mm.go, cc.go, ...), so
// that adding a message type never requires touching this file.
func RegisterDecoder(pd ProtocolDiscriminator, fn decoderFunc) {
	decoders[pd] = fn
}

// Encode renders msg as a complete wire frame: header + body.
func Encode(msg Message, h Header) (*bitvector.BitVector, error) {
	h.PD = msg.PD()
	h.MessageType = msg.MTI()
	bv := bitvector.New(0)
	if err := WriteHeader(bv, h); err != nil {
		return nil, err
	}
	sink := NewBitVectorSink(bv)
	msg.WriteBody(sink)
	if err := sink.Err(); err != nil {
		return nil, err
	}
	return bv, nil
}

// Decode parses a complete wire frame into a typed Message plus the
// header it was carried in. Returns ErrUnsupportedMessage for a PD with
// no registered decoder and ErrUnknownMessageType for an MTI this core
// does not implement within an otherwise-known PD — both distinct from
// the malformed-content errors ParseBody may return.
func Decode(bv *bitvector.BitVector) (Message, Header, error) {
	h, cursor, err := ReadHeader(bv)
	if err != nil {
		return nil, Header{}, err
	}
	dec, ok := decoders[h.PD]
	if !ok {
		return nil, h, fmt.Errorf("%w: PD=0x%x", ErrUnsupportedMessage, h.PD)
	}
	msg, ok := dec(h.MessageType)
	if !ok {
		return nil, h, fmt.Errorf("%w: PD=0x%x MTI=0x%x", ErrUnknownMessageType, h.PD, h.MessageType)
	}
	if err := msg.ParseBody(bv, cursor); err != nil {
		return nil, h, err
	}
	return msg, h, nil
}
