package l3

import (
	"fmt"

	"github.com/openbts-go/btscore/internal/bitvector"
)

// Call Control messages, GSM 04.08 §9.3. The transaction-identifier
// header handling lives in message.go's PD().hasTI() path, so these
// structs only need a body.

const (
	MTISetup              byte = 0x05
	MTICallProceeding     byte = 0x02
	MTIAlerting           byte = 0x01
	MTIConnect            byte = 0x07
	MTIConnectAcknowledge byte = 0x0f
	MTIDisconnect         byte = 0x25
	MTIRelease            byte = 0x2d
	MTIReleaseComplete    byte = 0x2a
)

func init() {
	RegisterDecoder(PDCallControl, func(mti byte) (Message, bool) {
		switch mti {
		case MTISetup:
			return &Setup{}, true
		case MTICallProceeding:
			return &CallProceeding{}, true
		case MTIAlerting:
			return &Alerting{}, true
		case MTIConnect:
			return &Connect{}, true
		case MTIConnectAcknowledge:
			return &ConnectAcknowledge{}, true
		case MTIDisconnect:
			return &Disconnect{}, true
		case MTIRelease:
			return &Release{}, true
		case MTIReleaseComplete:
			return &ReleaseComplete{}, true
		default:
			return nil, false
		}
	})
}

// TypeOfNumber is the 3-bit type field of a BCD number IE (GSM 04.08
// §10.5.4.7).
type TypeOfNumber byte

const (
	TypeOfNumberUnknown       TypeOfNumber = 0
	TypeOfNumberInternational TypeOfNumber = 1
	TypeOfNumberNational      TypeOfNumber = 2
)

// NumberingPlan is the 4-bit numbering-plan field.
type NumberingPlan byte

const (
	NumberingPlanUnknown NumberingPlan = 0
	NumberingPlanE164    NumberingPlan = 1
)

// BCDNumber is GSM 04.08 §10.5.4.7/§10.5.4.9's Calling/Called Party BCD
// Number content: a type/plan octet then BCD-packed digits, low digit
// first, same digit packing as MobileIdentity.
type BCDNumber struct {
	Type   TypeOfNumber
	Plan   NumberingPlan
	Digits string
}

// encodeValue renders the BCD number's V-part content (no outer
// length byte): one type/plan octet then packed digit pairs.
func (n BCDNumber) encodeValue() []byte {
	digits := n.Digits
	nbytes := 1 + (len(digits)+1)/2
	b := make([]byte, nbytes)
	b[0] = 0x80 | byte(n.Type&0x7)<<4 | byte(n.Plan&0xf)
	for i := 0; i < len(digits); i += 2 {
		lo := bcdDigit(digits[i])
		hi := byte(0xf)
		if i+1 < len(digits) {
			hi = bcdDigit(digits[i+1])
		}
		b[1+i/2] = hi<<4 | lo
	}
	return b
}

func decodeBCDNumberValue(body []byte) (BCDNumber, error) {
	if len(body) == 0 {
		return BCDNumber{}, fmt.Errorf("%w: BCD number", ErrMandatoryIEMissing)
	}
	n := BCDNumber{
		Type: TypeOfNumber((body[0] >> 4) & 0x7),
		Plan: NumberingPlan(body[0] & 0xf),
	}
	digits := ""
	for _, x := range body[1:] {
		lo := x & 0xf
		hi := x >> 4
		digits += digitChar(lo)
		if hi != 0xf {
			digits += digitChar(hi)
		}
	}
	n.Digits = digits
	return n, nil
}

// CauseLocation is the 4-bit location field of the Cause IE (GSM 04.08
// §10.5.4.11).
type CauseLocation byte

const CauseLocationPrivateServingLocal CauseLocation = 0x5

// CCCause is the 7-bit (class+value) cause code (GSM 04.08 §10.5.4.11).
type CCCause byte

const (
	CauseNormalCallClearing   CCCause = 0x10
	CauseUserBusy             CCCause = 0x11
	CauseNoUserResponding     CCCause = 0x12
	CauseCallRejected         CCCause = 0x15
	CauseNormalUnspecified    CCCause = 0x1f
	CauseTemporaryFailure     CCCause = 0x29
)

// Cause is the Cause IE's content (length always 2: no diagnostics;
// this core only supports coding standard 3).
type Cause struct {
	Location CauseLocation
	Value    CCCause
}

func (c Cause) encodeValue() []byte {
	return []byte{0x80 | byte(c.Location&0xf), 0x80 | byte(c.Value&0x7f)}
}

func decodeCauseValue(body []byte) (Cause, error) {
	if len(body) < 2 {
		return Cause{}, fmt.Errorf("%w: Cause IE", ErrMalformedLength)
	}
	return Cause{Location: CauseLocation(body[0] & 0xf), Value: CCCause(body[1] & 0x7f)}, nil
}

// Setup is GSM 04.08 §9.3.23, abbreviated to the fields the call
// control collaborator actually consumes: called/calling party number.
type Setup struct {
	HaveCalledPartyBCDNumber  bool
	CalledPartyBCDNumber      BCDNumber
	HaveCallingPartyBCDNumber bool
	CallingPartyBCDNumber     BCDNumber
}

func (*Setup) PD() ProtocolDiscriminator { return PDCallControl }
func (*Setup) MTI() byte                 { return MTISetup }

func (m *Setup) WriteBody(sink MsgSink) {
	if m.HaveCalledPartyBCDNumber {
		sink.WriteBytes(AppendTLVBytes(0x5e, m.CalledPartyBCDNumber.encodeValue()), "called_party")
	}
	if m.HaveCallingPartyBCDNumber {
		sink.WriteBytes(AppendTLVBytes(0x5c, m.CallingPartyBCDNumber.encodeValue()), "calling_party")
	}
}

func (m *Setup) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	off := bitOffset
	for off < bv.SizeBits() {
		iei, err := PeekByte(bv, off)
		if err != nil {
			break
		}
		matched := false
		if iei == 0x5e {
			value, present, newOff, err := ParseTLV(bv, off, 0x5e)
			if err != nil {
				return err
			}
			if present {
				n, err := decodeBCDNumberValue(value)
				if err != nil {
					return err
				}
				m.HaveCalledPartyBCDNumber = true
				m.CalledPartyBCDNumber = n
				off = newOff
				matched = true
			}
		} else if iei == 0x5c {
			value, present, newOff, err := ParseTLV(bv, off, 0x5c)
			if err != nil {
				return err
			}
			if present {
				n, err := decodeBCDNumberValue(value)
				if err != nil {
					return err
				}
				m.HaveCallingPartyBCDNumber = true
				m.CallingPartyBCDNumber = n
				off = newOff
				matched = true
			}
		}
		if matched {
			continue
		}
		newOff, err := SkipUnknownTLV(bv, off)
		if err != nil {
			return nil // trailing garbage/padding: stop, not an error
		}
		off = newOff
	}
	return nil
}

// CallProceeding is GSM 04.08 §9.3.3, abbreviated: no optional IEs are
// parsed yet.
type CallProceeding struct{}

func (*CallProceeding) PD() ProtocolDiscriminator                   { return PDCallControl }
func (*CallProceeding) MTI() byte                                   { return MTICallProceeding }
func (*CallProceeding) WriteBody(MsgSink)                           {}
func (*CallProceeding) ParseBody(*bitvector.BitVector, int) error { return nil }

// Alerting is GSM 04.08 §9.3.1 (abbreviated, no progress indicator).
type Alerting struct{}

func (*Alerting) PD() ProtocolDiscriminator                   { return PDCallControl }
func (*Alerting) MTI() byte                                   { return MTIAlerting }
func (*Alerting) WriteBody(MsgSink)                           {}
func (*Alerting) ParseBody(*bitvector.BitVector, int) error { return nil }

// Connect is GSM 04.08 §9.3.5 (abbreviated, no progress indicator).
type Connect struct{}

func (*Connect) PD() ProtocolDiscriminator                   { return PDCallControl }
func (*Connect) MTI() byte                                   { return MTIConnect }
func (*Connect) WriteBody(MsgSink)                           {}
func (*Connect) ParseBody(*bitvector.BitVector, int) error { return nil }

// ConnectAcknowledge is GSM 04.08 §9.3.6: an empty body.
type ConnectAcknowledge struct{}

func (*ConnectAcknowledge) PD() ProtocolDiscriminator                   { return PDCallControl }
func (*ConnectAcknowledge) MTI() byte                                   { return MTIConnectAcknowledge }
func (*ConnectAcknowledge) WriteBody(MsgSink)                           {}
func (*ConnectAcknowledge) ParseBody(*bitvector.BitVector, int) error { return nil }

// Disconnect is GSM 04.08 §9.3.7: a mandatory Cause LV.
type Disconnect struct {
	Cause Cause
}

func (*Disconnect) PD() ProtocolDiscriminator { return PDCallControl }
func (*Disconnect) MTI() byte                 { return MTIDisconnect }

func (m *Disconnect) WriteBody(sink MsgSink) {
	sink.WriteBytes(AppendLVBytes(m.Cause.encodeValue()), "cause")
}

func (m *Disconnect) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	value, _, err := ParseLV(bv, bitOffset)
	if err != nil {
		return err
	}
	cause, err := decodeCauseValue(value)
	if err != nil {
		return err
	}
	m.Cause = cause
	return nil
}

// Release is GSM 04.08 §9.3.18: an optional Cause LV.
type Release struct {
	HaveCause bool
	Cause     Cause
}

func (*Release) PD() ProtocolDiscriminator { return PDCallControl }
func (*Release) MTI() byte                 { return MTIRelease }

func (m *Release) WriteBody(sink MsgSink) {
	if m.HaveCause {
		sink.WriteBytes(AppendLVBytes(m.Cause.encodeValue()), "cause")
	}
}

func (m *Release) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	if bitOffset >= bv.SizeBits() {
		return nil
	}
	value, _, err := ParseLV(bv, bitOffset)
	if err != nil {
		return err
	}
	cause, err := decodeCauseValue(value)
	if err != nil {
		return err
	}
	m.HaveCause = true
	m.Cause = cause
	return nil
}

// ReleaseComplete is GSM 04.08 §9.3.19: an optional Cause LV, same
// shape as Release (the source shares an L3CCCommonIEs mixin between
// the two; here that's just parallel field shape, no shared type, per
// "no inheritance" resolution).
type ReleaseComplete struct {
	HaveCause bool
	Cause     Cause
}

func (*ReleaseComplete) PD() ProtocolDiscriminator { return PDCallControl }
func (*ReleaseComplete) MTI() byte                 { return MTIReleaseComplete }

func (m *ReleaseComplete) WriteBody(sink MsgSink) {
	if m.HaveCause {
		sink.WriteBytes(AppendLVBytes(m.Cause.encodeValue()), "cause")
	}
}

func (m *ReleaseComplete) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	if bitOffset >= bv.SizeBits() {
		return nil
	}
	value, _, err := ParseLV(bv, bitOffset)
	if err != nil {
		return err
	}
	cause, err := decodeCauseValue(value)
	if err != nil {
		return err
	}
	m.HaveCause = true
	m.Cause = cause
	return nil
}
