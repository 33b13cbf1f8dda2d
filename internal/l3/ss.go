package l3

import (
	"github.com/openbts-go/btscore/internal/bitvector"
)

// Supplementary Service messages, GSM 04.80 §2.2. This core supports
// only the MS-initiated MMI flow, so RegisterInvoke/Facility/
// ReleaseComplete cover the full set it needs.

const (
	MTISSReleaseComplete byte = 0x2a
	MTIFacility          byte = 0x3a
	MTIRegister          byte = 0x3b
)

func init() {
	RegisterDecoder(PDNonCallSS, func(mti byte) (Message, bool) {
		switch mti {
		case MTISSReleaseComplete:
			return &SSReleaseComplete{}, true
		case MTIFacility:
			return &Facility{}, true
		case MTIRegister:
			return &RegisterInvoke{}, true
		default:
			return nil, false
		}
	})
}

// Facility is GSM 04.80 §2.3: a single mandatory Facility IE (GSM 04.08
// §10.5.4.15) carrying raw MAP/SS component bytes this core does not
// interpret, "opaque facility payload" resolution.
type Facility struct {
	Components []byte
}

func (*Facility) PD() ProtocolDiscriminator { return PDNonCallSS }
func (*Facility) MTI() byte                 { return MTIFacility }

func (m *Facility) WriteBody(sink MsgSink) {
	sink.WriteBytes(AppendLVBytes(m.Components), "facility")
}

func (m *Facility) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	value, _, err := ParseLV(bv, bitOffset)
	if err != nil {
		return err
	}
	m.Components = value
	return nil
}

// RegisterInvoke is GSM 04.80 §2.4: a mandatory Facility IE plus an
// optional 1-byte SS Version Indicator TLV (IEI 0x7f).
type RegisterInvoke struct {
	Components    []byte
	HaveSSVersion bool
	SSVersion     byte
}

func (*RegisterInvoke) PD() ProtocolDiscriminator { return PDNonCallSS }
func (*RegisterInvoke) MTI() byte                 { return MTIRegister }

func (m *RegisterInvoke) WriteBody(sink MsgSink) {
	sink.WriteBytes(AppendLVBytes(m.Components), "facility")
	if m.HaveSSVersion {
		sink.WriteBytes(AppendTLVBytes(0x7f, []byte{m.SSVersion}), "ss_version")
	}
}

func (m *RegisterInvoke) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	value, off, err := ParseLV(bv, bitOffset)
	if err != nil {
		return err
	}
	m.Components = value
	if off >= bv.SizeBits() {
		return nil
	}
	verValue, present, _, err := ParseTLV(bv, off, 0x7f)
	if err != nil {
		return err
	}
	if present && len(verValue) > 0 {
		m.HaveSSVersion = true
		m.SSVersion = verValue[0]
	}
	return nil
}

// SSReleaseComplete is GSM 04.80 §2.5: an optional Facility IE (here
// carried as an optional TLV with IEI 0x1c; the
// source's L3SupServMessage shares the same wire MTI 0x2a with call
// control's ReleaseComplete but a distinct protocol discriminator, so
// it gets its own Go type rather than aliasing cc.go's).
type SSReleaseComplete struct {
	HaveFacility bool
	Components   []byte
}

func (*SSReleaseComplete) PD() ProtocolDiscriminator { return PDNonCallSS }
func (*SSReleaseComplete) MTI() byte                 { return MTISSReleaseComplete }

func (m *SSReleaseComplete) WriteBody(sink MsgSink) {
	if m.HaveFacility {
		sink.WriteBytes(AppendTLVBytes(0x1c, m.Components), "facility")
	}
}

func (m *SSReleaseComplete) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	if bitOffset >= bv.SizeBits() {
		return nil
	}
	iei, err := PeekByte(bv, bitOffset)
	if err != nil {
		return nil
	}
	if iei != 0x1c {
		return nil
	}
	value, present, _, err := ParseTLV(bv, bitOffset, 0x1c)
	if err != nil {
		return err
	}
	if present {
		m.HaveFacility = true
		m.Components = value
	}
	return nil
}
