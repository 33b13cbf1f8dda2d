package l3

import (
	"fmt"

	"github.com/openbts-go/btscore/internal/bitvector"
)

// Mobility Management messages, GSM 04.08 §9.2. Each message type gets
// its own Go struct implementing Message.

// MM message type codes (GSM 04.08 Table 10.2).
const (
	MTILocationUpdatingRequest  byte = 0x08
	MTILocationUpdatingAccept   byte = 0x02
	MTILocationUpdatingReject   byte = 0x04
	MTITMSIReallocationComplete byte = 0x1b
	MTICMServiceRequest         byte = 0x24
	MTIIdentityRequest          byte = 0x18
	MTIIdentityResponse         byte = 0x19
)

func init() {
	RegisterDecoder(PDMobilityManagement, func(mti byte) (Message, bool) {
		switch mti {
		case MTILocationUpdatingRequest:
			return &LocationUpdatingRequest{}, true
		case MTILocationUpdatingAccept:
			return &LocationUpdatingAccept{}, true
		case MTILocationUpdatingReject:
			return &LocationUpdatingReject{}, true
		case MTITMSIReallocationComplete:
			return &TMSIReallocationComplete{}, true
		case MTICMServiceRequest:
			return &CMServiceRequest{}, true
		case MTIIdentityRequest:
			return &IdentityRequest{}, true
		case MTIIdentityResponse:
			return &IdentityResponse{}, true
		default:
			return nil, false
		}
	})
}

// MMRejectCause is the 1-byte reject cause IE shared by
// LocationUpdatingReject and MM Status (GSM 04.08 §10.5.3.6). Default
// 0x04 "IMSI unknown in VLR".
type MMRejectCause byte

const MMRejectIMSIUnknownInVLR MMRejectCause = 0x04

// LocationUpdatingType is the 2-bit update-type field (GSM 24.008
// §10.5.3.5).
type LocationUpdatingType byte

const (
	LUTNormalLocationUpdating LocationUpdatingType = 0
	LUTPeriodicUpdating       LocationUpdatingType = 1
	LUTIMSIAttach             LocationUpdatingType = 2
)

// LocationUpdatingRequest is GSM 04.08 §9.2.15.
type LocationUpdatingRequest struct {
	UpdateType       LocationUpdatingType
	FollowOnRequest  bool
	CipherKeySeqNum  byte
	LAI              LAI
	MobileIdentity   MobileIdentity
}

func (*LocationUpdatingRequest) PD() ProtocolDiscriminator { return PDMobilityManagement }
func (*LocationUpdatingRequest) MTI() byte                 { return MTILocationUpdatingRequest }

func (m *LocationUpdatingRequest) WriteBody(sink MsgSink) {
	// Octet 1: spare(1)|ciphering-key-seq-num(3) in the high nibble,
	// follow-on-request(1)|spare(1)|update-type(2) in the low (GSM 04.08
	// §10.5.1.2/§10.5.3.5).
	followOn := uint64(0)
	if m.FollowOnRequest {
		followOn = 1
	}
	sink.WriteField(0, 1, "spare")
	sink.WriteField(uint64(m.CipherKeySeqNum&0x7), 3, "cksn")
	sink.WriteField(followOn, 1, "follow_on")
	sink.WriteField(0, 1, "spare")
	sink.WriteField(uint64(m.UpdateType&0x3), 2, "lut")
	// Mobile station classmark 1: 1 octet, not interpreted by this
	// core beyond what the radio-resource front-end reads directly.
	sink.WriteField(0, 8, "classmark1")
	sink.WriteBytes(EncodeLAIBytes(m.LAI), "lai")
	sink.WriteBytes(EncodeMobileIdentityBytes(m.MobileIdentity), "mobile_id")
}

func (m *LocationUpdatingRequest) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	b, err := bv.ReadByte(bitOffset)
	if err != nil {
		return fmt.Errorf("%w: LocationUpdatingRequest update-type octet", ErrTruncated)
	}
	m.CipherKeySeqNum = (b >> 4) & 0x7
	m.FollowOnRequest = b&0x08 != 0
	m.UpdateType = LocationUpdatingType(b & 0x3)
	off := bitOffset + 8
	off += 8 // classmark 1, not decoded
	m.LAI, off, err = ParseLAI(bv, off)
	if err != nil {
		return err
	}
	m.MobileIdentity, off, err = ParseMobileIdentity(bv, off)
	if err != nil {
		return err
	}
	return nil
}

// LocationUpdatingAccept is GSM 04.08 §9.2.13.
type LocationUpdatingAccept struct {
	LAI                LAI
	FollowOnProceed    bool
	HaveMobileIdentity bool
	MobileIdentity     MobileIdentity
}

func (*LocationUpdatingAccept) PD() ProtocolDiscriminator { return PDMobilityManagement }
func (*LocationUpdatingAccept) MTI() byte                 { return MTILocationUpdatingAccept }

func (m *LocationUpdatingAccept) WriteBody(sink MsgSink) {
	sink.WriteBytes(EncodeLAIBytes(m.LAI), "lai")
	if m.HaveMobileIdentity {
		sink.WriteBytes(AppendTLVBytes(0x17, EncodeMobileIdentityValue(m.MobileIdentity)), "mobile_id_tlv")
	}
}

func (m *LocationUpdatingAccept) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	lai, off, err := ParseLAI(bv, bitOffset)
	if err != nil {
		return err
	}
	m.LAI = lai
	if off >= bv.SizeBits() {
		return nil
	}
	// Optional trailing Mobile Identity TLV (IEI 0x17), per 04.08
	// §9.2.13 table.
	value, present, _, err := ParseTLV(bv, off, 0x17)
	if err != nil {
		return err
	}
	if present {
		id, err := ParseMobileIdentityValue(value)
		if err != nil {
			return err
		}
		m.HaveMobileIdentity = true
		m.MobileIdentity = id
	}
	return nil
}

// LocationUpdatingReject is GSM 04.08 §9.2.14.
type LocationUpdatingReject struct {
	Cause MMRejectCause
}

func (*LocationUpdatingReject) PD() ProtocolDiscriminator { return PDMobilityManagement }
func (*LocationUpdatingReject) MTI() byte                 { return MTILocationUpdatingReject }

func (m *LocationUpdatingReject) WriteBody(sink MsgSink) {
	sink.WriteField(uint64(m.Cause), 8, "cause")
}

func (m *LocationUpdatingReject) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	b, err := bv.ReadByte(bitOffset)
	if err != nil {
		return fmt.Errorf("%w: LocationUpdatingReject cause", ErrTruncated)
	}
	m.Cause = MMRejectCause(b)
	return nil
}

// TMSIReallocationComplete is GSM 04.08 §9.2.18: an empty body.
type TMSIReallocationComplete struct{}

func (*TMSIReallocationComplete) PD() ProtocolDiscriminator { return PDMobilityManagement }
func (*TMSIReallocationComplete) MTI() byte                 { return MTITMSIReallocationComplete }
func (*TMSIReallocationComplete) WriteBody(MsgSink)         {}
func (*TMSIReallocationComplete) ParseBody(*bitvector.BitVector, int) error { return nil }

// CMServiceRequest is GSM 04.08 §9.2.9 (abbreviated: service type,
// CKSN, classmark 2, and mobile identity; priority/PLMN IEs omitted as
// this core only routes the request to the call-control collaborator).
type CMServiceRequest struct {
	ServiceType     byte
	CipherKeySeqNum byte
	Classmark2      []byte // raw LV value, interpreted by the RR front-end if needed
	MobileIdentity  MobileIdentity
}

func (*CMServiceRequest) PD() ProtocolDiscriminator { return PDMobilityManagement }
func (*CMServiceRequest) MTI() byte                 { return MTICMServiceRequest }

func (m *CMServiceRequest) WriteBody(sink MsgSink) {
	// CKSN in the high nibble, CM service type in the low (GSM 04.08
	// §9.2.9 octet 3).
	sink.WriteField(0, 1, "spare")
	sink.WriteField(uint64(m.CipherKeySeqNum&0x7), 3, "cksn")
	sink.WriteField(uint64(m.ServiceType&0xf), 4, "service_type")
	cm2 := bitvector.New(0)
	_ = AppendLV(cm2, m.Classmark2)
	sink.WriteBytes(cm2.Bytes(), "classmark2")
	sink.WriteBytes(EncodeMobileIdentityBytes(m.MobileIdentity), "mobile_id")
}

func (m *CMServiceRequest) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	b, err := bv.ReadByte(bitOffset)
	if err != nil {
		return fmt.Errorf("%w: CMServiceRequest type octet", ErrTruncated)
	}
	m.CipherKeySeqNum = (b >> 4) & 0x7
	m.ServiceType = b & 0xf
	off := bitOffset + 8
	classmark2, off, err := ParseLV(bv, off)
	if err != nil {
		return err
	}
	m.Classmark2 = classmark2
	id, off, err := ParseMobileIdentity(bv, off)
	if err != nil {
		return err
	}
	_ = off
	m.MobileIdentity = id
	return nil
}

// IdentityRequest is GSM 04.08 §9.2.10.
type IdentityRequest struct {
	RequestedType MobileIdentityType
}

func (*IdentityRequest) PD() ProtocolDiscriminator { return PDMobilityManagement }
func (*IdentityRequest) MTI() byte                 { return MTIIdentityRequest }

func (m *IdentityRequest) WriteBody(sink MsgSink) {
	// Identity type occupies the low 3 bits; the rest is spare.
	sink.WriteField(0, 5, "spare")
	sink.WriteField(uint64(m.RequestedType&0x7), 3, "identity_type")
}

func (m *IdentityRequest) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	b, err := bv.ReadByte(bitOffset)
	if err != nil {
		return fmt.Errorf("%w: IdentityRequest type octet", ErrTruncated)
	}
	m.RequestedType = MobileIdentityType(b & 0x7)
	return nil
}

// IdentityResponse is GSM 04.08 §9.2.11.
type IdentityResponse struct {
	MobileIdentity MobileIdentity
}

func (*IdentityResponse) PD() ProtocolDiscriminator { return PDMobilityManagement }
func (*IdentityResponse) MTI() byte                 { return MTIIdentityResponse }

func (m *IdentityResponse) WriteBody(sink MsgSink) {
	sink.WriteBytes(EncodeMobileIdentityBytes(m.MobileIdentity), "mobile_id")
}

func (m *IdentityResponse) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	id, _, err := ParseMobileIdentity(bv, bitOffset)
	if err != nil {
		return err
	}
	m.MobileIdentity = id
	return nil
}
