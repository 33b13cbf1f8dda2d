package l3

import (
	"fmt"

	"github.com/openbts-go/btscore/internal/bitvector"
)

// Radio Resource messages, GSM 04.08 §9.1: Immediate Assignment,
// Immediate Assignment Reject, Paging Request Type 1, Channel Release,
// and Measurement Report. The wire layout below follows GSM 04.08
// §9.1.18/§9.1.20/§9.1.22/§9.1.25/§9.1.35 directly.

const (
	MTIImmediateAssignment       byte = 0x3f
	MTIImmediateAssignmentReject byte = 0x3a
	MTIPagingRequestType1        byte = 0x21
	MTIChannelRelease            byte = 0x0d
	MTIMeasurementReport         byte = 0x15
)

func init() {
	RegisterDecoder(PDRadioResource, func(mti byte) (Message, bool) {
		switch mti {
		case MTIImmediateAssignment:
			return &ImmediateAssignment{}, true
		case MTIImmediateAssignmentReject:
			return &ImmediateAssignmentReject{}, true
		case MTIPagingRequestType1:
			return &PagingRequestType1{}, true
		case MTIChannelRelease:
			return &ChannelRelease{}, true
		case MTIMeasurementReport:
			return &MeasurementReport{}, true
		default:
			return nil, false
		}
	})
}

// ChannelDescription is the 3-octet Channel Description IE (GSM 04.08
// §10.5.2.5): channel type+TDMA offset, training sequence, ARFCN/
// hopping info, timeslot number.
type ChannelDescription struct {
	TypeAndOffset byte // GSM 04.08 Table 10.5.25
	TN            byte // 0..7
	TSC           byte // training sequence code, 0..7
	ARFCN         uint16
	HSN           byte // hopping sequence number, 0 when not hopping
	MAIO          byte
	Hopping       bool
}

func (c ChannelDescription) encode() []byte {
	// Octet 1: type-and-offset(5)|TN(3). Octet 2: TSC(3)|H(1), then
	// MAIO high nibble when hopping or the ARFCN's top 2 bits when not.
	// Octet 3: MAIO low 2 bits + HSN, or the ARFCN's low byte.
	b := make([]byte, 3)
	b[0] = (c.TypeAndOffset&0x1f)<<3 | (c.TN & 0x7)
	if c.Hopping {
		b[1] = (c.TSC&0x7)<<5 | 0x10 | (c.MAIO>>2)&0xf
		b[2] = (c.MAIO&0x3)<<6 | (c.HSN & 0x3f)
	} else {
		b[1] = (c.TSC&0x7)<<5 | byte((c.ARFCN>>8)&0x3)
		b[2] = byte(c.ARFCN)
	}
	return b
}

func decodeChannelDescription(b []byte) ChannelDescription {
	if len(b) < 3 {
		return ChannelDescription{}
	}
	c := ChannelDescription{
		TypeAndOffset: b[0] >> 3,
		TN:            b[0] & 0x7,
		TSC:           b[1] >> 5,
		Hopping:       b[1]&0x10 != 0,
	}
	if c.Hopping {
		c.MAIO = (b[1]&0xf)<<2 | b[2]>>6
		c.HSN = b[2] & 0x3f
	} else {
		c.ARFCN = uint16(b[1]&0x3)<<8 | uint16(b[2])
	}
	return c
}

// RequestReference mirrors the RACH burst that triggered an assignment
// (GSM 04.08 §10.5.2.30): the RA byte plus the (T1',T2,T3) access frame
// number, packed as the low 5 bits of FN plus T3.
type RequestReference struct {
	RA byte
	T1 byte
	T2 byte
	T3 byte
}

func (r RequestReference) encode() []byte {
	return []byte{r.RA, r.T1<<3 | r.T2, r.T3}
}

func decodeRequestReference(b []byte) RequestReference {
	if len(b) < 3 {
		return RequestReference{}
	}
	return RequestReference{RA: b[0], T1: b[1] >> 3, T2: b[1] & 0x7, T3: b[2]}
}

// ImmediateAssignment is GSM 04.08 §9.1.18: assigns a dedicated channel
// in response to a RACH.
type ImmediateAssignment struct {
	PageMode           byte
	ChannelDescription ChannelDescription
	RequestReference   RequestReference
	TimingAdvance      byte
	MobileAllocation   []byte // empty for non-hopping
}

func (*ImmediateAssignment) PD() ProtocolDiscriminator { return PDRadioResource }
func (*ImmediateAssignment) MTI() byte                 { return MTIImmediateAssignment }

func (m *ImmediateAssignment) WriteBody(sink MsgSink) {
	sink.WriteField(0, 4, "dedication") // "dedicated"/ciphering bits, always 0 here
	sink.WriteField(uint64(m.PageMode&0xf), 4, "page_mode")
	sink.WriteBytes(m.ChannelDescription.encode(), "chan_desc")
	sink.WriteBytes(m.RequestReference.encode(), "request_ref")
	sink.WriteField(uint64(m.TimingAdvance), 8, "timing_advance")
	sink.WriteBytes(AppendLVBytes(m.MobileAllocation), "mobile_alloc")
}

func (m *ImmediateAssignment) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	modeOctet, err := bv.ReadByte(bitOffset)
	if err != nil {
		return fmt.Errorf("%w: ImmediateAssignment page_mode", ErrTruncated)
	}
	m.PageMode = modeOctet & 0xf
	off := bitOffset + 8
	chanDesc, err := bv.ReadBytes(off, 3)
	if err != nil {
		return fmt.Errorf("%w: ImmediateAssignment chan_desc", ErrTruncated)
	}
	m.ChannelDescription = decodeChannelDescription(chanDesc)
	off += 24
	reqRef, err := bv.ReadBytes(off, 3)
	if err != nil {
		return fmt.Errorf("%w: ImmediateAssignment request_ref", ErrTruncated)
	}
	m.RequestReference = decodeRequestReference(reqRef)
	off += 24
	ta, err := bv.ReadByte(off)
	if err != nil {
		return fmt.Errorf("%w: ImmediateAssignment timing_advance", ErrTruncated)
	}
	m.TimingAdvance = ta
	off += 8
	alloc, _, err := ParseLV(bv, off)
	if err != nil {
		return err
	}
	m.MobileAllocation = alloc
	return nil
}

// AppendLVBytes renders an LV-wrapped byte run for splicing via
// WriteBytes.
func AppendLVBytes(value []byte) []byte {
	bv := bitvector.New(0)
	_ = AppendLV(bv, value)
	return bv.Bytes()
}

// ImmediateAssignmentReject is GSM 04.08 §9.1.20, extended to let up to
// 4 (RA, T) pairs share one message; RequestReferences/WaitIndications
// are parallel slices.
type ImmediateAssignmentReject struct {
	RequestReferences []RequestReference
	WaitIndications   []byte // T3122 seconds, one per request reference
}

func (*ImmediateAssignmentReject) PD() ProtocolDiscriminator { return PDRadioResource }
func (*ImmediateAssignmentReject) MTI() byte                 { return MTIImmediateAssignmentReject }

func (m *ImmediateAssignmentReject) WriteBody(sink MsgSink) {
	sink.WriteField(0, 8, "page_mode")
	for i := 0; i < 4; i++ {
		if i < len(m.RequestReferences) {
			sink.WriteBytes(m.RequestReferences[i].encode(), "request_ref")
			sink.WriteField(uint64(m.WaitIndications[i]), 8, "wait_indication")
		} else {
			sink.WriteBytes([]byte{0xff, 0xff, 0xff}, "request_ref_pad")
			sink.WriteField(0xff, 8, "wait_indication_pad")
		}
	}
}

func (m *ImmediateAssignmentReject) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	off := bitOffset + 8
	for i := 0; i < 4; i++ {
		rrBytes, err := bv.ReadBytes(off, 3)
		if err != nil {
			return fmt.Errorf("%w: ImmediateAssignmentReject entry %d", ErrTruncated, i)
		}
		off += 24
		wait, err := bv.ReadByte(off)
		if err != nil {
			return fmt.Errorf("%w: ImmediateAssignmentReject wait %d", ErrTruncated, i)
		}
		off += 8
		if rrBytes[0] == 0xff && rrBytes[1] == 0xff && rrBytes[2] == 0xff {
			continue
		}
		m.RequestReferences = append(m.RequestReferences, decodeRequestReference(rrBytes))
		m.WaitIndications = append(m.WaitIndications, wait)
	}
	return nil
}

// PagingRequestType1 is GSM 04.08 §9.1.22: up to two mobile identities
// paged on CCCH.
type PagingRequestType1 struct {
	Identities []MobileIdentity
}

func (*PagingRequestType1) PD() ProtocolDiscriminator { return PDRadioResource }
func (*PagingRequestType1) MTI() byte                 { return MTIPagingRequestType1 }

func (m *PagingRequestType1) WriteBody(sink MsgSink) {
	sink.WriteField(0, 8, "page_mode_and_chan_needed")
	for _, id := range m.Identities {
		sink.WriteBytes(EncodeMobileIdentityBytes(id), "identity")
	}
}

func (m *PagingRequestType1) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	off := bitOffset + 8
	for off < bv.SizeBits() {
		id, newOff, err := ParseMobileIdentity(bv, off)
		if err != nil {
			return err
		}
		m.Identities = append(m.Identities, id)
		off = newOff
	}
	return nil
}

// ChannelRelease is GSM 04.08 §9.1.7.
type ChannelRelease struct {
	Cause byte // GSM 04.08 §10.5.2.31 RR cause
}

func (*ChannelRelease) PD() ProtocolDiscriminator { return PDRadioResource }
func (*ChannelRelease) MTI() byte                 { return MTIChannelRelease }

func (m *ChannelRelease) WriteBody(sink MsgSink) { sink.WriteField(uint64(m.Cause), 8, "cause") }

func (m *ChannelRelease) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	b, err := bv.ReadByte(bitOffset)
	if err != nil {
		return fmt.Errorf("%w: ChannelRelease cause", ErrTruncated)
	}
	m.Cause = b
	return nil
}

// NeighbourReport is one of up to six neighbour-cell triples in a
// Measurement Report: `(freq_index, BSIC, RXLEV)`.
type NeighbourReport struct {
	FreqIndex byte
	BSIC      byte
	RXLEV     byte
}

// MeasurementReport is GSM 04.08 §9.1.21, carrying the serving-cell
// RXLEV/RXQUAL and up to six neighbour reports. NO_NCELL
// == 7 is the sentinel for "no neighbour data".
const NoNCellSentinel = 7

type MeasurementReport struct {
	ServingRXLEV  byte // 0..63
	ServingRXQUAL byte // 0..7
	DTXUsed       bool
	NumNeighbours byte // 0..6, or NoNCellSentinel for "no data"
	Neighbours    []NeighbourReport
}

func (*MeasurementReport) PD() ProtocolDiscriminator { return PDRadioResource }
func (*MeasurementReport) MTI() byte                 { return MTIMeasurementReport }

func (m *MeasurementReport) WriteBody(sink MsgSink) {
	dtx := uint64(0)
	if m.DTXUsed {
		dtx = 1
	}
	sink.WriteField(dtx, 1, "dtx")
	sink.WriteField(uint64(m.ServingRXLEV&0x3f), 6, "serving_rxlev")
	sink.WriteField(0, 1, "spare")
	sink.WriteField(uint64(m.ServingRXQUAL&0x7), 3, "serving_rxqual")
	sink.WriteField(uint64(m.NumNeighbours&0x7), 3, "num_neighbours")
	sink.WriteField(0, 2, "spare")
	for _, n := range m.Neighbours {
		sink.WriteField(uint64(n.FreqIndex&0x1f), 5, "freq_index")
		sink.WriteField(uint64(n.BSIC&0x3f), 6, "bsic")
		sink.WriteField(uint64(n.RXLEV&0x3f), 6, "rxlev")
	}
}

func (m *MeasurementReport) ParseBody(bv *bitvector.BitVector, bitOffset int) error {
	dtx, err := bv.ReadField(bitOffset, 1)
	if err != nil {
		return fmt.Errorf("%w: MeasurementReport header", ErrTruncated)
	}
	m.DTXUsed = dtx != 0
	servingRXLEV, err := bv.ReadField(bitOffset+1, 6)
	if err != nil {
		return fmt.Errorf("%w: MeasurementReport serving_rxlev", ErrTruncated)
	}
	m.ServingRXLEV = byte(servingRXLEV)
	servingRXQUAL, err := bv.ReadField(bitOffset+8, 3)
	if err != nil {
		return fmt.Errorf("%w: MeasurementReport serving_rxqual", ErrTruncated)
	}
	m.ServingRXQUAL = byte(servingRXQUAL)
	numN, err := bv.ReadField(bitOffset+11, 3)
	if err != nil {
		return fmt.Errorf("%w: MeasurementReport num_neighbours", ErrTruncated)
	}
	m.NumNeighbours = byte(numN)

	off := bitOffset + 16
	if m.NumNeighbours == NoNCellSentinel {
		return nil
	}
	for i := byte(0); i < m.NumNeighbours && i < 6; i++ {
		freq, err := bv.ReadField(off, 5)
		if err != nil {
			return fmt.Errorf("%w: MeasurementReport neighbour %d freq", ErrTruncated, i)
		}
		bsic, err := bv.ReadField(off+5, 6)
		if err != nil {
			return fmt.Errorf("%w: MeasurementReport neighbour %d bsic", ErrTruncated, i)
		}
		rxlev, err := bv.ReadField(off+11, 6)
		if err != nil {
			return fmt.Errorf("%w: MeasurementReport neighbour %d rxlev", ErrTruncated, i)
		}
		if freq == 31 {
			// Reserved frequency index: drop this neighbour rather
			// than reject the whole report.
			off += 17
			continue
		}
		m.Neighbours = append(m.Neighbours, NeighbourReport{
			FreqIndex: byte(freq), BSIC: byte(bsic), RXLEV: byte(rxlev),
		})
		off += 17
	}
	return nil
}
