package l3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/openbts-go/btscore/internal/bitvector"
)

// encodeDecode runs one message through the full wire codec and returns
// the re-decoded message for comparison with the original.
func encodeDecode(t *testing.T, msg Message, h Header) (Message, Header) {
	t.Helper()
	bv, err := Encode(msg, h)
	require.NoError(t, err)
	got, gotH, err := Decode(bv)
	require.NoError(t, err)
	return got, gotH
}

func testLAI() LAI {
	return LAI{MCC: "310", MNC: "26", LAC: 0x1234}
}

func TestLocationUpdatingRequestRoundTrip(t *testing.T) {
	m := &LocationUpdatingRequest{
		UpdateType:      LUTIMSIAttach,
		FollowOnRequest: true,
		CipherKeySeqNum: 5,
		LAI:             testLAI(),
		MobileIdentity:  MobileIdentity{Type: MobileIdentityIMSI, Digits: "310260123456789"},
	}
	got, _ := encodeDecode(t, m, Header{})
	assert.Equal(t, m, got)
}

func TestLocationUpdatingAcceptRoundTrip(t *testing.T) {
	plain := &LocationUpdatingAccept{LAI: testLAI()}
	got, _ := encodeDecode(t, plain, Header{})
	assert.Equal(t, plain, got)

	withID := &LocationUpdatingAccept{
		LAI:                testLAI(),
		HaveMobileIdentity: true,
		MobileIdentity:     MobileIdentity{Type: MobileIdentityTMSI, TMSI: 0xdeadbeef},
	}
	got, _ = encodeDecode(t, withID, Header{})
	assert.Equal(t, withID, got)
}

func TestLocationUpdatingRejectRoundTrip(t *testing.T) {
	m := &LocationUpdatingReject{Cause: MMRejectIMSIUnknownInVLR}
	got, _ := encodeDecode(t, m, Header{})
	assert.Equal(t, m, got)
}

func TestCMServiceRequestRoundTrip(t *testing.T) {
	m := &CMServiceRequest{
		ServiceType:     0x1,
		CipherKeySeqNum: 3,
		Classmark2:      []byte{0x33, 0x19, 0xa2},
		MobileIdentity:  MobileIdentity{Type: MobileIdentityTMSI, TMSI: 0x0badcafe},
	}
	got, _ := encodeDecode(t, m, Header{})
	assert.Equal(t, m, got)
}

func TestIdentityRequestResponseRoundTrip(t *testing.T) {
	req := &IdentityRequest{RequestedType: MobileIdentityIMEI}
	got, _ := encodeDecode(t, req, Header{})
	assert.Equal(t, req, got)

	resp := &IdentityResponse{MobileIdentity: MobileIdentity{Type: MobileIdentityIMEI, Digits: "490154203237518"}}
	got, _ = encodeDecode(t, resp, Header{})
	assert.Equal(t, resp, got)
}

func TestImmediateAssignmentRoundTrip(t *testing.T) {
	m := &ImmediateAssignment{
		PageMode: 1,
		ChannelDescription: ChannelDescription{
			TypeAndOffset: 0x08, // SDCCH/4 subchannel 0
			TN:            2,
			TSC:           5,
			ARFCN:         0x27a,
		},
		RequestReference: RequestReference{RA: 0x04, T1: 19, T2: 5, T3: 41},
		TimingAdvance:    7,
		MobileAllocation: []byte{0x10},
	}
	got, _ := encodeDecode(t, m, Header{})
	assert.Equal(t, m, got)
}

func TestImmediateAssignmentHoppingChannelRoundTrip(t *testing.T) {
	m := &ImmediateAssignment{
		ChannelDescription: ChannelDescription{
			TypeAndOffset: 0x01,
			TN:            7,
			TSC:           3,
			Hopping:       true,
			MAIO:          0x2b,
			HSN:           0x15,
		},
		RequestReference: RequestReference{RA: 0xa3, T1: 1, T2: 2, T3: 3},
		MobileAllocation: []byte{0xc0, 0x01},
	}
	got, _ := encodeDecode(t, m, Header{})
	assert.Equal(t, m, got)
}

func TestImmediateAssignmentRejectRoundTripAndPadding(t *testing.T) {
	m := &ImmediateAssignmentReject{
		RequestReferences: []RequestReference{
			{RA: 0x04, T1: 1, T2: 2, T3: 3},
			{RA: 0x11, T1: 4, T2: 5, T3: 6},
		},
		WaitIndications: []byte{10, 10},
	}
	got, _ := encodeDecode(t, m, Header{})
	assert.Equal(t, m, got)

	// The wire form is always padded to 4 entries.
	bv, err := Encode(m, Header{})
	require.NoError(t, err)
	assert.Equal(t, 2+1+4*4, bv.SizeBytes())
}

func TestPagingRequestType1RoundTrip(t *testing.T) {
	m := &PagingRequestType1{
		Identities: []MobileIdentity{
			{Type: MobileIdentityTMSI, TMSI: 0x00c0ffee},
			{Type: MobileIdentityIMSI, Digits: "00101123456789"},
		},
	}
	got, _ := encodeDecode(t, m, Header{})
	assert.Equal(t, m, got)

	filler := &PagingRequestType1{}
	got, _ = encodeDecode(t, filler, Header{})
	assert.Empty(t, got.(*PagingRequestType1).Identities)
}

func TestChannelReleaseRoundTrip(t *testing.T) {
	m := &ChannelRelease{Cause: 0x00}
	got, _ := encodeDecode(t, m, Header{})
	assert.Equal(t, m, got)
}

func TestMeasurementReportRoundTrip(t *testing.T) {
	m := &MeasurementReport{
		ServingRXLEV:  23,
		ServingRXQUAL: 2,
		DTXUsed:       true,
		NumNeighbours: 2,
		Neighbours: []NeighbourReport{
			{FreqIndex: 3, BSIC: 12, RXLEV: 35},
			{FreqIndex: 17, BSIC: 61, RXLEV: 8},
		},
	}
	got, _ := encodeDecode(t, m, Header{})
	assert.Equal(t, m, got)
}

func TestMeasurementReportNoNeighbourSentinel(t *testing.T) {
	m := &MeasurementReport{ServingRXLEV: 40, NumNeighbours: NoNCellSentinel}
	got, _ := encodeDecode(t, m, Header{})
	mr := got.(*MeasurementReport)
	assert.Equal(t, byte(NoNCellSentinel), mr.NumNeighbours)
	assert.Empty(t, mr.Neighbours)
}

func TestSetupRoundTripCarriesTransactionIdentifier(t *testing.T) {
	m := &Setup{
		HaveCalledPartyBCDNumber: true,
		CalledPartyBCDNumber: BCDNumber{
			Type: TypeOfNumberInternational, Plan: NumberingPlanE164, Digits: "15551234567",
		},
		HaveCallingPartyBCDNumber: true,
		CallingPartyBCDNumber: BCDNumber{
			Type: TypeOfNumberNational, Plan: NumberingPlanE164, Digits: "8675309",
		},
	}
	got, h := encodeDecode(t, m, Header{TI: 2, TIOriginator: true})
	assert.Equal(t, m, got)
	assert.Equal(t, byte(2), h.TI)
	assert.True(t, h.TIOriginator)
}

func TestExtendedTransactionIdentifierRoundTrip(t *testing.T) {
	m := &ConnectAcknowledge{}
	_, h := encodeDecode(t, m, Header{TI: 0x45, TIIsExtended: true, TIOriginator: true})
	assert.True(t, h.TIIsExtended)
	assert.Equal(t, byte(0x45), h.TI)
	assert.True(t, h.TIOriginator)
}

func TestDisconnectReleaseRoundTrip(t *testing.T) {
	d := &Disconnect{Cause: Cause{Location: CauseLocationPrivateServingLocal, Value: CauseUserBusy}}
	got, _ := encodeDecode(t, d, Header{TI: 1})
	assert.Equal(t, d, got)

	r := &Release{HaveCause: true, Cause: Cause{Value: CauseNormalCallClearing}}
	got, _ = encodeDecode(t, r, Header{TI: 1})
	assert.Equal(t, r, got)

	bare := &Release{}
	got, _ = encodeDecode(t, bare, Header{TI: 1})
	assert.Equal(t, bare, got)
}

func TestSSMessagesRoundTrip(t *testing.T) {
	f := &Facility{Components: []byte{0xa1, 0x02, 0x30, 0x00}}
	got, _ := encodeDecode(t, f, Header{TI: 0})
	assert.Equal(t, f, got)

	reg := &RegisterInvoke{Components: []byte{0xa1, 0x05}, HaveSSVersion: true, SSVersion: 1}
	got, _ = encodeDecode(t, reg, Header{TI: 0})
	assert.Equal(t, reg, got)

	rc := &SSReleaseComplete{HaveFacility: true, Components: []byte{0xa2, 0x01, 0x00}}
	got, _ = encodeDecode(t, rc, Header{TI: 0})
	assert.Equal(t, rc, got)
}

func TestDecodeDistinguishesUnknownFromMalformed(t *testing.T) {
	// Known PD, unknown MTI.
	bv := bitvector.NewFromBytes([]byte{0x05, 0xee})
	_, _, err := Decode(bv)
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	// PD with no registered decoder.
	bv = bitvector.NewFromBytes([]byte{0x0e, 0x01})
	_, _, err = Decode(bv)
	assert.ErrorIs(t, err, ErrUnsupportedMessage)

	// Known message, truncated body.
	bv = bitvector.NewFromBytes([]byte{0x05, 0x04})
	_, _, err = Decode(bv)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestSetupSkipsUnknownOptionalIE(t *testing.T) {
	m := &Setup{
		HaveCalledPartyBCDNumber: true,
		CalledPartyBCDNumber:     BCDNumber{Plan: NumberingPlanE164, Digits: "123"},
	}
	bv, err := Encode(m, Header{TI: 1})
	require.NoError(t, err)
	// Splice an unknown TLV (IEI 0x7d) ahead of nothing: append it to the
	// end, where the parser must skip it by its length byte.
	require.NoError(t, AppendTLV(bv, 0x7d, []byte{0x01, 0x02}))

	got, _, err := Decode(bv)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestMobileIdentityWriteParseWriteFixedPoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		digits := rapid.StringOfN(rapid.RuneFrom([]rune("0123456789")), 1, 15, -1).Draw(t, "digits")
		typ := rapid.SampledFrom([]MobileIdentityType{
			MobileIdentityIMSI, MobileIdentityIMEI, MobileIdentityIMEISV,
		}).Draw(t, "type")

		id := MobileIdentity{Type: typ, Digits: digits}
		first := EncodeMobileIdentityValue(id)
		parsed, err := ParseMobileIdentityValue(first)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		second := EncodeMobileIdentityValue(parsed)
		assert.Equal(t, first, second, "write -> parse -> write must be a fixed point")
	})
}

func TestMobileIdentityTMSIRoundTrip(t *testing.T) {
	id := MobileIdentity{Type: MobileIdentityTMSI, TMSI: 0x12345678}
	parsed, err := ParseMobileIdentityValue(EncodeMobileIdentityValue(id))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestLAIRoundTrip(t *testing.T) {
	for _, lai := range []LAI{
		{MCC: "310", MNC: "26", LAC: 0xfffe},
		{MCC: "262", MNC: "01", LAC: 1},
		{MCC: "001", MNC: "001", LAC: 0},
	} {
		bv := bitvector.New(0)
		require.NoError(t, WriteLAI(bv, lai))
		got, off, err := ParseLAI(bv, 0)
		require.NoError(t, err)
		assert.Equal(t, lai, got)
		assert.Equal(t, 40, off)
	}
}

func TestGMMMessageRoundTrip(t *testing.T) {
	m := GMMMessage{
		Header: GprsL3Header{PD: PDGPRSMobilityManagement, SkipIndicator: 0, MessageType: MTIAttachRequest},
		Body:   []byte{0x01, 0x02, 0x03},
	}
	parsed, err := ParseGMMMessage(m.Encode())
	require.NoError(t, err)
	assert.Equal(t, m, parsed)

	assert.Equal(t, "AttachRequest", GMMMessageName(MTIAttachRequest))
	assert.Equal(t, "", GMMMessageName(0x7e))
}

func TestNSUnitdataRoundTrip(t *testing.T) {
	n := NSUnitdata{NSPDUType: nsUnitdataPDUType, BVCI: 0x0102, BSSGPPDU: []byte{0x00, 0x11, 0x22}}
	parsed, err := ParseNSUnitdata(EncodeNSUnitdata(n))
	require.NoError(t, err)
	assert.Equal(t, n, parsed)

	_, err = ParseNSUnitdata([]byte{0x05, 0x00, 0x00, 0x00})
	assert.Error(t, err)
}

func TestL2BodyLengthMatchesEncodedBody(t *testing.T) {
	m := &LocationUpdatingReject{Cause: MMRejectIMSIUnknownInVLR}
	bv, err := Encode(m, Header{})
	require.NoError(t, err)
	assert.Equal(t, bv.SizeBytes()-2, L2BodyLength(m))
}
