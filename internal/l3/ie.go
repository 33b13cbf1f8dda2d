package l3

import (
	"fmt"

	"github.com/openbts-go/btscore/internal/bitvector"
)

// This file implements the GSM 04.07 §11.2.1.1.4 information-element
// formats (V, LV, TV, TLV) as free functions over a byte cursor: no
// inheritance, just cursor + buffer in, cursor + value out. Every
// *Parse* function is non-destructive: on a TLV/TV mismatch it returns
// present=false and leaves bitOffset where it found it, so a caller can
// always try the next optional IE.

// PeekByte reads one byte at bitOffset without consuming it.
func PeekByte(bv *bitvector.BitVector, bitOffset int) (byte, error) {
	return bv.ReadByte(bitOffset)
}

// ParseV reads a fixed-length mandatory value IE of nbits (type-1 half-
// octet fields pass nbits=4).
func ParseV(bv *bitvector.BitVector, bitOffset, nbits int) (uint64, int, error) {
	v, err := bv.ReadField(bitOffset, nbits)
	if err != nil {
		return 0, bitOffset, fmt.Errorf("%w: V IE at bit %d: %v", ErrTruncated, bitOffset, err)
	}
	return v, bitOffset + nbits, nil
}

// ParseLV reads a length-value IE: one length byte then that many value
// bytes.
func ParseLV(bv *bitvector.BitVector, bitOffset int) ([]byte, int, error) {
	length, err := PeekByte(bv, bitOffset)
	if err != nil {
		return nil, bitOffset, fmt.Errorf("%w: LV length byte: %v", ErrTruncated, err)
	}
	valueOff := bitOffset + 8
	value, err := bv.ReadBytes(valueOff, int(length))
	if err != nil {
		return nil, bitOffset, fmt.Errorf("%w: LV value (len=%d): %v", ErrMalformedLength, length, err)
	}
	return value, valueOff + int(length)*8, nil
}

// ParseTV1 parses a type-1 (half-octet) tag-value IE: the upper nibble
// is the IEI, the lower nibble the value, packed into a single byte.
// present is false (and bitOffset unchanged) when the IEI doesn't match.
func ParseTV1(bv *bitvector.BitVector, bitOffset int, iei byte) (value byte, present bool, newOffset int, err error) {
	b, err := PeekByte(bv, bitOffset)
	if err != nil {
		return 0, false, bitOffset, nil // truncated optional tail: simply absent
	}
	if b>>4 != iei&0xf {
		return 0, false, bitOffset, nil
	}
	return b & 0xf, true, bitOffset + 8, nil
}

// ParseTV parses a type-3 tag-value IE: one IEI byte followed by a
// fixed-length value of valueBytes octets.
func ParseTV(bv *bitvector.BitVector, bitOffset int, iei byte, valueBytes int) (value []byte, present bool, newOffset int, err error) {
	b, err := PeekByte(bv, bitOffset)
	if err != nil {
		return nil, false, bitOffset, nil
	}
	if b != iei {
		return nil, false, bitOffset, nil
	}
	value, err = bv.ReadBytes(bitOffset+8, valueBytes)
	if err != nil {
		return nil, false, bitOffset, fmt.Errorf("%w: TV 0x%x value: %v", ErrTruncated, iei, err)
	}
	return value, true, bitOffset + 8 + valueBytes*8, nil
}

// ParseTLV parses a tag-length-value IE. present is false (cursor
// unchanged) when the leading byte doesn't match iei, which is how
// callers skip unknown/absent optional IEs.
func ParseTLV(bv *bitvector.BitVector, bitOffset int, iei byte) (value []byte, present bool, newOffset int, err error) {
	b, err := PeekByte(bv, bitOffset)
	if err != nil {
		return nil, false, bitOffset, nil
	}
	if b != iei {
		return nil, false, bitOffset, nil
	}
	length, err := PeekByte(bv, bitOffset+8)
	if err != nil {
		return nil, false, bitOffset, fmt.Errorf("%w: TLV 0x%x length byte: %v", ErrTruncated, iei, err)
	}
	value, err = bv.ReadBytes(bitOffset+16, int(length))
	if err != nil {
		return nil, false, bitOffset, fmt.Errorf("%w: TLV 0x%x value (len=%d): %v", ErrMalformedLength, iei, length, err)
	}
	return value, true, bitOffset + 16 + int(length)*8, nil
}

// SkipUnknownTLV advances past a TLV IE at bitOffset without
// interpreting it, using only its length byte, so unrecognised optional
// IEIs are tolerated rather than rejected.
func SkipUnknownTLV(bv *bitvector.BitVector, bitOffset int) (int, error) {
	length, err := PeekByte(bv, bitOffset+8)
	if err != nil {
		return bitOffset, fmt.Errorf("%w: skip TLV length byte: %v", ErrTruncated, err)
	}
	return bitOffset + 16 + int(length)*8, nil
}

// AppendV appends a fixed-length mandatory value.
func AppendV(bv *bitvector.BitVector, value uint64, nbits int) error {
	return bv.AppendField(value, nbits)
}

// AppendLV appends a length-value IE.
func AppendLV(bv *bitvector.BitVector, value []byte) error {
	if len(value) > 255 {
		return fmt.Errorf("l3: LV value too long (%d bytes)", len(value))
	}
	if err := bv.AppendByte(byte(len(value))); err != nil {
		return err
	}
	return bv.AppendBytes(value)
}

// AppendTV1 appends a type-1 half-octet tag-value IE.
func AppendTV1(bv *bitvector.BitVector, iei, value byte) error {
	return bv.AppendByte((iei&0xf)<<4 | (value & 0xf))
}

// AppendTV appends a type-3 tag-value IE.
func AppendTV(bv *bitvector.BitVector, iei byte, value []byte) error {
	if err := bv.AppendByte(iei); err != nil {
		return err
	}
	return bv.AppendBytes(value)
}

// AppendTLV appends a tag-length-value IE.
func AppendTLV(bv *bitvector.BitVector, iei byte, value []byte) error {
	if len(value) > 255 {
		return fmt.Errorf("l3: TLV value too long (%d bytes)", len(value))
	}
	if err := bv.AppendByte(iei); err != nil {
		return err
	}
	if err := bv.AppendByte(byte(len(value))); err != nil {
		return err
	}
	return bv.AppendBytes(value)
}

// MobileIdentityType is the low 3 bits of a Mobile Identity's first
// byte (GSM 04.08 §10.5.1.4).
type MobileIdentityType byte

const (
	MobileIdentityNone   MobileIdentityType = 0
	MobileIdentityIMSI   MobileIdentityType = 1
	MobileIdentityIMEI   MobileIdentityType = 2
	MobileIdentityIMEISV MobileIdentityType = 3
	MobileIdentityTMSI   MobileIdentityType = 4
)

// MobileIdentity is a bit-exact BCD-digit identity: first byte
// (digit1<<4)|(oddFlag<<3)|type, subsequent bytes pack pairs of BCD
// digits with the low digit in the high nibble; TMSI is a flat 32-bit
// big-endian field.
type MobileIdentity struct {
	Type   MobileIdentityType
	Digits string // decimal digit string for IMSI/IMEI/IMEISV; unused for TMSI
	TMSI   uint32 // valid when Type == MobileIdentityTMSI
}

// EncodeMobileIdentityValue renders id's raw content octets (type
// nibble + BCD digits, or the 5-octet TMSI form) with no outer length
// byte, for contexts where an enclosing TLV/LV already supplies one.
func EncodeMobileIdentityValue(id MobileIdentity) []byte {
	var body []byte
	if id.Type == MobileIdentityTMSI {
		body = make([]byte, 5)
		body[0] = 0xf0 | byte(MobileIdentityTMSI) // no spare digit: digit1=0xf filler, oddFlag=0 (even), so the first octet is 0xf4
		body[1] = byte(id.TMSI >> 24)
		body[2] = byte(id.TMSI >> 16)
		body[3] = byte(id.TMSI >> 8)
		body[4] = byte(id.TMSI)
	} else {
		digits := id.Digits
		odd := len(digits)%2 == 1
		n := len(digits)
		remaining := n - 1
		if remaining < 0 {
			remaining = 0
		}
		nbytes := 1 + (remaining+1)/2
		body = make([]byte, nbytes)
		oddBit := byte(0)
		if odd {
			oddBit = 1
		}
		firstDigit := byte(0xf)
		if n > 0 {
			firstDigit = bcdDigit(digits[0])
		}
		body[0] = firstDigit<<4 | oddBit<<3 | byte(id.Type)
		// Remaining digits pack two per byte, the earlier digit of each
		// pair in the low nibble (GSM 04.08 §10.5.1.4 octet 4 onward).
		rest := ""
		if n > 0 {
			rest = digits[1:]
		}
		for i := 0; i < len(rest); i += 2 {
			lo := bcdDigit(rest[i])
			hi := byte(0xf)
			if i+1 < len(rest) {
				hi = bcdDigit(rest[i+1])
			}
			body[1+i/2] = hi<<4 | lo
		}
	}
	return body
}

// WriteMobileIdentity appends the LV-wrapped Mobile Identity IE, the
// form used when Mobile Identity is its own top-level IE (CM Service
// Request, Identity Response, Location Updating Request).
func WriteMobileIdentity(bv *bitvector.BitVector, id MobileIdentity) error {
	return AppendLV(bv, EncodeMobileIdentityValue(id))
}

// ParseMobileIdentityValue parses id's raw content octets (see
// EncodeMobileIdentityValue) with no outer length byte.
func ParseMobileIdentityValue(body []byte) (MobileIdentity, error) {
	if len(body) == 0 {
		return MobileIdentity{}, fmt.Errorf("%w: Mobile Identity", ErrMandatoryIEMissing)
	}
	typ := MobileIdentityType(body[0] & 0x7)
	firstDigit := body[0] >> 4

	if typ == MobileIdentityTMSI {
		if len(body) != 5 {
			return MobileIdentity{}, fmt.Errorf("%w: TMSI identity must be 5 octets", ErrMalformedLength)
		}
		tmsi := uint32(body[1])<<24 | uint32(body[2])<<16 | uint32(body[3])<<8 | uint32(body[4])
		return MobileIdentity{Type: typ, TMSI: tmsi}, nil
	}

	digits := ""
	if firstDigit != 0xf {
		digits += digitChar(firstDigit)
	}
	for _, b := range body[1:] {
		lo := b & 0xf
		hi := b >> 4
		digits += digitChar(lo)
		if hi != 0xf {
			digits += digitChar(hi)
		}
	}
	return MobileIdentity{Type: typ, Digits: digits}, nil
}

// ParseMobileIdentity parses the LV-wrapped Mobile Identity IE at
// bitOffset.
func ParseMobileIdentity(bv *bitvector.BitVector, bitOffset int) (MobileIdentity, int, error) {
	body, newOffset, err := ParseLV(bv, bitOffset)
	if err != nil {
		return MobileIdentity{}, bitOffset, err
	}
	id, err := ParseMobileIdentityValue(body)
	if err != nil {
		return MobileIdentity{}, bitOffset, err
	}
	return id, newOffset, nil
}

func bcdDigit(c byte) byte {
	if c >= '0' && c <= '9' {
		return c - '0'
	}
	return 0xf
}

func digitChar(d byte) string {
	return string(rune('0' + d))
}

// EncodeMobileIdentityBytes renders id as its 1-length-byte + value wire
// form, for embedding inside a larger message body via a MsgSink's
// WriteBytes.
func EncodeMobileIdentityBytes(id MobileIdentity) []byte {
	bv := bitvector.New(0)
	_ = WriteMobileIdentity(bv, id)
	return bv.Bytes()
}

// EncodeLAIBytes renders lai as its 5-octet wire form.
func EncodeLAIBytes(lai LAI) []byte {
	bv := bitvector.New(0)
	_ = WriteLAI(bv, lai)
	return bv.Bytes()
}

// AppendTLVBytes renders a complete tag-length-value byte run (IEI,
// length, value) for splicing into a larger body via WriteBytes.
func AppendTLVBytes(iei byte, value []byte) []byte {
	bv := bitvector.New(0)
	_ = AppendTLV(bv, iei, value)
	return bv.Bytes()
}

// LAI is the Location Area Identification (GSM 04.08 §10.5.1.3): 5
// octets `MCC2|MCC1, MNC3|MCC3, MNC2|MNC1, LAC(16)`.
type LAI struct {
	MCC string // 3 digits
	MNC string // 2 or 3 digits
	LAC uint16
}

// WriteLAI appends the 5-octet LAI.
func WriteLAI(bv *bitvector.BitVector, lai LAI) error {
	mcc := [3]byte{'0', '0', '0'}
	copy(mcc[:], lai.MCC)

	mncDigit3 := byte(0xf) // 2-digit MNC leaves the third nibble as filler 1111
	if len(lai.MNC) == 3 {
		mncDigit3 = bcdDigit(lai.MNC[2])
	}
	mnc01 := [2]byte{'0', '0'}
	copy(mnc01[:], lai.MNC)

	b0 := bcdDigit(mcc[1])<<4 | bcdDigit(mcc[0])
	b1 := mncDigit3<<4 | bcdDigit(mcc[2])
	b2 := bcdDigit(mnc01[1])<<4 | bcdDigit(mnc01[0])
	if err := bv.AppendByte(b0); err != nil {
		return err
	}
	if err := bv.AppendByte(b1); err != nil {
		return err
	}
	if err := bv.AppendByte(b2); err != nil {
		return err
	}
	return bv.AppendU16BE(lai.LAC)
}

// ParseLAI parses the 5-octet LAI at bitOffset.
func ParseLAI(bv *bitvector.BitVector, bitOffset int) (LAI, int, error) {
	b, err := bv.ReadBytes(bitOffset, 5)
	if err != nil {
		return LAI{}, bitOffset, fmt.Errorf("%w: LAI: %v", ErrTruncated, err)
	}
	mccDigit := func(nibble byte) string {
		if nibble == 0xf {
			return ""
		}
		return digitChar(nibble)
	}
	mcc := digitChar(b[0]&0xf) + digitChar(b[0]>>4) + digitChar(b[1]&0xf)
	mncThird := mccDigit(b[1] >> 4)
	mnc := digitChar(b[2]&0xf) + digitChar(b[2]>>4) + mncThird
	lac := uint16(b[3])<<8 | uint16(b[4])
	return LAI{MCC: mcc, MNC: mnc, LAC: lac}, bitOffset + 40, nil
}
