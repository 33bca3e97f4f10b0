package layertx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tradelayer/tradelayerd/ledger"
)

// The byte-level grammar, version 0:
//
//	uint16 BE payload version | uint16 BE type code | type-specific fields
//
// Fixed integers are 8-byte big-endian, property IDs 4-byte big-endian,
// booleans one byte (0/1), strings uvarint length + UTF-8 bytes, lists
// uvarint count + elements. No trailing bytes allowed. Every deviation is a
// decode failure, never a protocol violation: independent decoders must
// reject exactly the same set of encodings.

// ErrDecode wraps every decode failure
var ErrDecode = errors.New("payload decode failed")

func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

type rdr struct {
	buf *bytes.Reader
}

func (r *rdr) u16() (uint16, error) {
	var b [2]byte
	if n, _ := r.buf.Read(b[:]); n != 2 {
		return 0, decodeErr("short payload")
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (r *rdr) u32() (uint32, error) {
	var b [4]byte
	if n, _ := r.buf.Read(b[:]); n != 4 {
		return 0, decodeErr("short payload")
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (r *rdr) u64() (uint64, error) {
	var b [8]byte
	if n, _ := r.buf.Read(b[:]); n != 8 {
		return 0, decodeErr("short payload")
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func (r *rdr) amount() (ledger.Amount, error) {
	v, err := r.u64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt64 {
		return 0, decodeErr("amount out of range")
	}
	return ledger.Amount(v), nil
}

func (r *rdr) byte1() (byte, error) {
	b, err := r.buf.ReadByte()
	if err != nil {
		return 0, decodeErr("short payload")
	}
	return b, nil
}

func (r *rdr) str() (string, error) {
	n, err := binary.ReadUvarint(r.buf)
	if err != nil {
		return "", decodeErr("bad string length")
	}
	if n > uint64(r.buf.Len()) {
		return "", decodeErr("string length exceeds payload")
	}
	b := make([]byte, n)
	_, _ = r.buf.Read(b)
	return string(b), nil
}

func (r *rdr) u64List() ([]uint64, error) {
	n, err := binary.ReadUvarint(r.buf)
	if err != nil {
		return nil, decodeErr("bad list length")
	}
	if n*8 > uint64(r.buf.Len()) {
		return nil, decodeErr("list length exceeds payload")
	}
	ret := make([]uint64, n)
	for i := range ret {
		if ret[i], err = r.u64(); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// DecodePayload turns raw payload bytes into a typed command, or a failure
// wrapped in ErrDecode. Decode failures are non-fatal to block processing
func DecodePayload(payload []byte) (Command, error) {
	r := &rdr{buf: bytes.NewReader(payload)}
	ver, err := r.u16()
	if err != nil {
		return nil, err
	}
	if ver != PayloadVersion {
		return nil, decodeErr("unsupported payload version %d", ver)
	}
	code, err := r.u16()
	if err != nil {
		return nil, err
	}

	var cmd Command
	switch code {
	case TypeIssuanceFixed:
		cmd, err = decodeIssuance(r)
	case TypeSimpleSend:
		c := &SimpleSend{}
		c.Property, c.Amount, err = propertyAndAmount(r)
		cmd = c
	case TypeSendVesting:
		c := &SendVesting{}
		c.Amount, err = r.amount()
		cmd = c
	case TypeAttestation:
		c := &Attestation{}
		c.KYCID, err = r.u64()
		cmd = c
	case TypeDExOffer:
		cmd, err = decodeDExOffer(r)
	case TypeDExAccept:
		c := &DExAccept{}
		c.Property, c.Amount, err = propertyAndAmount(r)
		cmd = c
	case TypeDExPayment:
		c := &DExPayment{}
		c.Amount, err = r.amount()
		cmd = c
	case TypeChannelCreate:
		c := &ChannelCreate{}
		var second string
		if second, err = r.str(); err == nil {
			c.Second = ledger.Address(second)
			c.Window, err = r.u64()
		}
		cmd = c
	case TypeChannelCommit:
		c := &ChannelCommit{}
		c.Property, c.Amount, err = propertyAndAmount(r)
		cmd = c
	default:
		return nil, decodeErr("unknown type code %d", code)
	}
	if err != nil {
		return nil, err
	}
	if r.buf.Len() != 0 {
		return nil, decodeErr("%d trailing bytes", r.buf.Len())
	}
	return cmd, nil
}

func propertyAndAmount(r *rdr) (ledger.PropertyID, ledger.Amount, error) {
	pid, err := r.u32()
	if err != nil {
		return 0, 0, err
	}
	a, err := r.amount()
	return ledger.PropertyID(pid), a, err
}

func decodeIssuance(r *rdr) (Command, error) {
	c := &IssuanceFixed{}
	b, err := r.byte1()
	if err != nil {
		return nil, err
	}
	if b > 1 {
		return nil, decodeErr("bad boolean %d", b)
	}
	c.Divisible = b == 1
	for _, dst := range []*string{&c.Category, &c.Subcategory, &c.Name, &c.Data, &c.URL} {
		if *dst, err = r.str(); err != nil {
			return nil, err
		}
	}
	if c.Amount, err = r.amount(); err != nil {
		return nil, err
	}
	if c.KYCAllowed, err = r.u64List(); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeDExOffer(r *rdr) (Command, error) {
	c := &DExOffer{}
	pid, err := r.u32()
	if err != nil {
		return nil, err
	}
	c.Property = ledger.PropertyID(pid)
	if c.AmountForSale, err = r.amount(); err != nil {
		return nil, err
	}
	if c.AmountDesired, err = r.amount(); err != nil {
		return nil, err
	}
	if c.PaymentWindow, err = r.u64(); err != nil {
		return nil, err
	}
	if c.MinFee, err = r.amount(); err != nil {
		return nil, err
	}
	if c.Option, err = r.byte1(); err != nil {
		return nil, err
	}
	if c.SubAction, err = r.byte1(); err != nil {
		return nil, err
	}
	if c.SubAction < DExSubActionNew || c.SubAction > DExSubActionCancel {
		return nil, decodeErr("bad DEx sub-action %d", c.SubAction)
	}
	return c, nil
}
