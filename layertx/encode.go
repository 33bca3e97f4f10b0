package layertx

import (
	"bytes"
	"encoding/binary"

	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/util"
)

type wtr struct {
	buf bytes.Buffer
}

func (w *wtr) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *wtr) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *wtr) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *wtr) amount(a ledger.Amount) {
	util.Assertf(a >= 0, "encode: negative amount")
	w.u64(uint64(a))
}

func (w *wtr) byte1(b byte) {
	w.buf.WriteByte(b)
}

func (w *wtr) str(s string) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], uint64(len(s)))
	w.buf.Write(b[:n])
	w.buf.WriteString(s)
}

func (w *wtr) u64List(l []uint64) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], uint64(len(l)))
	w.buf.Write(b[:n])
	for _, v := range l {
		w.u64(v)
	}
}

// EncodePayload is the inverse of DecodePayload. It is used by tests and by
// clients assembling carrier transactions
func EncodePayload(cmd Command) []byte {
	w := &wtr{}
	w.u16(PayloadVersion)
	w.u16(cmd.Type())

	switch c := cmd.(type) {
	case *IssuanceFixed:
		if c.Divisible {
			w.byte1(1)
		} else {
			w.byte1(0)
		}
		for _, s := range []string{c.Category, c.Subcategory, c.Name, c.Data, c.URL} {
			w.str(s)
		}
		w.amount(c.Amount)
		w.u64List(c.KYCAllowed)
	case *SimpleSend:
		w.u32(uint32(c.Property))
		w.amount(c.Amount)
	case *SendVesting:
		w.amount(c.Amount)
	case *Attestation:
		w.u64(c.KYCID)
	case *DExOffer:
		w.u32(uint32(c.Property))
		w.amount(c.AmountForSale)
		w.amount(c.AmountDesired)
		w.u64(c.PaymentWindow)
		w.amount(c.MinFee)
		w.byte1(c.Option)
		w.byte1(c.SubAction)
	case *DExAccept:
		w.u32(uint32(c.Property))
		w.amount(c.Amount)
	case *DExPayment:
		w.amount(c.Amount)
	case *ChannelCreate:
		w.str(string(c.Second))
		w.u64(c.Window)
	case *ChannelCommit:
		w.u32(uint32(c.Property))
		w.amount(c.Amount)
	default:
		util.Panicf("EncodePayload: unknown command type %T", cmd)
	}
	return w.buf.Bytes()
}
