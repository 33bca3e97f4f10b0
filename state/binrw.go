package state

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/tradelayer/tradelayerd/ledger"
)

// fixed-width big-endian primitives of the canonical state encoding

type binWriter struct {
	buf bytes.Buffer
}

func (w *binWriter) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *binWriter) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *binWriter) amount(a ledger.Amount) {
	w.u64(uint64(a))
}

func (w *binWriter) byte1(b byte) {
	w.buf.WriteByte(b)
}

func (w *binWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *binWriter) addr(a ledger.Address) {
	w.str(string(a))
}

type binReader struct {
	buf *bytes.Reader
}

func (r *binReader) u32() (uint32, error) {
	var b [4]byte
	if n, _ := r.buf.Read(b[:]); n != 4 {
		return 0, fmt.Errorf("state decode: short data")
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (r *binReader) u64() (uint64, error) {
	var b [8]byte
	if n, _ := r.buf.Read(b[:]); n != 8 {
		return 0, fmt.Errorf("state decode: short data")
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func (r *binReader) amount() (ledger.Amount, error) {
	v, err := r.u64()
	return ledger.Amount(v), err
}

func (r *binReader) byte1() (byte, error) {
	b, err := r.buf.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("state decode: short data")
	}
	return b, nil
}

func (r *binReader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(r.buf.Len()) {
		return "", fmt.Errorf("state decode: string length %d exceeds data", n)
	}
	b := make([]byte, n)
	_, _ = r.buf.Read(b)
	return string(b), nil
}

func (r *binReader) addr() (ledger.Address, error) {
	s, err := r.str()
	return ledger.Address(s), err
}
