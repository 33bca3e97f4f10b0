package state

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gammazero/deque"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/util"
)

const HashLength = sha256.Size

// Bytes is the canonical serialization of the full state: every table in a
// fixed total order (ids ascending, addresses lexicographic, accepts in FIFO
// order). Two stores with equal content produce byte-identical output, which
// makes the serialization both the consensus-hash input and the persisted
// snapshot format
func (s *Store) Bytes() []byte {
	w := &binWriter{}

	w.u64(s.height)
	w.u32(uint32(s.nextPropertyID))
	w.u64(uint64(s.vestedNumerator))
	w.u64(s.lastVestingBlock)

	// properties, id ascending
	propIDs := util.SortKeys(s.properties, func(k1, k2 ledger.PropertyID) bool { return k1 < k2 })
	w.u32(uint32(len(propIDs)))
	for _, id := range propIDs {
		p := s.properties[id]
		w.u32(uint32(p.ID))
		w.addr(p.Issuer)
		if p.Divisible {
			w.byte1(1)
		} else {
			w.byte1(0)
		}
		w.str(p.Category)
		w.str(p.Subcategory)
		w.str(p.Name)
		w.str(p.Data)
		w.str(p.URL)
		w.amount(p.Total)
		w.u32(uint32(len(p.KYCAllowed)))
		for _, kyc := range p.KYCAllowed {
			w.u64(kyc)
		}
		w.u64(p.CreationBlock)
	}

	// balances, (address, property) ascending; all-zero entries are not
	// state and never serialized
	balKeys := util.SortKeys(s.balances, func(k1, k2 BalanceKey) bool {
		if k1.Address != k2.Address {
			return k1.Address < k2.Address
		}
		return k1.Property < k2.Property
	})
	nonZero := 0
	for _, k := range balKeys {
		if !s.balances[k].isZero() {
			nonZero++
		}
	}
	w.u32(uint32(nonZero))
	for _, k := range balKeys {
		b := s.balances[k]
		if b.isZero() {
			continue
		}
		w.addr(k.Address)
		w.u32(uint32(k.Property))
		w.amount(b.Available)
		w.amount(b.Reserved)
		w.amount(b.Unvested)
	}

	// attestations, insertion order (history is state)
	w.u32(uint32(len(s.attestations)))
	for _, a := range s.attestations {
		w.addr(a.Sender)
		w.addr(a.Receiver)
		w.u64(a.KYCID)
		w.u64(a.Block)
	}

	// offers, (seller, property) ascending, accepts FIFO
	for _, o := range writeLen(w, s.AllOffers()) {
		w.addr(o.Seller)
		w.u32(uint32(o.Property))
		w.amount(o.AmountAvailable)
		w.amount(o.AmountOffered)
		w.amount(o.Desired)
		w.amount(o.UnitPrice)
		w.amount(o.MinFee)
		w.byte1(o.Option)
		if o.Cancelled {
			w.byte1(1)
		} else {
			w.byte1(0)
		}
		w.u64(o.PaymentWindow)
		w.u64(o.ExpiryBlock)
		w.u32(uint32(o.Accepts.Len()))
		for i := 0; i < o.Accepts.Len(); i++ {
			a := o.Accepts.At(i)
			w.addr(a.Buyer)
			w.amount(a.Amount)
			w.amount(a.ToPay)
			w.u64(a.Block)
			w.u64(a.ExpiryBlock)
		}
	}

	// channels by multisig ascending, commits in insertion order
	msigs := util.SortKeys(s.channels, func(a1, a2 ledger.Address) bool { return a1 < a2 })
	w.u32(uint32(len(msigs)))
	for _, msig := range msigs {
		ch := s.channels[msig]
		w.addr(ch.Multisig)
		w.addr(ch.First)
		w.addr(ch.Second)
		w.u64(ch.ExpiryBlock)
		w.u32(uint32(len(ch.Commits)))
		for _, c := range ch.Commits {
			w.addr(c.Sender)
			w.u32(uint32(c.Property))
			w.amount(c.Amount)
			w.u64(c.Block)
		}
	}

	// vesting positions, address ascending; zero accrual is the default
	// and carries no information
	vestAddrs := util.SortKeys(s.vesting, func(a1, a2 ledger.Address) bool { return a1 < a2 })
	accruing := 0
	for _, a := range vestAddrs {
		if s.vesting[a].Accrued != 0 {
			accruing++
		}
	}
	w.u32(uint32(accruing))
	for _, a := range vestAddrs {
		if s.vesting[a].Accrued == 0 {
			continue
		}
		w.addr(a)
		w.amount(s.vesting[a].Accrued)
	}

	// volume series, property then block ascending
	volProps := util.SortKeys(s.volume, func(k1, k2 ledger.PropertyID) bool { return k1 < k2 })
	w.u32(uint32(len(volProps)))
	for _, pid := range volProps {
		byBlock := s.volume[pid]
		w.u32(uint32(pid))
		blocks := util.SortKeys(byBlock, func(b1, b2 uint64) bool { return b1 < b2 })
		w.u32(uint32(len(blocks)))
		for _, b := range blocks {
			w.u64(b)
			w.amount(byBlock[b])
		}
	}

	return w.buf.Bytes()
}

func writeLen(w *binWriter, offers []*Offer) []*Offer {
	w.u32(uint32(len(offers)))
	return offers
}

func (b *Balance) isZero() bool {
	return b.Available == 0 && b.Reserved == 0 && b.Unvested == 0
}

// FoldHash folds the canonical serialization into the rolling consensus
// hash: h' = SHA256(h || canonical bytes)
func (s *Store) FoldHash() {
	h := sha256.New()
	h.Write(s.hash[:])
	h.Write(s.Bytes())
	copy(s.hash[:], h.Sum(nil))
}

func (s *Store) Hash() [HashLength]byte {
	return s.hash
}

func (s *Store) HashHex() string {
	return hex.EncodeToString(s.hash[:])
}

func (s *Store) setHash(h [HashLength]byte) {
	s.hash = h
}

// StoreFromBytes is the inverse of Bytes. The consensus hash is not part of
// the canonical bytes and is restored by the caller
func StoreFromBytes(data []byte) (*Store, error) {
	r := &binReader{buf: bytes.NewReader(data)}
	s := NewStore()
	var err error

	if s.height, err = r.u64(); err != nil {
		return nil, err
	}
	var u32 uint32
	if u32, err = r.u32(); err != nil {
		return nil, err
	}
	s.nextPropertyID = ledger.PropertyID(u32)
	var u64 uint64
	if u64, err = r.u64(); err != nil {
		return nil, err
	}
	s.vestedNumerator = int64(u64)
	if s.lastVestingBlock, err = r.u64(); err != nil {
		return nil, err
	}

	if err = s.readProperties(r); err != nil {
		return nil, err
	}
	if err = s.readBalances(r); err != nil {
		return nil, err
	}
	if err = s.readAttestations(r); err != nil {
		return nil, err
	}
	if err = s.readOffers(r); err != nil {
		return nil, err
	}
	if err = s.readChannels(r); err != nil {
		return nil, err
	}
	if err = s.readVesting(r); err != nil {
		return nil, err
	}
	if err = s.readVolume(r); err != nil {
		return nil, err
	}
	if r.buf.Len() != 0 {
		return nil, fmt.Errorf("state decode: %d trailing bytes", r.buf.Len())
	}
	return s, nil
}

func (s *Store) readProperties(r *binReader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for ; n > 0; n-- {
		p := &Property{}
		var id uint32
		if id, err = r.u32(); err != nil {
			return err
		}
		p.ID = ledger.PropertyID(id)
		if p.Issuer, err = r.addr(); err != nil {
			return err
		}
		var b byte
		if b, err = r.byte1(); err != nil {
			return err
		}
		p.Divisible = b == 1
		for _, dst := range []*string{&p.Category, &p.Subcategory, &p.Name, &p.Data, &p.URL} {
			if *dst, err = r.str(); err != nil {
				return err
			}
		}
		if p.Total, err = r.amount(); err != nil {
			return err
		}
		var nKYC uint32
		if nKYC, err = r.u32(); err != nil {
			return err
		}
		p.KYCAllowed = make([]uint64, nKYC)
		for i := range p.KYCAllowed {
			if p.KYCAllowed[i], err = r.u64(); err != nil {
				return err
			}
		}
		if p.CreationBlock, err = r.u64(); err != nil {
			return err
		}
		s.properties[p.ID] = p
	}
	return nil
}

func (s *Store) readBalances(r *binReader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for ; n > 0; n-- {
		var k BalanceKey
		if k.Address, err = r.addr(); err != nil {
			return err
		}
		var pid uint32
		if pid, err = r.u32(); err != nil {
			return err
		}
		k.Property = ledger.PropertyID(pid)
		b := &Balance{}
		if b.Available, err = r.amount(); err != nil {
			return err
		}
		if b.Reserved, err = r.amount(); err != nil {
			return err
		}
		if b.Unvested, err = r.amount(); err != nil {
			return err
		}
		s.balances[k] = b
	}
	return nil
}

func (s *Store) readAttestations(r *binReader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for ; n > 0; n-- {
		a := &AttestationRecord{}
		if a.Sender, err = r.addr(); err != nil {
			return err
		}
		if a.Receiver, err = r.addr(); err != nil {
			return err
		}
		if a.KYCID, err = r.u64(); err != nil {
			return err
		}
		if a.Block, err = r.u64(); err != nil {
			return err
		}
		s.attestations = append(s.attestations, a)
	}
	return nil
}

func (s *Store) readOffers(r *binReader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for ; n > 0; n-- {
		o := &Offer{Accepts: &deque.Deque[*Accept]{}}
		if o.Seller, err = r.addr(); err != nil {
			return err
		}
		var pid uint32
		if pid, err = r.u32(); err != nil {
			return err
		}
		o.Property = ledger.PropertyID(pid)
		if o.AmountAvailable, err = r.amount(); err != nil {
			return err
		}
		if o.AmountOffered, err = r.amount(); err != nil {
			return err
		}
		if o.Desired, err = r.amount(); err != nil {
			return err
		}
		if o.UnitPrice, err = r.amount(); err != nil {
			return err
		}
		if o.MinFee, err = r.amount(); err != nil {
			return err
		}
		if o.Option, err = r.byte1(); err != nil {
			return err
		}
		var cancelled byte
		if cancelled, err = r.byte1(); err != nil {
			return err
		}
		o.Cancelled = cancelled == 1
		if o.PaymentWindow, err = r.u64(); err != nil {
			return err
		}
		if o.ExpiryBlock, err = r.u64(); err != nil {
			return err
		}
		var nAcc uint32
		if nAcc, err = r.u32(); err != nil {
			return err
		}
		for ; nAcc > 0; nAcc-- {
			a := &Accept{}
			if a.Buyer, err = r.addr(); err != nil {
				return err
			}
			if a.Amount, err = r.amount(); err != nil {
				return err
			}
			if a.ToPay, err = r.amount(); err != nil {
				return err
			}
			if a.Block, err = r.u64(); err != nil {
				return err
			}
			if a.ExpiryBlock, err = r.u64(); err != nil {
				return err
			}
			o.Accepts.PushBack(a)
		}
		s.offers[OfferKey{o.Seller, o.Property}] = o
	}
	return nil
}

func (s *Store) readChannels(r *binReader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for ; n > 0; n-- {
		ch := &Channel{Commits: make([]*Commit, 0)}
		if ch.Multisig, err = r.addr(); err != nil {
			return err
		}
		if ch.First, err = r.addr(); err != nil {
			return err
		}
		if ch.Second, err = r.addr(); err != nil {
			return err
		}
		if ch.ExpiryBlock, err = r.u64(); err != nil {
			return err
		}
		var nCom uint32
		if nCom, err = r.u32(); err != nil {
			return err
		}
		for ; nCom > 0; nCom-- {
			c := &Commit{}
			if c.Sender, err = r.addr(); err != nil {
				return err
			}
			var pid uint32
			if pid, err = r.u32(); err != nil {
				return err
			}
			c.Property = ledger.PropertyID(pid)
			if c.Amount, err = r.amount(); err != nil {
				return err
			}
			if c.Block, err = r.u64(); err != nil {
				return err
			}
			ch.Commits = append(ch.Commits, c)
		}
		s.channels[ch.Multisig] = ch
	}
	return nil
}

func (s *Store) readVesting(r *binReader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for ; n > 0; n-- {
		var addr ledger.Address
		if addr, err = r.addr(); err != nil {
			return err
		}
		p := &VestingPosition{}
		if p.Accrued, err = r.amount(); err != nil {
			return err
		}
		s.vesting[addr] = p
	}
	return nil
}

func (s *Store) readVolume(r *binReader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for ; n > 0; n-- {
		var pid uint32
		if pid, err = r.u32(); err != nil {
			return err
		}
		byBlock := make(map[uint64]ledger.Amount)
		var nBlocks uint32
		if nBlocks, err = r.u32(); err != nil {
			return err
		}
		for ; nBlocks > 0; nBlocks-- {
			var block uint64
			if block, err = r.u64(); err != nil {
				return err
			}
			if byBlock[block], err = r.amount(); err != nil {
				return err
			}
		}
		s.volume[ledger.PropertyID(pid)] = byBlock
	}
	return nil
}
