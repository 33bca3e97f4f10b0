package state

import (
	"errors"

	"github.com/gammazero/deque"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/util"
)

// The Store owns every table of the layer state. No component keeps its own
// copy of ledger data: all reads and mutations go through the store, and the
// engine is the only writer.

// validation taxonomy surfaced to callers; none of these mutates state
var (
	ErrInvalidAmount           = errors.New("InvalidAmount")
	ErrInsufficientFunds       = errors.New("InsufficientFunds")
	ErrUnknownProperty         = errors.New("UnknownProperty")
	ErrInsufficientOfferAmount = errors.New("InsufficientOfferAmount")
	ErrNoMatchingAccept        = errors.New("NoMatchingAccept")
	ErrChannelExists           = errors.New("ChannelExists")
	ErrUnknownChannel          = errors.New("UnknownChannel")
	ErrUnknownOffer            = errors.New("UnknownOffer")
	ErrOfferExists             = errors.New("OfferExists")
	ErrVestingLocked           = errors.New("VestingLocked")
)

type Bucket byte

const (
	BucketAvailable = Bucket(iota)
	BucketReserved
	BucketUnvested
)

type (
	BalanceKey struct {
		Address  ledger.Address
		Property ledger.PropertyID
	}

	// Balance buckets are mutually exclusive; only available is transferable
	Balance struct {
		Available ledger.Amount
		Reserved  ledger.Amount
		Unvested  ledger.Amount
	}

	Property struct {
		ID            ledger.PropertyID
		Issuer        ledger.Address
		Divisible     bool
		Category      string
		Subcategory   string
		Name          string
		Data          string
		URL           string
		Total         ledger.Amount
		KYCAllowed    []uint64
		CreationBlock uint64
	}

	AttestationRecord struct {
		Sender   ledger.Address
		Receiver ledger.Address
		KYCID    uint64
		Block    uint64
	}

	// Accept reserves a disjoint slice of the parent offer's available amount
	Accept struct {
		Buyer       ledger.Address
		Amount      ledger.Amount // reserved token slice
		ToPay       ledger.Amount // base-currency obligation at offer price
		Block       uint64
		ExpiryBlock uint64
	}

	OfferKey struct {
		Seller   ledger.Address
		Property ledger.PropertyID
	}

	Offer struct {
		Seller          ledger.Address
		Property        ledger.PropertyID
		AmountAvailable ledger.Amount // unreserved remainder
		AmountOffered   ledger.Amount // original
		Desired         ledger.Amount // remaining base-currency ask
		UnitPrice       ledger.Amount // fixed at creation
		MinFee          ledger.Amount
		Option          byte
		PaymentWindow   uint64
		ExpiryBlock     uint64
		// Cancelled offers linger only while accepts are outstanding; they
		// take no new accepts and expired slices go back to the seller
		Cancelled bool
		Accepts   *deque.Deque[*Accept] // outstanding, oldest first
	}

	Commit struct {
		Sender   ledger.Address
		Property ledger.PropertyID
		Amount   ledger.Amount
		Block    uint64
	}

	Channel struct {
		Multisig    ledger.Address
		First       ledger.Address
		Second      ledger.Address
		ExpiryBlock uint64
		Commits     []*Commit
	}

	// VestingPosition tracks how much ALL has already been released against
	// the holder's vesting-token balance
	VestingPosition struct {
		Accrued ledger.Amount
	}

	Store struct {
		height           uint64
		hash             [HashLength]byte
		nextPropertyID   ledger.PropertyID
		properties       map[ledger.PropertyID]*Property
		balances         map[BalanceKey]*Balance
		attestations     []*AttestationRecord
		offers           map[OfferKey]*Offer
		channels         map[ledger.Address]*Channel
		vesting          map[ledger.Address]*VestingPosition
		volume           map[ledger.PropertyID]map[uint64]ledger.Amount
		vestedNumerator  int64
		lastVestingBlock uint64
	}
)

func NewStore() *Store {
	return &Store{
		nextPropertyID: ledger.PropertyVesting, // 1 and 2 are implied constants
		properties:     make(map[ledger.PropertyID]*Property),
		balances:       make(map[BalanceKey]*Balance),
		attestations:   make([]*AttestationRecord, 0),
		offers:         make(map[OfferKey]*Offer),
		channels:       make(map[ledger.Address]*Channel),
		vesting:        make(map[ledger.Address]*VestingPosition),
		volume:         make(map[ledger.PropertyID]map[uint64]ledger.Amount),
	}
}

func (s *Store) Height() uint64 {
	return s.height
}

func (s *Store) SetHeight(h uint64) {
	s.height = h
}

// ---------------------------------------------------------- properties

// NextPropertyID peeks without assigning
func (s *Store) NextPropertyID() ledger.PropertyID {
	return s.nextPropertyID
}

// PutProperty assigns the next dense id and records the definition.
// No id is ever reused or skipped
func (s *Store) PutProperty(p *Property) ledger.PropertyID {
	p.ID = s.nextPropertyID
	s.nextPropertyID++
	s.properties[p.ID] = p
	return p.ID
}

// PutImpliedProperty records a constant property with a fixed id below the
// sequentially assigned range
func (s *Store) PutImpliedProperty(p *Property) {
	util.Assertf(p.ID < ledger.PropertyVesting, "implied property id out of range")
	s.properties[p.ID] = p
}

func (s *Store) GetProperty(id ledger.PropertyID) (*Property, bool) {
	ret, ok := s.properties[id]
	return ret, ok
}

func (s *Store) HasProperty(id ledger.PropertyID) bool {
	_, ok := s.properties[id]
	return ok
}

// ---------------------------------------------------------- balances

func (s *Store) getBalance(k BalanceKey) *Balance {
	if b, ok := s.balances[k]; ok {
		return b
	}
	b := &Balance{}
	s.balances[k] = b
	return b
}

func (s *Store) Balance(addr ledger.Address, property ledger.PropertyID) Balance {
	if b, ok := s.balances[BalanceKey{addr, property}]; ok {
		return *b
	}
	return Balance{}
}

func (b *Balance) bucket(bucket Bucket) *ledger.Amount {
	switch bucket {
	case BucketAvailable:
		return &b.Available
	case BucketReserved:
		return &b.Reserved
	case BucketUnvested:
		return &b.Unvested
	}
	util.Panicf("unknown balance bucket %d", bucket)
	return nil
}

func (s *Store) Credit(addr ledger.Address, property ledger.PropertyID, amount ledger.Amount, bucket Bucket) {
	util.Assertf(amount >= 0, "Credit: negative amount")
	*s.getBalance(BalanceKey{addr, property}).bucket(bucket) += amount
}

func (s *Store) Debit(addr ledger.Address, property ledger.PropertyID, amount ledger.Amount, bucket Bucket) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	b := s.getBalance(BalanceKey{addr, property})
	if *b.bucket(bucket) < amount {
		return ErrInsufficientFunds
	}
	*b.bucket(bucket) -= amount
	return nil
}

// Transfer debits then credits as one atomic step: if the debit fails
// nothing is applied
func (s *Store) Transfer(from, to ledger.Address, property ledger.PropertyID, amount ledger.Amount) error {
	if err := s.Debit(from, property, amount, BucketAvailable); err != nil {
		return err
	}
	s.Credit(to, property, amount, BucketAvailable)
	return nil
}

// Move shifts an amount between buckets of the same entry
func (s *Store) Move(addr ledger.Address, property ledger.PropertyID, amount ledger.Amount, from, to Bucket) error {
	if err := s.Debit(addr, property, amount, from); err != nil {
		return err
	}
	s.Credit(addr, property, amount, to)
	return nil
}

// TotalInCirculation sums all buckets of one property over all addresses
func (s *Store) TotalInCirculation(property ledger.PropertyID) ledger.Amount {
	ret := ledger.Amount(0)
	for k, b := range s.balances {
		if k.Property == property {
			ret += b.Available + b.Reserved + b.Unvested
		}
	}
	return ret
}

// ---------------------------------------------------------- attestations

// Attest is append-only; re-attesting the same pair is a harmless duplicate
func (s *Store) Attest(sender, receiver ledger.Address, kycID uint64, block uint64) {
	s.attestations = append(s.attestations, &AttestationRecord{
		Sender:   sender,
		Receiver: receiver,
		KYCID:    kycID,
		Block:    block,
	})
}

func (s *Store) Attestations() []*AttestationRecord {
	return s.attestations
}

// LatestKYC returns the kyc id attested for the address; later records for
// the same pair supersede earlier ones
func (s *Store) LatestKYC(addr ledger.Address) (uint64, bool) {
	for i := len(s.attestations) - 1; i >= 0; i-- {
		if s.attestations[i].Receiver == addr {
			return s.attestations[i].KYCID, true
		}
	}
	return 0, false
}

// ---------------------------------------------------------- DEx

func (s *Store) GetOffer(seller ledger.Address, property ledger.PropertyID) (*Offer, bool) {
	ret, ok := s.offers[OfferKey{seller, property}]
	return ret, ok
}

func (s *Store) PutOffer(o *Offer) {
	s.offers[OfferKey{o.Seller, o.Property}] = o
}

func (s *Store) DeleteOffer(seller ledger.Address, property ledger.PropertyID) {
	delete(s.offers, OfferKey{seller, property})
}

// OffersBySeller returns the seller's open offers, property ascending
func (s *Store) OffersBySeller(seller ledger.Address) []*Offer {
	return s.sortedOffers(func(k OfferKey) bool { return k.Seller == seller })
}

func (s *Store) AllOffers() []*Offer {
	return s.sortedOffers(nil)
}

func (s *Store) sortedOffers(filter func(k OfferKey) bool) []*Offer {
	var keys []OfferKey
	if filter == nil {
		keys = util.Keys(s.offers)
	} else {
		keys = util.Keys(s.offers, filter)
	}
	keys = sortOfferKeys(keys)
	ret := make([]*Offer, 0, len(keys))
	for _, k := range keys {
		ret = append(ret, s.offers[k])
	}
	return ret
}

func sortOfferKeys(keys []OfferKey) []OfferKey {
	less := func(k1, k2 OfferKey) bool {
		if k1.Seller != k2.Seller {
			return k1.Seller < k2.Seller
		}
		return k1.Property < k2.Property
	}
	m := make(map[OfferKey]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return util.SortKeys(m, less)
}

// ---------------------------------------------------------- channels

func (s *Store) GetChannel(multisig ledger.Address) (*Channel, bool) {
	ret, ok := s.channels[multisig]
	return ret, ok
}

func (s *Store) PutChannel(ch *Channel) {
	s.channels[ch.Multisig] = ch
}

// CommitsBySender returns commits over all channels in ledger (insertion)
// order, filtered by sender
func (s *Store) CommitsBySender(sender ledger.Address) []*Commit {
	ret := make([]*Commit, 0)
	for _, msig := range util.SortKeys(s.channels, func(a1, a2 ledger.Address) bool { return a1 < a2 }) {
		for _, c := range s.channels[msig].Commits {
			if c.Sender == sender {
				ret = append(ret, c)
			}
		}
	}
	return ret
}

// ---------------------------------------------------------- vesting

func (s *Store) VestingPositionOf(addr ledger.Address) *VestingPosition {
	if p, ok := s.vesting[addr]; ok {
		return p
	}
	p := &VestingPosition{}
	s.vesting[addr] = p
	return p
}

// VestingHolders derives the holder set from the balance table so that it
// is a pure function of canonical state
func (s *Store) VestingHolders() []ledger.Address {
	m := make(map[ledger.Address]struct{})
	for k, b := range s.balances {
		if k.Property == ledger.PropertyVesting && b.Available+b.Reserved > 0 {
			m[k.Address] = struct{}{}
		}
	}
	for a, p := range s.vesting {
		if p.Accrued != 0 {
			m[a] = struct{}{}
		}
	}
	return util.SortKeys(m, func(a1, a2 ledger.Address) bool { return a1 < a2 })
}

func (s *Store) VestedNumerator() int64 {
	return s.vestedNumerator
}

func (s *Store) SetVestedNumerator(n int64, block uint64) {
	util.Assertf(n >= s.vestedNumerator, "vested fraction must not decrease")
	s.vestedNumerator = n
	s.lastVestingBlock = block
}

func (s *Store) LastVestingBlock() uint64 {
	return s.lastVestingBlock
}

// ---------------------------------------------------------- volume

// AddVolume accumulates settled base-currency volume per property per block
func (s *Store) AddVolume(property ledger.PropertyID, block uint64, amount ledger.Amount) {
	byBlock, ok := s.volume[property]
	if !ok {
		byBlock = make(map[uint64]ledger.Amount)
		s.volume[property] = byBlock
	}
	byBlock[block] += amount
}

// VolumeInRange sums the series of one property over [first, last]
func (s *Store) VolumeInRange(property ledger.PropertyID, first, last uint64) ledger.Amount {
	ret := ledger.Amount(0)
	for block, a := range s.volume[property] {
		if first <= block && block <= last {
			ret += a
		}
	}
	return ret
}

// TotalVolume sums over all properties, the input of the vesting curve
func (s *Store) TotalVolume() ledger.Amount {
	ret := ledger.Amount(0)
	for _, byBlock := range s.volume {
		for _, a := range byBlock {
			ret += a
		}
	}
	return ret
}
