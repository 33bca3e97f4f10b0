package engine

import (
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/state"
	"github.com/tradelayer/tradelayerd/util/lines"
)

// Read-only queries. They are served from the committed state under the
// shared lock and return copies: a reader can never observe or touch a
// partially applied block

type (
	AcceptView struct {
		Buyer  ledger.Address
		Amount ledger.Amount
		ToPay  ledger.Amount
		Block  uint64
	}

	OfferView struct {
		Seller          ledger.Address
		Property        ledger.PropertyID
		Option          byte
		Desired         ledger.Amount
		AmountAvailable ledger.Amount
		UnitPrice       ledger.Amount
		MinFee          ledger.Amount
		Accepts         []AcceptView
	}

	ChannelView struct {
		Multisig    ledger.Address
		First       ledger.Address
		Second      ledger.Address
		ExpiryBlock uint64
		Active      bool
	}

	VestingInfo struct {
		Property         state.Property
		ActivationBlock  uint64
		Volume           ledger.Amount
		VestedPercent    ledger.Amount
		LastVestingBlock uint64
		TotalVested      ledger.Amount
		Owners           int
	}
)

func (e *Engine) Height() uint64 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.cur.Height()
}

func (e *Engine) ConsensusHash() string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.cur.HashHex()
}

// StateLines renders a summary of the committed state for logs
func (e *Engine) StateLines(prefix ...string) *lines.Lines {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.cur.Lines(prefix...)
}

func (e *Engine) GetBalance(addr ledger.Address, property ledger.PropertyID) state.Balance {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.cur.Balance(addr, property)
}

// GetUnvested returns the locked ALL entitlement of the address
func (e *Engine) GetUnvested(addr ledger.Address) ledger.Amount {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.cur.Balance(addr, ledger.PropertyALL).Unvested
}

func (e *Engine) GetProperty(id ledger.PropertyID) (state.Property, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	p, ok := e.cur.GetProperty(id)
	if !ok {
		return state.Property{}, false
	}
	return *p, true
}

// ActiveDExSells lists open offers, optionally filtered by seller
func (e *Engine) ActiveDExSells(seller ledger.Address) []OfferView {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	var offers []*state.Offer
	if seller.IsNil() {
		offers = e.cur.AllOffers()
	} else {
		offers = e.cur.OffersBySeller(seller)
	}
	ret := make([]OfferView, 0, len(offers))
	for _, o := range offers {
		if o.Cancelled {
			// still winding down outstanding accepts, no longer a sell
			continue
		}
		v := OfferView{
			Seller:          o.Seller,
			Property:        o.Property,
			Option:          o.Option,
			Desired:         o.Desired,
			AmountAvailable: o.AmountAvailable,
			UnitPrice:       o.UnitPrice,
			MinFee:          o.MinFee,
			Accepts:         make([]AcceptView, 0, o.Accepts.Len()),
		}
		for i := 0; i < o.Accepts.Len(); i++ {
			a := o.Accepts.At(i)
			v.Accepts = append(v.Accepts, AcceptView{
				Buyer:  a.Buyer,
				Amount: a.Amount,
				ToPay:  a.ToPay,
				Block:  a.Block,
			})
		}
		ret = append(ret, v)
	}
	return ret
}

func (e *Engine) ChannelInfo(multisig ledger.Address) (ChannelView, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	ch, ok := e.cur.GetChannel(multisig)
	if !ok {
		return ChannelView{}, false
	}
	return ChannelView{
		Multisig:    ch.Multisig,
		First:       ch.First,
		Second:      ch.Second,
		ExpiryBlock: ch.ExpiryBlock,
		Active:      e.cur.Height() <= ch.ExpiryBlock,
	}, true
}

func (e *Engine) CheckCommits(sender ledger.Address) []state.Commit {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	commits := e.cur.CommitsBySender(sender)
	ret := make([]state.Commit, 0, len(commits))
	for _, c := range commits {
		ret = append(ret, *c)
	}
	return ret
}

func (e *Engine) ListAttestations() []state.AttestationRecord {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	records := e.cur.Attestations()
	ret := make([]state.AttestationRecord, 0, len(records))
	for _, a := range records {
		ret = append(ret, *a)
	}
	return ret
}

func (e *Engine) VolumeInRange(property ledger.PropertyID, first, last uint64) ledger.Amount {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.cur.VolumeInRange(property, first, last)
}

func (e *Engine) GetVestingInfo() (VestingInfo, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	p, ok := e.cur.GetProperty(ledger.PropertyVesting)
	if !ok {
		return VestingInfo{}, false
	}
	totalVested := ledger.Amount(0)
	owners := 0
	for _, addr := range e.cur.VestingHolders() {
		if addr == p.Issuer {
			continue
		}
		b := e.cur.Balance(addr, ledger.PropertyVesting)
		if b.Available+b.Reserved == 0 {
			continue
		}
		totalVested += b.Available + b.Reserved
		owners++
	}
	return VestingInfo{
		Property:         *p,
		ActivationBlock:  p.CreationBlock,
		Volume:           e.cur.TotalVolume(),
		VestedPercent:    ledger.VestedPercentAmount(e.cur.VestedNumerator()),
		LastVestingBlock: e.cur.LastVestingBlock(),
		TotalVested:      totalVested,
		Owners:           owners,
	}, true
}
