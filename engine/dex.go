package engine

import (
	"github.com/gammazero/deque"
	"github.com/tradelayer/tradelayerd/layertx"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/state"
	"github.com/tradelayer/tradelayerd/util"
)

// DEx sell-offer machine. An offer reserves the seller's tokens; accepts
// reserve disjoint slices of the offer; a base-currency payment observed on
// the carrier settles the oldest outstanding accept of that (buyer, seller)
// pair. The engine never moves base currency itself.

func (e *Engine) applyDExOffer(s *state.Store, seller ledger.Address, c *layertx.DExOffer) error {
	switch c.SubAction {
	case layertx.DExSubActionNew:
		return e.dexOfferNew(s, seller, c)
	case layertx.DExSubActionUpdate:
		return e.dexOfferUpdate(s, seller, c)
	case layertx.DExSubActionCancel:
		return e.dexOfferCancel(s, seller, c)
	}
	util.Panicf("applyDExOffer: sub-action %d escaped the decoder", c.SubAction)
	return nil
}

func (e *Engine) dexOfferNew(s *state.Store, seller ledger.Address, c *layertx.DExOffer) error {
	if c.AmountForSale <= 0 || c.AmountDesired <= 0 {
		return state.ErrInvalidAmount
	}
	if !s.HasProperty(c.Property) || c.Property == ledger.PropertyVesting {
		return state.ErrUnknownProperty
	}
	if _, ok := s.GetOffer(seller, c.Property); ok {
		return state.ErrOfferExists
	}
	if err := s.Move(seller, c.Property, c.AmountForSale, state.BucketAvailable, state.BucketReserved); err != nil {
		return err
	}
	s.PutOffer(&state.Offer{
		Seller:          seller,
		Property:        c.Property,
		AmountAvailable: c.AmountForSale,
		AmountOffered:   c.AmountForSale,
		Desired:         c.AmountDesired,
		UnitPrice:       ledger.UnitPrice(c.AmountDesired, c.AmountForSale),
		MinFee:          c.MinFee,
		Option:          c.Option,
		PaymentWindow:   c.PaymentWindow,
		ExpiryBlock:     s.Height() + c.PaymentWindow,
		Accepts:         &deque.Deque[*state.Accept]{},
	})
	return nil
}

// update replaces the unreserved part of the seller's open offer; slices
// already reserved by accepts are untouched
func (e *Engine) dexOfferUpdate(s *state.Store, seller ledger.Address, c *layertx.DExOffer) error {
	o, ok := s.GetOffer(seller, c.Property)
	if !ok || o.Cancelled {
		return state.ErrUnknownOffer
	}
	if c.AmountForSale <= 0 || c.AmountDesired <= 0 {
		return state.ErrInvalidAmount
	}
	delta := c.AmountForSale - o.AmountAvailable
	if delta > 0 {
		if err := s.Move(seller, c.Property, delta, state.BucketAvailable, state.BucketReserved); err != nil {
			return err
		}
	} else if delta < 0 {
		err := s.Move(seller, c.Property, -delta, state.BucketReserved, state.BucketAvailable)
		util.AssertNoError(err, "dex update unreserve")
	}
	reserved := o.AmountOffered - o.AmountAvailable
	o.AmountAvailable = c.AmountForSale
	o.AmountOffered = c.AmountForSale + reserved
	o.Desired = c.AmountDesired
	o.UnitPrice = ledger.UnitPrice(c.AmountDesired, c.AmountForSale)
	o.MinFee = c.MinFee
	o.ExpiryBlock = s.Height() + c.PaymentWindow
	o.PaymentWindow = c.PaymentWindow
	return nil
}

// cancel returns the unreserved amount to the seller and closes the offer.
// Outstanding accepts keep their reserved slices until they settle or
// expire, but the closed offer never takes new accepts again
func (e *Engine) dexOfferCancel(s *state.Store, seller ledger.Address, c *layertx.DExOffer) error {
	o, ok := s.GetOffer(seller, c.Property)
	if !ok || o.Cancelled {
		return state.ErrUnknownOffer
	}
	if o.AmountAvailable > 0 {
		err := s.Move(seller, c.Property, o.AmountAvailable, state.BucketReserved, state.BucketAvailable)
		util.AssertNoError(err, "dex cancel unreserve")
		o.AmountAvailable = 0
		o.Desired = 0
	}
	if o.Accepts.Len() == 0 {
		s.DeleteOffer(seller, c.Property)
		return nil
	}
	o.Cancelled = true
	return nil
}

func (e *Engine) applyDExAccept(s *state.Store, buyer, seller ledger.Address, c *layertx.DExAccept) error {
	o, ok := s.GetOffer(seller, c.Property)
	if !ok || o.Cancelled {
		return state.ErrUnknownOffer
	}
	if c.Amount <= 0 {
		return state.ErrInvalidAmount
	}
	if c.Amount > o.AmountAvailable {
		return state.ErrInsufficientOfferAmount
	}
	toPay := ledger.MulDivRoundHalfUp(c.Amount, int64(o.UnitPrice), int64(ledger.AmountUnit))
	if toPay > o.Desired {
		toPay = o.Desired
	}
	o.AmountAvailable -= c.Amount
	o.Desired -= toPay
	o.Accepts.PushBack(&state.Accept{
		Buyer:       buyer,
		Amount:      c.Amount,
		ToPay:       toPay,
		Block:       s.Height(),
		ExpiryBlock: s.Height() + o.PaymentWindow,
	})
	return nil
}

// applyDExPayment matches an observed base-currency payment against the
// buyer's outstanding accepts for that seller, oldest-reserved-first. A
// partial payment settles a proportional token slice of the oldest accept
func (e *Engine) applyDExPayment(s *state.Store, buyer, seller ledger.Address, c *layertx.DExPayment) error {
	if c.Amount <= 0 {
		return state.ErrInvalidAmount
	}
	// all validation happens before the first mutation: a rejected payment
	// must leave no trace in state. The walk mirrors the settlement below,
	// so exactly the offers the payment would touch are checked
	touched := paymentPlan(s, buyer, seller, c.Amount)
	if len(touched) == 0 {
		return state.ErrNoMatchingAccept
	}
	for _, o := range touched {
		prop, ok := s.GetProperty(o.Property)
		util.Assertf(ok, "offer property %d disappeared", o.Property)
		if err := checkKYC(s, prop, buyer); err != nil {
			return err
		}
	}

	remaining := c.Amount
	for _, o := range touched {
		for remaining > 0 && o.Accepts.Len() > 0 {
			a, idx := oldestAcceptOf(o, buyer)
			if a == nil {
				break
			}
			settle := remaining
			if settle > a.ToPay {
				settle = a.ToPay
			}
			tokens := a.Amount
			if settle < a.ToPay {
				tokens = ledger.MulDivFloor(a.Amount, int64(settle), int64(a.ToPay))
			}
			err := s.Debit(o.Seller, o.Property, tokens, state.BucketReserved)
			util.AssertNoError(err, "dex settlement")
			s.Credit(buyer, o.Property, tokens, state.BucketAvailable)
			s.AddVolume(o.Property, s.Height(), settle)

			a.Amount -= tokens
			a.ToPay -= settle
			remaining -= settle
			if a.ToPay == 0 || a.Amount == 0 {
				// any residue of integer rounding goes back to the pool
				o.AmountAvailable += a.Amount
				removeAccept(o, idx)
			}
		}
		e.closeOfferIfDone(s, o)
	}
	return nil
}

// paymentPlan lists, in settlement order, the offers a payment of the given
// amount would draw accepts from. Read-only
func paymentPlan(s *state.Store, buyer, seller ledger.Address, amount ledger.Amount) []*state.Offer {
	ret := make([]*state.Offer, 0)
	remaining := amount
	for _, o := range s.OffersBySeller(seller) {
		if remaining == 0 {
			break
		}
		for i := 0; i < o.Accepts.Len() && remaining > 0; i++ {
			a := o.Accepts.At(i)
			if a.Buyer != buyer {
				continue
			}
			if len(ret) == 0 || ret[len(ret)-1] != o {
				ret = append(ret, o)
			}
			if a.ToPay >= remaining {
				remaining = 0
			} else {
				remaining -= a.ToPay
			}
		}
	}
	return ret
}

func oldestAcceptOf(o *state.Offer, buyer ledger.Address) (*state.Accept, int) {
	for i := 0; i < o.Accepts.Len(); i++ {
		if o.Accepts.At(i).Buyer == buyer {
			return o.Accepts.At(i), i
		}
	}
	return nil, -1
}

func removeAccept(o *state.Offer, idx int) {
	rotated := make([]*state.Accept, 0, o.Accepts.Len()-1)
	for i := 0; i < o.Accepts.Len(); i++ {
		if i != idx {
			rotated = append(rotated, o.Accepts.At(i))
		}
	}
	o.Accepts.Clear()
	for _, a := range rotated {
		o.Accepts.PushBack(a)
	}
}

// closeOfferIfDone removes a fully settled or cancelled offer once nothing
// is reserved or outstanding. Fully accepted offers with zero available
// stay visible until their accepts resolve
func (e *Engine) closeOfferIfDone(s *state.Store, o *state.Offer) {
	if o.Accepts.Len() > 0 {
		return
	}
	if o.Cancelled || (o.AmountAvailable == 0 && o.Desired == 0) {
		if o.AmountAvailable > 0 {
			// rounding residue of settled accepts, still reserved
			err := s.Move(o.Seller, o.Property, o.AmountAvailable, state.BucketReserved, state.BucketAvailable)
			util.AssertNoError(err, "dex close")
			o.AmountAvailable = 0
		}
		s.DeleteOffer(o.Seller, o.Property)
	}
}

// sweepExpired runs once per connected block, before the block's commands.
// Expired accepts return their slice to the parent offer; expired offers
// without live accepts return the remainder to the seller and close
func (e *Engine) sweepExpired(s *state.Store) {
	h := s.Height()
	for _, o := range s.AllOffers() {
		for o.Accepts.Len() > 0 {
			// accepts expire in FIFO order: the front is the oldest
			front := o.Accepts.Front()
			if front.ExpiryBlock >= h {
				break
			}
			if o.Cancelled {
				// the offer is closed: the slice goes back to the
				// seller, never to the pool
				err := s.Move(o.Seller, o.Property, front.Amount, state.BucketReserved, state.BucketAvailable)
				util.AssertNoError(err, "dex expiry sweep")
			} else {
				o.AmountAvailable += front.Amount
				o.Desired += front.ToPay
			}
			o.Accepts.PopFront()
		}
		if o.Accepts.Len() == 0 && (o.Cancelled || o.ExpiryBlock < h) {
			if o.AmountAvailable > 0 {
				err := s.Move(o.Seller, o.Property, o.AmountAvailable, state.BucketReserved, state.BucketAvailable)
				util.AssertNoError(err, "dex expiry sweep")
			}
			s.DeleteOffer(o.Seller, o.Property)
		}
	}
}
