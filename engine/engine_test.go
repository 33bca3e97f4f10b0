package engine

import (
	"testing"

	"github.com/lunfardo314/unitrie/common"
	"github.com/stretchr/testify/require"
	"github.com/tradelayer/tradelayerd/global"
	"github.com/tradelayer/tradelayerd/layertx"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/state"
)

const (
	admin = ledger.Address("mvQPKnDtk3Ue8urJ8ZmTh1SJ8PhtQioBM6")
	addr1 = ledger.Address("moCYruRphhYgejzH75bxWnAAAvMgR7MkEG")
	addr2 = ledger.Address("mhBFPNHNpJ3zvQz2mNAwNMf6H3uTAMCuJ9")
	addr3 = ledger.Address("mq1FvVDVNMpV5uFEDAzwHzAXeDBwCSB2BS")
	addr4 = ledger.Address("n3pKua3PxqvHhivc3yrqn5HYJBSRVoh6Jv")
	buyer = ledger.Address("mkEqCRfZWyLJRLKQGkzWyF36dbX4nSG2Zq")
	msig  = ledger.Address("2N6co2cBCWS8375VEq5vgzQiTAqsEnwPnY4")
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	ret, err := New(global.New(), common.NewInMemoryKVStore(), ledger.RegTest, admin, opts...)
	require.NoError(t, err)
	return ret
}

func connect(t *testing.T, e *Engine, txs ...layertx.Decoded) {
	require.NoError(t, e.ConnectBlock(e.Height()+1, txs))
}

func mineTo(t *testing.T, e *Engine, h uint64) {
	for e.Height() < h {
		connect(t, e)
	}
}

func selfAttest(a ledger.Address) layertx.Decoded {
	return layertx.Decoded{Sender: a, Reference: a, Cmd: &layertx.Attestation{KYCID: 0}}
}

// activated returns an engine at the activation height with the usual
// receivers self-attested
func activated(t *testing.T) *Engine {
	e := newTestEngine(t)
	mineTo(t, e, ledger.RegTest.VestingActivationBlock)
	connect(t, e, selfAttest(addr1), selfAttest(addr2), selfAttest(addr3), selfAttest(addr4), selfAttest(buyer))
	return e
}

func TestLayerActivation(t *testing.T) {
	e := newTestEngine(t)
	mineTo(t, e, 99)
	_, ok := e.GetProperty(ledger.PropertyALL)
	require.False(t, ok)

	mineTo(t, e, 100)

	all, ok := e.GetProperty(ledger.PropertyALL)
	require.True(t, ok)
	require.EqualValues(t, "ALL", all.Name)
	require.EqualValues(t, ledger.NewAmount(2_200_000), all.Total)

	sltc, ok := e.GetProperty(ledger.PropertySLTC)
	require.True(t, ok)
	require.EqualValues(t, "sLTC", sltc.Name)

	v, ok := e.GetProperty(ledger.PropertyVesting)
	require.True(t, ok)
	require.EqualValues(t, "Vesting Tokens", v.Name)
	require.EqualValues(t, "Divisible Tokens", v.Data)
	require.EqualValues(t, "www.tradelayer.org", v.URL)
	require.EqualValues(t, admin, v.Issuer)
	require.EqualValues(t, 100, v.CreationBlock)
	require.EqualValues(t, "1500000.00000000", v.Total.String())

	require.EqualValues(t, "700000.00000000", e.GetBalance(admin, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "700000.00000000", e.GetBalance(admin, ledger.PropertySLTC).Available.String())
	require.EqualValues(t, "1500000.00000000", e.GetBalance(admin, ledger.PropertyVesting).Available.String())
	require.EqualValues(t, "1500000.00000000", e.GetUnvested(admin).String())

	vi, ok := e.GetVestingInfo()
	require.True(t, ok)
	require.EqualValues(t, 100, vi.ActivationBlock)
	require.EqualValues(t, "0.00000000", vi.VestedPercent.String())
	require.EqualValues(t, 0, vi.Owners)
	require.EqualValues(t, "0.00000000", vi.TotalVested.String())

	require.Len(t, e.ConsensusHash(), 64)
}

func TestIssuance(t *testing.T) {
	e := activated(t)

	id, err := e.SubmitIssuance(layertx.Decoded{
		Sender: addr1,
		Cmd: &layertx.IssuanceFixed{
			Divisible:   true,
			Category:    "N/A",
			Subcategory: "N/A",
			Name:        "lihki",
			Data:        "data1",
			URL:         "url1",
			Amount:      ledger.NewAmount(90_000_000),
		},
	})
	require.NoError(t, err)
	require.EqualValues(t, ledger.FirstFreePropertyID, id)

	_, err = e.ConnectNext()
	require.NoError(t, err)

	p, ok := e.GetProperty(id)
	require.True(t, ok)
	require.EqualValues(t, "lihki", p.Name)
	require.EqualValues(t, "90000000.00000000", p.Total.String())
	require.EqualValues(t, addr1, p.Issuer)
	require.EqualValues(t, "90000000.00000000", e.GetBalance(addr1, id).Available.String())

	// a second issuance gets the next dense id
	id2, err := e.SubmitIssuance(layertx.Decoded{
		Sender: addr1,
		Cmd:    &layertx.IssuanceFixed{Name: "dan", Amount: ledger.NewAmount(1000)},
	})
	require.NoError(t, err)
	require.EqualValues(t, id+1, id2)

	// zero amount is invalid
	_, err = e.SubmitIssuance(layertx.Decoded{
		Sender: addr1,
		Cmd:    &layertx.IssuanceFixed{Name: "zero"},
	})
	require.ErrorIs(t, err, state.ErrInvalidAmount)
}

func TestIssuanceBeforeActivation(t *testing.T) {
	e := newTestEngine(t)
	mineTo(t, e, 50)
	_, err := e.SubmitIssuance(layertx.Decoded{
		Sender: addr1,
		Cmd:    &layertx.IssuanceFixed{Name: "early", Amount: ledger.NewAmount(1)},
	})
	require.ErrorIs(t, err, state.ErrUnknownProperty)
}

func TestSimpleSend(t *testing.T) {
	e := activated(t)

	send := func(from, to ledger.Address, pid ledger.PropertyID, amount ledger.Amount) error {
		return e.Submit(layertx.Decoded{
			Sender:    from,
			Reference: to,
			Cmd:       &layertx.SimpleSend{Property: pid, Amount: amount},
		})
	}

	require.NoError(t, send(admin, addr1, ledger.PropertyALL, ledger.NewAmount(1000)))
	_, err := e.ConnectNext()
	require.NoError(t, err)
	require.EqualValues(t, "1000.00000000", e.GetBalance(addr1, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "699000.00000000", e.GetBalance(admin, ledger.PropertyALL).Available.String())

	require.ErrorIs(t, send(addr1, addr2, ledger.PropertyALL, ledger.NewAmount(5000)), state.ErrInsufficientFunds)
	require.ErrorIs(t, send(admin, addr1, 77, ledger.NewAmount(1)), state.ErrUnknownProperty)
	require.ErrorIs(t, send(admin, addr1, ledger.PropertyALL, 0), state.ErrInvalidAmount)
	// vesting tokens do not move through plain sends
	require.ErrorIs(t, send(admin, addr1, ledger.PropertyVesting, ledger.NewAmount(1)), state.ErrUnknownProperty)
}

func TestSendKYCAllowList(t *testing.T) {
	e := activated(t)

	// ALL requires the receiver to be self-attested with kyc id 0
	err := e.Submit(layertx.Decoded{
		Sender:    admin,
		Reference: ledger.Address("unattested"),
		Cmd:       &layertx.SimpleSend{Property: ledger.PropertyALL, Amount: ledger.NewAmount(1)},
	})
	require.Error(t, err)

	// a property with a closed allow-list
	id, err := e.SubmitIssuance(layertx.Decoded{
		Sender: addr1,
		Cmd:    &layertx.IssuanceFixed{Name: "kycd", Amount: ledger.NewAmount(1000), KYCAllowed: []uint64{5}},
	})
	require.NoError(t, err)
	_, err = e.ConnectNext()
	require.NoError(t, err)

	// addr2 carries kyc 0, not in the list
	err = e.Submit(layertx.Decoded{
		Sender:    addr1,
		Reference: addr2,
		Cmd:       &layertx.SimpleSend{Property: id, Amount: ledger.NewAmount(1)},
	})
	require.Error(t, err)

	// after attestation with kyc 5 the send passes
	connect(t, e, layertx.Decoded{Sender: addr1, Reference: addr2, Cmd: &layertx.Attestation{KYCID: 5}})
	require.NoError(t, e.Submit(layertx.Decoded{
		Sender:    addr1,
		Reference: addr2,
		Cmd:       &layertx.SimpleSend{Property: id, Amount: ledger.NewAmount(1)},
	}))
}

func TestAttestationRecords(t *testing.T) {
	e := newTestEngine(t)
	mineTo(t, e, 100)
	connect(t, e, selfAttest(addr1))

	records := e.ListAttestations()
	require.Len(t, records, 1)
	require.EqualValues(t, addr1, records[0].Sender)
	require.EqualValues(t, addr1, records[0].Receiver)
	require.EqualValues(t, 0, records[0].KYCID)
	require.EqualValues(t, 101, records[0].Block)
}

func dexOfferNew(seller ledger.Address, pid ledger.PropertyID, forSale, desired ledger.Amount, window uint64) layertx.Decoded {
	return layertx.Decoded{
		Sender: seller,
		Cmd: &layertx.DExOffer{
			Property:      pid,
			AmountForSale: forSale,
			AmountDesired: desired,
			PaymentWindow: window,
			MinFee:        ledger.Amount(10000),
			Option:        2,
			SubAction:     layertx.DExSubActionNew,
		},
	}
}

func dexAccept(buyer, seller ledger.Address, pid ledger.PropertyID, amount ledger.Amount) layertx.Decoded {
	return layertx.Decoded{
		Sender:    buyer,
		Reference: seller,
		Cmd:       &layertx.DExAccept{Property: pid, Amount: amount},
	}
}

func dexPay(buyer, seller ledger.Address, amount ledger.Amount) layertx.Decoded {
	return layertx.Decoded{
		Sender:    buyer,
		Reference: seller,
		Cmd:       &layertx.DExPayment{Amount: amount},
	}
}

func TestDExFullFill(t *testing.T) {
	e := activated(t)

	connect(t, e, dexOfferNew(admin, ledger.PropertyALL, ledger.NewAmount(1000), ledger.NewAmount(1), 250))

	offers := e.ActiveDExSells(admin)
	require.Len(t, offers, 1)
	require.EqualValues(t, "1.00000000", offers[0].Desired.String())
	require.EqualValues(t, "1000.00000000", offers[0].AmountAvailable.String())
	require.EqualValues(t, "0.00100000", offers[0].UnitPrice.String())
	require.EqualValues(t, 2, offers[0].Option)
	require.EqualValues(t, "1000.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())

	// the full amount is reserved by the accept, desired drops to zero
	connect(t, e, dexAccept(addr1, admin, ledger.PropertyALL, ledger.NewAmount(1000)))
	offers = e.ActiveDExSells(admin)
	require.Len(t, offers, 1)
	require.EqualValues(t, "0.00000000", offers[0].AmountAvailable.String())
	require.EqualValues(t, "0.00000000", offers[0].Desired.String())
	require.Len(t, offers[0].Accepts, 1)
	require.EqualValues(t, addr1, offers[0].Accepts[0].Buyer)
	require.EqualValues(t, "1000.00000000", offers[0].Accepts[0].Amount.String())
	require.EqualValues(t, "1.00000000", offers[0].Accepts[0].ToPay.String())

	// a second accept cannot take more than what is left
	require.ErrorIs(t,
		e.Submit(dexAccept(addr2, admin, ledger.PropertyALL, ledger.NewAmount(1))),
		state.ErrInsufficientOfferAmount)

	// payment settles the accept and closes the offer
	connect(t, e, dexPay(addr1, admin, ledger.NewAmount(1)))
	require.Len(t, e.ActiveDExSells(admin), 0)
	require.EqualValues(t, "1000.00000000", e.GetBalance(addr1, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "0.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())
	require.EqualValues(t, ledger.NewAmount(1), e.VolumeInRange(ledger.PropertyALL, 0, e.Height()))

	// the slot is free again for the same seller and property
	require.NoError(t, e.Submit(dexOfferNew(admin, ledger.PropertyALL, ledger.NewAmount(500), ledger.NewAmount(1), 250)))
}

func TestDExPartialPayment(t *testing.T) {
	e := activated(t)

	connect(t, e, dexOfferNew(admin, ledger.PropertyALL, ledger.NewAmount(1000), ledger.NewAmount(2), 250))
	connect(t, e, dexAccept(addr1, admin, ledger.PropertyALL, ledger.NewAmount(1000)))

	// half the obligation settles half the tokens
	connect(t, e, dexPay(addr1, admin, ledger.NewAmount(1)))
	require.EqualValues(t, "500.00000000", e.GetBalance(addr1, ledger.PropertyALL).Available.String())

	offers := e.ActiveDExSells(admin)
	require.Len(t, offers, 1)
	require.Len(t, offers[0].Accepts, 1)
	require.EqualValues(t, "500.00000000", offers[0].Accepts[0].Amount.String())
	require.EqualValues(t, "1.00000000", offers[0].Accepts[0].ToPay.String())

	// the rest
	connect(t, e, dexPay(addr1, admin, ledger.NewAmount(1)))
	require.EqualValues(t, "1000.00000000", e.GetBalance(addr1, ledger.PropertyALL).Available.String())
	require.Len(t, e.ActiveDExSells(admin), 0)
	require.EqualValues(t, ledger.NewAmount(2), e.VolumeInRange(ledger.PropertyALL, 0, e.Height()))
}

func TestDExPaymentWithoutAccept(t *testing.T) {
	e := activated(t)
	connect(t, e, dexOfferNew(admin, ledger.PropertyALL, ledger.NewAmount(1000), ledger.NewAmount(1), 250))
	require.ErrorIs(t, e.Submit(dexPay(addr1, admin, ledger.NewAmount(1))), state.ErrNoMatchingAccept)
}

func TestDExAcceptExpiry(t *testing.T) {
	e := activated(t)

	connect(t, e, dexOfferNew(admin, ledger.PropertyALL, ledger.NewAmount(1000), ledger.NewAmount(1), 250))
	connect(t, e, dexAccept(addr1, admin, ledger.PropertyALL, ledger.NewAmount(400)))

	offers := e.ActiveDExSells(admin)
	require.EqualValues(t, "600.00000000", offers[0].AmountAvailable.String())
	require.EqualValues(t, "0.60000000", offers[0].Desired.String())

	// an unpaid accept returns its slice after the payment window; here the
	// offer expires one block earlier, so everything goes back to the seller
	mineTo(t, e, e.Height()+252)
	require.Len(t, e.ActiveDExSells(admin), 0)
	require.EqualValues(t, "0.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())
	require.EqualValues(t, "700000.00000000", e.GetBalance(admin, ledger.PropertyALL).Available.String())
}

func TestDExOfferExpiry(t *testing.T) {
	e := activated(t)

	connect(t, e, dexOfferNew(admin, ledger.PropertyALL, ledger.NewAmount(1000), ledger.NewAmount(1), 50))
	require.EqualValues(t, "1000.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())

	mineTo(t, e, e.Height()+52)
	require.Len(t, e.ActiveDExSells(admin), 0)
	require.EqualValues(t, "0.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())
	require.EqualValues(t, "700000.00000000", e.GetBalance(admin, ledger.PropertyALL).Available.String())
}

func TestDExCancel(t *testing.T) {
	e := activated(t)

	connect(t, e, dexOfferNew(admin, ledger.PropertyALL, ledger.NewAmount(1000), ledger.NewAmount(1), 250))
	connect(t, e, layertx.Decoded{
		Sender: admin,
		Cmd: &layertx.DExOffer{
			Property:      ledger.PropertyALL,
			AmountForSale: ledger.NewAmount(1000),
			AmountDesired: ledger.NewAmount(1),
			SubAction:     layertx.DExSubActionCancel,
		},
	})
	require.Len(t, e.ActiveDExSells(admin), 0)
	require.EqualValues(t, "0.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())
}

func dexUpdate(seller ledger.Address, pid ledger.PropertyID, forSale, desired ledger.Amount, window uint64) layertx.Decoded {
	return layertx.Decoded{
		Sender: seller,
		Cmd: &layertx.DExOffer{
			Property:      pid,
			AmountForSale: forSale,
			AmountDesired: desired,
			PaymentWindow: window,
			MinFee:        ledger.Amount(10000),
			Option:        2,
			SubAction:     layertx.DExSubActionUpdate,
		},
	}
}

func dexCancel(seller ledger.Address, pid ledger.PropertyID) layertx.Decoded {
	return layertx.Decoded{
		Sender: seller,
		Cmd: &layertx.DExOffer{
			Property:      pid,
			AmountForSale: ledger.NewAmount(1),
			AmountDesired: ledger.NewAmount(1),
			SubAction:     layertx.DExSubActionCancel,
		},
	}
}

func TestDExOfferUpdate(t *testing.T) {
	e := activated(t)

	connect(t, e, dexOfferNew(admin, ledger.PropertyALL, ledger.NewAmount(1000), ledger.NewAmount(1), 250))
	connect(t, e, dexAccept(buyer, admin, ledger.PropertyALL, ledger.NewAmount(400)))

	offers := e.ActiveDExSells(admin)
	require.Len(t, offers, 1)
	require.EqualValues(t, "600.00000000", offers[0].AmountAvailable.String())

	// raising amount-for-sale reserves the difference on top of the slice
	// already held by the accept
	connect(t, e, dexUpdate(admin, ledger.PropertyALL, ledger.NewAmount(1000), ledger.NewAmount(2), 300))
	offers = e.ActiveDExSells(admin)
	require.Len(t, offers, 1)
	require.EqualValues(t, "1000.00000000", offers[0].AmountAvailable.String())
	require.EqualValues(t, "2.00000000", offers[0].Desired.String())
	require.EqualValues(t, "0.00200000", offers[0].UnitPrice.String())
	require.EqualValues(t, "1400.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())
	require.Len(t, offers[0].Accepts, 1)
	require.EqualValues(t, "400.00000000", offers[0].Accepts[0].Amount.String())
	require.EqualValues(t, "0.40000000", offers[0].Accepts[0].ToPay.String())

	// lowering it releases the unreserved difference back to the seller
	connect(t, e, dexUpdate(admin, ledger.PropertyALL, ledger.NewAmount(200), ledger.NewAmount(1), 300))
	offers = e.ActiveDExSells(admin)
	require.Len(t, offers, 1)
	require.EqualValues(t, "200.00000000", offers[0].AmountAvailable.String())
	require.EqualValues(t, "600.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())

	// raising beyond the seller's funds is rejected
	require.ErrorIs(t,
		e.Submit(dexUpdate(admin, ledger.PropertyALL, ledger.NewAmount(800_000), ledger.NewAmount(1), 300)),
		state.ErrInsufficientFunds)

	// the accept taken before the updates still settles at its original terms
	connect(t, e, dexPay(buyer, admin, ledger.Amount(40_000_000)))
	require.EqualValues(t, "400.00000000", e.GetBalance(buyer, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "200.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())
	require.Len(t, e.ActiveDExSells(admin), 1)
}

func TestDExCancelOutstandingAccept(t *testing.T) {
	e := activated(t)

	connect(t, e, dexOfferNew(admin, ledger.PropertyALL, ledger.NewAmount(1000), ledger.NewAmount(1), 250))
	connect(t, e, dexAccept(buyer, admin, ledger.PropertyALL, ledger.NewAmount(400)))

	// lengthen the payment window, then cancel while the accept is outstanding
	connect(t, e, dexUpdate(admin, ledger.PropertyALL, ledger.NewAmount(600), ledger.NewAmount(1), 500))
	connect(t, e, dexCancel(admin, ledger.PropertyALL))

	// the unreserved part goes back right away, the accepted slice stays
	// reserved and the offer can never be accepted or updated again
	require.Len(t, e.ActiveDExSells(admin), 0)
	require.EqualValues(t, "400.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())
	require.ErrorIs(t,
		e.Submit(dexAccept(addr1, admin, ledger.PropertyALL, ledger.NewAmount(10))),
		state.ErrUnknownOffer)
	require.ErrorIs(t,
		e.Submit(dexUpdate(admin, ledger.PropertyALL, ledger.NewAmount(600), ledger.NewAmount(1), 500)),
		state.ErrUnknownOffer)

	// the outstanding accept is still payable
	connect(t, e, dexPay(buyer, admin, ledger.Amount(10_000_000)))
	require.EqualValues(t, "100.00000000", e.GetBalance(buyer, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "300.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())

	// the accept expires well before the lengthened window; the unpaid slice
	// goes back to the seller, not to the pool, and the offer stays closed
	mineTo(t, e, 360)
	require.Len(t, e.ActiveDExSells(admin), 0)
	require.EqualValues(t, "0.00000000", e.GetBalance(admin, ledger.PropertyALL).Reserved.String())
	require.EqualValues(t, "699900.00000000", e.GetBalance(admin, ledger.PropertyALL).Available.String())
	require.ErrorIs(t,
		e.Submit(dexAccept(addr1, admin, ledger.PropertyALL, ledger.NewAmount(10))),
		state.ErrUnknownOffer)
}

func TestDExPaymentSpanningOffers(t *testing.T) {
	e := activated(t)

	// a property restricted to kyc id 5; the buyer carries kyc 0
	id, err := e.SubmitIssuance(layertx.Decoded{
		Sender: admin,
		Cmd:    &layertx.IssuanceFixed{Name: "closed", Amount: ledger.NewAmount(1000), KYCAllowed: []uint64{5}},
	})
	require.NoError(t, err)
	_, err = e.ConnectNext()
	require.NoError(t, err)

	connect(t, e, dexOfferNew(admin, ledger.PropertyALL, ledger.NewAmount(1000), ledger.NewAmount(1), 250))
	connect(t, e, dexOfferNew(admin, id, ledger.NewAmount(1000), ledger.NewAmount(1), 250))

	// accepts reserve without a kyc check, settlement is where it applies
	connect(t, e, dexAccept(buyer, admin, ledger.PropertyALL, ledger.NewAmount(100)))
	connect(t, e, dexAccept(buyer, admin, id, ledger.NewAmount(100)))

	// a payment covering both accepts fails on the restricted one and must
	// not settle the other either
	require.Error(t, e.Submit(dexPay(buyer, admin, ledger.Amount(20_000_000))))
	rejected := e.RejectedTxCount()
	require.NoError(t, e.ConnectBlock(e.Height()+1, []layertx.Decoded{dexPay(buyer, admin, ledger.Amount(20_000_000))}))
	require.EqualValues(t, rejected+1, e.RejectedTxCount())
	require.EqualValues(t, "0.00000000", e.GetBalance(buyer, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "0.00000000", e.GetBalance(buyer, id).Available.String())
	require.EqualValues(t, ledger.Amount(0), e.VolumeInRange(ledger.PropertyALL, 0, e.Height()))

	offers := e.ActiveDExSells(admin)
	require.Len(t, offers, 2)
	require.Len(t, offers[0].Accepts, 1)
	require.Len(t, offers[1].Accepts, 1)
	require.EqualValues(t, "100.00000000", offers[0].Accepts[0].Amount.String())

	// a payment touching only the open property settles normally
	connect(t, e, dexPay(buyer, admin, ledger.Amount(10_000_000)))
	require.EqualValues(t, "100.00000000", e.GetBalance(buyer, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "0.00000000", e.GetBalance(buyer, id).Available.String())
}

func TestChannels(t *testing.T) {
	e := activated(t)
	mineTo(t, e, 203)

	// created at height 204 with a 1000-block window
	connect(t, e, layertx.Decoded{
		Sender:    addr1,
		Reference: msig,
		Cmd:       &layertx.ChannelCreate{Second: addr2, Window: 1000},
	})
	require.EqualValues(t, 204, e.Height())

	ch, ok := e.ChannelInfo(msig)
	require.True(t, ok)
	require.EqualValues(t, msig, ch.Multisig)
	require.EqualValues(t, addr1, ch.First)
	require.EqualValues(t, addr2, ch.Second)
	require.EqualValues(t, 1204, ch.ExpiryBlock)
	require.True(t, ch.Active)

	// a second channel on the same multisig is rejected while active
	require.ErrorIs(t, e.Submit(layertx.Decoded{
		Sender:    addr3,
		Reference: msig,
		Cmd:       &layertx.ChannelCreate{Second: addr4, Window: 10},
	}), state.ErrChannelExists)

	// fund addr1 and commit into the channel escrow
	connect(t, e, layertx.Decoded{
		Sender:    admin,
		Reference: addr1,
		Cmd:       &layertx.SimpleSend{Property: ledger.PropertyALL, Amount: ledger.NewAmount(500)},
	})
	connect(t, e, layertx.Decoded{
		Sender:    addr1,
		Reference: msig,
		Cmd:       &layertx.ChannelCommit{Property: ledger.PropertyALL, Amount: ledger.NewAmount(100)},
	})

	require.EqualValues(t, "400.00000000", e.GetBalance(addr1, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "100.00000000", e.GetBalance(msig, ledger.PropertyALL).Reserved.String())

	commits := e.CheckCommits(addr1)
	require.Len(t, commits, 1)
	require.EqualValues(t, addr1, commits[0].Sender)
	require.EqualValues(t, ledger.PropertyALL, commits[0].Property)
	require.EqualValues(t, "100.00000000", commits[0].Amount.String())
	require.EqualValues(t, 206, commits[0].Block)
	require.Len(t, e.CheckCommits(addr2), 0)

	// commits against an unknown or expired channel are rejected
	require.ErrorIs(t, e.Submit(layertx.Decoded{
		Sender:    addr1,
		Reference: ledger.Address("nochannel"),
		Cmd:       &layertx.ChannelCommit{Property: ledger.PropertyALL, Amount: ledger.NewAmount(1)},
	}), state.ErrUnknownChannel)

	mineTo(t, e, 1205)
	ch, ok = e.ChannelInfo(msig)
	require.True(t, ok)
	require.False(t, ch.Active)
	require.ErrorIs(t, e.Submit(layertx.Decoded{
		Sender:    addr1,
		Reference: msig,
		Cmd:       &layertx.ChannelCommit{Property: ledger.PropertyALL, Amount: ledger.NewAmount(1)},
	}), state.ErrUnknownChannel)
}

// tradeVolume pushes the given base-currency DEx volume through one full
// offer cycle: 100 ALL sold at whatever price produces the volume
func tradeVolume(t *testing.T, e *Engine, coins int64) {
	connect(t, e, dexOfferNew(admin, ledger.PropertyALL, ledger.NewAmount(100), ledger.NewAmount(coins), 250))
	connect(t, e, dexAccept(buyer, admin, ledger.PropertyALL, ledger.NewAmount(100)))
	connect(t, e, dexPay(buyer, admin, ledger.NewAmount(coins)))
	require.Len(t, e.ActiveDExSells(admin), 0)
}

func TestVestingRelease(t *testing.T) {
	e := activated(t)

	// the issuer distributes 1000 vesting tokens each before the unlock
	for _, a := range []ledger.Address{addr1, addr2, addr3} {
		connect(t, e, layertx.Decoded{
			Sender:    admin,
			Reference: a,
			Cmd:       &layertx.SendVesting{Amount: ledger.NewAmount(1000)},
		})
		require.EqualValues(t, "1000.00000000", e.GetBalance(a, ledger.PropertyVesting).Available.String())
		require.EqualValues(t, "1000.00000000", e.GetUnvested(a).String())
		require.EqualValues(t, "0.00000000", e.GetBalance(a, ledger.PropertyALL).Available.String())
	}
	require.EqualValues(t, "1497000.00000000", e.GetUnvested(admin).String())

	// 200 coins of volume: 7.525749% released
	tradeVolume(t, e, 200)
	vi, ok := e.GetVestingInfo()
	require.True(t, ok)
	require.EqualValues(t, "7.52574900", vi.VestedPercent.String())
	require.EqualValues(t, "200.00000000", vi.Volume.String())
	require.EqualValues(t, e.Height(), vi.LastVestingBlock)
	require.EqualValues(t, 3, vi.Owners)
	require.EqualValues(t, "3000.00000000", vi.TotalVested.String())

	require.EqualValues(t, "75.25749000", e.GetBalance(addr1, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "924.74251000", e.GetUnvested(addr1).String())

	// 400 coins total: 15.051499%
	tradeVolume(t, e, 200)
	require.EqualValues(t, "150.51499000", e.GetBalance(addr1, ledger.PropertyALL).Available.String())

	// 4400 coins total: 41.086316%
	tradeVolume(t, e, 4000)
	require.EqualValues(t, "410.86316000", e.GetBalance(addr2, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "589.13684000", e.GetUnvested(addr2).String())

	vi, ok = e.GetVestingInfo()
	require.True(t, ok)
	require.EqualValues(t, "41.08631600", vi.VestedPercent.String())

	// released funds are ordinary ALL
	require.NoError(t, e.Submit(layertx.Decoded{
		Sender:    addr1,
		Reference: addr2,
		Cmd:       &layertx.SimpleSend{Property: ledger.PropertyALL, Amount: ledger.NewAmount(400)},
	}))
}

func TestVestingTransferLock(t *testing.T) {
	e := activated(t)

	connect(t, e, layertx.Decoded{
		Sender:    admin,
		Reference: addr3,
		Cmd:       &layertx.SendVesting{Amount: ledger.NewAmount(1000)},
	})
	tradeVolume(t, e, 4400)
	require.EqualValues(t, "410.86316000", e.GetBalance(addr3, ledger.PropertyALL).Available.String())

	// one year of carrier blocks must pass before non-issuer transfers
	require.ErrorIs(t, e.Submit(layertx.Decoded{
		Sender:    addr3,
		Reference: addr4,
		Cmd:       &layertx.SendVesting{Amount: ledger.NewAmount(500)},
	}), state.ErrVestingLocked)

	mineTo(t, e, ledger.RegTest.VestingUnlockHeight())
	connect(t, e, layertx.Decoded{
		Sender:    addr3,
		Reference: addr4,
		Cmd:       &layertx.SendVesting{Amount: ledger.NewAmount(500)},
	})

	// the receiver inherits the cohort: the released part stays with the
	// sender, the unreleased entitlement moves along
	require.EqualValues(t, "500.00000000", e.GetBalance(addr3, ledger.PropertyVesting).Available.String())
	require.EqualValues(t, "500.00000000", e.GetBalance(addr4, ledger.PropertyVesting).Available.String())
	require.EqualValues(t, "410.86316000", e.GetBalance(addr3, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "294.56842000", e.GetUnvested(addr4).String())
	require.EqualValues(t, "294.56842000", e.GetUnvested(addr3).String())

	// enough further volume releases everything on both sides
	tradeVolume(t, e, 1_000_000)
	require.EqualValues(t, "0.00000000", e.GetUnvested(addr3).String())
	require.EqualValues(t, "0.00000000", e.GetUnvested(addr4).String())
	require.EqualValues(t, "294.56842000", e.GetBalance(addr4, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "705.43158000", e.GetBalance(addr3, ledger.PropertyALL).Available.String())
}

func TestSupplyConservation(t *testing.T) {
	e := activated(t)

	connect(t, e, layertx.Decoded{
		Sender:    admin,
		Reference: addr1,
		Cmd:       &layertx.SendVesting{Amount: ledger.NewAmount(1000)},
	})
	tradeVolume(t, e, 4400)
	connect(t, e, layertx.Decoded{
		Sender:    buyer,
		Reference: msig,
		Cmd:       &layertx.ChannelCreate{Second: addr1, Window: 100},
	})
	connect(t, e, layertx.Decoded{
		Sender:    buyer,
		Reference: msig,
		Cmd:       &layertx.ChannelCommit{Property: ledger.PropertyALL, Amount: ledger.NewAmount(100)},
	})

	require.EqualValues(t, ledger.NewAmount(2_200_000), e.cur.TotalInCirculation(ledger.PropertyALL))
	require.EqualValues(t, ledger.NewAmount(1_500_000), e.cur.TotalInCirculation(ledger.PropertyVesting))
	require.EqualValues(t, ledger.NewAmount(700_000), e.cur.TotalInCirculation(ledger.PropertySLTC))
}

func TestVestedFractionNeverDecreases(t *testing.T) {
	e := activated(t)
	connect(t, e, layertx.Decoded{
		Sender:    admin,
		Reference: addr1,
		Cmd:       &layertx.SendVesting{Amount: ledger.NewAmount(1000)},
	})

	prev := int64(0)
	for _, coins := range []int64{150, 100, 500, 4000, 100000} {
		tradeVolume(t, e, coins)
		n := e.cur.VestedNumerator()
		require.GreaterOrEqual(t, n, prev)
		prev = n
	}
}

func TestSubmitRejectionCounters(t *testing.T) {
	e := activated(t)

	require.Error(t, e.Submit(layertx.Decoded{
		Sender:    addr1,
		Reference: addr2,
		Cmd:       &layertx.SimpleSend{Property: ledger.PropertyALL, Amount: ledger.NewAmount(1)},
	}))
	require.EqualValues(t, 1, e.RejectedTxCount())

	require.ErrorIs(t, e.DecodeAndSubmit(addr1, addr2, []byte{0xde, 0xad}), layertx.ErrDecode)
	require.EqualValues(t, 1, e.IgnoredTxCount())
}

func TestInvalidTxSkippedDuringReplay(t *testing.T) {
	e := activated(t)

	// an invalid command inside a block is skipped, the rest applies
	connect(t, e,
		layertx.Decoded{
			Sender:    addr1,
			Reference: addr2,
			Cmd:       &layertx.SimpleSend{Property: ledger.PropertyALL, Amount: ledger.NewAmount(999)},
		},
		layertx.Decoded{
			Sender:    admin,
			Reference: addr1,
			Cmd:       &layertx.SimpleSend{Property: ledger.PropertyALL, Amount: ledger.NewAmount(7)},
		},
	)
	require.EqualValues(t, "7.00000000", e.GetBalance(addr1, ledger.PropertyALL).Available.String())
	require.EqualValues(t, "0.00000000", e.GetBalance(addr2, ledger.PropertyALL).Available.String())
}

func TestConsensusHashAgreement(t *testing.T) {
	run := func() *Engine {
		e := activated(t)
		connect(t, e, layertx.Decoded{
			Sender:    admin,
			Reference: addr1,
			Cmd:       &layertx.SendVesting{Amount: ledger.NewAmount(1000)},
		})
		tradeVolume(t, e, 200)
		return e
	}
	e1, e2 := run(), run()
	require.EqualValues(t, e1.ConsensusHash(), e2.ConsensusHash())
	require.EqualValues(t, e1.Height(), e2.Height())

	// any divergence in applied commands diverges the hash
	connect(t, e2, selfAttest(msig))
	connect(t, e1)
	require.NotEqualValues(t, e1.ConsensusHash(), e2.ConsensusHash())
}

func TestRestartFromSnapshot(t *testing.T) {
	kvs := common.NewInMemoryKVStore()
	e1, err := New(global.New(), kvs, ledger.RegTest, admin)
	require.NoError(t, err)
	mineTo(t, e1, 100)
	connect(t, e1, selfAttest(addr1))
	connect(t, e1, layertx.Decoded{
		Sender:    admin,
		Reference: addr1,
		Cmd:       &layertx.SimpleSend{Property: ledger.PropertyALL, Amount: ledger.NewAmount(42)},
	})

	e2, err := New(global.New(), kvs, ledger.RegTest, admin)
	require.NoError(t, err)
	require.EqualValues(t, e1.Height(), e2.Height())
	require.EqualValues(t, e1.ConsensusHash(), e2.ConsensusHash())
	require.EqualValues(t, "42.00000000", e2.GetBalance(addr1, ledger.PropertyALL).Available.String())

	// both continue identically
	connect(t, e1)
	connect(t, e2)
	require.EqualValues(t, e1.ConsensusHash(), e2.ConsensusHash())
}

func TestDisconnectBlock(t *testing.T) {
	e := activated(t)
	hashBefore := e.ConsensusHash()
	heightBefore := e.Height()

	tx := layertx.Decoded{
		Sender:    admin,
		Reference: addr1,
		Cmd:       &layertx.SimpleSend{Property: ledger.PropertyALL, Amount: ledger.NewAmount(5)},
	}
	connect(t, e, tx)
	require.EqualValues(t, "5.00000000", e.GetBalance(addr1, ledger.PropertyALL).Available.String())

	require.NoError(t, e.DisconnectBlock())
	require.EqualValues(t, heightBefore, e.Height())
	require.EqualValues(t, hashBefore, e.ConsensusHash())
	require.EqualValues(t, "0.00000000", e.GetBalance(addr1, ledger.PropertyALL).Available.String())

	// replaying the same block reproduces the same hash
	connect(t, e, tx)
	hashReplayed := e.ConsensusHash()
	require.NoError(t, e.DisconnectBlock())
	connect(t, e, tx)
	require.EqualValues(t, hashReplayed, e.ConsensusHash())
}

func TestDisconnectBeyondRetention(t *testing.T) {
	e := newTestEngine(t, WithSnapshotsRetained(2))
	mineTo(t, e, 10)

	require.NoError(t, e.DisconnectBlock())
	require.NoError(t, e.DisconnectBlock())
	require.ErrorIs(t, e.DisconnectBlock(), ErrNoSnapshot)
	require.EqualValues(t, 8, e.Height())
}
