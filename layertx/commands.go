package layertx

import (
	"github.com/tradelayer/tradelayerd/ledger"
)

// Layer-transaction commands, decoded once at the boundary from the opaque
// payload attached to a carrier transaction. One variant per operation;
// the engine matches on the concrete type exhaustively.

const PayloadVersion = uint16(0)

// type codes are part of the versioned wire grammar and never reused
const (
	TypeSimpleSend    = uint16(0)
	TypeSendVesting   = uint16(5)
	TypeDExOffer      = uint16(20)
	TypeDExAccept     = uint16(22)
	TypeDExPayment    = uint16(23)
	TypeIssuanceFixed = uint16(50)
	TypeChannelCreate = uint16(100)
	TypeChannelCommit = uint16(101)
	TypeAttestation   = uint16(110)
)

// DEx offer sub-actions
const (
	DExSubActionNew    = byte(1)
	DExSubActionUpdate = byte(2)
	DExSubActionCancel = byte(3)
)

type (
	Command interface {
		Type() uint16
	}

	// Decoded is a layer transaction with its carrier-resolved addresses.
	// Reference is the second address of the carrier transaction: receiver
	// for sends, seller for accepts/payments, multisig for channel commands
	Decoded struct {
		Sender    ledger.Address
		Reference ledger.Address
		Cmd       Command
	}

	IssuanceFixed struct {
		Divisible   bool
		Category    string
		Subcategory string
		Name        string
		Data        string
		URL         string
		Amount      ledger.Amount
		KYCAllowed  []uint64
	}

	SimpleSend struct {
		Property ledger.PropertyID
		Amount   ledger.Amount
	}

	SendVesting struct {
		Amount ledger.Amount
	}

	Attestation struct {
		KYCID uint64
	}

	DExOffer struct {
		Property      ledger.PropertyID
		AmountForSale ledger.Amount
		AmountDesired ledger.Amount
		PaymentWindow uint64
		MinFee        ledger.Amount
		Option        byte // reported as "action" on the wire, 2 = sell side
		SubAction     byte
	}

	DExAccept struct {
		Property ledger.PropertyID
		Amount   ledger.Amount
	}

	// DExPayment reflects an observed base-currency payment; the engine
	// only matches it against outstanding accepts, it moves no base currency
	DExPayment struct {
		Amount ledger.Amount
	}

	ChannelCreate struct {
		Second ledger.Address
		Window uint64
	}

	ChannelCommit struct {
		Property ledger.PropertyID
		Amount   ledger.Amount
	}
)

func (c *IssuanceFixed) Type() uint16 { return TypeIssuanceFixed }
func (c *SimpleSend) Type() uint16    { return TypeSimpleSend }
func (c *SendVesting) Type() uint16   { return TypeSendVesting }
func (c *Attestation) Type() uint16   { return TypeAttestation }
func (c *DExOffer) Type() uint16      { return TypeDExOffer }
func (c *DExAccept) Type() uint16     { return TypeDExAccept }
func (c *DExPayment) Type() uint16    { return TypeDExPayment }
func (c *ChannelCreate) Type() uint16 { return TypeChannelCreate }
func (c *ChannelCommit) Type() uint16 { return TypeChannelCommit }
