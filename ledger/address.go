package ledger

// Address is a carrier-chain address in its base58 string form. The layer
// treats it as an opaque identifier: address validity is the carrier's business
type Address string

func (a Address) IsNil() bool {
	return a == ""
}

// PropertyID identifies a token type on the layer. IDs are dense and monotonic
type PropertyID uint32

const (
	// PropertyALL is the layer's native token, released through vesting
	PropertyALL = PropertyID(1)
	// PropertySLTC is the synthetic base-currency token
	PropertySLTC = PropertyID(2)
	// PropertyVesting is the vesting-rights token created at activation
	PropertyVesting = PropertyID(3)
	// FirstFreePropertyID is where user issuance starts
	FirstFreePropertyID = PropertyID(4)
)
