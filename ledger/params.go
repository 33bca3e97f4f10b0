package ledger

// Params are the per-network constants of the layer. All windows are block
// counts: the engine never looks at wall-clock time
type Params struct {
	Name string
	// VestingActivationBlock is the height at which the vesting property is
	// created and its release clock starts
	VestingActivationBlock uint64
	// OneYearBlocks is a year of carrier blocks; transfers of vesting tokens
	// by anyone but the issuer are invalid before activation + one year
	OneYearBlocks uint64
	// VolumeMultiplier scales observed base-currency volume before it enters
	// the release curve (regtest compresses volume x100)
	VolumeMultiplier int64
	// VestingSupply is credited to the admin address at activation
	VestingSupply Amount
	// NativeSupply of ALL and sLTC outside the vesting reserve
	NativeSupply Amount
}

var (
	// MainNet: 2.5-minute carrier blocks, 210240 per year
	MainNet = Params{
		Name:                   "mainnet",
		VestingActivationBlock: 100,
		OneYearBlocks:          210240,
		VolumeMultiplier:       1,
		VestingSupply:          NewAmount(1_500_000),
		NativeSupply:           NewAmount(700_000),
	}

	// RegTest compresses the year to 920 blocks and volume x100
	RegTest = Params{
		Name:                   "regtest",
		VestingActivationBlock: 100,
		OneYearBlocks:          920,
		VolumeMultiplier:       100,
		VestingSupply:          NewAmount(1_500_000),
		NativeSupply:           NewAmount(700_000),
	}
)

func ParamsByName(name string) (Params, bool) {
	switch name {
	case MainNet.Name:
		return MainNet, true
	case RegTest.Name:
		return RegTest, true
	}
	return Params{}, false
}

// VestingUnlockHeight is the first height at which non-issuer vesting
// transfers become valid
func (p *Params) VestingUnlockHeight() uint64 {
	return p.VestingActivationBlock + p.OneYearBlocks
}
