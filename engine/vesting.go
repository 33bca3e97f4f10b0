package engine

import (
	"github.com/tradelayer/tradelayerd/layertx"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/state"
	"github.com/tradelayer/tradelayerd/util"
)

// Vesting. Each vesting token carries an entitlement to one ALL, parked in
// the holder's unvested ALL bucket. The released fraction is a function of
// cumulative DEx base-currency volume only; block height enters solely
// through the one-year transfer lock

func (e *Engine) applySendVesting(s *state.Store, from, to ledger.Address, c *layertx.SendVesting) error {
	if c.Amount <= 0 {
		return state.ErrInvalidAmount
	}
	if to.IsNil() {
		return state.ErrInvalidAmount
	}
	p, ok := s.GetProperty(ledger.PropertyVesting)
	if !ok {
		return state.ErrUnknownProperty
	}
	// before one year since activation only the issuer may distribute
	if from != p.Issuer && s.Height() < e.params.VestingUnlockHeight() {
		return state.ErrVestingLocked
	}
	if err := s.Transfer(from, to, ledger.PropertyVesting, c.Amount); err != nil {
		return err
	}

	// the receiver inherits the cohort: the already-released part of the
	// moved entitlement counts as accrued, the rest moves as unvested ALL
	n := s.VestedNumerator()
	accruedMove := ledger.MulDivFloor(c.Amount, n, ledger.FractionUnit)
	unvestedMove := c.Amount - accruedMove

	fromPos := s.VestingPositionOf(from)
	senderUnvested := s.Balance(from, ledger.PropertyALL).Unvested
	if unvestedMove > senderUnvested {
		// floor rounding of earlier accruals can leave the sender a few
		// minor units short; the difference shifts to the accrued part
		accruedMove += unvestedMove - senderUnvested
		unvestedMove = senderUnvested
	}
	util.Assertf(fromPos.Accrued >= accruedMove, "vesting accrual underflow on transfer")
	fromPos.Accrued -= accruedMove
	s.VestingPositionOf(to).Accrued += accruedMove

	if unvestedMove > 0 {
		err := s.Debit(from, ledger.PropertyALL, unvestedMove, state.BucketUnvested)
		util.AssertNoError(err, "send vesting")
		s.Credit(to, ledger.PropertyALL, unvestedMove, state.BucketUnvested)
	}
	return nil
}

// vestingPass runs once per connected block, after DEx settlement and
// before hash accumulation. It moves funds forward only
func (e *Engine) vestingPass(s *state.Store) {
	if !s.HasProperty(ledger.PropertyVesting) {
		return
	}
	n := ledger.VestedNumerator(s.TotalVolume(), e.params.VolumeMultiplier)
	if n <= s.VestedNumerator() {
		return
	}
	s.SetVestedNumerator(n, s.Height())

	for _, addr := range s.VestingHolders() {
		e.catchUpHolder(s, addr, n)
	}
}

func (e *Engine) catchUpHolder(s *state.Store, addr ledger.Address, n int64) {
	bal := s.Balance(addr, ledger.PropertyVesting)
	entitlement := bal.Available + bal.Reserved
	pos := s.VestingPositionOf(addr)

	target := ledger.MulDivFloor(entitlement, n, ledger.FractionUnit)
	delta := target - pos.Accrued
	if delta <= 0 {
		return
	}
	if unvested := s.Balance(addr, ledger.PropertyALL).Unvested; delta > unvested {
		delta = unvested
	}
	if delta == 0 {
		return
	}
	err := s.Move(addr, ledger.PropertyALL, delta, state.BucketUnvested, state.BucketAvailable)
	util.AssertNoError(err, "vesting pass")
	pos.Accrued += delta
}
