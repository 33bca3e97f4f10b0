package ledger

import (
	"math/big"
	"strings"
)

// The vesting release curve. The vested fraction grows with the decimal
// logarithm of cumulative base-currency DEx volume: 0 at 10^4 effective
// coins, 1 at 10^8, i.e. fraction = (log10(volume_coins) - 4) / 4.
//
// Everything is computed on integers so that independent nodes agree
// bit-exactly. The fraction is carried as a numerator over FractionUnit.

// FractionUnit is the denominator of vested fractions (also: percent with
// 6 decimal digits)
const FractionUnit = int64(100_000_000)

const log10MantissaDigits = 25

// log10Fixed8 returns floor(log10(p) * 1e8) for p > 0, by the classic
// digit-by-digit mantissa algorithm: normalize to [1,10), then raise to the
// 10th power once per digit, truncating the mantissa back to a fixed width.
// Truncation keeps the numbers small; the relative error stays far below
// the last retained digit
func log10Fixed8(p *big.Int) int64 {
	s := p.String()
	ret := int64(len(s)-1) * FractionUnit

	ms := s
	if len(ms) > log10MantissaDigits {
		ms = ms[:log10MantissaDigits]
	} else {
		ms = ms + strings.Repeat("0", log10MantissaDigits-len(ms))
	}
	m, ok := new(big.Int).SetString(ms, 10)
	if !ok {
		panic("log10Fixed8: inconsistency")
	}

	ten := big.NewInt(10)
	scale := FractionUnit / 10
	for i := 0; i < AmountDecimals; i++ {
		m.Exp(m, ten, nil)
		ds := m.String()
		digit := int64(len(ds) - 1 - 10*(log10MantissaDigits-1))
		ret += digit * scale
		scale /= 10
		m.SetString(ds[:log10MantissaDigits], 10)
	}
	return ret
}

// VestedNumerator maps cumulative DEx volume (minor units) to the vested
// fraction numerator over FractionUnit, clamped to [0, FractionUnit].
// multiplier is Params.VolumeMultiplier.
//
// Reference points (regtest, x100): 200 coins -> 7525749 (7.525749%),
// 400 -> 15051499, 4400 -> 41086316
func VestedNumerator(volume Amount, multiplier int64) int64 {
	if volume <= 0 {
		return 0
	}
	p := new(big.Int).Mul(big.NewInt(int64(volume)), big.NewInt(multiplier))

	// the curve is 0 below 10^4 effective coins = 10^12 minor units
	if p.Cmp(big.NewInt(1_000_000_000_000)) <= 0 {
		return 0
	}
	l := log10Fixed8(p)
	// minor units shift by 1e8 and the curve offset of 4 decades, /4 to
	// normalize the 4-decade span
	ret := (l - 12*FractionUnit) / 4
	if ret < 0 {
		return 0
	}
	if ret > FractionUnit {
		return FractionUnit
	}
	return ret
}

// VestedPercentAmount renders a fraction numerator as a percent with the
// standard 8-decimal amount formatting
func VestedPercentAmount(numerator int64) Amount {
	return Amount(numerator * 100)
}
