package ledger

import (
	"fmt"
	"math/big"
	"strings"
)

// Amount is a token or base-currency quantity in minor units, with 8 implied
// decimal places. All balance arithmetic is integer-only
type Amount int64

const (
	AmountDecimals = 8
	// AmountUnit is one whole token in minor units
	AmountUnit = Amount(100_000_000)
)

func NewAmount(whole int64) Amount {
	return Amount(whole) * AmountUnit
}

// String renders the amount as a fixed 8-decimal string, the only wire format
// for quantities
func (a Amount) String() string {
	sign := ""
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%08d", sign, int64(a)/int64(AmountUnit), int64(a)%int64(AmountUnit))
}

// AmountFromString parses a decimal string with at most 8 fractional digits
func AmountFromString(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("AmountFromString: empty string")
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > AmountDecimals {
		return 0, fmt.Errorf("AmountFromString: too many decimal places in '%s'", s)
	}
	fracPart += strings.Repeat("0", AmountDecimals-len(fracPart))

	var whole, frac int64
	if _, err := fmt.Sscanf(intPart, "%d", &whole); err != nil {
		return 0, fmt.Errorf("AmountFromString: wrong number '%s'", s)
	}
	if _, err := fmt.Sscanf(fracPart, "%d", &frac); err != nil {
		return 0, fmt.Errorf("AmountFromString: wrong number '%s'", s)
	}
	ret := whole*int64(AmountUnit) + frac
	if neg {
		ret = -ret
	}
	return Amount(ret), nil
}

// MulDivFloor returns floor(a*num/den) computed without intermediate overflow
func MulDivFloor(a Amount, num, den int64) Amount {
	r := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(num))
	r.Quo(r, big.NewInt(den))
	return Amount(r.Int64())
}

// MulDivRoundHalfUp returns a*num/den with the deterministic round-half-up
// policy on the minor-unit representation
func MulDivRoundHalfUp(a Amount, num, den int64) Amount {
	r := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(num))
	r.Mul(r, big.NewInt(2))
	r.Add(r, big.NewInt(den))
	r.Quo(r, big.NewInt(2*den))
	return Amount(r.Int64())
}

// UnitPrice is desired/offered at minor-unit scale, fixed at offer creation
func UnitPrice(desired, offered Amount) Amount {
	return MulDivRoundHalfUp(desired, int64(AmountUnit), int64(offered))
}
