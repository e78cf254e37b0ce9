package metrics

import (
	"math"

	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits kept by divisions and
// intermediate rounding.
const Precision int32 = 28

var (
	zero    = decimal.Zero
	one     = decimal.NewFromInt(1)
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
	tenK    = decimal.NewFromInt(10000)
	days    = decimal.NewFromInt(365)
)

func div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return zero
	}
	return a.DivRound(b, Precision)
}

// powInt raises base to an integer exponent by repeated squaring, rounding
// each product to Precision.
func powInt(base decimal.Decimal, exp int64) decimal.Decimal {
	if exp == 0 {
		return one
	}
	if exp < 0 {
		return div(one, powInt(base, -exp))
	}
	result := one
	b := base
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(b).Round(Precision)
		}
		exp >>= 1
		if exp > 0 {
			b = b.Mul(b).Round(Precision)
		}
	}
	return result
}

// sqrt returns the square root of x by Newton iteration; 0 for x <= 0.
func sqrt(x decimal.Decimal) decimal.Decimal {
	if x.Sign() <= 0 {
		return zero
	}
	guess := decimal.NewFromFloat(math.Sqrt(x.InexactFloat64()))
	if guess.Sign() <= 0 {
		guess = one
	}
	for i := 0; i < 64; i++ {
		next := guess.Add(div(x, guess)).DivRound(two, Precision)
		if next.Equal(guess) {
			break
		}
		guess = next
	}
	return guess
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if len(values) == 0 {
		return zero, zero
	}
	n := decimal.NewFromInt(int64(len(values)))
	mean := div(sum(values), n)
	variance := zero
	for _, v := range values {
		d := v.Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = div(variance, n)
	return mean, sqrt(variance)
}
