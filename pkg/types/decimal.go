package types

import (
	"github.com/shopspring/decimal"
)

// Decimal is a fixed-precision decimal value. Precision is carried
// explicitly and independently of shopspring/decimal's own exponent, so
// that rendering always pads/truncates to the precision the value was
// constructed with rather than whatever scale the last arithmetic op left
// it at.
type Decimal struct {
	value     decimal.Decimal
	precision int32
}

// NewDecimal parses s at the given precision. Empty strings and malformed
// numbers are programmer errors (InvalidArgument).
func NewDecimal(s string, precision int32) (Decimal, error) {
	if s == "" {
		return Decimal{}, errInvalidArgument("decimal value cannot be empty")
	}
	if precision < 0 {
		return Decimal{}, errInvalidArgument("precision cannot be negative")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, errInvalidArgument("malformed decimal", "value", s)
	}
	return Decimal{value: v.Round(precision), precision: precision}, nil
}

// DecimalFromFloat builds a Decimal from a float64 at the given precision.
// Prefer NewDecimal from a string in code paths that read user/wire input;
// this constructor exists for literals in tests and internal computation.
func DecimalFromFloat(f float64, precision int32) Decimal {
	return Decimal{value: decimal.NewFromFloat(f).Round(precision), precision: precision}
}

// zeroDecimal returns a zero value at the given precision.
func zeroDecimal(precision int32) Decimal {
	return Decimal{value: decimal.Zero, precision: precision}
}

func (d Decimal) Precision() int32 { return d.precision }

func (d Decimal) IsZero() bool { return d.value.IsZero() }

func (d Decimal) Sign() int { return d.value.Sign() }

func (d Decimal) Float64() float64 {
	f, _ := d.value.Float64()
	return f
}

// maxPrecision returns the greater of two precisions, per the spec's
// "arithmetic preserves the greater precision" rule.
func maxPrecision(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func (d Decimal) Add(o Decimal) Decimal {
	p := maxPrecision(d.precision, o.precision)
	return Decimal{value: d.value.Add(o.value).Round(p), precision: p}
}

func (d Decimal) Sub(o Decimal) Decimal {
	p := maxPrecision(d.precision, o.precision)
	return Decimal{value: d.value.Sub(o.value).Round(p), precision: p}
}

func (d Decimal) Mul(o Decimal) Decimal {
	p := maxPrecision(d.precision, o.precision)
	return Decimal{value: d.value.Mul(o.value).Round(p), precision: p}
}

// Div divides d by o. Division by zero is an invariant violation: callers
// must guard it, it is never recoverable at this layer.
func (d Decimal) Div(o Decimal) Decimal {
	if o.value.IsZero() {
		panic(errInvariantViolation("division by zero decimal"))
	}
	p := maxPrecision(d.precision, o.precision)
	return Decimal{value: d.value.DivRound(o.value, p+2).Round(p), precision: p}
}

// Round returns d re-rounded to the given precision, keeping the same
// underlying value. Used to normalize a computed Decimal to a fixed
// precision expected by a wrapper type such as Money.
func (d Decimal) Round(precision int32) Decimal {
	return Decimal{value: d.value.Round(precision), precision: precision}
}

// Neg returns the additive inverse at the same precision.
func (d Decimal) Neg() Decimal {
	return Decimal{value: d.value.Neg(), precision: d.precision}
}

// Abs returns the absolute value at the same precision.
func (d Decimal) Abs() Decimal {
	return Decimal{value: d.value.Abs(), precision: d.precision}
}

// Equal compares by exact decimal value, ignoring precision (per spec:
// "comparisons by exact value").
func (d Decimal) Equal(o Decimal) bool {
	return d.value.Equal(o.value)
}

// Cmp returns -1, 0, or 1 comparing d to o by exact value.
func (d Decimal) Cmp(o Decimal) int {
	return d.value.Cmp(o.value)
}

func (d Decimal) GreaterThan(o Decimal) bool { return d.value.GreaterThan(o.value) }
func (d Decimal) LessThan(o Decimal) bool    { return d.value.LessThan(o.value) }

// String renders the value padded/truncated to the carried precision.
func (d Decimal) String() string {
	return d.value.StringFixed(d.precision)
}
