package types

import "github.com/shopspring/decimal"

// Price is a venue-quoted price at an explicit precision.
type Price struct{ Decimal }

// NewPrice parses a price string at the given precision.
func NewPrice(s string, precision int32) (Price, error) {
	d, err := NewDecimal(s, precision)
	if err != nil {
		return Price{}, err
	}
	return Price{d}, nil
}

// PriceFromFloat builds a Price from a float64, for tests and internal
// computation where the value did not arrive as wire text.
func PriceFromFloat(f float64, precision int32) Price {
	return Price{DecimalFromFloat(f, precision)}
}

func (p Price) Add(o Price) Price { return Price{p.Decimal.Add(o.Decimal)} }
func (p Price) Sub(o Price) Price { return Price{p.Decimal.Sub(o.Decimal)} }

// Quantity is an integral contract count. Zero is permitted as a derived
// value (e.g. a flat position) and NewQuantity accepts it; order
// construction call sites that require strict positivity check it via
// RequirePositive.
type Quantity struct{ Decimal }

// NewQuantity parses an integer quantity string.
func NewQuantity(s string) (Quantity, error) {
	d, err := NewDecimal(s, 0)
	if err != nil {
		return Quantity{}, err
	}
	if raw, _ := decimal.NewFromString(s); !raw.Equal(raw.Truncate(0)) {
		return Quantity{}, errInvalidArgument("quantity must be an integer", "value", s)
	}
	return Quantity{d}, nil
}

// QuantityFromInt builds a Quantity from an int64.
func QuantityFromInt(n int64) Quantity {
	d, _ := NewDecimal(itoa(n), 0)
	return Quantity{d}
}

// RequirePositive returns an error unless the quantity is strictly > 0.
func (q Quantity) RequirePositive() error {
	if q.Sign() <= 0 {
		return errInvalidArgument("quantity must be positive", "value", q.String())
	}
	return nil
}

func (q Quantity) Add(o Quantity) Quantity { return Quantity{q.Decimal.Add(o.Decimal)} }
func (q Quantity) Sub(o Quantity) Quantity { return Quantity{q.Decimal.Sub(o.Decimal)} }

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
