package types

// Currency is an ISO-4217-shaped currency tag (e.g. "USD").
type Currency string

// Money is a Decimal tagged with a Currency. Arithmetic between different
// currencies is rejected (IncompatibleCurrency) rather than silently
// combining amounts across currencies.
type Money struct {
	Decimal
	Currency Currency
}

// NewMoney parses an amount string for the given currency. Money is always
// carried at 2-decimal precision, matching the conventional minor-unit
// precision of the currencies this engine settles in.
func NewMoney(s string, currency Currency) (Money, error) {
	d, err := NewDecimal(s, 2)
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d, Currency: currency}, nil
}

// MoneyFromFloat builds Money from a float64 for the given currency.
func MoneyFromFloat(f float64, currency Currency) Money {
	return Money{Decimal: DecimalFromFloat(f, 2), Currency: currency}
}

// ZeroMoney returns a zero amount in the given currency.
func ZeroMoney(currency Currency) Money {
	return Money{Decimal: zeroDecimal(2), Currency: currency}
}

func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, errIncompatibleCurrency("cannot add money of different currencies",
			"lhs", string(m.Currency), "rhs", string(o.Currency))
	}
	return Money{Decimal: m.Decimal.Add(o.Decimal), Currency: m.Currency}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, errIncompatibleCurrency("cannot subtract money of different currencies",
			"lhs", string(m.Currency), "rhs", string(o.Currency))
	}
	return Money{Decimal: m.Decimal.Sub(o.Decimal), Currency: m.Currency}, nil
}

// String renders as "123.45 USD".
func (m Money) String() string {
	return m.Decimal.String() + " " + string(m.Currency)
}
