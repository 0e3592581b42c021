package types

import "time"

// QuoteTick is a single bid/ask update for a symbol. It drives both
// position unrealized P&L (§4.3) and bar aggregation (§4.6).
type QuoteTick struct {
	Symbol    Symbol
	Bid       Price
	Ask       Price
	BidSize   Quantity
	AskSize   Quantity
	Timestamp time.Time
}

// MidPrice returns (bid+ask)/2 at precision = max(bid.prec, ask.prec)+1,
// per §4.6.
func (q QuoteTick) MidPrice() Price {
	p := maxPrecision(q.Bid.Precision(), q.Ask.Precision()) + 1
	sum := Decimal{value: q.Bid.value.Add(q.Ask.value), precision: p}
	two := DecimalFromFloat(2, p)
	return Price{sum.Div(two)}
}

// PriceFor selects the price driving a bar for the given PriceType.
func (q QuoteTick) PriceFor(pt PriceType) Price {
	switch pt {
	case Bid:
		return q.Bid
	case Ask:
		return q.Ask
	default:
		return q.MidPrice()
	}
}

// Bar is an OHLCV summary over a window of ticks.
type Bar struct {
	Open      Price
	High      Price
	Low       Price
	Close     Price
	Volume    Quantity
	Timestamp time.Time
}

// BarType identifies the aggregation kind driving a bar stream.
type BarType string

const (
	TickBars BarType = "TICK"
	TimeBars BarType = "TIME"
)

// BarSpec configures a bar aggregator.
type BarSpec struct {
	Symbol    Symbol
	Type      BarType
	PriceType PriceType

	// TickCount is the boundary for TickBars (every N ticks).
	TickCount int

	// Interval/Unit is the boundary for TimeBars.
	Interval int
	Unit     BarIntervalUnit

	// UsePreviousClose carries a fresh bar's open/close forward from the
	// prior bar's close when no ticks arrive in a window (TimeBars only).
	UsePreviousClose bool

	// VolumeRule governs how tick sizes accumulate into bar volume.
	VolumeRule VolumeRule
}

// String renders a stable key for a bar stream, used as the "Bar:<bar_type>"
// publish topic per §6.
func (s BarSpec) String() string {
	switch s.Type {
	case TickBars:
		return s.Symbol.String() + "-" + string(s.PriceType) + "-TICK-" + itoa(int64(s.TickCount))
	default:
		return s.Symbol.String() + "-" + string(s.PriceType) + "-TIME-" + itoa(int64(s.Interval)) + string(s.Unit)
	}
}
