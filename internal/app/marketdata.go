package app

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/pkg/transport"
	"github.com/coriolis-trading/execore/pkg/types"
)

// quoteTickWire is the JSON projection of a types.QuoteTick carried as an
// Envelope payload on a "Quote:<SYMBOL.VENUE>" topic. Price/Quantity are
// strings rather than the Decimal type's unexported fields, matching the
// reporting handler's view-struct convention.
type quoteTickWire struct {
	Symbol    string `json:"symbol"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	BidSize   string `json:"bid_size"`
	AskSize   string `json:"ask_size"`
	Timestamp string `json:"timestamp"`
}

// barWire is the JSON projection of a types.Bar published on a
// "Bar:<bar_type>" topic.
type barWire struct {
	Spec      string `json:"spec"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	Timestamp string `json:"timestamp"`
}

func quoteTickFromWire(w quoteTickWire) (types.QuoteTick, error) {
	symbol, err := types.ParseSymbol(w.Symbol)
	if err != nil {
		return types.QuoteTick{}, fmt.Errorf("parse symbol: %w", err)
	}
	bid, err := types.NewPrice(w.Bid, 5)
	if err != nil {
		return types.QuoteTick{}, fmt.Errorf("parse bid: %w", err)
	}
	ask, err := types.NewPrice(w.Ask, 5)
	if err != nil {
		return types.QuoteTick{}, fmt.Errorf("parse ask: %w", err)
	}
	bidSize, err := types.NewQuantity(w.BidSize)
	if err != nil {
		return types.QuoteTick{}, fmt.Errorf("parse bid size: %w", err)
	}
	askSize, err := types.NewQuantity(w.AskSize)
	if err != nil {
		return types.QuoteTick{}, fmt.Errorf("parse ask size: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return types.QuoteTick{}, fmt.Errorf("parse timestamp: %w", err)
	}

	return types.QuoteTick{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		BidSize:   bidSize,
		AskSize:   askSize,
		Timestamp: ts,
	}, nil
}

func barToWire(spec types.BarSpec, b types.Bar) barWire {
	return barWire{
		Spec:      spec.String(),
		Open:      b.Open.String(),
		High:      b.High.String(),
		Low:       b.Low.String(),
		Close:     b.Close.String(),
		Volume:    b.Volume.String(),
		Timestamp: b.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// marketDataAdapter bridges the data subscription bus and the bar
// manager: it subscribes to Quote topics for a fixed set of symbols,
// decodes each envelope into a types.QuoteTick fed to the bar manager,
// and republishes every completed bar back onto the bus as a Bar
// envelope, closing the loop spec §6 describes between the network
// boundary and the in-process aggregators.
type marketDataAdapter struct {
	logger  *zap.Logger
	bus     transport.Bus
	symbols []types.Symbol

	tickFeed chan types.QuoteTick
	ctx      context.Context
	cancel   context.CancelFunc
}

func newMarketDataAdapter(logger *zap.Logger, bus transport.Bus, symbols []types.Symbol) *marketDataAdapter {
	ctx, cancel := context.WithCancel(context.Background())
	return &marketDataAdapter{
		logger:   logger,
		bus:      bus,
		symbols:  symbols,
		tickFeed: make(chan types.QuoteTick, 1024),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// TickFeed returns the channel bar.Manager should ingest.
func (a *marketDataAdapter) TickFeed() <-chan types.QuoteTick {
	return a.tickFeed
}

// Start subscribes to every configured symbol's Quote topic and begins
// decoding envelopes onto the tick feed.
func (a *marketDataAdapter) Start(ctx context.Context) error {
	if len(a.symbols) == 0 {
		return nil
	}

	topics := make([]string, 0, len(a.symbols))
	for _, s := range a.symbols {
		topics = append(topics, transport.PublishPrefixQuote+s.String())
	}

	envelopes, err := a.bus.Subscribe(ctx, topics)
	if err != nil {
		return fmt.Errorf("subscribe quote topics: %w", err)
	}

	go a.decodeLoop(envelopes)

	return nil
}

func (a *marketDataAdapter) decodeLoop(envelopes <-chan *transport.Envelope) {
	for {
		select {
		case <-a.ctx.Done():
			return
		case env, ok := <-envelopes:
			if !ok {
				return
			}
			var wire quoteTickWire
			if err := json.Unmarshal(env.Payload, &wire); err != nil {
				a.logger.Warn("marketdata-bad-quote-tick", zap.Error(err))
				continue
			}
			tick, err := quoteTickFromWire(wire)
			if err != nil {
				a.logger.Warn("marketdata-quote-tick-decode-failed", zap.Error(err))
				continue
			}
			select {
			case a.tickFeed <- tick:
			default:
				a.logger.Warn("marketdata-tick-feed-full")
			}
		}
	}
}

// PublishBar republishes a completed bar onto the bus as the bar
// manager's Handler callback.
func (a *marketDataAdapter) PublishBar(spec types.BarSpec, b types.Bar) {
	payload, err := json.Marshal(barToWire(spec, b))
	if err != nil {
		a.logger.Error("marketdata-bar-marshal-failed", zap.Error(err))
		return
	}

	env := transport.NewEnvelope(payload, transport.ContentTypeJSON, transport.EncodingUTF8, "")
	topic := transport.PublishPrefixBar + string(spec.Type)
	if err := a.bus.Publish(a.ctx, topic, env); err != nil {
		a.logger.Error("marketdata-bar-publish-failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Close stops the decode loop. The tick feed channel is deliberately not
// closed here: decodeLoop's send and this call can race, and
// bar.Manager's own Close stops its read loop independently via its own
// context, so an unclosed, unreferenced channel is simply garbage
// collected rather than risking a send-on-closed-channel panic.
func (a *marketDataAdapter) Close() {
	a.cancel()
}
