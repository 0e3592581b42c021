package order

import (
	"fmt"
	"sync"
	"time"

	"github.com/coriolis-trading/execore/pkg/types"
)

// IdGenerator produces OrderId values of the form
// O-<YYYYMMDD>-<HHMMSS>-<trader-tag>-<strategy-tag>-<count>, incrementing
// count once per strategy tag per generator instance. The date/time
// segment comes from the generator's clock at call time, not from the
// order's later init timestamp, matching a venue gateway's own id stamp.
type IdGenerator struct {
	traderTag types.IdTag
	clock     func() time.Time

	mu      sync.Mutex
	counts  map[types.IdTag]int
}

// NewIdGenerator builds a generator tagging every id with the given
// trader tag. clock defaults to time.Now when nil, letting tests inject a
// fixed time source.
func NewIdGenerator(traderTag types.IdTag, clock func() time.Time) *IdGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &IdGenerator{
		traderTag: traderTag,
		clock:     clock,
		counts:    make(map[types.IdTag]int),
	}
}

// Generate returns the next OrderId for the given strategy tag.
func (g *IdGenerator) Generate(strategyTag types.IdTag) types.OrderId {
	g.mu.Lock()
	g.counts[strategyTag]++
	count := g.counts[strategyTag]
	g.mu.Unlock()

	now := g.clock().UTC()
	value := fmt.Sprintf("O-%s-%s-%s-%s-%d",
		now.Format("20060102"), now.Format("150405"), g.traderTag, strategyTag, count)

	id, err := types.NewOrderId(value)
	if err != nil {
		// The format above is always non-empty, so NewOrderId cannot fail.
		panic(err)
	}
	return id
}
