package execdb

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/coriolis-trading/execore/internal/order"
	"github.com/coriolis-trading/execore/internal/position"
	"github.com/coriolis-trading/execore/pkg/types"
)

// orderRecord/positionRecord/accountRecord are the durable-row shapes
// persisted by the SQL-backed databases: the full entity round-tripped
// through JSON into a single column, alongside the scalar columns a
// reporting query needs to filter/sort on without deserializing every
// row. Grounded on the teacher's postgres storage adapter, generalized
// from one flat opportunity row to an entity-plus-index-columns row.
type orderRecord struct {
	ID         string
	StrategyID string
	PositionID string
	Status     string
	UpdatedAt  time.Time
	Payload    []byte
}

type positionRecord struct {
	ID         string
	StrategyID string
	IsOpen     bool
	UpdatedAt  time.Time
	Payload    []byte
}

type accountRecord struct {
	ID        string
	UpdatedAt time.Time
	Payload   []byte
}

func encodeOrder(o *order.Order, strategyID types.StrategyId, positionID types.PositionId, ts time.Time) (orderRecord, error) {
	payload, err := json.Marshal(o)
	if err != nil {
		return orderRecord{}, err
	}
	return orderRecord{
		ID:         o.ID.String(),
		StrategyID: strategyID.String(),
		PositionID: positionID.String(),
		Status:     string(o.Status),
		UpdatedAt:  ts,
		Payload:    payload,
	}, nil
}

func decodeOrder(payload []byte) (*order.Order, error) {
	var o order.Order
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func encodePosition(p *position.Position, strategyID types.StrategyId, ts time.Time) (positionRecord, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return positionRecord{}, err
	}
	return positionRecord{
		ID:         p.ID.String(),
		StrategyID: strategyID.String(),
		IsOpen:     !p.IsFlat(),
		UpdatedAt:  ts,
		Payload:    payload,
	}, nil
}

func decodePosition(payload []byte) (*position.Position, error) {
	var p position.Position
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func encodeAccount(a *Account, ts time.Time) (accountRecord, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return accountRecord{}, err
	}
	return accountRecord{ID: a.ID.String(), UpdatedAt: ts, Payload: payload}, nil
}

func decodeAccount(payload []byte) (*Account, error) {
	var a Account
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
