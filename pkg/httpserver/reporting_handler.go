package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/internal/execdb"
	"github.com/coriolis-trading/execore/internal/order"
	"github.com/coriolis-trading/execore/internal/position"
	"github.com/coriolis-trading/execore/pkg/types"
)

// ReportingHandler serves read-only snapshots of the execution database
// over HTTP: orders, positions, and accounts.
type ReportingHandler struct {
	db     execdb.ExecutionDatabase
	logger *zap.Logger
}

// NewReportingHandler creates a new reporting handler.
func NewReportingHandler(db execdb.ExecutionDatabase, logger *zap.Logger) *ReportingHandler {
	return &ReportingHandler{db: db, logger: logger}
}

// OrderView is the JSON projection of an order.Order.
type OrderView struct {
	OrderId        string `json:"order_id"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	Quantity       string `json:"quantity"`
	Price          string `json:"price,omitempty"`
	Status         string `json:"status"`
	FilledQuantity string `json:"filled_quantity"`
	AveragePrice   string `json:"average_price,omitempty"`
}

// PositionView is the JSON projection of a position.Position.
type PositionView struct {
	PositionId     string `json:"position_id"`
	Symbol         string `json:"symbol"`
	MarketPosition string `json:"market_position"`
	Quantity       string `json:"quantity"`
	AverageOpen    string `json:"average_open_price"`
	AverageClose   string `json:"average_close_price,omitempty"`
	RealizedPnl    string `json:"realized_pnl"`
}

// AccountView is the JSON projection of an execdb.Account.
type AccountView struct {
	AccountId string `json:"account_id"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func orderView(o *order.Order) OrderView {
	v := OrderView{
		OrderId:        o.ID.String(),
		Symbol:         o.Symbol.String(),
		Side:           string(o.Side),
		Type:           string(o.Type),
		Quantity:       o.Quantity.String(),
		Status:         string(o.Status),
		FilledQuantity: o.FilledQuantity.String(),
	}
	if o.Type.RequiresPrice() {
		v.Price = o.Price.String()
	}
	if !o.FilledQuantity.IsZero() {
		v.AveragePrice = o.AveragePrice.String()
	}
	return v
}

func positionView(p *position.Position) PositionView {
	v := PositionView{
		PositionId:     p.ID.String(),
		Symbol:         p.Symbol.String(),
		MarketPosition: string(p.MarketPosition),
		Quantity:       p.Quantity.String(),
		AverageOpen:    p.AverageOpenPrice.String(),
		RealizedPnl:    p.RealizedPnl.String(),
	}
	if !p.ClosedTime.IsZero() {
		v.AverageClose = p.AverageClosePrice.String()
	}
	return v
}

// HandleOrders handles GET /api/orders?strategy_id=<NAME-TAG>, listing every
// order or, with strategy_id set, only that strategy's orders.
func (h *ReportingHandler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	strategyID, err := strategyFilter(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	orders := h.db.GetOrders(strategyID)
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}
	h.writeJSON(w, views)
}

// HandlePositions handles GET /api/positions?strategy_id=<NAME-TAG>&open=true.
func (h *ReportingHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	strategyID, err := strategyFilter(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var positions []*position.Position
	switch r.URL.Query().Get("open") {
	case "true":
		positions = h.db.GetPositionsOpen(strategyID)
	case "false":
		positions = h.db.GetPositionsClosed(strategyID)
	default:
		positions = h.db.GetPositions(strategyID)
	}

	views := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		views = append(views, positionView(p))
	}
	h.writeJSON(w, views)
}

// HandleAccount handles GET /api/accounts/{accountId}.
func (h *ReportingHandler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := chi.URLParam(r, "accountId")
	id, err := types.ParseAccountId(raw)
	if err != nil {
		h.writeError(w, "invalid account id: "+raw, http.StatusBadRequest)
		return
	}

	account, found := h.db.GetAccount(id)
	if !found {
		h.writeError(w, "account not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, AccountView{AccountId: account.ID.String()})
}

// strategyFilter reads the optional strategy_id query parameter, parsing
// it into a types.StrategyId when present.
func strategyFilter(r *http.Request) (*types.StrategyId, error) {
	raw := r.URL.Query().Get("strategy_id")
	if raw == "" {
		return nil, nil
	}
	id, err := types.ParseStrategyId(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (h *ReportingHandler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *ReportingHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
