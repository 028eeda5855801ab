package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the current position in one tradable symbol. Quantity and
// average cost change only when fills are applied.
type Holding struct {
	Portfolio string          `json:"portfolio"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ApplyFill mutates the holding for a filled trade. Buys blend the fill
// into the weighted-average cost; sells reduce quantity and leave the
// average cost untouched. A sell that empties the position resets the
// average cost to zero.
func (h *Holding) ApplyFill(direction Direction, qty, price decimal.Decimal) {
	switch direction {
	case DirectionBuy:
		newQty := h.Quantity.Add(qty)
		if newQty.IsPositive() {
			cost := h.Quantity.Mul(h.AvgCost).Add(qty.Mul(price))
			h.AvgCost = cost.Div(newQty)
		}
		h.Quantity = newQty
	case DirectionSell:
		h.Quantity = h.Quantity.Sub(qty)
		if !h.Quantity.IsPositive() {
			h.Quantity = decimal.Zero
			h.AvgCost = decimal.Zero
		}
	}
}

// MarketValue values the holding at the given price.
func (h *Holding) MarketValue(price decimal.Decimal) decimal.Decimal {
	return h.Quantity.Mul(price)
}
