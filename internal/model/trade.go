package model

// Order sides as the exchange API spells them.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// TradeRecord is one row of the append-only trade ledger. Written exactly once
// per executed buy or sell decision; never mutated or deleted.
type TradeRecord struct {
	ID        int64   `json:"id"`
	Action    string  `json:"action"` // buy or sell
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Profit    float64 `json:"profit"` // realized profit, 0 on buys
	Timestamp string  `json:"timestamp"`
}
