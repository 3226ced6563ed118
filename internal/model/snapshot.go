package model

// Snapshot is the externally visible view of the engine state. The engine owns
// the single mutable instance; readers always receive a copy, never a live
// reference. Logs are most-recent-first and bounded.
type Snapshot struct {
	Price        float64  `json:"price"`
	RSI          float64  `json:"rsi"`
	BandLower    float64  `json:"bb_lower"`
	BandUpper    float64  `json:"bb_upper"`
	Status       string   `json:"status"`
	EntryPrice   float64  `json:"entry_price"` // 0 = no open position
	PositionQty  float64  `json:"position_qty"`
	UnrealizedPL float64  `json:"unrealized_pl"` // percent, 0 while idle
	RealizedPL   float64  `json:"realized_pl"`   // cumulative booked profit
	WalletQuote  float64  `json:"wallet_usdt"`
	WalletBase   float64  `json:"wallet_btc"`
	Logs         []string `json:"logs"`
}
