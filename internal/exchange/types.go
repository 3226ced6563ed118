package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexFloat decodes JSON numbers that the upstream API encodes either as
// numbers or as quoted strings, which it mixes freely across trade, candle,
// and balance payloads.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("flex float %q: %w", s, err)
		}
		*f = FlexFloat(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// tradeTick is one row of the public trade_history response.
type tradeTick struct {
	Price FlexFloat `json:"p"`
}

// bar is one row of the public candles response, newest first.
type bar struct {
	Time  int64     `json:"time"`
	Open  FlexFloat `json:"open"`
	High  FlexFloat `json:"high"`
	Low   FlexFloat `json:"low"`
	Close FlexFloat `json:"close"`
}

// balanceEntry is one row of the authenticated balances response.
type balanceEntry struct {
	Currency string    `json:"currency"`
	Balance  FlexFloat `json:"balance"`
}

// orderPayload is the signed body of an order-create request.
type orderPayload struct {
	Side          string  `json:"side"`
	OrderType     string  `json:"order_type"`
	Market        string  `json:"market"`
	PricePerUnit  float64 `json:"price_per_unit"`
	TotalQuantity float64 `json:"total_quantity"`
	ClientOrderID string  `json:"client_order_id"`
	Timestamp     int64   `json:"timestamp"`
}
