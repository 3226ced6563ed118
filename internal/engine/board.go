package engine

import (
	"fmt"
	"log"
	"sync"
	"time"

	"scalper-botv1/internal/model"
)

const maxLogLines = 30

// Status strings published to the snapshot.
const (
	StatusStarting   = "STARTING"
	StatusScanning   = "IDLE (scanning)"
	StatusInPosition = "IN POSITION"
	StatusHolding    = "HOLDING"
	StatusIdle       = "IDLE"
)

// Board is the shared, read-mostly view of engine state. The engine goroutine
// is the sole writer; HTTP and WebSocket readers take copies under a read
// lock. Writes happen in short critical sections grouped by concern — the
// market fields together, the position fields together — so a reader never
// observes a torn combination within a group. No lock is ever held across
// network or disk I/O.
type Board struct {
	mu   sync.RWMutex
	data model.Snapshot
}

// NewBoard creates a Board with startup defaults.
func NewBoard() *Board {
	return &Board{data: model.Snapshot{Status: StatusStarting, RSI: 50}}
}

// SetMarket updates the price/indicator field group in one critical section.
func (b *Board) SetMarket(price, rsi, bandLower, bandUpper, unrealizedPL float64) {
	b.mu.Lock()
	b.data.Price = price
	b.data.RSI = rsi
	b.data.BandLower = bandLower
	b.data.BandUpper = bandUpper
	b.data.UnrealizedPL = unrealizedPL
	b.mu.Unlock()
}

// SetPosition updates the status/position field group in one critical section.
func (b *Board) SetPosition(status string, entryPrice, qty float64) {
	b.mu.Lock()
	b.data.Status = status
	b.data.EntryPrice = entryPrice
	b.data.PositionQty = qty
	b.mu.Unlock()
}

// ExitPosition books the realized profit and clears the position fields in a
// single critical section so readers never see the profit without the exit.
func (b *Board) ExitPosition(profit float64) {
	b.mu.Lock()
	b.data.Status = StatusIdle
	b.data.EntryPrice = 0
	b.data.PositionQty = 0
	b.data.UnrealizedPL = 0
	b.data.RealizedPL += profit
	b.mu.Unlock()
}

// SetWallet updates the wallet balances.
func (b *Board) SetWallet(quote, base float64) {
	b.mu.Lock()
	b.data.WalletQuote = quote
	b.data.WalletBase = base
	b.mu.Unlock()
}

// Logf appends a timestamped line to the bounded ring (newest first) and
// echoes it to the process log.
func (b *Board) Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[engine] %s", msg)
	line := time.Now().Format("15:04:05") + " | " + msg

	b.mu.Lock()
	b.data.Logs = append([]string{line}, b.data.Logs...)
	if len(b.data.Logs) > maxLogLines {
		b.data.Logs = b.data.Logs[:maxLogLines]
	}
	b.mu.Unlock()
}

// Read returns a copy of the current snapshot, logs included. Callers never
// receive a live reference.
func (b *Board) Read() model.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := b.data
	snap.Logs = append([]string(nil), b.data.Logs...)
	return snap
}
