package model

// PositionState is the sole authority on market exposure. Exactly one variant
// is active at any time. The sealed interface keeps "entry price present
// implies in position" enforced by the type system rather than by convention.
type PositionState interface {
	positionState()
}

// Idle means no open position.
type Idle struct{}

// InPosition carries an open long position. HighestPrice is non-decreasing
// for the lifetime of the position and resets only on the next entry.
type InPosition struct {
	EntryPrice   float64
	HighestPrice float64
	Quantity     float64
}

func (Idle) positionState()       {}
func (InPosition) positionState() {}
