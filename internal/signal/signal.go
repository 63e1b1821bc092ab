// Package signal standardizes the forecast payload shared between the forecaster, codec, and settlement layers.
package signal

import "math/big"

// Action is the binary trading decision carried on the wire as a single byte.
type Action uint8

const (
	// Sell indicates the forecast does not clear the upward threshold.
	Sell Action = 0
	// Buy indicates an upward move is predicted beyond the threshold.
	Buy Action = 1
)

// String renders the action the way the ledger contract reports it.
func (a Action) String() string {
	if a == Buy {
		return "BUY"
	}
	return "SELL"
}

// Valid reports whether the action is one of the two wire-legal values.
func (a Action) Valid() bool { return a <= Buy }

// Result is the committed forecast triple. Confidence and PredictedPrice are
// produced in uint64 range but travel as 256-bit words, so oversized values
// decoded from a payload are preserved rather than truncated.
type Result struct {
	Action         Action
	Confidence     *big.Int // regression fit as an integer percentage
	PredictedPrice *big.Int // next-period value in wei
}

// NewResult builds a Result from native integer values.
func NewResult(action Action, confidence uint64, predictedWei *big.Int) Result {
	return Result{
		Action:         action,
		Confidence:     new(big.Int).SetUint64(confidence),
		PredictedPrice: predictedWei,
	}
}

// Equal reports whether two results carry the same triple.
func (r Result) Equal(other Result) bool {
	return r.Action == other.Action &&
		bigEqual(r.Confidence, other.Confidence) &&
		bigEqual(r.PredictedPrice, other.PredictedPrice)
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
