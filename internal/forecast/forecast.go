// Package forecast implements the deterministic price-trend forecaster whose
// committed output is checked externally.
//
// Everything here is integer arithmetic over a fixed table. Two runs with the
// same input must produce byte-identical journals, because the committed
// bytes are verified against the proof on the settlement side; no floats, no
// clocks, no randomness.
package forecast

import (
	"fmt"
	"math/big"

	"trendsignal-go/internal/journal"
	"trendsignal-go/internal/signal"
)

// AssumedCurrentPriceUSD anchors the observed wei amount to the table's USD
// unit. It sits at the start of the historical window.
const AssumedCurrentPriceUSD uint64 = 3200

// PricePoint is one day of the embedded ETH/USD history.
type PricePoint struct {
	Day      uint64
	PriceUSD uint64
}

// priceHistory is the 30-day ETH/USD closing window the regression runs on.
// The table is fixed at build time: it is the shared ground truth both sides
// of the verification agree on, so editing it changes the committed output.
var priceHistory = [30]PricePoint{
	{1, 3200}, {2, 3215}, {3, 3189}, {4, 3221}, {5, 3254},
	{6, 3278}, {7, 3242}, {8, 3291}, {9, 3315}, {10, 3287},
	{11, 3324}, {12, 3352}, {13, 3389}, {14, 3412}, {15, 3398},
	{16, 3436}, {17, 3462}, {18, 3489}, {19, 3453}, {20, 3507},
	{21, 3534}, {22, 3561}, {23, 3528}, {24, 3582}, {25, 3615},
	{26, 3648}, {27, 3621}, {28, 3674}, {29, 3702}, {30, 3735},
}

// History returns a copy of the embedded price table.
func History() []PricePoint {
	out := make([]PricePoint, len(priceHistory))
	copy(out, priceHistory[:])
	return out
}

// NextDay is the first time index past the table, the one the model
// extrapolates to.
func NextDay() uint64 {
	return priceHistory[len(priceHistory)-1].Day + 1
}

// BuyThreshold is the USD price the extrapolation must exceed for a buy:
// the anchor price plus half a percent.
func BuyThreshold() uint64 {
	return AssumedCurrentPriceUSD + AssumedCurrentPriceUSD/200
}

// Model is the fitted trend line plus its goodness of fit.
type Model struct {
	Slope      int64
	Intercept  int64
	Confidence uint64 // R² as an integer percentage, 0..100
}

// Regress fits a least-squares line through the price table using truncating
// integer division throughout. The slope loses sub-unit precision on purpose;
// the verifier recomputes the same truncated values.
func Regress() Model {
	n := int64(len(priceHistory))

	var sumX, sumY int64
	for _, p := range priceHistory {
		sumX += int64(p.Day)
		sumY += int64(p.PriceUSD)
	}
	meanX := sumX / n
	meanY := sumY / n

	var num, den, sst int64
	for _, p := range priceHistory {
		dx := int64(p.Day) - meanX
		dy := int64(p.PriceUSD) - meanY
		num += dx * dy
		den += dx * dx
		sst += dy * dy
	}
	var slope int64
	if den != 0 {
		slope = num / den
	}
	intercept := meanY - slope*meanX

	var sse int64
	for _, p := range priceHistory {
		fit := slope*int64(p.Day) + intercept
		resid := int64(p.PriceUSD) - fit
		sse += resid * resid
	}
	var confidence uint64
	if sst > 0 {
		if pct := (sst - sse) * 100 / sst; pct > 0 {
			confidence = uint64(pct)
		}
	}
	if confidence > 100 {
		confidence = 100
	}
	return Model{Slope: slope, Intercept: intercept, Confidence: confidence}
}

// PredictUSD extrapolates the fitted line to the given day. A negative
// extrapolation clamps to zero, which always reads as a sell.
func (m Model) PredictUSD(day uint64) uint64 {
	v := m.Slope*int64(day) + m.Intercept
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// Run evaluates the trading rule for the observed wei amount. The decision
// and confidence depend only on the table; the input amount only scales the
// predicted price into wei.
func Run(amountWei uint64) signal.Result {
	model := Regress()
	predictedUSD := model.PredictUSD(NextDay())

	action := signal.Sell
	if predictedUSD > BuyThreshold() {
		action = signal.Buy
	}
	return signal.NewResult(action, model.Confidence, rescaleWei(amountWei, predictedUSD, AssumedCurrentPriceUSD))
}

// rescaleWei converts the USD prediction into the observed amount's unit:
// amountWei * predictedUSD / referenceUSD. The product of two uint64 values
// does not fit a machine word, so the intermediate runs through big.Int; a
// zero reference degrades to the observed amount unchanged.
func rescaleWei(amountWei, predictedUSD, referenceUSD uint64) *big.Int {
	if referenceUSD == 0 {
		return new(big.Int).SetUint64(amountWei)
	}
	v := new(big.Int).SetUint64(amountWei)
	v.Mul(v, new(big.Int).SetUint64(predictedUSD))
	return v.Quo(v, new(big.Int).SetUint64(referenceUSD))
}

// RunEncoded is the guest-style entrypoint: one ABI-encoded amount word in,
// the canonical journal out.
func RunEncoded(input []byte) ([]byte, error) {
	amountWei, err := journal.DecodeAmount(input)
	if err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return journal.Encode(Run(amountWei)), nil
}
