package journal

import (
	"fmt"
	"math/big"

	"trendsignal-go/internal/signal"
)

// Fulfillment envelopes observed from the market wrap the journal behind a
// four-word header: an offset word, the request identifier, and two pointer
// words. Blobs long enough to carry that header are probed at the header
// boundary first.
const (
	envelopeHeader = 4 * Word
	envelopeSize   = envelopeHeader + Size
)

// Filter holds the plausibility checks a candidate window must pass before
// recovery accepts it. A strict decode can succeed by accident on framing
// bytes, so the range checks on the decoded values do the real gating.
type Filter struct {
	// MaxConfidence rejects windows whose confidence word exceeds a sane
	// percentage.
	MaxConfidence uint64
	// MinPredictedWei rejects windows whose price word is not strictly above
	// the smallest believable prediction.
	MinPredictedWei *big.Int
}

// DefaultFilter mirrors the checks the settlement side applies: percentage
// confidence, and more than a tenth of one ETH predicted.
func DefaultFilter() Filter {
	return Filter{
		MaxConfidence:   100,
		MinPredictedWei: new(big.Int).SetUint64(100_000_000_000_000_000),
	}
}

func (f Filter) permits(r signal.Result) bool {
	if !r.Action.Valid() {
		return false
	}
	if r.Confidence == nil || !r.Confidence.IsUint64() || r.Confidence.Uint64() > f.MaxConfidence {
		return false
	}
	if f.MinPredictedWei != nil {
		if r.PredictedPrice == nil || r.PredictedPrice.Cmp(f.MinPredictedWei) <= 0 {
			return false
		}
	}
	return true
}

// Recover scans an externally framed blob for the canonical journal using
// the default filter.
func Recover(blob []byte) (signal.Result, error) {
	return RecoverFiltered(blob, DefaultFilter())
}

// RecoverFiltered scans 32-byte-aligned windows of blob for a journal that
// decodes cleanly and passes the filter. When the blob is long enough to be
// a full envelope the header boundary is probed first; remaining offsets are
// tried in increasing order, and the first plausible window wins. No value
// is ever synthesized: a blob with no plausible window is an error.
func RecoverFiltered(blob []byte, f Filter) (signal.Result, error) {
	if len(blob) < Size {
		return signal.Result{}, fmt.Errorf("%w: got %d bytes, want at least %d", ErrTooShort, len(blob), Size)
	}
	enveloped := len(blob) >= envelopeSize
	if enveloped {
		if r, ok := tryWindow(blob, envelopeHeader, f); ok {
			return r, nil
		}
	}
	for off := 0; off+Size <= len(blob); off += Word {
		if enveloped && off == envelopeHeader {
			continue
		}
		if r, ok := tryWindow(blob, off, f); ok {
			return r, nil
		}
	}
	offsets := 1 + (len(blob)-Size)/Word
	return signal.Result{}, fmt.Errorf("%w: scanned %d aligned offsets in %d bytes", ErrNoValidTuple, offsets, len(blob))
}

func tryWindow(blob []byte, off int, f Filter) (signal.Result, bool) {
	r, err := Decode(blob[off : off+Size])
	if err != nil {
		return signal.Result{}, false
	}
	if !f.permits(r) {
		return signal.Result{}, false
	}
	return r, true
}
