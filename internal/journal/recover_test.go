package journal

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"trendsignal-go/internal/signal"
)

func buyResult(t *testing.T) signal.Result {
	t.Helper()
	return signal.NewResult(signal.Buy, 97, mustBig(t, "4182750000000000000"))
}

// wrap frames a journal the way market fulfillments arrive: four header
// words, the journal, and one pad word.
func wrap(committed []byte) []byte {
	header := make([]byte, envelopeHeader)
	header[Word-1] = 0x20
	header[2*Word-1] = 0xaa // request id word
	header[3*Word-1] = 0x80
	header[4*Word-1] = 0xc0
	out := append(header, committed...)
	return append(out, make([]byte, Word)...)
}

func TestRecoverBareJournal(t *testing.T) {
	want := buyResult(t)
	got, err := Recover(Encode(want))
	if err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("recover mismatch: got %+v want %+v", got, want)
	}
}

func TestRecoverEnvelopedJournal(t *testing.T) {
	want := buyResult(t)
	blob := wrap(Encode(want))
	if len(blob) != 256 {
		t.Fatalf("expected 256-byte envelope, got %d", len(blob))
	}
	got, err := Recover(blob)
	if err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("recover mismatch: got %+v want %+v", got, want)
	}
}

func TestRecoverMinimalEnvelope(t *testing.T) {
	want := buyResult(t)
	blob := append(make([]byte, envelopeHeader), Encode(want)...)
	if len(blob) != envelopeSize {
		t.Fatalf("expected %d-byte blob, got %d", envelopeSize, len(blob))
	}
	got, err := Recover(blob)
	if err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("recover mismatch: got %+v want %+v", got, want)
	}
}

func TestRecoverPrefersEnvelopeOffset(t *testing.T) {
	want := buyResult(t)
	decoy := signal.NewResult(signal.Sell, 50, mustBig(t, "2000000000000000000"))

	// The decoy occupies words 1..3 so the window at offset 32 decodes
	// cleanly and passes the filter; the real journal sits at the envelope
	// boundary and must still win.
	blob := make([]byte, 0, envelopeSize)
	blob = append(blob, make([]byte, Word)...)
	blob = append(blob, Encode(decoy)...)
	blob = append(blob, Encode(want)...)
	if len(blob) != envelopeSize {
		t.Fatalf("expected %d-byte blob, got %d", envelopeSize, len(blob))
	}

	got, err := Recover(blob)
	if err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("expected envelope-offset journal, got %+v", got)
	}
}

func TestRecoverScansEarliestFirst(t *testing.T) {
	first := buyResult(t)
	second := signal.NewResult(signal.Sell, 50, mustBig(t, "2000000000000000000"))

	// 192 bytes is below the envelope threshold, so the scan runs in plain
	// increasing order.
	blob := append(Encode(first), Encode(second)...)
	got, err := Recover(blob)
	if err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	if !got.Equal(first) {
		t.Fatalf("expected earliest journal, got %+v", got)
	}
}

func TestRecoverSkipsGarbagePrefix(t *testing.T) {
	want := buyResult(t)
	prefix := bytes.Repeat([]byte{0xde}, Word)
	blob := append(prefix, Encode(want)...)
	got, err := Recover(blob)
	if err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("recover mismatch: got %+v want %+v", got, want)
	}
}

func TestRecoverTooShort(t *testing.T) {
	if _, err := Recover(make([]byte, Size-1)); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestRecoverNoValidTuple(t *testing.T) {
	blob := bytes.Repeat([]byte{0xff}, 256)
	if _, err := Recover(blob); !errors.Is(err, ErrNoValidTuple) {
		t.Fatalf("expected ErrNoValidTuple, got %v", err)
	}
}

func TestRecoverRejectsZeroJournal(t *testing.T) {
	// All-zero bytes decode as a SELL with zero price, which the plausibility
	// floor must reject rather than surface as a real signal.
	if _, err := Recover(make([]byte, 256)); !errors.Is(err, ErrNoValidTuple) {
		t.Fatalf("expected ErrNoValidTuple, got %v", err)
	}
}

func TestFilterFloorIsStrict(t *testing.T) {
	floor := DefaultFilter().MinPredictedWei

	at := signal.NewResult(signal.Buy, 97, new(big.Int).Set(floor))
	if _, err := Recover(Encode(at)); !errors.Is(err, ErrNoValidTuple) {
		t.Fatalf("price at floor should be rejected, got %v", err)
	}

	above := signal.NewResult(signal.Buy, 97, new(big.Int).Add(floor, big.NewInt(1)))
	got, err := Recover(Encode(above))
	if err != nil {
		t.Fatalf("price above floor should pass: %v", err)
	}
	if !got.Equal(above) {
		t.Fatalf("recover mismatch: got %+v want %+v", got, above)
	}
}

func TestFilterRejectsImplausibleConfidence(t *testing.T) {
	over := signal.NewResult(signal.Buy, 101, mustBig(t, "4182750000000000000"))
	if _, err := Recover(Encode(over)); !errors.Is(err, ErrNoValidTuple) {
		t.Fatalf("confidence over 100 should be rejected, got %v", err)
	}

	wide := signal.Result{
		Action:         signal.Buy,
		Confidence:     new(big.Int).Lsh(big.NewInt(1), 70),
		PredictedPrice: mustBig(t, "4182750000000000000"),
	}
	if _, err := Recover(Encode(wide)); !errors.Is(err, ErrNoValidTuple) {
		t.Fatalf("oversized confidence should be rejected, got %v", err)
	}
}

func TestRecoverFilteredCustomBounds(t *testing.T) {
	r := buyResult(t)
	strict := Filter{MaxConfidence: 50, MinPredictedWei: big.NewInt(1)}
	if _, err := RecoverFiltered(Encode(r), strict); !errors.Is(err, ErrNoValidTuple) {
		t.Fatalf("expected custom confidence bound to reject, got %v", err)
	}
	loose := Filter{MaxConfidence: 100, MinPredictedWei: nil}
	got, err := RecoverFiltered(Encode(r), loose)
	if err != nil {
		t.Fatalf("RecoverFiltered returned error: %v", err)
	}
	if !got.Equal(r) {
		t.Fatalf("recover mismatch: got %+v want %+v", got, r)
	}
}
