// Package journal implements the canonical byte layout committed by the
// forecaster and the decoders that recover it from fulfillment payloads.
//
// The layout is the ABI encoding of (uint8, uint256, uint256): three 32-byte
// big-endian words holding action, confidence, and predicted price. The
// ledger contract and the external verifier both expect these exact 96
// bytes, so the words are laid out by hand rather than behind a
// serialization library.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"trendsignal-go/internal/signal"
)

const (
	// Word is the width of one ABI word in bytes.
	Word = 32
	// Size is the length of a canonical journal: action word, confidence
	// word, predicted price word.
	Size = 3 * Word
)

var (
	// ErrWrongLength reports a strict decode of a buffer that is not exactly
	// one journal long.
	ErrWrongLength = errors.New("journal: wrong length")
	// ErrActionOutOfRange reports an action word whose value is not 0 or 1.
	ErrActionOutOfRange = errors.New("journal: action out of range")
	// ErrTooShort reports a recovery blob smaller than one journal.
	ErrTooShort = errors.New("journal: blob too short")
	// ErrNoValidTuple reports that no aligned window of a blob decoded to a
	// plausible result.
	ErrNoValidTuple = errors.New("journal: no valid tuple found")
)

// Encode lays out the result as the canonical 96 bytes. Each value is
// right-aligned big-endian in its word; the action occupies the final byte
// of the first word.
func Encode(r signal.Result) []byte {
	out := make([]byte, Size)
	out[Word-1] = byte(r.Action)
	fillWord(out[Word:2*Word], r.Confidence)
	fillWord(out[2*Word:Size], r.PredictedPrice)
	return out
}

func fillWord(dst []byte, v *big.Int) {
	if v == nil {
		return
	}
	v.FillBytes(dst)
}

// Decode reads the canonical layout back positionally. Only the action word
// is range-checked; confidence and price are preserved at full width even
// when they exceed 64 bits.
func Decode(b []byte) (signal.Result, error) {
	if len(b) != Size {
		return signal.Result{}, fmt.Errorf("%w: got %d bytes, want %d", ErrWrongLength, len(b), Size)
	}
	for _, c := range b[:Word-1] {
		if c != 0 {
			return signal.Result{}, fmt.Errorf("%w: nonzero padding in action word", ErrActionOutOfRange)
		}
	}
	action := signal.Action(b[Word-1])
	if !action.Valid() {
		return signal.Result{}, fmt.Errorf("%w: %d", ErrActionOutOfRange, b[Word-1])
	}
	return signal.Result{
		Action:         action,
		Confidence:     new(big.Int).SetBytes(b[Word : 2*Word]),
		PredictedPrice: new(big.Int).SetBytes(b[2*Word:Size]),
	}, nil
}

// EncodeAmount writes an observed wei amount as the single ABI word the
// forecaster takes as input.
func EncodeAmount(amountWei uint64) []byte {
	out := make([]byte, Word)
	binary.BigEndian.PutUint64(out[Word-8:], amountWei)
	return out
}

// DecodeAmount reads the input word back. Values wider than 64 bits keep
// only the low limb, matching the forecaster's input contract.
func DecodeAmount(b []byte) (uint64, error) {
	if len(b) != Word {
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrWrongLength, len(b), Word)
	}
	return binary.BigEndian.Uint64(b[Word-8:]), nil
}
