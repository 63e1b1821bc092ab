package market

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"trendsignal-go/internal/journal"
)

// The market frames the journal in ABI-style dynamic-bytes wrapping: an
// offset word, the request identifier, and two pointer words, then the
// journal itself and a trailing pad word. The journal therefore starts at
// byte 128, which is the boundary the tolerant decoder probes first.
func wrapEnvelope(requestID string, committed []byte) []byte {
	header := make([]byte, 4*journal.Word)
	header[journal.Word-1] = 0x20
	writeRequestWord(header[journal.Word:2*journal.Word], requestID)
	header[3*journal.Word-1] = 0x80
	header[4*journal.Word-1] = 0xc0

	out := make([]byte, 0, len(header)+len(committed)+journal.Word)
	out = append(out, header...)
	out = append(out, committed...)
	out = append(out, make([]byte, journal.Word)...)
	return out
}

// writeRequestWord right-aligns the request identifier into one word. IDs
// that are not plain hex are hashed so the word is still deterministic.
func writeRequestWord(dst []byte, requestID string) {
	raw, err := hex.DecodeString(strings.TrimPrefix(requestID, "0x"))
	if err != nil || len(raw) == 0 {
		sum := sha256.Sum256([]byte(requestID))
		raw = sum[:]
	}
	if len(raw) > len(dst) {
		raw = raw[len(raw)-len(dst):]
	}
	copy(dst[len(dst)-len(raw):], raw)
}
