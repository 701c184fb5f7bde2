package persist

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalization caps. Signatures computed over truncated input carry a
// flag so downstream consumers can tell a merge may be coarser than the
// full text would allow.
const (
	MaxCanonicalPathLen = 512
	MaxMessageTextLen   = 2048
)

// NormalizeCanonicalPath trims the path, collapses internal whitespace and
// truncates it to maxLen. The second return reports truncation.
func NormalizeCanonicalPath(path string, maxLen int) (string, bool) {
	return normalize(path, maxLen)
}

// NormalizeMessageText trims the text, collapses internal whitespace and
// truncates it to maxLen. The second return reports truncation. Two
// messages differing only in whitespace normalize to the same text and
// therefore merge into one signature.
func NormalizeMessageText(text string, maxLen int) (string, bool) {
	return normalize(text, maxLen)
}

func normalize(s string, maxLen int) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if maxLen > 0 && len(s) > maxLen {
		return s[:maxLen], true
	}
	return s, false
}

// ComputeMessageSignature computes the content hash identifying a
// recurring finding independent of which resource produced it: SHA-256
// over (aspect, severity, code, canonicalPath, ruleId, normalizedText),
// all lower-cased and pipe-joined. Two issues with identical signatures
// are the same finding.
func ComputeMessageSignature(aspect, severity, code, canonicalPath, ruleID, normalizedText string) string {
	parts := []string{aspect, severity, code, canonicalPath, ruleID, normalizedText}
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
