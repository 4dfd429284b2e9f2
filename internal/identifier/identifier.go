package identifier

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// documentNamespace pins GenerateClientDocumentID to a stable UUID space so
// identical inputs always mint the same ID across processes.
var documentNamespace = uuid.MustParse("9f2c1af4-7d26-4b8a-9c33-5f1b8e6d0a42")

// GenerateSourceRID derives the semantic identifier for a source,
// e.g. ("notion", "My Notes") -> "source:notion:my-notes". Equivalent
// spellings of the same name normalize to the same RID; names that lose
// characters during normalization get a short hash suffix so distinct names
// stay distinct.
func GenerateSourceRID(sourceType, name string) string {
	return fmt.Sprintf("source:%s:%s", normalizeToken(sourceType), normalizeName(name))
}

// GenerateContentCID returns the content address of raw bytes:
// "sha256:" + lowercase hex digest. Identical bytes always produce the same
// CID regardless of filename, source, or submission time.
func GenerateContentCID(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// GenerateClientDocumentID mints a UUID-shaped row identifier from the source
// descriptor, a normalized excerpt of the content descriptor, and the
// submission timestamp in milliseconds. Deterministic for identical inputs;
// a 1ms timestamp difference yields a different ID. This is not content
// addressing; dedup runs on CIDs.
func GenerateClientDocumentID(sourceDescriptor, contentDescriptor string, timestampMillis int64) string {
	seed := fmt.Sprintf("%s|%s|%d",
		strings.TrimSpace(sourceDescriptor),
		normalizeDescriptor(contentDescriptor),
		timestampMillis,
	)
	return uuid.NewSHA1(documentNamespace, []byte(seed)).String()
}

func normalizeToken(s string) string {
	out := strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(out), "-")
}

func normalizeName(name string) string {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lossy := false
	prevDash := false
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			prevDash = false
		case r == ' ', r == '\t', r == '\n', r == '-', r == '/':
			if !prevDash && b.Len() > 0 {
				b.WriteByte('-')
				prevDash = true
			}
		default:
			lossy = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		lossy = true
	}
	if lossy {
		sum := sha256.Sum256([]byte(name))
		suffix := hex.EncodeToString(sum[:4])
		if slug == "" {
			return suffix
		}
		return slug + "-" + suffix
	}
	return slug
}

// normalizeDescriptor collapses whitespace, lowercases, and caps the
// descriptor at 64 runes. Filenames pass through mostly intact; free text
// contributes a stable excerpt.
func normalizeDescriptor(d string) string {
	d = strings.Join(strings.Fields(strings.ToLower(d)), " ")
	runes := []rune(d)
	if len(runes) > 64 {
		runes = runes[:64]
	}
	return string(runes)
}
