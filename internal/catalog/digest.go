package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix leaves room
// for algorithm migration without ambiguity.
const (
	DomainClause   = "draftline/clause/v1"
	DomainTemplate = "draftline/template/v1"
	DomainExport   = "draftline/export/v1"
)

// DigestWithDomain computes SHA-256 over domain + 0x00 + data. The null
// separator removes domain/data boundary ambiguity.
func DigestWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ClauseDigest computes a content digest for a clause version's payload.
// Status and timestamps are excluded: the digest identifies content,
// which never changes across status transitions.
func ClauseDigest(cv *ClauseVersion) (string, error) {
	obj := map[string]any{
		"block_id": string(cv.BlockID),
		"number":   cv.Number,
		"title":    cv.Title,
		"body":     cv.Body,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("clause digest: %w", err)
	}
	return DigestWithDomain(DomainClause, canonical), nil
}
