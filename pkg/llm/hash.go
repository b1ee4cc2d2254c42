package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// NormalizeRequest returns a copy of the request with non-semantic fields
// stripped so that two requests with identical generation-relevant content
// hash identically. Provider hints do not change what the model is asked to
// produce, so they are excluded.
func NormalizeRequest(req *Request) *Request {
	norm := req.Clone()
	norm.ProviderHints = nil
	return norm
}

// HashRequest computes the canonical SHA-256 hash of a request as a 64
// character lowercase hex string. The JSON encoder emits struct fields in
// declaration order and map keys sorted, so the serialization is stable for
// equal requests.
func HashRequest(req *Request) (string, error) {
	data, err := json.Marshal(NormalizeRequest(req))
	if err != nil {
		return "", fmt.Errorf("hash request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
