package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// HMACSigner produces WeChat Pay style HMAC-SHA256 signatures: parameters
// sorted by key, empty values skipped, the merchant API key appended as a
// final &key= pair, digest hex-encoded in upper case.
type HMACSigner struct {
	apiKey string
}

// NewHMACSigner creates a signer bound to the merchant API key.
func NewHMACSigner(apiKey string) *HMACSigner {
	return &HMACSigner{apiKey: apiKey}
}

// Sign computes the HMAC-SHA256 signature for the given parameters.
func (s *HMACSigner) Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, val := range params {
		if k == "sign" || val == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	pairs = append(pairs, "key="+s.apiKey)
	content := strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, []byte(s.apiKey))
	mac.Write([]byte(content))

	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// Verify checks a signature in constant time.
func (s *HMACSigner) Verify(params map[string]string, signature string) bool {
	expected := s.Sign(params)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
