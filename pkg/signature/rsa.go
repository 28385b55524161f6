// Package signature implements the provider-specific signing schemes used by
// the payment gateways: Alipay RSA2 (SHA256withRSA over sorted form
// parameters) and WeChat Pay HMAC-SHA256.
package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidPrivateKey is returned when key material cannot be parsed.
	ErrInvalidPrivateKey = errors.New("invalid RSA private key")
	// ErrInvalidPublicKey is returned when public key material cannot be parsed.
	ErrInvalidPublicKey = errors.New("invalid RSA public key")
	// ErrSignatureMismatch is returned when RSA2 verification fails.
	ErrSignatureMismatch = errors.New("signature verification failed")
)

// RSASigner produces Alipay RSA2 signatures with a merchant private key.
type RSASigner struct {
	key *rsa.PrivateKey
}

// NewRSASigner parses the merchant private key and returns a signer.
// Accepts PKCS#1 or PKCS#8 keys, either PEM-wrapped or as the bare
// base64 DER that the Alipay console hands out.
func NewRSASigner(keyMaterial string) (*RSASigner, error) {
	der, err := decodeKeyMaterial(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return &RSASigner{key: key}, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidPrivateKey)
	}

	return &RSASigner{key: key}, nil
}

// Sign produces a base64 RSA2 (SHA256withRSA) signature over the canonical
// parameter string.
func (s *RSASigner) Sign(params map[string]string) (string, error) {
	content := CanonicalString(params)

	digest := sha256.Sum256([]byte(content))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// RSAVerifier verifies Alipay RSA2 signatures with the platform public key.
type RSAVerifier struct {
	key *rsa.PublicKey
}

// NewRSAVerifier parses the Alipay public key (PEM or bare base64 DER).
func NewRSAVerifier(keyMaterial string) (*RSAVerifier, error) {
	der, err := decodeKeyMaterial(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidPublicKey)
	}

	return &RSAVerifier{key: key}, nil
}

// Verify checks a base64 RSA2 signature over the canonical parameter string.
// The sign and sign_type entries are excluded from the signed content, per
// the Alipay notification verification rules.
func (v *RSAVerifier) Verify(params map[string]string, signature string) error {
	content := CanonicalString(params)

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: bad base64: %v", ErrSignatureMismatch, err)
	}

	digest := sha256.Sum256([]byte(content))
	if err := rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest[:], sig); err != nil {
		return ErrSignatureMismatch
	}

	return nil
}

// CanonicalString builds the Alipay canonical signing string: parameters
// sorted by key, empty values and the sign/sign_type keys skipped, joined
// as key=value pairs with '&'.
func CanonicalString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, val := range params {
		if k == "sign" || k == "sign_type" || val == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	return strings.Join(pairs, "&")
}

// decodeKeyMaterial accepts PEM-wrapped or bare base64 DER key material.
func decodeKeyMaterial(material string) ([]byte, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, errors.New("empty key material")
	}

	if block, _ := pem.Decode([]byte(material)); block != nil {
		return block.Bytes, nil
	}

	// Alipay console keys come as raw base64 without PEM headers,
	// sometimes with embedded line breaks.
	compact := strings.NewReplacer("\n", "", "\r", "", " ", "").Replace(material)
	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("neither PEM nor base64 DER: %w", err)
	}

	return der, nil
}
