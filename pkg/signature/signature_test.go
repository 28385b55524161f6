package signature

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateTestKeyPair returns a PEM private key and the matching bare
// base64 DER public key (the format Alipay distributes).
func generateTestKeyPair(t *testing.T) (privatePEM, publicB64 string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privDER := x509.MarshalPKCS1PrivateKey(key)
	privatePEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privDER,
	}))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicB64 = base64.StdEncoding.EncodeToString(pubDER)

	return privatePEM, publicB64
}

func TestCanonicalString(t *testing.T) {
	params := map[string]string{
		"out_trade_no": "LEX20260829001",
		"total_amount": "5000.00",
		"app_id":       "2021000000000001",
		"sign":         "should-be-skipped",
		"sign_type":    "RSA2",
		"empty_field":  "",
	}

	got := CanonicalString(params)
	assert.Equal(t, "app_id=2021000000000001&out_trade_no=LEX20260829001&total_amount=5000.00", got)
}

func TestRSASignVerify_RoundTrip(t *testing.T) {
	privPEM, pubB64 := generateTestKeyPair(t)

	signer, err := NewRSASigner(privPEM)
	require.NoError(t, err)
	verifier, err := NewRSAVerifier(pubB64)
	require.NoError(t, err)

	params := map[string]string{
		"app_id":       "2021000000000001",
		"out_trade_no": "LEX20260829001",
		"total_amount": "5000.00",
		"trade_status": "TRADE_SUCCESS",
	}

	sig, err := signer.Sign(params)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	assert.NoError(t, verifier.Verify(params, sig))
}

func TestRSAVerify_TamperedParams(t *testing.T) {
	privPEM, pubB64 := generateTestKeyPair(t)

	signer, err := NewRSASigner(privPEM)
	require.NoError(t, err)
	verifier, err := NewRSAVerifier(pubB64)
	require.NoError(t, err)

	params := map[string]string{
		"out_trade_no": "LEX20260829001",
		"total_amount": "5000.00",
	}

	sig, err := signer.Sign(params)
	require.NoError(t, err)

	params["total_amount"] = "1.00"
	err = verifier.Verify(params, sig)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestRSAVerify_SignKeysExcluded(t *testing.T) {
	privPEM, pubB64 := generateTestKeyPair(t)

	signer, err := NewRSASigner(privPEM)
	require.NoError(t, err)
	verifier, err := NewRSAVerifier(pubB64)
	require.NoError(t, err)

	params := map[string]string{
		"out_trade_no": "LEX20260829001",
	}

	sig, err := signer.Sign(params)
	require.NoError(t, err)

	// The sign/sign_type fields arrive alongside the payload on webhook
	// notifications and must not affect verification.
	params["sign"] = sig
	params["sign_type"] = "RSA2"
	assert.NoError(t, verifier.Verify(params, sig))
}

func TestNewRSASigner_BareBase64DER(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	bare := base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PrivateKey(key))
	_, err = NewRSASigner(bare)
	assert.NoError(t, err)
}

func TestNewRSASigner_Invalid(t *testing.T) {
	_, err := NewRSASigner("")
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = NewRSASigner("not a key at all")
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestHMACSignVerify(t *testing.T) {
	signer := NewHMACSigner("192006250b4c09247ec02edce69f6a2d")

	params := map[string]string{
		"appid":        "wx8888888888888888",
		"mch_id":       "1900000109",
		"out_trade_no": "LEX20260829002",
		"total_fee":    "500000",
		"nonce_str":    "5K8264ILTKCH16CQ2502SI8ZNMTM67VS",
	}

	sig := signer.Sign(params)
	require.NotEmpty(t, sig)
	assert.Equal(t, sig, signer.Sign(params), "signature must be deterministic")
	assert.True(t, signer.Verify(params, sig))

	params["total_fee"] = "1"
	assert.False(t, signer.Verify(params, sig))
}

func TestHMACSign_SkipsSignAndEmpty(t *testing.T) {
	signer := NewHMACSigner("test-api-key")

	base := map[string]string{"a": "1", "b": "2"}
	withNoise := map[string]string{"a": "1", "b": "2", "sign": "x", "c": ""}

	assert.Equal(t, signer.Sign(base), signer.Sign(withNoise))
}
