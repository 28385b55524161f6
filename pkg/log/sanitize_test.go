package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeField_SensitiveKeys(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"api key masked", "api_key", "sk-1234567890abcdef", "sk-1***********cdef"},
		{"password masked", "password", "supersecretpw", "supe*****etpw"},
		{"private key masked", "alipay_private_key", "MIIEvQIBADANBgkqhkiG9w0B", "MIIE****************9w0B"},
		{"signature masked", "sign", "abcdef1234567890", "abcd********7890"},
		{"wechat mch key masked", "mch_key", "192006250b4c09247ec02edce69f6a2d", "1920************************6a2d"},
		{"plain field untouched", "service", "alipay", "alipay"},
		{"workflow id untouched", "workflow_id", "wf-123", "wf-123"},
		{"empty value untouched", "token", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeField(tt.key, tt.value))
		})
	}
}

func TestSanitizeField_ShortSecrets(t *testing.T) {
	// <= 2 chars: fully masked
	assert.Equal(t, "**", SanitizeField("token", "ab"))
	// <= 8 chars: first and last visible
	assert.Equal(t, "a****f", SanitizeField("secret", "abcdef"))
}

func TestSanitizeField_Email(t *testing.T) {
	assert.Equal(t, "par***@firm.example.com", SanitizeField("email", "partner@firm.example.com"))
	assert.Equal(t, "**********", SanitizeField("email", "not-an-ema"))
}

func TestSanitizeField_CaseInsensitive(t *testing.T) {
	assert.NotEqual(t, "verysecretvalue1", SanitizeField("Api_Key", "verysecretvalue1"))
	assert.NotEqual(t, "verysecretvalue1", SanitizeField("AUTHORIZATION", "verysecretvalue1"))
}
