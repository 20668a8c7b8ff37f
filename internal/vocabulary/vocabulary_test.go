package vocabulary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaymentStatus(t *testing.T) {
	v := Default()
	assert.NotEmpty(t, v.Version())

	for _, raw := range []string{"FAILED", "fail", "Error"} {
		assert.Equal(t, "failed", v.PaymentStatus(raw), raw)
	}
	for _, raw := range []string{"Success", "PAID", "Completed", "successful"} {
		assert.Equal(t, "success", v.PaymentStatus(raw), raw)
	}
	assert.Equal(t, "pending", v.PaymentStatus("PENDING"), "unmapped statuses pass through lower-cased")
}

func TestParseIsAdditive(t *testing.T) {
	v, err := Parse([]byte(`
version: "2024.2"
payment_status:
  failed: [failed, fail, error, declined]
  success: [success, successful, completed, paid, captured]
`))
	require.NoError(t, err)
	assert.Equal(t, "2024.2", v.Version())
	assert.Equal(t, "failed", v.PaymentStatus("Declined"))
	assert.Equal(t, "success", v.PaymentStatus("CAPTURED"))
}

func TestParseRejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing version", "payment_status:\n  failed: [fail]\n"},
		{"conflicting alias", "version: x\npayment_status:\n  failed: [done]\n  success: [DONE]\n"},
		{"upper-case canonical", "version: x\npayment_status:\n  Failed: [fail]\n"},
		{"not yaml", "version: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	v, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Version(), v.Version())

	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: local\npayment_status:\n  success: [ok]\n"), 0o644))
	v, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "success", v.PaymentStatus("OK"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
