package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanRequest struct {
	Domain string `validate:"required,maildomain"`
	ScanID string `validate:"omitempty,uuid"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(scanRequest{Domain: "Example.com"}))
	require.NoError(t, ValidateStruct(scanRequest{Domain: "https://mail.example.co.uk/", ScanID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427"}))

	err := ValidateStruct(scanRequest{Domain: "localhost"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "domain (maildomain)")

	err = ValidateStruct(scanRequest{})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "domain (required)")

	err = ValidateStruct(scanRequest{Domain: "example.com", ScanID: "nope"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "scanid (uuid)")
}

func TestValidateTenantID(t *testing.T) {
	for _, ok := range []string{"acme", "tenant_01", "a-b"} {
		assert.NoError(t, ValidateTenantID(ok), ok)
	}
	for _, bad := range []string{"", "acme corp", "../etc", "ten@nt"} {
		assert.ErrorIs(t, ValidateTenantID(bad), ErrValidation, bad)
	}
}

func TestValidateScanID(t *testing.T) {
	assert.NoError(t, ValidateScanID("1b4e28ba-2fa1-11d2-883f-0016d3cca427"))
	assert.ErrorIs(t, ValidateScanID(""), ErrValidation)
	assert.ErrorIs(t, ValidateScanID("scan-1"), ErrValidation)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "example.com", SanitizeString("  exa\x00mple.com\x07 "))
}

func TestClampHelpers(t *testing.T) {
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 50, ValidateLimit(50))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, 7, ValidateDays(-1))
	assert.Equal(t, 30, ValidateDays(30))
	assert.Equal(t, 365, ValidateDays(9999))
}
