package middleware

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bryanwahyu/mailposture/internal/domain/scans"
)

// Input validation and sanitization utilities

var (
	tenantPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

	validateOnce sync.Once
	validate     *validator.Validate
)

// ErrValidation wraps every request validation failure.
var ErrValidation = errors.New("validation failed")

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("maildomain", func(fl validator.FieldLevel) bool {
			return ValidateDomain(fl.Field().String()) == nil
		})
	})
	return validate
}

// ValidateStruct checks request DTO tags. Errors wrap ErrValidation.
func ValidateStruct(v any) error {
	if err := structValidator().Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// ValidateDomain accepts anything NormalizeDomain can turn into a
// registrable mail domain.
func ValidateDomain(raw string) error {
	_, err := scans.NormalizeDomain(SanitizeString(raw))
	return err
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("%w: tenant ID cannot be empty", ErrValidation)
	}
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("%w: invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)", ErrValidation)
	}
	return nil
}

// ValidateScanID validates scan ID format (uuid)
func ValidateScanID(scanID string) error {
	if scanID == "" {
		return fmt.Errorf("%w: scan ID cannot be empty", ErrValidation)
	}
	if _, err := uuid.Parse(scanID); err != nil {
		return fmt.Errorf("%w: invalid scan ID format", ErrValidation)
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidateDays validates days parameter
func ValidateDays(days int) int {
	if days <= 0 {
		return 7 // default
	}
	if days > 365 {
		return 365 // max 1 year
	}
	return days
}
