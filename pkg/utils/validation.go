package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Column widths of the identifier fields callers supply
const (
	MaxIdentifierLength  = 255
	MaxConsentTypeLength = 64
)

// ErrInvalidField is wrapped by every validation failure in this file
var ErrInvalidField = errors.New("invalid field")

// ValidateRequired validates that a field is not blank
func ValidateRequired(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidField, fieldName)
	}
	return nil
}

// ValidateMaxLength validates maximum string length
func ValidateMaxLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrInvalidField, fieldName, maxLength)
	}
	return nil
}

// ValidateIdentifier validates a required identifier that fits its column
func ValidateIdentifier(fieldName, value string, maxLength int) error {
	if err := ValidateRequired(fieldName, value); err != nil {
		return err
	}
	return ValidateMaxLength(fieldName, value, maxLength)
}

// ValidateOptional validates an identifier that may be empty
func ValidateOptional(fieldName, value string, maxLength int) error {
	if value == "" {
		return nil
	}
	return ValidateMaxLength(fieldName, value, maxLength)
}

// ValidateLimit normalises a pagination limit. Zero or negative means unbounded.
func ValidateLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	return limit
}

// ValidateOffset validates pagination offset
func ValidateOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
