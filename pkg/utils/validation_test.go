package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		max     int
		wantErr bool
	}{
		{"valid", "CONSENT-123", MaxIdentifierLength, false},
		{"empty", "", MaxIdentifierLength, true},
		{"blank", "   ", MaxIdentifierLength, true},
		{"at limit", strings.Repeat("a", MaxConsentTypeLength), MaxConsentTypeLength, false},
		{"too long", strings.Repeat("a", MaxIdentifierLength+1), MaxIdentifierLength, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier("consentId", tt.value, tt.max)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidField)
				assert.Contains(t, err.Error(), "consentId")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOptional(t *testing.T) {
	assert.NoError(t, ValidateOptional("userId", "", 5))
	assert.NoError(t, ValidateOptional("userId", "alice", 5))
	assert.ErrorIs(t, ValidateOptional("userId", "mallory", 5), ErrInvalidField)
}

func TestPaginationNormalisation(t *testing.T) {
	tests := []struct {
		name           string
		limit, offset  int
		wantL, wantOff int
	}{
		{"unbounded", 0, 0, 0, 0},
		{"negative limit", -5, 0, 0, 0},
		{"negative offset", 10, -1, 10, 0},
		{"passthrough", 25, 50, 25, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantL, ValidateLimit(tt.limit))
			assert.Equal(t, tt.wantOff, ValidateOffset(tt.offset))
		})
	}
}
