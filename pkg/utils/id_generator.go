package utils

import (
	"github.com/google/uuid"
)

// GenerateConsentID generates a unique consent ID
func GenerateConsentID() string {
	return "CONSENT-" + uuid.New().String()
}

// GenerateAuthID generates a unique authorization ID
func GenerateAuthID() string {
	return "AUTH-" + uuid.New().String()
}

// GenerateMappingID generates a unique consent mapping ID
func GenerateMappingID() string {
	return "MAPPING-" + uuid.New().String()
}

// GenerateAuditID generates a unique status audit ID. IDs sort in creation order.
func GenerateAuditID() string {
	return "AUDIT-" + uuid.Must(uuid.NewV7()).String()
}

// GenerateHistoryID generates a unique amendment history ID. IDs sort in creation order.
func GenerateHistoryID() string {
	return "HISTORY-" + uuid.Must(uuid.NewV7()).String()
}

// IsValidUUID checks if a string is a valid UUID
func IsValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
