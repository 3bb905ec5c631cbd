package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Mapping statuses
const (
	MappingStatusActive   = "active"
	MappingStatusInactive = "inactive"
)

// AuthorizationResource represents the FS_CONSENT_AUTH_RESOURCE table
type AuthorizationResource struct {
	AuthorizationID     string  `db:"AUTH_ID" json:"authorizationId"`
	ConsentID           string  `db:"CONSENT_ID" json:"consentId"`
	OrgID               string  `db:"ORG_ID" json:"orgId"`
	UserID              *string `db:"USER_ID" json:"userId,omitempty"`
	AuthorizationType   string  `db:"AUTH_TYPE" json:"authorizationType"`
	AuthorizationStatus string  `db:"AUTH_STATUS" json:"authorizationStatus"`
	Resource            JSON    `db:"RESOURCE" json:"resource,omitempty"`
	UpdatedTime         int64   `db:"UPDATED_TIME" json:"updatedTime"`

	Mappings []ConsentMappingResource `db:"-" json:"consentMappingResources,omitempty"`
}

// Authorization field names used in amendment diffs
const (
	AuthFieldStatus      = "AUTH_STATUS"
	AuthFieldUserID      = "USER_ID"
	AuthFieldUpdatedTime = "UPDATED_TIME"
)

// HistoryFields returns the authorization fields a status change can touch, keyed by column name
func (a *AuthorizationResource) HistoryFields() map[string]interface{} {
	fields := map[string]interface{}{
		AuthFieldStatus:      a.AuthorizationStatus,
		AuthFieldUserID:      nil,
		AuthFieldUpdatedTime: float64(a.UpdatedTime),
	}
	if a.UserID != nil {
		fields[AuthFieldUserID] = *a.UserID
	}
	return fields
}

// ApplyFields overwrites the authorization fields named in values
func (a *AuthorizationResource) ApplyFields(values map[string]json.RawMessage) error {
	for key, raw := range values {
		switch key {
		case AuthFieldStatus:
			if err := json.Unmarshal(raw, &a.AuthorizationStatus); err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
		case AuthFieldUserID:
			a.UserID = nil
			if !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				var v string
				if err := json.Unmarshal(raw, &v); err != nil {
					return fmt.Errorf("invalid %s: %w", key, err)
				}
				a.UserID = &v
			}
		case AuthFieldUpdatedTime:
			if err := json.Unmarshal(raw, &a.UpdatedTime); err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
		default:
			return fmt.Errorf("unknown authorization field %q", key)
		}
	}
	return nil
}

// ConsentMappingResource represents the FS_CONSENT_MAPPING table
type ConsentMappingResource struct {
	MappingID       string `db:"MAPPING_ID" json:"mappingId"`
	AuthorizationID string `db:"AUTH_ID" json:"authorizationId"`
	AccountID       string `db:"ACCOUNT_ID" json:"accountId"`
	Resource        JSON   `db:"RESOURCE" json:"resource,omitempty"`
	MappingStatus   string `db:"MAPPING_STATUS" json:"mappingStatus"`
}

// Mapping field names used in amendment diffs
const (
	MappingFieldAccountID = "ACCOUNT_ID"
	MappingFieldStatus    = "MAPPING_STATUS"
	MappingFieldResource  = "RESOURCE"
)

// ApplyFields overwrites the mapping fields named in values
func (m *ConsentMappingResource) ApplyFields(values map[string]json.RawMessage) error {
	for key, raw := range values {
		switch key {
		case MappingFieldAccountID:
			if err := json.Unmarshal(raw, &m.AccountID); err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
		case MappingFieldStatus:
			if err := json.Unmarshal(raw, &m.MappingStatus); err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
		case MappingFieldResource:
			if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				m.Resource = nil
			} else {
				m.Resource = JSON(append([]byte(nil), raw...))
			}
		default:
			return fmt.Errorf("unknown mapping field %q", key)
		}
	}
	return nil
}

// ConsentAttribute represents the FS_CONSENT_ATTRIBUTE table
type ConsentAttribute struct {
	ConsentID string `db:"CONSENT_ID" json:"consentId"`
	Key       string `db:"ATT_KEY" json:"key"`
	Value     string `db:"ATT_VALUE" json:"value"`
	OrgID     string `db:"ORG_ID" json:"orgId"`
}

// ConsentStatusAuditRecord represents the FS_CONSENT_STATUS_AUDIT table
type ConsentStatusAuditRecord struct {
	StatusAuditID  string  `db:"STATUS_AUDIT_ID" json:"statusAuditId"`
	ConsentID      string  `db:"CONSENT_ID" json:"consentId"`
	CurrentStatus  string  `db:"CURRENT_STATUS" json:"currentStatus"`
	ActionTime     int64   `db:"ACTION_TIME" json:"actionTime"`
	Reason         *string `db:"REASON" json:"reason,omitempty"`
	ActionBy       *string `db:"ACTION_BY" json:"actionBy,omitempty"`
	PreviousStatus *string `db:"PREVIOUS_STATUS" json:"previousStatus,omitempty"`
	OrgID          string  `db:"ORG_ID" json:"orgId"`
}
