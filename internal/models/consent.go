package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// ConsentResource represents the FS_CONSENT table
type ConsentResource struct {
	ConsentID          string `db:"CONSENT_ID" json:"consentId"`
	OrgID              string `db:"ORG_ID" json:"orgId"`
	ClientID           string `db:"CLIENT_ID" json:"clientId"`
	Receipt            JSON   `db:"RECEIPT" json:"receipt"`
	ConsentType        string `db:"CONSENT_TYPE" json:"consentType"`
	CurrentStatus      string `db:"CURRENT_STATUS" json:"currentStatus"`
	ConsentFrequency   *int   `db:"CONSENT_FREQUENCY" json:"consentFrequency,omitempty"`
	ValidityTime       *int64 `db:"VALIDITY_TIME" json:"validityTime,omitempty"`
	RecurringIndicator *bool  `db:"RECURRING_INDICATOR" json:"recurringIndicator,omitempty"`
	CreatedTime        int64  `db:"CREATED_TIME" json:"createdTime"`
	UpdatedTime        int64  `db:"UPDATED_TIME" json:"updatedTime"`
}

// GetCreatedTime returns the creation time as time.Time
func (c *ConsentResource) GetCreatedTime() time.Time {
	return time.Unix(c.CreatedTime, 0)
}

// GetUpdatedTime returns the last update time as time.Time
func (c *ConsentResource) GetUpdatedTime() time.Time {
	return time.Unix(c.UpdatedTime, 0)
}

// Clone returns a copy that shares no memory with c
func (c ConsentResource) Clone() ConsentResource {
	c.Receipt = c.Receipt.Clone()
	c.ConsentFrequency = clonePtr(c.ConsentFrequency)
	c.ValidityTime = clonePtr(c.ValidityTime)
	c.RecurringIndicator = clonePtr(c.RecurringIndicator)
	return c
}

// Consent field names used in amendment diffs
const (
	FieldReceipt            = "RECEIPT"
	FieldCurrentStatus      = "CURRENT_STATUS"
	FieldConsentFrequency   = "CONSENT_FREQUENCY"
	FieldValidityTime       = "VALIDITY_TIME"
	FieldRecurringIndicator = "RECURRING_INDICATOR"
	FieldUpdatedTime        = "UPDATED_TIME"
)

// AmendableFields returns the mutable consent fields keyed by column name.
// Values are plain JSON-compatible Go values so they can be diffed and stored.
func (c *ConsentResource) AmendableFields() (map[string]interface{}, error) {
	receipt, err := c.Receipt.Decode()
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		FieldReceipt:            receipt,
		FieldCurrentStatus:      c.CurrentStatus,
		FieldConsentFrequency:   nil,
		FieldValidityTime:       nil,
		FieldRecurringIndicator: nil,
		FieldUpdatedTime:        float64(c.UpdatedTime),
	}
	if c.ConsentFrequency != nil {
		fields[FieldConsentFrequency] = float64(*c.ConsentFrequency)
	}
	if c.ValidityTime != nil {
		fields[FieldValidityTime] = float64(*c.ValidityTime)
	}
	if c.RecurringIndicator != nil {
		fields[FieldRecurringIndicator] = *c.RecurringIndicator
	}
	return fields, nil
}

// ApplyFields overwrites the fields named in values. Unknown keys are rejected.
func (c *ConsentResource) ApplyFields(values map[string]json.RawMessage) error {
	for key, raw := range values {
		isNull := bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
		switch key {
		case FieldReceipt:
			if isNull {
				c.Receipt = nil
			} else {
				c.Receipt = JSON(append([]byte(nil), raw...))
			}
		case FieldCurrentStatus:
			if err := json.Unmarshal(raw, &c.CurrentStatus); err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
		case FieldConsentFrequency:
			c.ConsentFrequency = nil
			if !isNull {
				var v int
				if err := json.Unmarshal(raw, &v); err != nil {
					return fmt.Errorf("invalid %s: %w", key, err)
				}
				c.ConsentFrequency = &v
			}
		case FieldValidityTime:
			c.ValidityTime = nil
			if !isNull {
				var v int64
				if err := json.Unmarshal(raw, &v); err != nil {
					return fmt.Errorf("invalid %s: %w", key, err)
				}
				c.ValidityTime = &v
			}
		case FieldRecurringIndicator:
			c.RecurringIndicator = nil
			if !isNull {
				var v bool
				if err := json.Unmarshal(raw, &v); err != nil {
					return fmt.Errorf("invalid %s: %w", key, err)
				}
				c.RecurringIndicator = &v
			}
		case FieldUpdatedTime:
			if err := json.Unmarshal(raw, &c.UpdatedTime); err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
		default:
			return fmt.Errorf("unknown consent field %q", key)
		}
	}
	return nil
}

// JSON type for handling opaque JSON columns
type JSON json.RawMessage

// NewJSON marshals v into a JSON value
func NewJSON(v interface{}) (JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return JSON(b), nil
}

// Scan implements the sql.Scanner interface for JSON
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSON: %T", value)
	}

	if !json.Valid(raw) {
		return fmt.Errorf("invalid JSON data")
	}

	*j = JSON(append([]byte(nil), raw...))
	return nil
}

// Value implements the driver.Valuer interface for JSON
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return string(j), nil
}

// MarshalJSON implements json.Marshaler
func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = JSON(append([]byte(nil), data...))
	return nil
}

// Clone copies the underlying bytes
func (j JSON) Clone() JSON {
	if j == nil {
		return nil
	}
	return append(JSON(nil), j...)
}

// IsEmpty reports whether the value is absent, blank or JSON null
func (j JSON) IsEmpty() bool {
	trimmed := bytes.TrimSpace(j)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Decode parses the value into plain Go values (maps, slices, float64, string, bool, nil)
func (j JSON) Decode() (interface{}, error) {
	if j.IsEmpty() {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal(j, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON data: %w", err)
	}
	return v, nil
}

// Object parses the value as a JSON object
func (j JSON) Object() (map[string]interface{}, error) {
	var m map[string]interface{}
	if j.IsEmpty() {
		return m, nil
	}
	if err := json.Unmarshal(j, &m); err != nil {
		return nil, fmt.Errorf("JSON value is not an object: %w", err)
	}
	return m, nil
}

// Lookup walks nested objects by key and returns the value found at path
func (j JSON) Lookup(path ...string) (interface{}, bool) {
	v, err := j.Decode()
	if err != nil {
		return nil, false
	}
	for _, key := range path {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if v, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return v, true
}

// StringAt returns the string stored at path
func (j JSON) StringAt(path ...string) (string, bool) {
	v, ok := j.Lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Equal compares two JSON values structurally: key order and whitespace are ignored
func (j JSON) Equal(other JSON) (bool, error) {
	a, err := j.Decode()
	if err != nil {
		return false, err
	}
	b, err := other.Decode()
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(a, b), nil
}
