package models

import "sort"

// ConsentDataType tags which kind of record an amendment diff belongs to
type ConsentDataType string

const (
	ConsentDataTypeConsent    ConsentDataType = "ConsentData"
	ConsentDataTypeAttributes ConsentDataType = "ConsentAttributesData"
	ConsentDataTypeMapping    ConsentDataType = "ConsentMappingData"
	// ConsentDataTypeAuthorization diffs are keyed by authorization id
	ConsentDataTypeAuthorization ConsentDataType = "ConsentAuthResourceData"
)

// IsValid reports whether t is one of the known data types
func (t ConsentDataType) IsValid() bool {
	switch t {
	case ConsentDataTypeConsent, ConsentDataTypeAttributes, ConsentDataTypeMapping, ConsentDataTypeAuthorization:
		return true
	}
	return false
}

// ConsentHistoryRecord represents one row of the FS_CONSENT_HISTORY table.
// ChangedValues holds the values the record had before the amendment, for the changed keys only.
type ConsentHistoryRecord struct {
	HistoryID     string          `db:"HISTORY_ID" json:"historyId"`
	RecordID      string          `db:"RECORD_ID" json:"recordId"`
	ConsentID     string          `db:"CONSENT_ID" json:"consentId"`
	DataType      ConsentDataType `db:"DATA_TYPE" json:"consentDataType"`
	ChangedValues JSON            `db:"CHANGED_VALUES" json:"changedValues"`
	Reason        string          `db:"REASON" json:"reason"`
	StatusAuditID string          `db:"STATUS_AUDIT_ID" json:"statusAuditRecordId"`
	Timestamp     int64           `db:"EFFECTIVE_TIMESTAMP" json:"timestamp"`
}

// ConsentHistoryResource groups every diff written for one amendment event. Any change
// after creation is an amendment, status changes included.
type ConsentHistoryResource struct {
	HistoryID     string `json:"historyId"`
	ConsentID     string `json:"consentId"`
	Timestamp     int64  `json:"timestamp"`
	Reason        string `json:"reason"`
	StatusAuditID string `json:"statusAuditRecordId"`
	// ChangedValues maps data type to record id to the stored diff
	ChangedValues map[ConsentDataType]map[string]JSON `json:"changedValues"`
}

// ConsentSnapshot is the reconstructed consent as it stood before an amendment was applied
type ConsentSnapshot struct {
	HistoryID     string                   `json:"historyId"`
	Timestamp     int64                    `json:"timestamp"`
	Reason        string                   `json:"reason"`
	StatusAuditID string                   `json:"statusAuditRecordId"`
	Consent       *DetailedConsentResource `json:"consent"`
}

// NewestFirst flattens a history map into amendment order, latest event first
func NewestFirst(history map[string]*ConsentHistoryResource) []*ConsentHistoryResource {
	out := make([]*ConsentHistoryResource, 0, len(history))
	for _, h := range history {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].HistoryID > out[j].HistoryID
	})
	return out
}
