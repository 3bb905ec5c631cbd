package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/models"
	"github.com/wso2/consent-lifecycle-store/pkg/utils"
)

// StoreConsentStatusAuditRecord appends an audit record. ActionTime defaults to now.
func (s *ConsentStore) StoreConsentStatusAuditRecord(ctx context.Context, exec database.Executor, record *models.ConsentStatusAuditRecord) (stored *models.ConsentStatusAuditRecord, err error) {
	const op = "store_consent_status_audit_record"
	defer s.observe(op, time.Now(), &err)

	if record.StatusAuditID != "" {
		return nil, insertionError(op, ErrIdentifierPreset)
	}
	if record.ConsentID == "" {
		return nil, insertionError(op, fmt.Errorf("%w: audit record without consent id", ErrInvalidInput))
	}

	r := *record
	r.StatusAuditID = utils.GenerateAuditID()
	r.OrgID = s.org(r.OrgID)
	if r.ActionTime == 0 {
		r.ActionTime = s.Now()
	}

	if err := s.audits.Create(ctx, exec, &r); err != nil {
		return nil, insertionError(op, err)
	}
	return &r, nil
}

// GetConsentStatusAuditRecords lists audit records matching filter, newest first
func (s *ConsentStore) GetConsentStatusAuditRecords(ctx context.Context, exec database.Executor, filter models.StatusAuditFilter) (records []models.ConsentStatusAuditRecord, err error) {
	const op = "get_consent_status_audit_records"
	defer s.observe(op, time.Now(), &err)

	filter.OrgID = s.org(filter.OrgID)
	filter.Limit = utils.ValidateLimit(filter.Limit)
	filter.Offset = utils.ValidateOffset(filter.Offset)

	records, err = s.audits.List(ctx, exec, filter)
	if err != nil {
		return nil, retrievalError(op, err)
	}
	return records, nil
}

// GetConsentStatusAuditRecordsByConsentID lists the audit trail of the given consents, newest first
func (s *ConsentStore) GetConsentStatusAuditRecordsByConsentID(ctx context.Context, exec database.Executor, consentIDs []string, limit, offset int) (records []models.ConsentStatusAuditRecord, err error) {
	const op = "get_consent_status_audit_records_by_consent_id"
	defer s.observe(op, time.Now(), &err)

	records, err = s.audits.ListByConsentIDs(ctx, exec, consentIDs, utils.ValidateLimit(limit), utils.ValidateOffset(offset))
	if err != nil {
		return nil, retrievalError(op, err)
	}
	return records, nil
}

// StoreConsentAmendmentHistory writes one diff row of an amendment event
func (s *ConsentStore) StoreConsentAmendmentHistory(ctx context.Context, exec database.Executor, record *models.ConsentHistoryRecord) (err error) {
	const op = "store_consent_amendment_history"
	defer s.observe(op, time.Now(), &err)

	switch {
	case record.HistoryID == "":
		return insertionError(op, fmt.Errorf("%w: history id is required", ErrInvalidInput))
	case record.RecordID == "":
		return insertionError(op, fmt.Errorf("%w: record id is required", ErrInvalidInput))
	case !record.DataType.IsValid():
		return insertionError(op, fmt.Errorf("%w: data type %q", ErrInvalidInput, record.DataType))
	}

	r := *record
	if r.Timestamp == 0 {
		r.Timestamp = s.Now()
	}
	if r.ChangedValues.IsEmpty() {
		r.ChangedValues = models.JSON("null")
	}

	if err := s.history.Create(ctx, exec, &r); err != nil {
		return insertionError(op, err)
	}
	return nil
}

// RetrieveConsentAmendmentHistory returns every amendment event touching recordIDs of a consent,
// keyed by history id. No record ids selects every row of the consent.
func (s *ConsentStore) RetrieveConsentAmendmentHistory(ctx context.Context, exec database.Executor, recordIDs []string, consentID string) (history map[string]*models.ConsentHistoryResource, err error) {
	const op = "retrieve_consent_amendment_history"
	defer s.observe(op, time.Now(), &err)

	rows, err := s.history.List(ctx, exec, consentID, recordIDs)
	if err != nil {
		return nil, retrievalError(op, err)
	}

	history = make(map[string]*models.ConsentHistoryResource)
	for _, row := range rows {
		h, ok := history[row.HistoryID]
		if !ok {
			h = &models.ConsentHistoryResource{
				HistoryID:     row.HistoryID,
				ConsentID:     row.ConsentID,
				Timestamp:     row.Timestamp,
				Reason:        row.Reason,
				StatusAuditID: row.StatusAuditID,
				ChangedValues: map[models.ConsentDataType]map[string]models.JSON{},
			}
			history[row.HistoryID] = h
		}
		byRecord, ok := h.ChangedValues[row.DataType]
		if !ok {
			byRecord = map[string]models.JSON{}
			h.ChangedValues[row.DataType] = byRecord
		}
		byRecord[row.RecordID] = row.ChangedValues
	}
	return history, nil
}
