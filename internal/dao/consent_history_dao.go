package dao

import (
	"context"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/models"
)

const historyColumns = `HISTORY_ID, RECORD_ID, CONSENT_ID, DATA_TYPE, CHANGED_VALUES, REASON, STATUS_AUDIT_ID, EFFECTIVE_TIMESTAMP`

// DBQuery objects for amendment history operations
var (
	QueryCreateHistoryRecord = database.DBQuery{
		ID: "CREATE_HISTORY_RECORD",
		Query: `INSERT INTO FS_CONSENT_HISTORY (` + historyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	}

	QueryDeleteHistoryByConsentID = database.DBQuery{
		ID:    "DELETE_HISTORY_BY_CONSENT_ID",
		Query: `DELETE FROM FS_CONSENT_HISTORY WHERE CONSENT_ID = ?`,
	}
)

// ConsentHistoryDAO handles database operations for FS_CONSENT_HISTORY
type ConsentHistoryDAO struct{}

// NewConsentHistoryDAO creates a new ConsentHistoryDAO instance
func NewConsentHistoryDAO() *ConsentHistoryDAO {
	return &ConsentHistoryDAO{}
}

// Create writes one diff row
func (dao *ConsentHistoryDAO) Create(ctx context.Context, exec database.Executor, record *models.ConsentHistoryRecord) error {
	_, err := exec.ExecContext(ctx, QueryCreateHistoryRecord.For(exec),
		record.HistoryID,
		record.RecordID,
		record.ConsentID,
		record.DataType,
		record.ChangedValues,
		record.Reason,
		record.StatusAuditID,
		record.Timestamp,
	)
	return err
}

// List returns the diff rows of a consent, newest amendment first. RecordIDs, when given, restrict the rows.
func (dao *ConsentHistoryDAO) List(ctx context.Context, exec database.Executor, consentID string, recordIDs []string) ([]models.ConsentHistoryRecord, error) {
	b := database.Select(historyColumns).From("FS_CONSENT_HISTORY").
		WhereIn("RECORD_ID", recordIDs).
		Where("CONSENT_ID = ?", consentID).
		OrderBy("EFFECTIVE_TIMESTAMP", false).
		OrderBy("HISTORY_ID", false)

	query, args, err := b.Build(database.DialectOf(exec))
	if err != nil {
		return nil, err
	}

	records := []models.ConsentHistoryRecord{}
	if err := exec.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteByConsentID removes the amendment history of a consent
func (dao *ConsentHistoryDAO) DeleteByConsentID(ctx context.Context, exec database.Executor, consentID string) (int64, error) {
	return execAffected(ctx, exec, QueryDeleteHistoryByConsentID.For(exec), consentID)
}
