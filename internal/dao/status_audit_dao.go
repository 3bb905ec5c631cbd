package dao

import (
	"context"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/models"
)

const auditColumns = `STATUS_AUDIT_ID, CONSENT_ID, CURRENT_STATUS, ACTION_TIME, REASON, ACTION_BY, PREVIOUS_STATUS, ORG_ID`

// DBQuery objects for status audit operations
var (
	QueryCreateStatusAudit = database.DBQuery{
		ID: "CREATE_STATUS_AUDIT",
		Query: `INSERT INTO FS_CONSENT_STATUS_AUDIT (` + auditColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	}

	QueryDeleteStatusAuditByConsentID = database.DBQuery{
		ID:    "DELETE_STATUS_AUDIT_BY_CONSENT_ID",
		Query: `DELETE FROM FS_CONSENT_STATUS_AUDIT WHERE CONSENT_ID = ?`,
	}
)

// StatusAuditDAO handles database operations for FS_CONSENT_STATUS_AUDIT
type StatusAuditDAO struct{}

// NewStatusAuditDAO creates a new StatusAuditDAO instance
func NewStatusAuditDAO() *StatusAuditDAO {
	return &StatusAuditDAO{}
}

// Create appends an audit record
func (dao *StatusAuditDAO) Create(ctx context.Context, exec database.Executor, audit *models.ConsentStatusAuditRecord) error {
	_, err := exec.ExecContext(ctx, QueryCreateStatusAudit.For(exec),
		audit.StatusAuditID,
		audit.ConsentID,
		audit.CurrentStatus,
		audit.ActionTime,
		audit.Reason,
		audit.ActionBy,
		audit.PreviousStatus,
		audit.OrgID,
	)
	return err
}

// List returns audit records matching the filter, newest first
func (dao *StatusAuditDAO) List(ctx context.Context, exec database.Executor, filter models.StatusAuditFilter) ([]models.ConsentStatusAuditRecord, error) {
	b := database.Select(auditColumns).From("FS_CONSENT_STATUS_AUDIT")
	if filter.OrgID != "" {
		b.Where("ORG_ID = ?", filter.OrgID)
	}
	if filter.ConsentID != "" {
		b.Where("CONSENT_ID = ?", filter.ConsentID)
	}
	if filter.Status != "" {
		b.Where("CURRENT_STATUS = ?", filter.Status)
	}
	if filter.ActionBy != "" {
		b.Where("ACTION_BY = ?", filter.ActionBy)
	}
	if filter.FromTime != nil {
		b.Where("ACTION_TIME >= ?", *filter.FromTime)
	}
	if filter.ToTime != nil {
		b.Where("ACTION_TIME <= ?", *filter.ToTime)
	}
	b.OrderBy("ACTION_TIME", false).
		OrderBy("STATUS_AUDIT_ID", false).
		Paginate(filter.Limit, filter.Offset)

	return dao.selectRecords(ctx, exec, b)
}

// ListByConsentIDs returns the audit trail of several consents, newest first
func (dao *StatusAuditDAO) ListByConsentIDs(ctx context.Context, exec database.Executor, consentIDs []string, limit, offset int) ([]models.ConsentStatusAuditRecord, error) {
	if len(consentIDs) == 0 {
		return []models.ConsentStatusAuditRecord{}, nil
	}

	b := database.Select(auditColumns).From("FS_CONSENT_STATUS_AUDIT").
		WhereIn("CONSENT_ID", consentIDs).
		OrderBy("ACTION_TIME", false).
		OrderBy("STATUS_AUDIT_ID", false).
		Paginate(limit, offset)

	return dao.selectRecords(ctx, exec, b)
}

func (dao *StatusAuditDAO) selectRecords(ctx context.Context, exec database.Executor, b *database.SelectBuilder) ([]models.ConsentStatusAuditRecord, error) {
	query, args, err := b.Build(database.DialectOf(exec))
	if err != nil {
		return nil, err
	}

	records := []models.ConsentStatusAuditRecord{}
	if err := exec.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteByConsentID removes the audit trail of a consent
func (dao *StatusAuditDAO) DeleteByConsentID(ctx context.Context, exec database.Executor, consentID string) (int64, error) {
	return execAffected(ctx, exec, QueryDeleteStatusAuditByConsentID.For(exec), consentID)
}
