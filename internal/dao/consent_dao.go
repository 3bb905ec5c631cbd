package dao

import (
	"context"
	"database/sql"
	"errors"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/models"
)

const consentColumns = `CONSENT_ID, RECEIPT, CREATED_TIME, UPDATED_TIME, CLIENT_ID,
		CONSENT_TYPE, CURRENT_STATUS, CONSENT_FREQUENCY, VALIDITY_TIME,
		RECURRING_INDICATOR, ORG_ID`

// DBQuery objects for consent operations
var (
	QueryCreateConsent = database.DBQuery{
		ID: "CREATE_CONSENT",
		Query: `INSERT INTO FS_CONSENT (` + consentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	}

	QueryGetConsentByID = database.DBQuery{
		ID:    "GET_CONSENT_BY_ID",
		Query: `SELECT ` + consentColumns + ` FROM FS_CONSENT WHERE CONSENT_ID = ? AND ORG_ID = ?`,
	}

	QueryGetConsentByIDForUpdate = database.DBQuery{
		ID:    "GET_CONSENT_BY_ID_FOR_UPDATE",
		Query: `SELECT ` + consentColumns + ` FROM FS_CONSENT WHERE CONSENT_ID = ? AND ORG_ID = ? FOR UPDATE`,
		// SQLite serialises writers on the database file.
		SQLiteQuery: `SELECT ` + consentColumns + ` FROM FS_CONSENT WHERE CONSENT_ID = ? AND ORG_ID = ?`,
	}

	QueryUpdateConsentStatus = database.DBQuery{
		ID:    "UPDATE_CONSENT_STATUS",
		Query: `UPDATE FS_CONSENT SET CURRENT_STATUS = ?, UPDATED_TIME = ? WHERE CONSENT_ID = ? AND ORG_ID = ?`,
	}

	QueryUpdateConsentStatusIfUnmodified = database.DBQuery{
		ID: "UPDATE_CONSENT_STATUS_IF_UNMODIFIED",
		Query: `UPDATE FS_CONSENT SET CURRENT_STATUS = ?, UPDATED_TIME = ?
		WHERE CONSENT_ID = ? AND ORG_ID = ? AND UPDATED_TIME = ?`,
	}

	QueryUpdateConsentValidityTime = database.DBQuery{
		ID:    "UPDATE_CONSENT_VALIDITY_TIME",
		Query: `UPDATE FS_CONSENT SET VALIDITY_TIME = ?, UPDATED_TIME = ? WHERE CONSENT_ID = ? AND ORG_ID = ?`,
	}

	QueryUpdateConsent = database.DBQuery{
		ID: "UPDATE_CONSENT",
		Query: `UPDATE FS_CONSENT
		SET RECEIPT = ?, UPDATED_TIME = ?, CURRENT_STATUS = ?,
		    CONSENT_FREQUENCY = ?, VALIDITY_TIME = ?, RECURRING_INDICATOR = ?
		WHERE CONSENT_ID = ? AND ORG_ID = ?`,
	}

	QueryDeleteConsent = database.DBQuery{
		ID:    "DELETE_CONSENT",
		Query: `DELETE FROM FS_CONSENT WHERE CONSENT_ID = ? AND ORG_ID = ?`,
	}
)

// ConsentDAO handles database operations for FS_CONSENT
type ConsentDAO struct{}

// NewConsentDAO creates a new ConsentDAO instance
func NewConsentDAO() *ConsentDAO {
	return &ConsentDAO{}
}

// Create inserts a new consent row
func (dao *ConsentDAO) Create(ctx context.Context, exec database.Executor, consent *models.ConsentResource) error {
	_, err := exec.ExecContext(ctx, QueryCreateConsent.For(exec),
		consent.ConsentID,
		consent.Receipt,
		consent.CreatedTime,
		consent.UpdatedTime,
		consent.ClientID,
		consent.ConsentType,
		consent.CurrentStatus,
		consent.ConsentFrequency,
		consent.ValidityTime,
		consent.RecurringIndicator,
		consent.OrgID,
	)
	return err
}

// GetByID retrieves a consent by ID and organization ID. A missing row yields nil, nil.
func (dao *ConsentDAO) GetByID(ctx context.Context, exec database.Executor, consentID, orgID string) (*models.ConsentResource, error) {
	return dao.get(ctx, exec, QueryGetConsentByID, consentID, orgID)
}

// GetByIDForUpdate retrieves a consent and locks its row until the surrounding transaction ends
func (dao *ConsentDAO) GetByIDForUpdate(ctx context.Context, exec database.Executor, consentID, orgID string) (*models.ConsentResource, error) {
	return dao.get(ctx, exec, QueryGetConsentByIDForUpdate, consentID, orgID)
}

func (dao *ConsentDAO) get(ctx context.Context, exec database.Executor, q database.DBQuery, consentID, orgID string) (*models.ConsentResource, error) {
	var consent models.ConsentResource
	if err := exec.GetContext(ctx, &consent, q.For(exec), consentID, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &consent, nil
}

// UpdateStatus sets the current status of a single consent
func (dao *ConsentDAO) UpdateStatus(ctx context.Context, exec database.Executor, consentID, orgID, status string, updatedTime int64) (int64, error) {
	return execAffected(ctx, exec, QueryUpdateConsentStatus.For(exec), status, updatedTime, consentID, orgID)
}

// UpdateStatusIfUnmodified sets the status only when UPDATED_TIME still holds expectedUpdatedTime
func (dao *ConsentDAO) UpdateStatusIfUnmodified(ctx context.Context, exec database.Executor, consentID, orgID, status string, expectedUpdatedTime, updatedTime int64) (int64, error) {
	return execAffected(ctx, exec, QueryUpdateConsentStatusIfUnmodified.For(exec), status, updatedTime, consentID, orgID, expectedUpdatedTime)
}

// BulkUpdateStatus sets the same status on every listed consent in one statement
func (dao *ConsentDAO) BulkUpdateStatus(ctx context.Context, exec database.Executor, consentIDs []string, orgID, status string, updatedTime int64) (int64, error) {
	if len(consentIDs) == 0 {
		return 0, nil
	}
	query, args, err := inQuery(exec,
		`UPDATE FS_CONSENT SET CURRENT_STATUS = ?, UPDATED_TIME = ? WHERE ORG_ID = ? AND CONSENT_ID IN (?)`,
		status, updatedTime, orgID, consentIDs)
	if err != nil {
		return 0, err
	}
	return execAffected(ctx, exec, query, args...)
}

// UpdateValidityTime sets the expiry timestamp of a consent
func (dao *ConsentDAO) UpdateValidityTime(ctx context.Context, exec database.Executor, consentID, orgID string, validityTime, updatedTime int64) (int64, error) {
	return execAffected(ctx, exec, QueryUpdateConsentValidityTime.For(exec), validityTime, updatedTime, consentID, orgID)
}

// Update overwrites the amendable columns of a consent
func (dao *ConsentDAO) Update(ctx context.Context, exec database.Executor, consent *models.ConsentResource) (int64, error) {
	return execAffected(ctx, exec, QueryUpdateConsent.For(exec),
		consent.Receipt,
		consent.UpdatedTime,
		consent.CurrentStatus,
		consent.ConsentFrequency,
		consent.ValidityTime,
		consent.RecurringIndicator,
		consent.ConsentID,
		consent.OrgID,
	)
}

// Delete removes the consent row. Child rows must already be gone.
func (dao *ConsentDAO) Delete(ctx context.Context, exec database.Executor, consentID, orgID string) (int64, error) {
	return execAffected(ctx, exec, QueryDeleteConsent.For(exec), consentID, orgID)
}

// FindExpiredIDs lists consents in one of statuses whose validity time has passed
func (dao *ConsentDAO) FindExpiredIDs(ctx context.Context, exec database.Executor, orgID string, now int64, statuses []string) ([]string, error) {
	b := database.Select("CONSENT_ID").From("FS_CONSENT").
		Where("ORG_ID = ?", orgID).
		Where("VALIDITY_TIME IS NOT NULL").
		Where("VALIDITY_TIME > 0").
		Where("VALIDITY_TIME < ?", now).
		WhereIn("CURRENT_STATUS", statuses).
		OrderBy("VALIDITY_TIME", true).
		OrderBy("CONSENT_ID", true)

	query, args, err := b.Build(database.DialectOf(exec))
	if err != nil {
		return nil, err
	}

	ids := []string{}
	if err := exec.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, err
	}
	return ids, nil
}
