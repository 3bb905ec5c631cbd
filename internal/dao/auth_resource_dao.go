package dao

import (
	"context"
	"database/sql"
	"errors"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/models"
)

const authColumns = `AUTH_ID, CONSENT_ID, AUTH_TYPE, USER_ID, AUTH_STATUS, UPDATED_TIME, RESOURCE, ORG_ID`

// DBQuery objects for authorization resource operations
var (
	QueryCreateAuthResources = `INSERT INTO FS_CONSENT_AUTH_RESOURCE (` + authColumns + `)`

	QueryGetAuthResourceByID = database.DBQuery{
		ID:    "GET_AUTH_RESOURCE_BY_ID",
		Query: `SELECT ` + authColumns + ` FROM FS_CONSENT_AUTH_RESOURCE WHERE AUTH_ID = ? AND ORG_ID = ?`,
	}

	QueryGetAuthResourcesByConsentID = database.DBQuery{
		ID: "GET_AUTH_RESOURCES_BY_CONSENT_ID",
		Query: `SELECT ` + authColumns + ` FROM FS_CONSENT_AUTH_RESOURCE
		WHERE CONSENT_ID = ? AND ORG_ID = ? ORDER BY UPDATED_TIME, AUTH_ID`,
	}

	QueryUpdateAuthResource = database.DBQuery{
		ID: "UPDATE_AUTH_RESOURCE",
		Query: `UPDATE FS_CONSENT_AUTH_RESOURCE
		SET AUTH_TYPE = ?, USER_ID = ?, AUTH_STATUS = ?, RESOURCE = ?, UPDATED_TIME = ?
		WHERE AUTH_ID = ? AND ORG_ID = ?`,
	}

	QueryUpdateAuthResourceStatus = database.DBQuery{
		ID:    "UPDATE_AUTH_RESOURCE_STATUS",
		Query: `UPDATE FS_CONSENT_AUTH_RESOURCE SET AUTH_STATUS = ?, UPDATED_TIME = ? WHERE AUTH_ID = ? AND ORG_ID = ?`,
	}

	QueryUpdateAuthResourceStatusByConsent = database.DBQuery{
		ID:    "UPDATE_AUTH_RESOURCE_STATUS_BY_CONSENT",
		Query: `UPDATE FS_CONSENT_AUTH_RESOURCE SET AUTH_STATUS = ?, UPDATED_TIME = ? WHERE CONSENT_ID = ? AND ORG_ID = ?`,
	}

	QueryDeleteAuthResource = database.DBQuery{
		ID:    "DELETE_AUTH_RESOURCE",
		Query: `DELETE FROM FS_CONSENT_AUTH_RESOURCE WHERE AUTH_ID = ? AND ORG_ID = ?`,
	}

	QueryDeleteAuthResourcesByConsentID = database.DBQuery{
		ID:    "DELETE_AUTH_RESOURCES_BY_CONSENT_ID",
		Query: `DELETE FROM FS_CONSENT_AUTH_RESOURCE WHERE CONSENT_ID = ?`,
	}
)

// AuthResourceDAO handles database operations for FS_CONSENT_AUTH_RESOURCE
type AuthResourceDAO struct{}

// NewAuthResourceDAO creates a new AuthResourceDAO instance
func NewAuthResourceDAO() *AuthResourceDAO {
	return &AuthResourceDAO{}
}

// CreateBatch inserts every authorization in a single statement
func (dao *AuthResourceDAO) CreateBatch(ctx context.Context, exec database.Executor, auths []*models.AuthorizationResource) error {
	if len(auths) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(auths)*8)
	for _, a := range auths {
		args = append(args,
			a.AuthorizationID,
			a.ConsentID,
			a.AuthorizationType,
			a.UserID,
			a.AuthorizationStatus,
			a.UpdatedTime,
			a.Resource,
			a.OrgID,
		)
	}

	query := multiRowInsert(QueryCreateAuthResources, 8, len(auths))
	_, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	return err
}

// GetByID retrieves an authorization resource. A missing row yields nil, nil.
func (dao *AuthResourceDAO) GetByID(ctx context.Context, exec database.Executor, authID, orgID string) (*models.AuthorizationResource, error) {
	var auth models.AuthorizationResource
	if err := exec.GetContext(ctx, &auth, QueryGetAuthResourceByID.For(exec), authID, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &auth, nil
}

// GetByConsentID lists the authorizations of a consent, oldest first
func (dao *AuthResourceDAO) GetByConsentID(ctx context.Context, exec database.Executor, consentID, orgID string) ([]models.AuthorizationResource, error) {
	auths := []models.AuthorizationResource{}
	if err := exec.SelectContext(ctx, &auths, QueryGetAuthResourcesByConsentID.For(exec), consentID, orgID); err != nil {
		return nil, err
	}
	return auths, nil
}

// Update overwrites the mutable columns of an authorization
func (dao *AuthResourceDAO) Update(ctx context.Context, exec database.Executor, auth *models.AuthorizationResource) (int64, error) {
	return execAffected(ctx, exec, QueryUpdateAuthResource.For(exec),
		auth.AuthorizationType,
		auth.UserID,
		auth.AuthorizationStatus,
		auth.Resource,
		auth.UpdatedTime,
		auth.AuthorizationID,
		auth.OrgID,
	)
}

// UpdateStatus sets the status of one authorization
func (dao *AuthResourceDAO) UpdateStatus(ctx context.Context, exec database.Executor, authID, orgID, status string, updatedTime int64) (int64, error) {
	return execAffected(ctx, exec, QueryUpdateAuthResourceStatus.For(exec), status, updatedTime, authID, orgID)
}

// UpdateStatusByConsentID sets the status of every authorization on a consent
func (dao *AuthResourceDAO) UpdateStatusByConsentID(ctx context.Context, exec database.Executor, consentID, orgID, status string, updatedTime int64) (int64, error) {
	return execAffected(ctx, exec, QueryUpdateAuthResourceStatusByConsent.For(exec), status, updatedTime, consentID, orgID)
}

// Delete removes one authorization. Its mappings must already be gone.
func (dao *AuthResourceDAO) Delete(ctx context.Context, exec database.Executor, authID, orgID string) (int64, error) {
	return execAffected(ctx, exec, QueryDeleteAuthResource.For(exec), authID, orgID)
}

// DeleteByConsentID removes every authorization of a consent
func (dao *AuthResourceDAO) DeleteByConsentID(ctx context.Context, exec database.Executor, consentID string) (int64, error) {
	return execAffected(ctx, exec, QueryDeleteAuthResourcesByConsentID.For(exec), consentID)
}
