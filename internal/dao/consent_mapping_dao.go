package dao

import (
	"context"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/models"
)

const mappingColumns = `MAPPING_ID, AUTH_ID, ACCOUNT_ID, RESOURCE, MAPPING_STATUS`

// DBQuery objects for consent mapping operations
var (
	QueryCreateConsentMappings = `INSERT INTO FS_CONSENT_MAPPING (` + mappingColumns + `)`

	QueryDeleteMappingsByAuthID = database.DBQuery{
		ID:    "DELETE_MAPPINGS_BY_AUTH_ID",
		Query: `DELETE FROM FS_CONSENT_MAPPING WHERE AUTH_ID = ?`,
	}

	QueryDeleteMappingsByConsentID = database.DBQuery{
		ID: "DELETE_MAPPINGS_BY_CONSENT_ID",
		Query: `DELETE FROM FS_CONSENT_MAPPING WHERE AUTH_ID IN (
			SELECT AUTH_ID FROM FS_CONSENT_AUTH_RESOURCE WHERE CONSENT_ID = ?)`,
	}
)

// ConsentMappingDAO handles database operations for FS_CONSENT_MAPPING
type ConsentMappingDAO struct{}

// NewConsentMappingDAO creates a new ConsentMappingDAO instance
func NewConsentMappingDAO() *ConsentMappingDAO {
	return &ConsentMappingDAO{}
}

// CreateBatch inserts the mappings in a single statement
func (dao *ConsentMappingDAO) CreateBatch(ctx context.Context, exec database.Executor, mappings []models.ConsentMappingResource) error {
	if len(mappings) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(mappings)*5)
	for _, m := range mappings {
		args = append(args, m.MappingID, m.AuthorizationID, m.AccountID, m.Resource, m.MappingStatus)
	}

	query := multiRowInsert(QueryCreateConsentMappings, 5, len(mappings))
	_, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	return err
}

// GetByAuthIDs lists mappings of the given authorizations, optionally restricted to one status
func (dao *ConsentMappingDAO) GetByAuthIDs(ctx context.Context, exec database.Executor, authIDs []string, status string) ([]models.ConsentMappingResource, error) {
	mappings := []models.ConsentMappingResource{}
	if len(authIDs) == 0 {
		return mappings, nil
	}

	b := database.Select(mappingColumns).From("FS_CONSENT_MAPPING").
		WhereIn("AUTH_ID", authIDs).
		OrderBy("AUTH_ID", true).
		OrderBy("MAPPING_ID", true)
	if status != "" {
		b.Where("MAPPING_STATUS = ?", status)
	}

	query, args, err := b.Build(database.DialectOf(exec))
	if err != nil {
		return nil, err
	}
	if err := exec.SelectContext(ctx, &mappings, query, args...); err != nil {
		return nil, err
	}
	return mappings, nil
}

// UpdateStatus sets the status of every listed mapping
func (dao *ConsentMappingDAO) UpdateStatus(ctx context.Context, exec database.Executor, mappingIDs []string, status string) (int64, error) {
	if len(mappingIDs) == 0 {
		return 0, nil
	}
	query, args, err := inQuery(exec,
		`UPDATE FS_CONSENT_MAPPING SET MAPPING_STATUS = ? WHERE MAPPING_ID IN (?)`, status, mappingIDs)
	if err != nil {
		return 0, err
	}
	return execAffected(ctx, exec, query, args...)
}

// DeleteByAuthID removes the mappings of one authorization
func (dao *ConsentMappingDAO) DeleteByAuthID(ctx context.Context, exec database.Executor, authID string) (int64, error) {
	return execAffected(ctx, exec, QueryDeleteMappingsByAuthID.For(exec), authID)
}

// DeleteByConsentID removes the mappings of every authorization on a consent
func (dao *ConsentMappingDAO) DeleteByConsentID(ctx context.Context, exec database.Executor, consentID string) (int64, error) {
	return execAffected(ctx, exec, QueryDeleteMappingsByConsentID.For(exec), consentID)
}
