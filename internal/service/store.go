package service

import (
	"context"

	"github.com/wso2/consent-lifecycle-store/internal/dao"
	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/models"
)

// Store is the part of the consent store the engines depend on
type Store interface {
	StoreConsentResource(ctx context.Context, exec database.Executor, consent *models.ConsentResource) (*models.ConsentResource, error)
	GetConsentResourceForUpdate(ctx context.Context, exec database.Executor, consentID, orgID string) (*models.ConsentResource, error)
	GetDetailedConsentResource(ctx context.Context, exec database.Executor, consentID, orgID string) (*models.DetailedConsentResource, error)
	UpdateConsentStatus(ctx context.Context, exec database.Executor, consentID, orgID, status string) error
	UpdateConsentStatusIfUnmodified(ctx context.Context, exec database.Executor, consentID, orgID, status string, expectedUpdatedTime int64) error
	UpdateConsentResource(ctx context.Context, exec database.Executor, consent *models.ConsentResource) (*models.ConsentResource, error)
	FindExpiredConsentIDs(ctx context.Context, exec database.Executor, orgID string, statuses []string) ([]string, error)
	SearchConsents(ctx context.Context, exec database.Executor, params models.ConsentSearchParams) ([]*models.DetailedConsentResource, error)
	DeleteConsent(ctx context.Context, exec database.Executor, consentID, orgID string) (bool, error)

	StoreAuthorizationResource(ctx context.Context, exec database.Executor, auth *models.AuthorizationResource) (*models.AuthorizationResource, error)
	GetAuthorizationResource(ctx context.Context, exec database.Executor, authID, orgID string) (*models.AuthorizationResource, error)
	UpdateAuthorizationResource(ctx context.Context, exec database.Executor, auth *models.AuthorizationResource) (*models.AuthorizationResource, error)
	BulkAuthorizationStatusUpdateByConsent(ctx context.Context, exec database.Executor, consentID, orgID, status string) error
	StoreConsentMappingResources(ctx context.Context, exec database.Executor, authID string, mappings []models.ConsentMappingResource) ([]models.ConsentMappingResource, error)
	UpdateConsentMappingStatus(ctx context.Context, exec database.Executor, mappingIDs []string, status string) error

	StoreConsentAttributes(ctx context.Context, exec database.Executor, consentID, orgID string, attributes map[string]string) error
	UpdateConsentAttributes(ctx context.Context, exec database.Executor, consentID, orgID string, attributes map[string]string) error
	DeleteConsentAttributes(ctx context.Context, exec database.Executor, consentID, orgID string, keys ...string) error
	GetConsentIDsByAttribute(ctx context.Context, exec database.Executor, key, value string) ([]string, error)

	StoreConsentStatusAuditRecord(ctx context.Context, exec database.Executor, record *models.ConsentStatusAuditRecord) (*models.ConsentStatusAuditRecord, error)
	GetConsentStatusAuditRecords(ctx context.Context, exec database.Executor, filter models.StatusAuditFilter) ([]models.ConsentStatusAuditRecord, error)
	StoreConsentAmendmentHistory(ctx context.Context, exec database.Executor, record *models.ConsentHistoryRecord) error
	RetrieveConsentAmendmentHistory(ctx context.Context, exec database.Executor, recordIDs []string, consentID string) (map[string]*models.ConsentHistoryResource, error)
}

var _ Store = (*dao.ConsentStore)(nil)
