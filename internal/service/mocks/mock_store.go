package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/models"
)

// MockStore is a mock implementation of service.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) StoreConsentResource(ctx context.Context, exec database.Executor, consent *models.ConsentResource) (*models.ConsentResource, error) {
	args := m.Called(ctx, exec, consent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentResource), args.Error(1)
}

func (m *MockStore) GetConsentResourceForUpdate(ctx context.Context, exec database.Executor, consentID, orgID string) (*models.ConsentResource, error) {
	args := m.Called(ctx, exec, consentID, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentResource), args.Error(1)
}

func (m *MockStore) GetDetailedConsentResource(ctx context.Context, exec database.Executor, consentID, orgID string) (*models.DetailedConsentResource, error) {
	args := m.Called(ctx, exec, consentID, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DetailedConsentResource), args.Error(1)
}

func (m *MockStore) UpdateConsentStatus(ctx context.Context, exec database.Executor, consentID, orgID, status string) error {
	args := m.Called(ctx, exec, consentID, orgID, status)
	return args.Error(0)
}

func (m *MockStore) UpdateConsentStatusIfUnmodified(ctx context.Context, exec database.Executor, consentID, orgID, status string, expectedUpdatedTime int64) error {
	args := m.Called(ctx, exec, consentID, orgID, status, expectedUpdatedTime)
	return args.Error(0)
}

func (m *MockStore) UpdateConsentResource(ctx context.Context, exec database.Executor, consent *models.ConsentResource) (*models.ConsentResource, error) {
	args := m.Called(ctx, exec, consent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentResource), args.Error(1)
}

func (m *MockStore) FindExpiredConsentIDs(ctx context.Context, exec database.Executor, orgID string, statuses []string) ([]string, error) {
	args := m.Called(ctx, exec, orgID, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) SearchConsents(ctx context.Context, exec database.Executor, params models.ConsentSearchParams) ([]*models.DetailedConsentResource, error) {
	args := m.Called(ctx, exec, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DetailedConsentResource), args.Error(1)
}

func (m *MockStore) DeleteConsent(ctx context.Context, exec database.Executor, consentID, orgID string) (bool, error) {
	args := m.Called(ctx, exec, consentID, orgID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) StoreAuthorizationResource(ctx context.Context, exec database.Executor, auth *models.AuthorizationResource) (*models.AuthorizationResource, error) {
	args := m.Called(ctx, exec, auth)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthorizationResource), args.Error(1)
}

func (m *MockStore) GetAuthorizationResource(ctx context.Context, exec database.Executor, authID, orgID string) (*models.AuthorizationResource, error) {
	args := m.Called(ctx, exec, authID, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthorizationResource), args.Error(1)
}

func (m *MockStore) UpdateAuthorizationResource(ctx context.Context, exec database.Executor, auth *models.AuthorizationResource) (*models.AuthorizationResource, error) {
	args := m.Called(ctx, exec, auth)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthorizationResource), args.Error(1)
}

func (m *MockStore) BulkAuthorizationStatusUpdateByConsent(ctx context.Context, exec database.Executor, consentID, orgID, status string) error {
	args := m.Called(ctx, exec, consentID, orgID, status)
	return args.Error(0)
}

func (m *MockStore) StoreConsentMappingResources(ctx context.Context, exec database.Executor, authID string, mappings []models.ConsentMappingResource) ([]models.ConsentMappingResource, error) {
	args := m.Called(ctx, exec, authID, mappings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConsentMappingResource), args.Error(1)
}

func (m *MockStore) UpdateConsentMappingStatus(ctx context.Context, exec database.Executor, mappingIDs []string, status string) error {
	args := m.Called(ctx, exec, mappingIDs, status)
	return args.Error(0)
}

func (m *MockStore) StoreConsentAttributes(ctx context.Context, exec database.Executor, consentID, orgID string, attributes map[string]string) error {
	args := m.Called(ctx, exec, consentID, orgID, attributes)
	return args.Error(0)
}

func (m *MockStore) UpdateConsentAttributes(ctx context.Context, exec database.Executor, consentID, orgID string, attributes map[string]string) error {
	args := m.Called(ctx, exec, consentID, orgID, attributes)
	return args.Error(0)
}

func (m *MockStore) DeleteConsentAttributes(ctx context.Context, exec database.Executor, consentID, orgID string, keys ...string) error {
	args := m.Called(ctx, exec, consentID, orgID, keys)
	return args.Error(0)
}

func (m *MockStore) GetConsentIDsByAttribute(ctx context.Context, exec database.Executor, key, value string) ([]string, error) {
	args := m.Called(ctx, exec, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) StoreConsentStatusAuditRecord(ctx context.Context, exec database.Executor, record *models.ConsentStatusAuditRecord) (*models.ConsentStatusAuditRecord, error) {
	args := m.Called(ctx, exec, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentStatusAuditRecord), args.Error(1)
}

func (m *MockStore) GetConsentStatusAuditRecords(ctx context.Context, exec database.Executor, filter models.StatusAuditFilter) ([]models.ConsentStatusAuditRecord, error) {
	args := m.Called(ctx, exec, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConsentStatusAuditRecord), args.Error(1)
}

func (m *MockStore) StoreConsentAmendmentHistory(ctx context.Context, exec database.Executor, record *models.ConsentHistoryRecord) error {
	args := m.Called(ctx, exec, record)
	return args.Error(0)
}

func (m *MockStore) RetrieveConsentAmendmentHistory(ctx context.Context, exec database.Executor, recordIDs []string, consentID string) (map[string]*models.ConsentHistoryResource, error) {
	args := m.Called(ctx, exec, recordIDs, consentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*models.ConsentHistoryResource), args.Error(1)
}
