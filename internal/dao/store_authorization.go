package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/models"
	"github.com/wso2/consent-lifecycle-store/pkg/utils"
)

// StoreAuthorizationResource inserts a single authorization for an existing consent
func (s *ConsentStore) StoreAuthorizationResource(ctx context.Context, exec database.Executor, auth *models.AuthorizationResource) (*models.AuthorizationResource, error) {
	stored, err := s.StoreBulkAuthorizationResources(ctx, exec, auth.ConsentID, auth.OrgID, []*models.AuthorizationResource{auth})
	if err != nil {
		return nil, err
	}
	return stored[0], nil
}

// StoreBulkAuthorizationResources inserts every authorization of a consent in one statement.
// Either all rows are written or none are.
func (s *ConsentStore) StoreBulkAuthorizationResources(ctx context.Context, exec database.Executor, consentID, orgID string, auths []*models.AuthorizationResource) (stored []*models.AuthorizationResource, err error) {
	const op = "store_authorization_resources"
	defer s.observe(op, time.Now(), &err)

	orgID = s.org(orgID)
	consent, err := s.consents.GetByID(ctx, exec, consentID, orgID)
	if err != nil {
		return nil, insertionError(op, err)
	}
	if consent == nil {
		return nil, insertionError(op, fmt.Errorf("%w: consent %s", ErrReferenceMissing, consentID))
	}

	now := s.Now()
	stored = make([]*models.AuthorizationResource, 0, len(auths))
	for _, auth := range auths {
		if auth.AuthorizationID != "" {
			return nil, insertionError(op, ErrIdentifierPreset)
		}
		if err := s.checkAuthStatus(auth.AuthorizationStatus); err != nil {
			return nil, insertionError(op, err)
		}
		a := *auth
		a.AuthorizationID = utils.GenerateAuthID()
		a.ConsentID = consentID
		a.OrgID = orgID
		a.UpdatedTime = now
		a.Mappings = nil
		stored = append(stored, &a)
	}

	if err := s.auths.CreateBatch(ctx, exec, stored); err != nil {
		return nil, insertionError(op, err)
	}
	return stored, nil
}

// GetAuthorizationResource returns the authorization or nil when it does not exist
func (s *ConsentStore) GetAuthorizationResource(ctx context.Context, exec database.Executor, authID, orgID string) (auth *models.AuthorizationResource, err error) {
	const op = "get_authorization_resource"
	defer s.observe(op, time.Now(), &err)

	auth, err = s.auths.GetByID(ctx, exec, authID, s.org(orgID))
	if err != nil {
		return nil, retrievalError(op, err)
	}
	return auth, nil
}

// GetAuthorizationResourcesByConsentID lists the authorizations of a consent without mappings
func (s *ConsentStore) GetAuthorizationResourcesByConsentID(ctx context.Context, exec database.Executor, consentID, orgID string) (auths []models.AuthorizationResource, err error) {
	const op = "get_authorization_resources_by_consent_id"
	defer s.observe(op, time.Now(), &err)

	auths, err = s.auths.GetByConsentID(ctx, exec, consentID, s.org(orgID))
	if err != nil {
		return nil, retrievalError(op, err)
	}
	return auths, nil
}

// UpdateAuthorizationResource overwrites type, user, status and resource of an authorization
func (s *ConsentStore) UpdateAuthorizationResource(ctx context.Context, exec database.Executor, auth *models.AuthorizationResource) (updated *models.AuthorizationResource, err error) {
	const op = "update_authorization_resource"
	defer s.observe(op, time.Now(), &err)

	if err := s.checkAuthStatus(auth.AuthorizationStatus); err != nil {
		return nil, updationError(op, err)
	}

	a := *auth
	a.OrgID = s.org(a.OrgID)
	a.UpdatedTime = s.Now()

	n, err := s.auths.Update(ctx, exec, &a)
	if err != nil {
		return nil, updationError(op, err)
	}
	if err := requireAffected(n, "authorization", a.AuthorizationID); err != nil {
		return nil, updationError(op, err)
	}
	return &a, nil
}

// UpdateAuthorizationStatus sets the status of one authorization
func (s *ConsentStore) UpdateAuthorizationStatus(ctx context.Context, exec database.Executor, authID, orgID, status string) (err error) {
	const op = "update_authorization_status"
	defer s.observe(op, time.Now(), &err)

	if err := s.checkAuthStatus(status); err != nil {
		return updationError(op, err)
	}
	n, err := s.auths.UpdateStatus(ctx, exec, authID, s.org(orgID), status, s.Now())
	if err != nil {
		return updationError(op, err)
	}
	if err := requireAffected(n, "authorization", authID); err != nil {
		return updationError(op, err)
	}
	return nil
}

// BulkAuthorizationStatusUpdateByConsent sets the status of every authorization of a consent
func (s *ConsentStore) BulkAuthorizationStatusUpdateByConsent(ctx context.Context, exec database.Executor, consentID, orgID, status string) (err error) {
	const op = "bulk_authorization_status_update"
	defer s.observe(op, time.Now(), &err)

	if err := s.checkAuthStatus(status); err != nil {
		return updationError(op, err)
	}
	if _, err := s.auths.UpdateStatusByConsentID(ctx, exec, consentID, s.org(orgID), status, s.Now()); err != nil {
		return updationError(op, err)
	}
	return nil
}

// DeleteAuthorizationResource removes an authorization together with its mappings.
// It reports false and touches nothing when the authorization does not exist in the org.
func (s *ConsentStore) DeleteAuthorizationResource(ctx context.Context, exec database.Executor, authID, orgID string) (deleted bool, err error) {
	const op = "delete_authorization_resource"
	defer s.observe(op, time.Now(), &err)

	orgID = s.org(orgID)
	auth, err := s.auths.GetByID(ctx, exec, authID, orgID)
	if err != nil {
		return false, deletionError(op, err)
	}
	if auth == nil {
		return false, nil
	}
	if _, err := s.mappings.DeleteByAuthID(ctx, exec, authID); err != nil {
		return false, deletionError(op, err)
	}
	n, err := s.auths.Delete(ctx, exec, authID, orgID)
	if err != nil {
		return false, deletionError(op, err)
	}
	return n > 0, nil
}

// StoreConsentMappingResources inserts mappings under one authorization in a single statement
func (s *ConsentStore) StoreConsentMappingResources(ctx context.Context, exec database.Executor, authID string, mappings []models.ConsentMappingResource) (stored []models.ConsentMappingResource, err error) {
	const op = "store_consent_mapping_resources"
	defer s.observe(op, time.Now(), &err)

	stored = make([]models.ConsentMappingResource, 0, len(mappings))
	for _, m := range mappings {
		if m.MappingID != "" {
			return nil, insertionError(op, ErrIdentifierPreset)
		}
		m.MappingID = utils.GenerateMappingID()
		m.AuthorizationID = authID
		if m.MappingStatus == "" {
			m.MappingStatus = models.MappingStatusActive
		}
		stored = append(stored, m)
	}

	if err := s.mappings.CreateBatch(ctx, exec, stored); err != nil {
		return nil, insertionError(op, err)
	}
	return stored, nil
}

// GetConsentMappingResources lists mappings of the given authorizations. An empty status matches any.
func (s *ConsentStore) GetConsentMappingResources(ctx context.Context, exec database.Executor, authIDs []string, status string) (mappings []models.ConsentMappingResource, err error) {
	const op = "get_consent_mapping_resources"
	defer s.observe(op, time.Now(), &err)

	mappings, err = s.mappings.GetByAuthIDs(ctx, exec, authIDs, status)
	if err != nil {
		return nil, retrievalError(op, err)
	}
	return mappings, nil
}

// UpdateConsentMappingStatus sets the status of every listed mapping
func (s *ConsentStore) UpdateConsentMappingStatus(ctx context.Context, exec database.Executor, mappingIDs []string, status string) (err error) {
	const op = "update_consent_mapping_status"
	defer s.observe(op, time.Now(), &err)

	if status == "" {
		return updationError(op, fmt.Errorf("%w: empty mapping status", ErrInvalidInput))
	}
	if _, err := s.mappings.UpdateStatus(ctx, exec, mappingIDs, status); err != nil {
		return updationError(op, err)
	}
	return nil
}
