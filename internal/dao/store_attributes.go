package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/wso2/consent-lifecycle-store/internal/database"
)

// StoreConsentAttributes inserts new attribute keys for a consent. A key that already exists is a conflict.
func (s *ConsentStore) StoreConsentAttributes(ctx context.Context, exec database.Executor, consentID, orgID string, attributes map[string]string) (err error) {
	const op = "store_consent_attributes"
	defer s.observe(op, time.Now(), &err)

	for key := range attributes {
		if key == "" {
			return insertionError(op, fmt.Errorf("%w: empty attribute key", ErrInvalidInput))
		}
	}
	orgID = s.org(orgID)
	if err := s.requireConsent(ctx, exec, consentID, orgID); err != nil {
		return insertionError(op, err)
	}
	if err := s.attributes.CreateBatch(ctx, exec, consentID, orgID, attributes); err != nil {
		return insertionError(op, err)
	}
	return nil
}

// GetConsentAttributes returns the attributes of a consent, restricted to keys when any are given
func (s *ConsentStore) GetConsentAttributes(ctx context.Context, exec database.Executor, consentID, orgID string, keys ...string) (attributes map[string]string, err error) {
	const op = "get_consent_attributes"
	defer s.observe(op, time.Now(), &err)

	grouped, err := s.attributes.GetByConsentIDs(ctx, exec, []string{consentID}, s.org(orgID), keys)
	if err != nil {
		return nil, retrievalError(op, err)
	}
	if attributes = grouped[consentID]; attributes == nil {
		attributes = map[string]string{}
	}
	return attributes, nil
}

// GetConsentAttributesByKey returns consent id to value for every consent that carries key
func (s *ConsentStore) GetConsentAttributesByKey(ctx context.Context, exec database.Executor, key string) (values map[string]string, err error) {
	const op = "get_consent_attributes_by_key"
	defer s.observe(op, time.Now(), &err)

	values, err = s.attributes.GetByKey(ctx, exec, key)
	if err != nil {
		return nil, retrievalError(op, err)
	}
	return values, nil
}

// GetConsentIDsByAttribute lists consents whose attribute key equals value, in creation order
func (s *ConsentStore) GetConsentIDsByAttribute(ctx context.Context, exec database.Executor, key, value string) (ids []string, err error) {
	const op = "get_consent_ids_by_attribute"
	defer s.observe(op, time.Now(), &err)

	ids, err = s.attributes.FindConsentIDs(ctx, exec, key, value)
	if err != nil {
		return nil, retrievalError(op, err)
	}
	return ids, nil
}

// UpdateConsentAttributes inserts missing keys and overwrites existing ones
func (s *ConsentStore) UpdateConsentAttributes(ctx context.Context, exec database.Executor, consentID, orgID string, attributes map[string]string) (err error) {
	const op = "update_consent_attributes"
	defer s.observe(op, time.Now(), &err)

	orgID = s.org(orgID)
	if err := s.requireConsent(ctx, exec, consentID, orgID); err != nil {
		return updationError(op, err)
	}
	if err := s.attributes.Upsert(ctx, exec, consentID, orgID, attributes); err != nil {
		return updationError(op, err)
	}
	return nil
}

// DeleteConsentAttributes removes the named keys. No keys removes every attribute of the consent.
func (s *ConsentStore) DeleteConsentAttributes(ctx context.Context, exec database.Executor, consentID, orgID string, keys ...string) (err error) {
	const op = "delete_consent_attributes"
	defer s.observe(op, time.Now(), &err)

	if _, err := s.attributes.Delete(ctx, exec, consentID, s.org(orgID), keys); err != nil {
		return deletionError(op, err)
	}
	return nil
}

// requireConsent fails with ErrReferenceMissing unless the consent exists in the org
func (s *ConsentStore) requireConsent(ctx context.Context, exec database.Executor, consentID, orgID string) error {
	consent, err := s.consents.GetByID(ctx, exec, consentID, orgID)
	if err != nil {
		return err
	}
	if consent == nil {
		return fmt.Errorf("%w: consent %s", ErrReferenceMissing, consentID)
	}
	return nil
}
