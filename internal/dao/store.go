package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/wso2/consent-lifecycle-store/internal/config"
	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/metrics"
	"github.com/wso2/consent-lifecycle-store/internal/models"
	"github.com/wso2/consent-lifecycle-store/internal/system/log"
	"github.com/wso2/consent-lifecycle-store/pkg/utils"
)

// ConsentStore is the persistence facade over the consent tables.
// It never begins, commits or rolls back; every call runs on the executor it is handed.
type ConsentStore struct {
	cfg     *config.ConsentConfig
	clock   utils.Clock
	metrics *metrics.Metrics
	logger  *log.Logger

	consents   *ConsentDAO
	auths      *AuthResourceDAO
	mappings   *ConsentMappingDAO
	attributes *ConsentAttributeDAO
	audits     *StatusAuditDAO
	history    *ConsentHistoryDAO
}

// Option customises a ConsentStore
type Option func(*ConsentStore)

// WithClock sets the time source used for generated timestamps
func WithClock(clock utils.Clock) Option {
	return func(s *ConsentStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetrics records operation latency and failures on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ConsentStore) {
		s.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(s *ConsentStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewConsentStore creates a store bound to the consent vocabulary in cfg
func NewConsentStore(cfg *config.ConsentConfig, opts ...Option) *ConsentStore {
	s := &ConsentStore{
		cfg:        cfg,
		clock:      utils.SystemClock{},
		logger:     log.GetLogger(),
		consents:   NewConsentDAO(),
		auths:      NewAuthResourceDAO(),
		mappings:   NewConsentMappingDAO(),
		attributes: NewConsentAttributeDAO(),
		audits:     NewStatusAuditDAO(),
		history:    NewConsentHistoryDAO(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.String(log.LoggerKeyComponentName, "ConsentStore"))
	return s
}

// Config returns the consent configuration the store validates against
func (s *ConsentStore) Config() *config.ConsentConfig {
	return s.cfg
}

// Now returns the store clock in epoch seconds
func (s *ConsentStore) Now() int64 {
	return utils.EpochSeconds(s.clock)
}

func (s *ConsentStore) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveStoreOperation(op, start, *err)
	if *err != nil {
		s.logger.Error("Consent store operation failed", log.String("operation", op), log.Error(*err))
	}
}

func (s *ConsentStore) org(orgID string) string {
	return s.cfg.ResolveOrgID(orgID)
}

func (s *ConsentStore) checkStatus(status string) error {
	if !s.cfg.IsStatusAllowed(status) {
		return fmt.Errorf("%w: consent status %q", ErrUnknownStatus, status)
	}
	return nil
}

func (s *ConsentStore) checkAuthStatus(status string) error {
	if !s.cfg.IsAuthStatusAllowed(status) {
		return fmt.Errorf("%w: authorization status %q", ErrUnknownStatus, status)
	}
	return nil
}

func requireAffected(n int64, what, id string) error {
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNoRowsAffected, what, id)
	}
	return nil
}

// StoreConsentResource inserts a new consent and returns it with its generated id and timestamps
func (s *ConsentStore) StoreConsentResource(ctx context.Context, exec database.Executor, consent *models.ConsentResource) (stored *models.ConsentResource, err error) {
	const op = "store_consent_resource"
	defer s.observe(op, time.Now(), &err)

	if consent.ConsentID != "" {
		return nil, insertionError(op, ErrIdentifierPreset)
	}
	if err := s.checkStatus(consent.CurrentStatus); err != nil {
		return nil, insertionError(op, err)
	}

	c := *consent
	now := s.Now()
	c.ConsentID = utils.GenerateConsentID()
	c.OrgID = s.org(c.OrgID)
	c.CreatedTime = now
	c.UpdatedTime = now

	if err := s.consents.Create(ctx, exec, &c); err != nil {
		return nil, insertionError(op, err)
	}
	return &c, nil
}

// GetConsentResource returns the consent or nil when it does not exist
func (s *ConsentStore) GetConsentResource(ctx context.Context, exec database.Executor, consentID, orgID string) (consent *models.ConsentResource, err error) {
	const op = "get_consent_resource"
	defer s.observe(op, time.Now(), &err)

	consent, err = s.consents.GetByID(ctx, exec, consentID, s.org(orgID))
	if err != nil {
		return nil, retrievalError(op, err)
	}
	return consent, nil
}

// GetConsentResourceForUpdate reads the consent and holds its row lock for the rest of the transaction
func (s *ConsentStore) GetConsentResourceForUpdate(ctx context.Context, exec database.Executor, consentID, orgID string) (consent *models.ConsentResource, err error) {
	const op = "get_consent_resource_for_update"
	defer s.observe(op, time.Now(), &err)

	consent, err = s.consents.GetByIDForUpdate(ctx, exec, consentID, s.org(orgID))
	if err != nil {
		return nil, retrievalError(op, err)
	}
	return consent, nil
}

// UpdateConsentStatus sets the consent status without writing audit
func (s *ConsentStore) UpdateConsentStatus(ctx context.Context, exec database.Executor, consentID, orgID, status string) (err error) {
	const op = "update_consent_status"
	defer s.observe(op, time.Now(), &err)

	if err := s.checkStatus(status); err != nil {
		return updationError(op, err)
	}
	n, err := s.consents.UpdateStatus(ctx, exec, consentID, s.org(orgID), status, s.Now())
	if err != nil {
		return updationError(op, err)
	}
	if err := requireAffected(n, "consent", consentID); err != nil {
		return updationError(op, err)
	}
	return nil
}

// UpdateConsentStatusIfUnmodified sets the status only while UPDATED_TIME still equals expectedUpdatedTime
func (s *ConsentStore) UpdateConsentStatusIfUnmodified(ctx context.Context, exec database.Executor, consentID, orgID, status string, expectedUpdatedTime int64) (err error) {
	const op = "update_consent_status_if_unmodified"
	defer s.observe(op, time.Now(), &err)

	if err := s.checkStatus(status); err != nil {
		return updationError(op, err)
	}
	n, err := s.consents.UpdateStatusIfUnmodified(ctx, exec, consentID, s.org(orgID), status, expectedUpdatedTime, s.Now())
	if err != nil {
		return updationError(op, err)
	}
	if n == 0 {
		return updationError(op, fmt.Errorf("%w: consent %s changed since %d", ErrConcurrentModification, consentID, expectedUpdatedTime))
	}
	return nil
}

// BulkConsentStatusUpdate sets the same status on every listed consent
func (s *ConsentStore) BulkConsentStatusUpdate(ctx context.Context, exec database.Executor, consentIDs []string, orgID, status string) (err error) {
	const op = "bulk_consent_status_update"
	defer s.observe(op, time.Now(), &err)

	if err := s.checkStatus(status); err != nil {
		return updationError(op, err)
	}
	if _, err := s.consents.BulkUpdateStatus(ctx, exec, consentIDs, s.org(orgID), status, s.Now()); err != nil {
		return updationError(op, err)
	}
	return nil
}

// UpdateConsentExpiryTime sets VALIDITY_TIME
func (s *ConsentStore) UpdateConsentExpiryTime(ctx context.Context, exec database.Executor, consentID, orgID string, expiryTime int64) (err error) {
	const op = "update_consent_expiry_time"
	defer s.observe(op, time.Now(), &err)

	n, err := s.consents.UpdateValidityTime(ctx, exec, consentID, s.org(orgID), expiryTime, s.Now())
	if err != nil {
		return updationError(op, err)
	}
	if err := requireAffected(n, "consent", consentID); err != nil {
		return updationError(op, err)
	}
	return nil
}

// UpdateConsentResource overwrites the amendable fields of a consent and bumps its UPDATED_TIME
func (s *ConsentStore) UpdateConsentResource(ctx context.Context, exec database.Executor, consent *models.ConsentResource) (updated *models.ConsentResource, err error) {
	const op = "update_consent_resource"
	defer s.observe(op, time.Now(), &err)

	if err := s.checkStatus(consent.CurrentStatus); err != nil {
		return nil, updationError(op, err)
	}

	c := *consent
	c.OrgID = s.org(c.OrgID)
	c.UpdatedTime = s.Now()

	n, err := s.consents.Update(ctx, exec, &c)
	if err != nil {
		return nil, updationError(op, err)
	}
	if err := requireAffected(n, "consent", c.ConsentID); err != nil {
		return nil, updationError(op, err)
	}
	return &c, nil
}

// FindExpiredConsentIDs lists consents in one of statuses whose validity time is before now
func (s *ConsentStore) FindExpiredConsentIDs(ctx context.Context, exec database.Executor, orgID string, statuses []string) (ids []string, err error) {
	const op = "find_expired_consent_ids"
	defer s.observe(op, time.Now(), &err)

	ids, err = s.consents.FindExpiredIDs(ctx, exec, s.org(orgID), s.Now(), statuses)
	if err != nil {
		return nil, retrievalError(op, err)
	}
	return ids, nil
}

// DeleteConsent removes a consent and everything hanging off it, children first.
// It reports false when the consent does not exist.
func (s *ConsentStore) DeleteConsent(ctx context.Context, exec database.Executor, consentID, orgID string) (deleted bool, err error) {
	const op = "delete_consent"
	defer s.observe(op, time.Now(), &err)

	orgID = s.org(orgID)
	existing, err := s.consents.GetByID(ctx, exec, consentID, orgID)
	if err != nil {
		return false, deletionError(op, err)
	}
	if existing == nil {
		return false, nil
	}

	steps := []struct {
		name string
		run  func() (int64, error)
	}{
		{"mappings", func() (int64, error) { return s.mappings.DeleteByConsentID(ctx, exec, consentID) }},
		{"authorizations", func() (int64, error) { return s.auths.DeleteByConsentID(ctx, exec, consentID) }},
		{"attributes", func() (int64, error) { return s.attributes.DeleteByConsentID(ctx, exec, consentID) }},
		{"status audit", func() (int64, error) { return s.audits.DeleteByConsentID(ctx, exec, consentID) }},
		{"history", func() (int64, error) { return s.history.DeleteByConsentID(ctx, exec, consentID) }},
		{"consent", func() (int64, error) { return s.consents.Delete(ctx, exec, consentID, orgID) }},
	}
	for _, step := range steps {
		n, err := step.run()
		if err != nil {
			return false, deletionError(op, fmt.Errorf("deleting %s: %w", step.name, err))
		}
		s.logger.Debug("Deleted consent rows",
			log.String(log.LoggerKeyConsentID, consentID),
			log.String("table", step.name),
			log.Int64("rows", n))
	}
	return true, nil
}
