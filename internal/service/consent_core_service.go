package service

import (
	"context"
	"fmt"

	"github.com/wso2/consent-lifecycle-store/internal/config"
	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/lifecycle"
	"github.com/wso2/consent-lifecycle-store/internal/models"
	"github.com/wso2/consent-lifecycle-store/internal/system/log"
	"github.com/wso2/consent-lifecycle-store/pkg/utils"
)

const (
	reasonInitialCreation = "Initial consent creation"
	reasonExpired         = "Consent validity time elapsed"
	systemActor           = "system"
)

// AccountMapping binds an account of the authorizing user to the consent
type AccountMapping struct {
	AccountID string
	Resource  models.JSON
}

// AuthorizationRequest describes an authorization created together with its consent
type AuthorizationRequest struct {
	AuthorizationType string
	UserID            *string
	Status            string
	Resource          models.JSON
}

// CreateConsentRequest holds the input of CreateAuthorizableConsent
type CreateConsentRequest struct {
	OrgID              string
	ClientID           string
	ConsentType        string
	Receipt            models.JSON
	ConsentFrequency   *int
	ValidityTime       *int64
	RecurringIndicator *bool
	// Status defaults to the awaiting authorisation status and must be one of the initial statuses
	Status         string
	Attributes     map[string]string
	IdempotencyKey string
	Authorization  *AuthorizationRequest
	ActionBy       string
}

// CreateConsentResult is the created consent, or the earlier consent when the request was a replay
type CreateConsentResult struct {
	Consent  *models.DetailedConsentResource
	Replayed bool
}

// AuthorizeConsentRequest holds a user's decision on a consent
type AuthorizeConsentRequest struct {
	ConsentID       string
	OrgID           string
	AuthorizationID string
	UserID          string
	Approve         bool
	Accounts        []AccountMapping
	Reason          string
}

// AmendConsentRequest holds the changes of AmendConsent. Nil fields are left untouched.
type AmendConsentRequest struct {
	ConsentID          string
	OrgID              string
	Receipt            models.JSON
	ValidityTime       *int64
	ConsentFrequency   *int
	RecurringIndicator *bool
	// Attributes are upserted, RemoveAttributes are deleted
	Attributes       map[string]string
	RemoveAttributes []string
	// AuthorizationID receives AddAccounts. DeactivateMappingIDs are set inactive.
	AuthorizationID      string
	AddAccounts          []AccountMapping
	DeactivateMappingIDs []string
	ActionBy             string
	Reason               string
}

// AmendConsentResult is the amended consent and the history id of the amendment
type AmendConsentResult struct {
	Consent   *models.DetailedConsentResource
	HistoryID string
}

// ConsentCoreService runs the common consent flows, each inside one transaction
type ConsentCoreService struct {
	db          *database.DB
	store       Store
	cfg         *config.ConsentConfig
	vocab       lifecycle.Vocabulary
	status      *StatusEngine
	idempotency *IdempotencyValidator
	history     *HistoryEngine
	logger      *log.Logger
}

// NewConsentCoreService wires the engines around store
func NewConsentCoreService(db *database.DB, store Store, cfg *config.ConsentConfig, status *StatusEngine,
	idempotency *IdempotencyValidator, history *HistoryEngine, logger *log.Logger) *ConsentCoreService {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &ConsentCoreService{
		db:          db,
		store:       store,
		cfg:         cfg,
		vocab:       lifecycle.NewVocabulary(cfg),
		status:      status,
		idempotency: idempotency,
		history:     history,
		logger:      logger.With(log.String(log.LoggerKeyComponentName, "ConsentCoreService")),
	}
}

// CreateAuthorizableConsent creates a consent with its attributes, an optional first
// authorization and the initial audit record. A valid replay of an earlier request
// returns the earlier consent and writes nothing.
func (s *ConsentCoreService) CreateAuthorizableConsent(ctx context.Context, req CreateConsentRequest) (*CreateConsentResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	status, authStatus := req.Status, ""
	if status == "" {
		status = s.vocab.Consent.AwaitingAuthorisationStatus
	}
	if a := req.Authorization; a != nil {
		if authStatus = a.Status; authStatus == "" {
			authStatus = s.vocab.Auth.CreatedStatus
		}
	}
	if err := s.vocab.ValidateInitial(status, authStatus); err != nil {
		return nil, err
	}
	var result *CreateConsentResult
	err := s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		if req.IdempotencyKey != "" {
			replay := s.idempotency.Validate(ctx, tx, IdempotencyRequest{
				KeyValue: req.IdempotencyKey,
				Payload:  req.Receipt,
				ClientID: req.ClientID,
				OrgID:    req.OrgID,
			})
			if replay.IsIdempotent {
				if !replay.IsValid {
					return fmt.Errorf("%w: %s", ErrIdempotencyMismatch, req.IdempotencyKey)
				}
				result = &CreateConsentResult{Consent: replay.Consent, Replayed: true}
				return nil
			}
		}

		consent, err := s.store.StoreConsentResource(ctx, tx, &models.ConsentResource{
			OrgID:              req.OrgID,
			ClientID:           req.ClientID,
			ConsentType:        req.ConsentType,
			Receipt:            req.Receipt,
			CurrentStatus:      status,
			ConsentFrequency:   req.ConsentFrequency,
			ValidityTime:       req.ValidityTime,
			RecurringIndicator: req.RecurringIndicator,
		})
		if err != nil {
			return err
		}

		attributes := make(map[string]string, len(req.Attributes)+1)
		for k, v := range req.Attributes {
			attributes[k] = v
		}
		if req.IdempotencyKey != "" && s.cfg.Idempotency.Enabled {
			attributes[s.cfg.Idempotency.HeaderName] = req.IdempotencyKey
		}
		if len(attributes) > 0 {
			if err := s.store.StoreConsentAttributes(ctx, tx, consent.ConsentID, consent.OrgID, attributes); err != nil {
				return err
			}
		}

		if a := req.Authorization; a != nil {
			if _, err := s.store.StoreAuthorizationResource(ctx, tx, &models.AuthorizationResource{
				ConsentID:           consent.ConsentID,
				OrgID:               consent.OrgID,
				UserID:              a.UserID,
				AuthorizationType:   a.AuthorizationType,
				AuthorizationStatus: authStatus,
				Resource:            a.Resource,
			}); err != nil {
				return err
			}
		}

		if _, err := s.status.RecordInitialStatus(ctx, tx, consent, req.ActionBy, reasonInitialCreation); err != nil {
			return err
		}

		detailed, err := s.store.GetDetailedConsentResource(ctx, tx, consent.ConsentID, consent.OrgID)
		if err != nil {
			return err
		}
		result = &CreateConsentResult{Consent: detailed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		s.logger.Info("Returned replayed consent", log.String(log.LoggerKeyConsentID, result.Consent.ConsentID))
	} else {
		s.logger.Info("Consent created", log.String(log.LoggerKeyConsentID, result.Consent.ConsentID),
			log.String(log.LoggerKeyOrgID, result.Consent.OrgID))
	}
	return result, nil
}

// AuthorizeConsent applies a user's approval or rejection: the authorization records the
// user and decision, approved accounts become active mappings, and the consent moves to
// authorised or rejected with an audit record
func (s *ConsentCoreService) AuthorizeConsent(ctx context.Context, req AuthorizeConsentRequest) (*models.DetailedConsentResource, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var detailed *models.DetailedConsentResource
	err := s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		consent, err := s.store.GetConsentResourceForUpdate(ctx, tx, req.ConsentID, req.OrgID)
		if err != nil {
			return err
		}
		if consent == nil {
			return fmt.Errorf("%w: %s", ErrConsentNotFound, req.ConsentID)
		}
		auth, err := s.store.GetAuthorizationResource(ctx, tx, req.AuthorizationID, req.OrgID)
		if err != nil {
			return err
		}
		if auth == nil {
			return fmt.Errorf("%w: %s", ErrAuthorizationNotFound, req.AuthorizationID)
		}
		if err := s.vocab.ValidateAuthorizable(consent, auth); err != nil {
			return err
		}

		authStatus, consentStatus := s.vocab.Auth.RejectedStatus, s.vocab.Consent.RejectedStatus
		if req.Approve {
			authStatus, consentStatus = s.vocab.Auth.AuthorisedStatus, s.vocab.Consent.AuthorisedStatus
		}

		authChange, err := s.status.TransitionAuthorization(ctx, tx, AuthorizationTransition{
			AuthorizationID: req.AuthorizationID,
			OrgID:           req.OrgID,
			NewStatus:       authStatus,
			UserID:          models.StringPtr(req.UserID),
		})
		if err != nil {
			return err
		}
		diffs := []RecordDiff{authChange.Diff}

		if req.Approve && len(req.Accounts) > 0 {
			added, err := s.store.StoreConsentMappingResources(ctx, tx, req.AuthorizationID, toMappings(req.Accounts))
			if err != nil {
				return err
			}
			diffs = append(diffs, addedMappingDiffs(added)...)
		}

		change, err := s.status.TransitionConsent(ctx, tx, ConsentTransition{
			ConsentID: req.ConsentID,
			OrgID:     req.OrgID,
			NewStatus: consentStatus,
			ActionBy:  req.UserID,
			Reason:    req.Reason,
		})
		if err != nil {
			return err
		}
		if err := s.recordStatusChange(ctx, tx, req.ConsentID, req.Reason, change, diffs); err != nil {
			return err
		}

		detailed, err = s.store.GetDetailedConsentResource(ctx, tx, req.ConsentID, req.OrgID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detailed, nil
}

// RevokeConsent revokes a consent with an audit record, moves every authorization to the
// system revoked status and deactivates every mapping
func (s *ConsentCoreService) RevokeConsent(ctx context.Context, consentID, orgID, actionBy, reason string) (*models.ConsentStatusAuditRecord, error) {
	if err := utils.ValidateIdentifier("consentId", consentID, utils.MaxIdentifierLength); err != nil {
		return nil, err
	}
	var record *models.ConsentStatusAuditRecord
	err := s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		change, err := s.status.TransitionConsent(ctx, tx, ConsentTransition{
			ConsentID: consentID,
			OrgID:     orgID,
			NewStatus: s.vocab.Consent.RevokedStatus,
			ActionBy:  actionBy,
			Reason:    reason,
		})
		if err != nil {
			return err
		}
		diffs, err := s.retireChildren(ctx, tx, consentID, orgID, s.vocab.Auth.RevokedStatus)
		if err != nil {
			return err
		}
		record = change.Audit
		return s.recordStatusChange(ctx, tx, consentID, reason, change, diffs)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Consent revoked", log.String(log.LoggerKeyConsentID, consentID))
	return record, nil
}

// AmendConsent applies the requested changes, then writes one audit record and the
// history rows holding the previous values, all in one transaction
func (s *ConsentCoreService) AmendConsent(ctx context.Context, req AmendConsentRequest) (*AmendConsentResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var result *AmendConsentResult
	err := s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		locked, err := s.store.GetConsentResourceForUpdate(ctx, tx, req.ConsentID, req.OrgID)
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("%w: %s", ErrConsentNotFound, req.ConsentID)
		}
		if s.cfg.IsTerminalStatus(locked.CurrentStatus) {
			return fmt.Errorf("%w: consent %s is %q", ErrConsentNotAmendable, req.ConsentID, locked.CurrentStatus)
		}
		before, err := s.store.GetDetailedConsentResource(ctx, tx, req.ConsentID, req.OrgID)
		if err != nil {
			return err
		}

		amended := before.ConsentResource.Clone()
		if req.Receipt != nil {
			amended.Receipt = req.Receipt
		}
		if req.ValidityTime != nil {
			amended.ValidityTime = req.ValidityTime
		}
		if req.ConsentFrequency != nil {
			amended.ConsentFrequency = req.ConsentFrequency
		}
		if req.RecurringIndicator != nil {
			amended.RecurringIndicator = req.RecurringIndicator
		}
		after, err := s.store.UpdateConsentResource(ctx, tx, &amended)
		if err != nil {
			return err
		}

		consentDiff, err := ConsentDiff(&before.ConsentResource, after)
		if err != nil {
			return err
		}
		diffs := []RecordDiff{{RecordID: req.ConsentID, DataType: models.ConsentDataTypeConsent, Changed: consentDiff}}

		attrDiff, err := s.amendAttributes(ctx, tx, before, req)
		if err != nil {
			return err
		}
		diffs = append(diffs, RecordDiff{RecordID: req.ConsentID, DataType: models.ConsentDataTypeAttributes, Changed: attrDiff})

		mappingDiffs, err := s.amendMappings(ctx, tx, before, req)
		if err != nil {
			return err
		}
		diffs = append(diffs, mappingDiffs...)

		audit, err := s.status.RecordAudit(ctx, tx, req.ConsentID, req.OrgID,
			before.CurrentStatus, after.CurrentStatus, req.ActionBy, req.Reason)
		if err != nil {
			return err
		}

		historyID, err := s.history.RecordAmendment(ctx, tx, Amendment{
			ConsentID:     req.ConsentID,
			Reason:        req.Reason,
			StatusAuditID: audit.StatusAuditID,
			Diffs:         diffs,
		})
		if err != nil {
			return err
		}

		detailed, err := s.store.GetDetailedConsentResource(ctx, tx, req.ConsentID, req.OrgID)
		if err != nil {
			return err
		}
		result = &AmendConsentResult{Consent: detailed, HistoryID: historyID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Consent amended", log.String(log.LoggerKeyConsentID, req.ConsentID),
		log.String("history_id", result.HistoryID))
	return result, nil
}

func (s *ConsentCoreService) amendAttributes(ctx context.Context, exec database.Executor, before *models.DetailedConsentResource, req AmendConsentRequest) (map[string]interface{}, error) {
	if len(req.Attributes) > 0 {
		if err := s.store.UpdateConsentAttributes(ctx, exec, req.ConsentID, req.OrgID, req.Attributes); err != nil {
			return nil, err
		}
	}
	if len(req.RemoveAttributes) > 0 {
		if err := s.store.DeleteConsentAttributes(ctx, exec, req.ConsentID, req.OrgID, req.RemoveAttributes...); err != nil {
			return nil, err
		}
	}

	after := make(map[string]string, len(before.Attributes)+len(req.Attributes))
	for k, v := range before.Attributes {
		after[k] = v
	}
	for k, v := range req.Attributes {
		after[k] = v
	}
	for _, k := range req.RemoveAttributes {
		delete(after, k)
	}
	return AttributeDiff(before.Attributes, after), nil
}

func (s *ConsentCoreService) amendMappings(ctx context.Context, exec database.Executor, before *models.DetailedConsentResource, req AmendConsentRequest) ([]RecordDiff, error) {
	var diffs []RecordDiff

	if len(req.DeactivateMappingIDs) > 0 {
		for _, id := range req.DeactivateMappingIDs {
			auth, idx := before.FindMapping(id)
			if auth == nil {
				return nil, fmt.Errorf("%w: %s is not a mapping of consent %s", ErrMappingNotFound, id, req.ConsentID)
			}
			if old := auth.Mappings[idx].MappingStatus; old != models.MappingStatusInactive {
				diffs = append(diffs, RecordDiff{
					RecordID: id,
					DataType: models.ConsentDataTypeMapping,
					Changed:  map[string]interface{}{models.MappingFieldStatus: old},
				})
			}
		}
		if err := s.store.UpdateConsentMappingStatus(ctx, exec, req.DeactivateMappingIDs, models.MappingStatusInactive); err != nil {
			return nil, err
		}
	}

	if len(req.AddAccounts) > 0 {
		if before.FindAuthorization(req.AuthorizationID) == nil {
			return nil, fmt.Errorf("%w: %s", ErrAuthorizationNotFound, req.AuthorizationID)
		}
		added, err := s.store.StoreConsentMappingResources(ctx, exec, req.AuthorizationID, toMappings(req.AddAccounts))
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, addedMappingDiffs(added)...)
	}
	return diffs, nil
}

func addedMappingDiffs(added []models.ConsentMappingResource) []RecordDiff {
	diffs := make([]RecordDiff, 0, len(added))
	for _, m := range added {
		diffs = append(diffs, RecordDiff{RecordID: m.MappingID, DataType: models.ConsentDataTypeMapping})
	}
	return diffs
}

// ExpireConsents moves every consent of the org whose validity time has passed to the
// expired status, with an audit record each. It returns the expired consent ids.
func (s *ConsentCoreService) ExpireConsents(ctx context.Context, orgID string) ([]string, error) {
	var expired []string
	err := s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		ids, err := s.store.FindExpiredConsentIDs(ctx, tx, orgID, s.vocab.ExpirableStatuses())
		if err != nil {
			return err
		}
		for _, id := range ids {
			change, err := s.status.TransitionConsent(ctx, tx, ConsentTransition{
				ConsentID: id,
				OrgID:     orgID,
				NewStatus: s.vocab.Consent.ExpiredStatus,
				ActionBy:  systemActor,
				Reason:    reasonExpired,
			})
			if err != nil {
				return err
			}
			diffs, err := s.retireChildren(ctx, tx, id, orgID, s.vocab.Auth.ExpiredStatus)
			if err != nil {
				return err
			}
			if err := s.recordStatusChange(ctx, tx, id, reasonExpired, change, diffs); err != nil {
				return err
			}
		}
		expired = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		s.logger.Info("Expired consents", log.String(log.LoggerKeyOrgID, orgID), log.Int("count", len(expired)))
	}
	return expired, nil
}

// GetConsent returns the detailed consent
func (s *ConsentCoreService) GetConsent(ctx context.Context, consentID, orgID string) (*models.DetailedConsentResource, error) {
	consent, err := s.store.GetDetailedConsentResource(ctx, s.db, consentID, orgID)
	if err != nil {
		return nil, err
	}
	if consent == nil {
		return nil, fmt.Errorf("%w: %s", ErrConsentNotFound, consentID)
	}
	return consent, nil
}

// SearchConsents runs a detailed consent search
func (s *ConsentCoreService) SearchConsents(ctx context.Context, params models.ConsentSearchParams) ([]*models.DetailedConsentResource, error) {
	return s.store.SearchConsents(ctx, s.db, params)
}

// GetStatusAuditRecords lists the status audit trail, newest first
func (s *ConsentCoreService) GetStatusAuditRecords(ctx context.Context, filter models.StatusAuditFilter) ([]models.ConsentStatusAuditRecord, error) {
	return s.store.GetConsentStatusAuditRecords(ctx, s.db, filter)
}

// GetConsentHistory returns the versions of a consent before each of its amendments, newest first
func (s *ConsentCoreService) GetConsentHistory(ctx context.Context, consentID, orgID string) ([]models.ConsentSnapshot, error) {
	var snapshots []models.ConsentSnapshot
	err := s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		current, err := s.store.GetDetailedConsentResource(ctx, tx, consentID, orgID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %s", ErrConsentNotFound, consentID)
		}
		snapshots, err = s.history.Reconstruct(ctx, tx, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

// PurgeConsent deletes a consent and everything attached to it. It reports false when
// the consent does not exist.
func (s *ConsentCoreService) PurgeConsent(ctx context.Context, consentID, orgID string) (bool, error) {
	var deleted bool
	err := s.db.WithTransaction(ctx, func(tx *database.Transaction) error {
		var err error
		deleted, err = s.store.DeleteConsent(ctx, tx, consentID, orgID)
		return err
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("Consent purged", log.String(log.LoggerKeyConsentID, consentID))
	}
	return deleted, nil
}

// retireChildren moves every authorization of a consent to authStatus and deactivates its
// mappings. It returns the previous values of every record it changed.
func (s *ConsentCoreService) retireChildren(ctx context.Context, exec database.Executor, consentID, orgID, authStatus string) ([]RecordDiff, error) {
	before, err := s.store.GetDetailedConsentResource(ctx, exec, consentID, orgID)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, nil
	}
	if err := s.store.BulkAuthorizationStatusUpdateByConsent(ctx, exec, consentID, orgID, authStatus); err != nil {
		return nil, err
	}
	if ids := before.MappingIDs(); len(ids) > 0 {
		if err := s.store.UpdateConsentMappingStatus(ctx, exec, ids, models.MappingStatusInactive); err != nil {
			return nil, err
		}
	}
	after, err := s.store.GetDetailedConsentResource(ctx, exec, consentID, orgID)
	if err != nil {
		return nil, err
	}

	var diffs []RecordDiff
	for _, old := range before.Authorizations {
		current := after.FindAuthorization(old.AuthorizationID)
		if current == nil {
			continue
		}
		diffs = append(diffs, RecordDiff{
			RecordID: old.AuthorizationID,
			DataType: models.ConsentDataTypeAuthorization,
			Changed:  FieldDiff(old.HistoryFields(), current.HistoryFields()),
		})
		for _, m := range old.Mappings {
			if m.MappingStatus != models.MappingStatusInactive {
				diffs = append(diffs, RecordDiff{
					RecordID: m.MappingID,
					DataType: models.ConsentDataTypeMapping,
					Changed:  map[string]interface{}{models.MappingFieldStatus: m.MappingStatus},
				})
			}
		}
	}
	return diffs, nil
}

// recordStatusChange writes one amendment event for a status change together with the
// changes it caused on the children of the consent
func (s *ConsentCoreService) recordStatusChange(ctx context.Context, exec database.Executor, consentID, reason string, change *ConsentStatusChange, diffs []RecordDiff) error {
	_, err := s.history.RecordAmendment(ctx, exec, Amendment{
		ConsentID:     consentID,
		Reason:        reason,
		StatusAuditID: change.Audit.StatusAuditID,
		Diffs:         append([]RecordDiff{change.Diff}, diffs...),
	})
	return err
}

func toMappings(accounts []AccountMapping) []models.ConsentMappingResource {
	mappings := make([]models.ConsentMappingResource, len(accounts))
	for i, a := range accounts {
		mappings[i] = models.ConsentMappingResource{
			AccountID:     a.AccountID,
			Resource:      a.Resource,
			MappingStatus: models.MappingStatusActive,
		}
	}
	return mappings
}
