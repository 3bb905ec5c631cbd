package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/lifecycle"
	"github.com/wso2/consent-lifecycle-store/internal/metrics"
	"github.com/wso2/consent-lifecycle-store/internal/models"
	"github.com/wso2/consent-lifecycle-store/internal/system/log"
)

// ConsentTransition describes a requested consent status change
type ConsentTransition struct {
	ConsentID string
	OrgID     string
	NewStatus string
	ActionBy  string
	Reason    string
	// ExpectedUpdatedTime, when set, makes the update fail with dao.ErrConcurrentModification
	// if the consent changed since it was read
	ExpectedUpdatedTime *int64
}

// AuthorizationTransition describes a requested authorization status change
type AuthorizationTransition struct {
	AuthorizationID string
	OrgID           string
	NewStatus       string
	// UserID, when set, records the user who acted on the authorization
	UserID *string
}

// ConsentStatusChange is an accepted consent transition. Diff holds the previous status
// and update time for the amendment history.
type ConsentStatusChange struct {
	Audit *models.ConsentStatusAuditRecord
	Diff  RecordDiff
}

// AuthorizationStatusChange is an accepted authorization transition. Diff holds the
// previous status, user and update time for the amendment history.
type AuthorizationStatusChange struct {
	Authorization *models.AuthorizationResource
	Diff          RecordDiff
}

// StatusEngine applies status changes that the transition policy permits and records
// each accepted consent change in the status audit trail
type StatusEngine struct {
	store   Store
	policy  lifecycle.Policy
	metrics *metrics.Metrics
	logger  *log.Logger
}

// NewStatusEngine creates a status engine. A nil logger uses the process default.
func NewStatusEngine(store Store, policy lifecycle.Policy, m *metrics.Metrics, logger *log.Logger) *StatusEngine {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &StatusEngine{
		store:   store,
		policy:  policy,
		metrics: m,
		logger:  logger.With(log.String(log.LoggerKeyComponentName, "StatusEngine")),
	}
}

// TransitionConsent locks the consent, checks the policy and, when permitted, updates the
// status and appends the audit record on exec. A refused change writes nothing.
func (e *StatusEngine) TransitionConsent(ctx context.Context, exec database.Executor, t ConsentTransition) (*ConsentStatusChange, error) {
	logger := e.logger.With(log.String(log.LoggerKeyConsentID, t.ConsentID), log.String(log.LoggerKeyOrgID, t.OrgID))

	consent, err := e.store.GetConsentResourceForUpdate(ctx, exec, t.ConsentID, t.OrgID)
	if err != nil {
		return nil, err
	}
	if consent == nil {
		return nil, fmt.Errorf("%w: %s", ErrConsentNotFound, t.ConsentID)
	}
	from := consent.CurrentStatus

	if err := e.check(ctx, lifecycle.EntityConsent, t.ConsentID, from, t.NewStatus, logger); err != nil {
		return nil, err
	}

	if t.ExpectedUpdatedTime != nil {
		err = e.store.UpdateConsentStatusIfUnmodified(ctx, exec, t.ConsentID, t.OrgID, t.NewStatus, *t.ExpectedUpdatedTime)
	} else {
		err = e.store.UpdateConsentStatus(ctx, exec, t.ConsentID, t.OrgID, t.NewStatus)
	}
	if err != nil {
		e.metrics.IncrementTransition(string(lifecycle.EntityConsent), from, t.NewStatus, metrics.OutcomeFailed)
		return nil, err
	}

	record, err := e.RecordAudit(ctx, exec, t.ConsentID, t.OrgID, from, t.NewStatus, t.ActionBy, t.Reason)
	if err != nil {
		e.metrics.IncrementTransition(string(lifecycle.EntityConsent), from, t.NewStatus, metrics.OutcomeFailed)
		return nil, err
	}

	e.metrics.IncrementTransition(string(lifecycle.EntityConsent), from, t.NewStatus, metrics.OutcomeAccepted)
	logger.Debug("Consent status changed", log.String("from", from), log.String("to", t.NewStatus))
	return &ConsentStatusChange{
		Audit: record,
		Diff: RecordDiff{
			RecordID: t.ConsentID,
			DataType: models.ConsentDataTypeConsent,
			Changed: map[string]interface{}{
				models.FieldCurrentStatus: from,
				models.FieldUpdatedTime:   float64(consent.UpdatedTime),
			},
		},
	}, nil
}

// TransitionAuthorization checks the policy and updates the authorization status on exec
func (e *StatusEngine) TransitionAuthorization(ctx context.Context, exec database.Executor, t AuthorizationTransition) (*AuthorizationStatusChange, error) {
	logger := e.logger.With(log.String("authorization_id", t.AuthorizationID), log.String(log.LoggerKeyOrgID, t.OrgID))

	auth, err := e.store.GetAuthorizationResource(ctx, exec, t.AuthorizationID, t.OrgID)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, fmt.Errorf("%w: %s", ErrAuthorizationNotFound, t.AuthorizationID)
	}
	from := auth.AuthorizationStatus
	previous := auth.HistoryFields()

	if err := e.check(ctx, lifecycle.EntityAuthorization, t.AuthorizationID, from, t.NewStatus, logger); err != nil {
		return nil, err
	}

	auth.AuthorizationStatus = t.NewStatus
	if t.UserID != nil {
		auth.UserID = t.UserID
	}
	updated, err := e.store.UpdateAuthorizationResource(ctx, exec, auth)
	if err != nil {
		e.metrics.IncrementTransition(string(lifecycle.EntityAuthorization), from, t.NewStatus, metrics.OutcomeFailed)
		return nil, err
	}

	e.metrics.IncrementTransition(string(lifecycle.EntityAuthorization), from, t.NewStatus, metrics.OutcomeAccepted)
	logger.Debug("Authorization status changed", log.String("from", from), log.String("to", t.NewStatus))
	return &AuthorizationStatusChange{
		Authorization: updated,
		Diff: RecordDiff{
			RecordID: t.AuthorizationID,
			DataType: models.ConsentDataTypeAuthorization,
			Changed:  FieldDiff(previous, updated.HistoryFields()),
		},
	}, nil
}

// RecordInitialStatus writes the audit record of a newly created consent. The previous status is empty.
func (e *StatusEngine) RecordInitialStatus(ctx context.Context, exec database.Executor, consent *models.ConsentResource, actionBy, reason string) (*models.ConsentStatusAuditRecord, error) {
	return e.RecordAudit(ctx, exec, consent.ConsentID, consent.OrgID, "", consent.CurrentStatus, actionBy, reason)
}

// RecordAudit appends one status audit record without touching the consent
func (e *StatusEngine) RecordAudit(ctx context.Context, exec database.Executor, consentID, orgID, previous, current, actionBy, reason string) (*models.ConsentStatusAuditRecord, error) {
	return e.store.StoreConsentStatusAuditRecord(ctx, exec, &models.ConsentStatusAuditRecord{
		ConsentID:      consentID,
		OrgID:          orgID,
		CurrentStatus:  current,
		PreviousStatus: models.StringPtr(previous),
		ActionBy:       models.StringPtr(actionBy),
		Reason:         models.StringPtr(reason),
	})
}

func (e *StatusEngine) check(ctx context.Context, entity lifecycle.Entity, id, from, to string, logger *log.Logger) error {
	err := lifecycle.Check(ctx, e.policy, entity, id, from, to)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lifecycle.ErrInvalidStateTransition):
		e.metrics.IncrementTransition(string(entity), from, to, metrics.OutcomeRejected)
		logger.Warn("Status transition rejected", log.String("entity", string(entity)),
			log.String("from", from), log.String("to", to))
	default:
		e.metrics.IncrementTransition(string(entity), from, to, metrics.OutcomeFailed)
		logger.Error("Transition policy evaluation failed", log.Error(err))
	}
	return err
}
