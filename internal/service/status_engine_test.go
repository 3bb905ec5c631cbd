package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wso2/consent-lifecycle-store/internal/dao"
	"github.com/wso2/consent-lifecycle-store/internal/lifecycle"
	"github.com/wso2/consent-lifecycle-store/internal/metrics"
	"github.com/wso2/consent-lifecycle-store/internal/models"
)

type failingPolicy struct{}

func (failingPolicy) Allowed(context.Context, lifecycle.Entity, string, string) (bool, error) {
	return false, errors.New("policy store unavailable")
}

func consentIn(status string) *models.ConsentResource {
	return &models.ConsentResource{
		ConsentID:     "CONSENT-1",
		OrgID:         "DEFAULT_ORG",
		ClientID:      "client-1",
		CurrentStatus: status,
		UpdatedTime:   testNow,
	}
}

func TestTransitionConsent_AcceptedWritesStatusAndOneAudit(t *testing.T) {
	setup := NewTestSetup()
	engine := NewStatusEngine(setup.MockStore, setup.Policy, setup.Metrics, setup.Logger)
	ctx := context.Background()

	setup.MockStore.On("GetConsentResourceForUpdate", ctx, nil, "CONSENT-1", "").
		Return(consentIn("Authorised"), nil)
	setup.MockStore.On("UpdateConsentStatus", ctx, nil, "CONSENT-1", "", "Revoked").Return(nil)
	setup.MockStore.On("StoreConsentStatusAuditRecord", ctx, nil, mock.MatchedBy(func(r *models.ConsentStatusAuditRecord) bool {
		return r.ConsentID == "CONSENT-1" &&
			r.CurrentStatus == "Revoked" &&
			models.StringValue(r.PreviousStatus) == "Authorised" &&
			models.StringValue(r.ActionBy) == "psu-1" &&
			models.StringValue(r.Reason) == "user request"
	})).Return(&models.ConsentStatusAuditRecord{StatusAuditID: "AUDIT-1"}, nil).Once()

	change, err := engine.TransitionConsent(ctx, nil, ConsentTransition{
		ConsentID: "CONSENT-1",
		NewStatus: "Revoked",
		ActionBy:  "psu-1",
		Reason:    "user request",
	})
	require.NoError(t, err)
	assert.Equal(t, "AUDIT-1", change.Audit.StatusAuditID)
	assert.Equal(t, RecordDiff{
		RecordID: "CONSENT-1",
		DataType: models.ConsentDataTypeConsent,
		Changed: map[string]interface{}{
			models.FieldCurrentStatus: "Authorised",
			models.FieldUpdatedTime:   float64(testNow),
		},
	}, change.Diff)
	assert.Equal(t, 1.0, testutil.ToFloat64(setup.Metrics.StatusTransitions.WithLabelValues("consent", "Authorised", "Revoked", metrics.OutcomeAccepted)))
	setup.MockStore.AssertExpectations(t)
}

func TestTransitionConsent_RejectedWritesNothing(t *testing.T) {
	setup := NewTestSetup()
	engine := NewStatusEngine(setup.MockStore, setup.Policy, setup.Metrics, setup.Logger)
	ctx := context.Background()

	setup.MockStore.On("GetConsentResourceForUpdate", ctx, nil, "CONSENT-1", "").
		Return(consentIn("Revoked"), nil)

	change, err := engine.TransitionConsent(ctx, nil, ConsentTransition{ConsentID: "CONSENT-1", NewStatus: "Authorised"})
	assert.Nil(t, change)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidStateTransition)

	var te *lifecycle.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Revoked", te.From)
	assert.Equal(t, "Authorised", te.To)

	setup.MockStore.AssertNotCalled(t, "UpdateConsentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	setup.MockStore.AssertNotCalled(t, "StoreConsentStatusAuditRecord", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(setup.Metrics.StatusTransitions.WithLabelValues("consent", "Revoked", "Authorised", metrics.OutcomeRejected)))
}

func TestTransitionConsent_MissingConsent(t *testing.T) {
	setup := NewTestSetup()
	engine := NewStatusEngine(setup.MockStore, setup.Policy, setup.Metrics, setup.Logger)
	ctx := context.Background()

	setup.MockStore.On("GetConsentResourceForUpdate", ctx, nil, "CONSENT-9", "org-1").Return(nil, nil)

	_, err := engine.TransitionConsent(ctx, nil, ConsentTransition{ConsentID: "CONSENT-9", OrgID: "org-1", NewStatus: "Revoked"})
	assert.ErrorIs(t, err, ErrConsentNotFound)
}

func TestTransitionConsent_OptimisticCheck(t *testing.T) {
	setup := NewTestSetup()
	engine := NewStatusEngine(setup.MockStore, setup.Policy, setup.Metrics, setup.Logger)
	ctx := context.Background()
	lost := errors.Join(dao.ErrUpdation, dao.ErrConcurrentModification)

	setup.MockStore.On("GetConsentResourceForUpdate", ctx, nil, "CONSENT-1", "").
		Return(consentIn("AwaitingAuthorisation"), nil)
	setup.MockStore.On("UpdateConsentStatusIfUnmodified", ctx, nil, "CONSENT-1", "", "Authorised", testNow-5).
		Return(lost)

	stale := testNow - 5
	_, err := engine.TransitionConsent(ctx, nil, ConsentTransition{
		ConsentID:           "CONSENT-1",
		NewStatus:           "Authorised",
		ExpectedUpdatedTime: &stale,
	})
	assert.ErrorIs(t, err, dao.ErrConcurrentModification)
	setup.MockStore.AssertNotCalled(t, "UpdateConsentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	setup.MockStore.AssertNotCalled(t, "StoreConsentStatusAuditRecord", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(setup.Metrics.StatusTransitions.WithLabelValues("consent", "AwaitingAuthorisation", "Authorised", metrics.OutcomeFailed)))
}

func TestTransitionConsent_PolicyFailureIsNotARejection(t *testing.T) {
	setup := NewTestSetup()
	engine := NewStatusEngine(setup.MockStore, failingPolicy{}, setup.Metrics, setup.Logger)
	ctx := context.Background()

	setup.MockStore.On("GetConsentResourceForUpdate", ctx, nil, "CONSENT-1", "").
		Return(consentIn("Authorised"), nil)

	_, err := engine.TransitionConsent(ctx, nil, ConsentTransition{ConsentID: "CONSENT-1", NewStatus: "Revoked"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, lifecycle.ErrInvalidStateTransition)
	setup.MockStore.AssertNotCalled(t, "UpdateConsentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTransitionAuthorization_RecordsUser(t *testing.T) {
	setup := NewTestSetup()
	engine := NewStatusEngine(setup.MockStore, setup.Policy, setup.Metrics, setup.Logger)
	ctx := context.Background()

	setup.MockStore.On("GetAuthorizationResource", ctx, nil, "AUTH-1", "").Return(&models.AuthorizationResource{
		AuthorizationID:     "AUTH-1",
		ConsentID:           "CONSENT-1",
		AuthorizationStatus: "Created",
		UpdatedTime:         testNow - 60,
	}, nil)
	setup.MockStore.On("UpdateAuthorizationResource", ctx, nil, mock.MatchedBy(func(a *models.AuthorizationResource) bool {
		return a.AuthorizationStatus == "Authorised" && models.StringValue(a.UserID) == "alice"
	})).Return(&models.AuthorizationResource{
		AuthorizationID:     "AUTH-1",
		AuthorizationStatus: "Authorised",
		UserID:              strPtr("alice"),
		UpdatedTime:         testNow,
	}, nil)

	change, err := engine.TransitionAuthorization(ctx, nil, AuthorizationTransition{
		AuthorizationID: "AUTH-1",
		NewStatus:       "Authorised",
		UserID:          strPtr("alice"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Authorised", change.Authorization.AuthorizationStatus)
	assert.Equal(t, RecordDiff{
		RecordID: "AUTH-1",
		DataType: models.ConsentDataTypeAuthorization,
		Changed: map[string]interface{}{
			models.AuthFieldStatus:      "Created",
			models.AuthFieldUserID:      nil,
			models.AuthFieldUpdatedTime: float64(testNow - 60),
		},
	}, change.Diff)
	setup.MockStore.AssertExpectations(t)
}

func TestTransitionAuthorization_Rejected(t *testing.T) {
	setup := NewTestSetup()
	engine := NewStatusEngine(setup.MockStore, setup.Policy, setup.Metrics, setup.Logger)
	ctx := context.Background()

	setup.MockStore.On("GetAuthorizationResource", ctx, nil, "AUTH-1", "").Return(&models.AuthorizationResource{
		AuthorizationID:     "AUTH-1",
		AuthorizationStatus: "SysRevoked",
	}, nil)

	_, err := engine.TransitionAuthorization(ctx, nil, AuthorizationTransition{AuthorizationID: "AUTH-1", NewStatus: "Authorised"})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidStateTransition)
	setup.MockStore.AssertNotCalled(t, "UpdateAuthorizationResource", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordInitialStatus_HasNoPreviousStatus(t *testing.T) {
	setup := NewTestSetup()
	engine := NewStatusEngine(setup.MockStore, setup.Policy, setup.Metrics, setup.Logger)
	ctx := context.Background()

	setup.MockStore.On("StoreConsentStatusAuditRecord", ctx, nil, mock.MatchedBy(func(r *models.ConsentStatusAuditRecord) bool {
		return r.PreviousStatus == nil && r.CurrentStatus == "AwaitingAuthorisation" && r.ActionBy == nil
	})).Return(&models.ConsentStatusAuditRecord{StatusAuditID: "AUDIT-1"}, nil)

	_, err := engine.RecordInitialStatus(ctx, nil, consentIn("AwaitingAuthorisation"), "", "Initial consent creation")
	require.NoError(t, err)
	setup.MockStore.AssertExpectations(t)
}
