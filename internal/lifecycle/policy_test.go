package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/consent-lifecycle-store/internal/config"
	"github.com/wso2/consent-lifecycle-store/internal/models"
)

var transitionCases = []struct {
	name    string
	entity  Entity
	from    string
	to      string
	allowed bool
}{
	{"consent awaiting authorisation", EntityConsent, "Received", "AwaitingAuthorisation", true},
	{"consent authorised", EntityConsent, "AwaitingAuthorisation", "Authorised", true},
	{"consent rejected", EntityConsent, "AwaitingAuthorisation", "Rejected", true},
	{"consent revoked", EntityConsent, "Authorised", "Revoked", true},
	{"consent consumed", EntityConsent, "Authorised", "Consumed", true},
	{"consent expired", EntityConsent, "Authorised", "Expired", true},
	{"consent skips authorisation", EntityConsent, "Received", "Authorised", false},
	{"revoked is terminal", EntityConsent, "Revoked", "Authorised", false},
	{"rejected is terminal", EntityConsent, "Rejected", "AwaitingAuthorisation", false},
	{"unknown status", EntityConsent, "Pending", "Authorised", false},
	{"authorization created to authorised", EntityAuthorization, "Created", "Authorised", true},
	{"authorization system revoked", EntityAuthorization, "Authorised", "SysRevoked", true},
	{"authorization cannot return to created", EntityAuthorization, "Authorised", "Created", false},
	{"consent vocabulary does not apply to authorizations", EntityAuthorization, "Authorised", "Revoked", false},
}

func policies(t *testing.T) map[string]Policy {
	t.Helper()
	cfg := config.Default()
	consent, auth := Transitions(&cfg.Consent)
	rp, err := NewRegoPolicy(context.Background(), consent, auth, "")
	require.NoError(t, err)
	return map[string]Policy{
		"static": NewStaticPolicy(consent, auth),
		"rego":   rp,
	}
}

func TestPolicies_DefaultTransitions(t *testing.T) {
	for policyName, p := range policies(t) {
		for _, tt := range transitionCases {
			t.Run(policyName+"/"+tt.name, func(t *testing.T) {
				allowed, err := p.Allowed(context.Background(), tt.entity, tt.from, tt.to)
				require.NoError(t, err)
				assert.Equal(t, tt.allowed, allowed)
			})
		}
	}
}

func TestCheck_ReturnsTransitionError(t *testing.T) {
	p := policies(t)["static"]

	require.NoError(t, Check(context.Background(), p, EntityConsent, "CONSENT-1", "Authorised", "Revoked"))

	err := Check(context.Background(), p, EntityConsent, "CONSENT-1", "Revoked", "Authorised")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, EntityConsent, te.Entity)
	assert.Equal(t, "Revoked", te.From)
	assert.Equal(t, "Authorised", te.To)
	assert.Contains(t, err.Error(), "CONSENT-1")
}

func TestCheck_PolicyFailureIsNotATransitionError(t *testing.T) {
	err := Check(context.Background(), NewStaticPolicy(nil, nil), Entity("purpose"), "X", "a", "b")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidStateTransition))
}

func TestTransitions_ConfiguredRulesReplaceDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Consent.TransitionPolicy.Transitions = []config.TransitionRule{
		{From: "Received", To: []string{"Authorised"}},
	}

	consent, auth := Transitions(&cfg.Consent)
	assert.Equal(t, map[string][]string{"Received": {"Authorised"}}, consent)
	assert.Equal(t, NewVocabulary(&cfg.Consent).DefaultAuthTransitions(), auth)

	p, err := NewPolicy(context.Background(), &cfg.Consent)
	require.NoError(t, err)
	allowed, err := p.Allowed(context.Background(), EntityConsent, "Received", "Authorised")
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = p.Allowed(context.Background(), EntityConsent, "Received", "AwaitingAuthorisation")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRegoPolicy_CustomModule(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "freeze.rego")
	require.NoError(t, os.WriteFile(file, []byte(`package consent.transitions

default allow = false

allow {
	input.entity == "authorization"
	data.transitions[input.entity][input.from][_] == input.to
}
`), 0o600))

	cfg := config.Default()
	cfg.Consent.TransitionPolicy.Type = "rego"
	cfg.Consent.TransitionPolicy.RegoFile = file

	p, err := NewPolicy(context.Background(), &cfg.Consent)
	require.NoError(t, err)

	allowed, err := p.Allowed(context.Background(), EntityConsent, "Authorised", "Revoked")
	require.NoError(t, err)
	assert.False(t, allowed, "custom module freezes consent statuses")

	allowed, err = p.Allowed(context.Background(), EntityAuthorization, "Created", "Authorised")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRegoPolicy_InvalidModule(t *testing.T) {
	file := filepath.Join(t.TempDir(), "broken.rego")
	require.NoError(t, os.WriteFile(file, []byte("package consent.transitions\nallow {"), 0o600))

	_, err := NewRegoPolicy(context.Background(), nil, nil, file)
	assert.Error(t, err)
}

func TestPolicyRegistry(t *testing.T) {
	assert.Equal(t, []string{"rego", "static"}, GetDefaultRegistry().GetAllTypes())

	r := NewPolicyRegistry()
	factory := func(context.Context, *config.ConsentConfig) (Policy, error) { return NewStaticPolicy(nil, nil), nil }
	require.NoError(t, r.Register("custom", factory))
	assert.Error(t, r.Register("custom", factory))

	_, err := r.Get("missing")
	assert.Error(t, err)

	cfg := config.Default()
	cfg.Consent.TransitionPolicy.Type = "missing"
	_, err = NewPolicy(context.Background(), &cfg.Consent)
	assert.Error(t, err)
}

func TestValidateAuthorizable(t *testing.T) {
	cfg := config.Default()
	v := NewVocabulary(&cfg.Consent)

	consent := &models.ConsentResource{ConsentID: "CONSENT-1", CurrentStatus: "AwaitingAuthorisation"}
	auth := &models.AuthorizationResource{AuthorizationID: "AUTH-1", ConsentID: "CONSENT-1", AuthorizationStatus: "Created"}
	assert.NoError(t, v.ValidateAuthorizable(consent, auth))

	authorised := *consent
	authorised.CurrentStatus = "Authorised"
	assert.ErrorIs(t, v.ValidateAuthorizable(&authorised, auth), ErrConsentNotAuthorizable)

	used := *auth
	used.AuthorizationStatus = "Authorised"
	assert.ErrorIs(t, v.ValidateAuthorizable(consent, &used), ErrConsentNotAuthorizable)

	foreign := *auth
	foreign.ConsentID = "CONSENT-2"
	assert.ErrorIs(t, v.ValidateAuthorizable(consent, &foreign), ErrConsentNotAuthorizable)

	assert.ElementsMatch(t, []string{"Received", "AwaitingAuthorisation", "Authorised"}, v.ExpirableStatuses())
}

func TestValidateInitial(t *testing.T) {
	cfg := config.Default()
	v := NewVocabulary(&cfg.Consent)

	assert.NoError(t, v.ValidateInitial("Received", ""))
	assert.NoError(t, v.ValidateInitial("AwaitingAuthorisation", "Created"))
	assert.NoError(t, v.ValidateInitial("AwaitingAuthorisation", "AwaitingAuthorisation"))

	assert.ErrorIs(t, v.ValidateInitial("Authorised", "Created"), ErrInvalidInitialStatus)
	assert.ErrorIs(t, v.ValidateInitial("", ""), ErrInvalidInitialStatus)
	assert.ErrorIs(t, v.ValidateInitial("Received", "SysRevoked"), ErrInvalidInitialStatus)
}
