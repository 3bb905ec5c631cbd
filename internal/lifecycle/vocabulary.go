// Package lifecycle holds the consent and authorization state machines and the
// pluggable policies that decide which status changes are permitted.
package lifecycle

import (
	"errors"
	"fmt"
	"slices"

	"github.com/wso2/consent-lifecycle-store/internal/config"
	"github.com/wso2/consent-lifecycle-store/internal/models"
)

// Entity names the record whose status is changing
type Entity string

const (
	EntityConsent       Entity = "consent"
	EntityAuthorization Entity = "authorization"
)

// ErrConsentNotAuthorizable is returned when a user authorize action targets a consent
// or authorization that is not waiting for it
var ErrConsentNotAuthorizable = errors.New("consent is not in an authorizable state")

// ErrInvalidInitialStatus is returned when a new consent or authorization starts past its first states
var ErrInvalidInitialStatus = errors.New("status is not a valid initial status")

// Vocabulary is the set of status strings configured for one deployment
type Vocabulary struct {
	Consent config.ConsentStatusMappings
	Auth    config.AuthStatusMappings
}

// NewVocabulary reads the status strings from cfg
func NewVocabulary(cfg *config.ConsentConfig) Vocabulary {
	return Vocabulary{Consent: cfg.StatusMappings, Auth: cfg.AuthStatusMappings}
}

// DefaultConsentTransitions is the consent state machine:
// Received -> AwaitingAuthorisation -> {Authorised, Rejected}, Authorised -> {Consumed, Revoked, Expired}.
// Non-terminal states may also be revoked or expire.
func (v Vocabulary) DefaultConsentTransitions() map[string][]string {
	c := v.Consent
	return map[string][]string{
		c.ReceivedStatus:              {c.AwaitingAuthorisationStatus, c.RejectedStatus, c.RevokedStatus, c.ExpiredStatus},
		c.AwaitingAuthorisationStatus: {c.AuthorisedStatus, c.RejectedStatus, c.RevokedStatus, c.ExpiredStatus},
		c.AuthorisedStatus:            {c.ConsumedStatus, c.RevokedStatus, c.ExpiredStatus},
	}
}

// DefaultAuthTransitions is the authorization state machine. The system revoked and
// expired states follow the parent consent.
func (v Vocabulary) DefaultAuthTransitions() map[string][]string {
	a := v.Auth
	return map[string][]string{
		a.CreatedStatus:               {a.AwaitingAuthorisationStatus, a.AuthorisedStatus, a.RejectedStatus, a.RevokedStatus, a.ExpiredStatus},
		a.AwaitingAuthorisationStatus: {a.AuthorisedStatus, a.RejectedStatus, a.RevokedStatus, a.ExpiredStatus},
		a.AuthorisedStatus:            {a.RevokedStatus, a.ExpiredStatus},
	}
}

// ExpirableStatuses lists the consent states an expiry sweep moves to Expired
func (v Vocabulary) ExpirableStatuses() []string {
	return []string{v.Consent.ReceivedStatus, v.Consent.AwaitingAuthorisationStatus, v.Consent.AuthorisedStatus}
}

// InitialConsentStatuses lists the states a consent may be created in
func (v Vocabulary) InitialConsentStatuses() []string {
	return []string{v.Consent.ReceivedStatus, v.Consent.AwaitingAuthorisationStatus}
}

// InitialAuthStatuses lists the states an authorization may be created in
func (v Vocabulary) InitialAuthStatuses() []string {
	return []string{v.Auth.CreatedStatus, v.Auth.AwaitingAuthorisationStatus}
}

// ValidateInitial checks the starting statuses of a new consent and, when authStatus
// is not empty, of its first authorization
func (v Vocabulary) ValidateInitial(consentStatus, authStatus string) error {
	if !slices.Contains(v.InitialConsentStatuses(), consentStatus) {
		return fmt.Errorf("%w: consent cannot be created as %q", ErrInvalidInitialStatus, consentStatus)
	}
	if authStatus != "" && !slices.Contains(v.InitialAuthStatuses(), authStatus) {
		return fmt.Errorf("%w: authorization cannot be created as %q", ErrInvalidInitialStatus, authStatus)
	}
	return nil
}

// ValidateAuthorizable checks that consent is awaiting authorisation and auth is freshly created
func (v Vocabulary) ValidateAuthorizable(consent *models.ConsentResource, auth *models.AuthorizationResource) error {
	if consent.CurrentStatus != v.Consent.AwaitingAuthorisationStatus {
		return fmt.Errorf("%w: consent %s is %q, expected %q",
			ErrConsentNotAuthorizable, consent.ConsentID, consent.CurrentStatus, v.Consent.AwaitingAuthorisationStatus)
	}
	if auth.AuthorizationStatus != v.Auth.CreatedStatus {
		return fmt.Errorf("%w: authorization %s is %q, expected %q",
			ErrConsentNotAuthorizable, auth.AuthorizationID, auth.AuthorizationStatus, v.Auth.CreatedStatus)
	}
	if auth.ConsentID != consent.ConsentID {
		return fmt.Errorf("%w: authorization %s belongs to consent %s",
			ErrConsentNotAuthorizable, auth.AuthorizationID, auth.ConsentID)
	}
	return nil
}

func rulesToMap(rules []config.TransitionRule) map[string][]string {
	m := make(map[string][]string, len(rules))
	for _, r := range rules {
		m[r.From] = append(m[r.From], r.To...)
	}
	return m
}

// Transitions returns the consent and authorization tables in effect for cfg:
// configured rules replace the defaults for their entity.
func Transitions(cfg *config.ConsentConfig) (consent, auth map[string][]string) {
	v := NewVocabulary(cfg)
	consent, auth = v.DefaultConsentTransitions(), v.DefaultAuthTransitions()
	if len(cfg.TransitionPolicy.Transitions) > 0 {
		consent = rulesToMap(cfg.TransitionPolicy.Transitions)
	}
	if len(cfg.TransitionPolicy.AuthTransitions) > 0 {
		auth = rulesToMap(cfg.TransitionPolicy.AuthTransitions)
	}
	return consent, auth
}
