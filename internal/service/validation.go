package service

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/wso2/consent-lifecycle-store/pkg/utils"
)

// Reason and actor columns of the status audit table
const maxAuditTextLength = 255

func (r CreateConsentRequest) validate() error {
	err := multierr.Combine(
		utils.ValidateIdentifier("clientId", r.ClientID, utils.MaxIdentifierLength),
		utils.ValidateIdentifier("consentType", r.ConsentType, utils.MaxConsentTypeLength),
		utils.ValidateOptional("orgId", r.OrgID, utils.MaxIdentifierLength),
		utils.ValidateOptional("idempotencyKey", r.IdempotencyKey, utils.MaxIdentifierLength),
		utils.ValidateOptional("actionBy", r.ActionBy, maxAuditTextLength),
	)
	if r.Receipt.IsEmpty() {
		err = multierr.Append(err, fmt.Errorf("%w: receipt is required", utils.ErrInvalidField))
	}
	if a := r.Authorization; a != nil {
		err = multierr.Append(err, utils.ValidateIdentifier("authorizationType", a.AuthorizationType, utils.MaxIdentifierLength))
		if a.UserID != nil {
			err = multierr.Append(err, utils.ValidateOptional("userId", *a.UserID, utils.MaxIdentifierLength))
		}
	}
	return err
}

func (r AuthorizeConsentRequest) validate() error {
	return multierr.Combine(
		utils.ValidateIdentifier("consentId", r.ConsentID, utils.MaxIdentifierLength),
		utils.ValidateIdentifier("authorizationId", r.AuthorizationID, utils.MaxIdentifierLength),
		utils.ValidateOptional("userId", r.UserID, utils.MaxIdentifierLength),
		utils.ValidateOptional("reason", r.Reason, maxAuditTextLength),
		validateAccounts(r.Accounts),
	)
}

func (r AmendConsentRequest) validate() error {
	err := multierr.Combine(
		utils.ValidateIdentifier("consentId", r.ConsentID, utils.MaxIdentifierLength),
		utils.ValidateOptional("actionBy", r.ActionBy, maxAuditTextLength),
		utils.ValidateOptional("reason", r.Reason, maxAuditTextLength),
		validateAccounts(r.AddAccounts),
	)
	if len(r.AddAccounts) > 0 {
		err = multierr.Append(err, utils.ValidateIdentifier("authorizationId", r.AuthorizationID, utils.MaxIdentifierLength))
	}
	for key := range r.Attributes {
		err = multierr.Append(err, utils.ValidateIdentifier("attribute key", key, utils.MaxIdentifierLength))
	}
	return err
}

func validateAccounts(accounts []AccountMapping) error {
	var err error
	for i, a := range accounts {
		err = multierr.Append(err, utils.ValidateIdentifier(fmt.Sprintf("accounts[%d].accountId", i), a.AccountID, utils.MaxIdentifierLength))
	}
	return err
}
