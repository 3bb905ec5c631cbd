package serviceerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wso2/consent-lifecycle-store/internal/dao"
	"github.com/wso2/consent-lifecycle-store/internal/lifecycle"
	"github.com/wso2/consent-lifecycle-store/pkg/utils"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		client bool
	}{
		{
			name:   "refused transition",
			err:    fmt.Errorf("revoke: %w", &lifecycle.TransitionError{Entity: lifecycle.EntityConsent, ID: "c", From: "Revoked", To: "Authorised"}),
			code:   InvalidStateTransitionError.Code,
			client: true,
		},
		{
			name:   "consent not awaiting authorisation",
			err:    fmt.Errorf("%w: consent c is Authorised", lifecycle.ErrConsentNotAuthorizable),
			code:   InvalidRequestError.Code,
			client: true,
		},
		{
			name:   "duplicate key",
			err:    fmt.Errorf("%w: %w", dao.ErrInsertion, dao.ErrConflict),
			code:   ConflictError.Code,
			client: true,
		},
		{
			name:   "lost update",
			err:    fmt.Errorf("%w: %w", dao.ErrUpdation, dao.ErrConcurrentModification),
			code:   ConflictError.Code,
			client: true,
		},
		{
			name:   "blank client id",
			err:    utils.ValidateIdentifier("clientId", "", utils.MaxIdentifierLength),
			code:   ValidationError.Code,
			client: true,
		},
		{
			name:   "status outside the vocabulary",
			err:    fmt.Errorf("%w: %w", dao.ErrUpdation, dao.ErrUnknownStatus),
			code:   ValidationError.Code,
			client: true,
		},
		{
			name:   "missing parent",
			err:    fmt.Errorf("%w: %w", dao.ErrInsertion, dao.ErrReferenceMissing),
			code:   ValidationError.Code,
			client: true,
		},
		{
			name:   "nothing updated",
			err:    fmt.Errorf("%w: %w", dao.ErrUpdation, dao.ErrNoRowsAffected),
			code:   ResourceNotFoundError.Code,
			client: true,
		},
		{
			name: "driver failure",
			err:  fmt.Errorf("%w: connection reset", dao.ErrRetrieval),
			code: DatabaseError.Code,
		},
		{
			name: "unclassified",
			err:  errors.New("boom"),
			code: InternalServerError.Code,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.client, got.IsClientError())
		})
	}
}

func TestFromError_Nil(t *testing.T) {
	assert.Nil(t, FromError(nil))
}

func TestFromError_ServerErrorsHideDetails(t *testing.T) {
	got := FromError(fmt.Errorf("%w: password authentication failed for user consent", dao.ErrRetrieval))
	assert.Equal(t, DatabaseError.ErrorDescription, got.ErrorDescription)
}
