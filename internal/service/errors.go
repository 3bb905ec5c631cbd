package service

import (
	"errors"

	"github.com/wso2/consent-lifecycle-store/internal/system/error/serviceerror"
)

var (
	// ErrConsentNotFound is returned when an operation targets a consent that does not exist in the org
	ErrConsentNotFound = errors.New("consent not found")
	// ErrAuthorizationNotFound is returned when an operation targets a missing authorization
	ErrAuthorizationNotFound = errors.New("authorization resource not found")
	// ErrMappingNotFound is returned when an amendment names a mapping outside the consent
	ErrMappingNotFound = errors.New("consent mapping not found")
	// ErrIdempotencyMismatch is returned when an idempotency key is reused with a different request
	ErrIdempotencyMismatch = errors.New("idempotency key already used with a different request")
	// ErrConsentNotAmendable is returned when an amendment targets a consent in a terminal status
	ErrConsentNotAmendable = errors.New("consent is not amendable")
)

// ToServiceError classifies an error returned by this package for callers
func ToServiceError(err error) *serviceerror.ServiceError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConsentNotFound), errors.Is(err, ErrAuthorizationNotFound), errors.Is(err, ErrMappingNotFound):
		return serviceerror.CustomServiceError(serviceerror.ResourceNotFoundError, err.Error())
	case errors.Is(err, ErrIdempotencyMismatch):
		return serviceerror.CustomServiceError(serviceerror.ConflictError, err.Error())
	case errors.Is(err, ErrConsentNotAmendable):
		return serviceerror.CustomServiceError(serviceerror.InvalidRequestError, err.Error())
	}
	return serviceerror.FromError(err)
}
