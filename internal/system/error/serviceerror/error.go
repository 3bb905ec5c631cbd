// Package serviceerror defines the client/server error classification handed to callers.
package serviceerror

import (
	"errors"

	"github.com/wso2/consent-lifecycle-store/internal/dao"
	"github.com/wso2/consent-lifecycle-store/internal/lifecycle"
	"github.com/wso2/consent-lifecycle-store/pkg/utils"
)

type ServiceErrorType string

const (
	ClientErrorType ServiceErrorType = "client_error"
	ServerErrorType ServiceErrorType = "server_error"
)

type ServiceError struct {
	Code             string           `json:"code"`
	Type             ServiceErrorType `json:"type"`
	Error            string           `json:"error"`
	ErrorDescription string           `json:"error_description,omitempty"`
}

var (
	InternalServerError = ServiceError{
		Type:             ServerErrorType,
		Code:             "SSE-5000",
		Error:            "internal_server_error",
		ErrorDescription: "An unexpected error occurred",
	}

	DatabaseError = ServiceError{
		Type:             ServerErrorType,
		Code:             "SSE-5001",
		Error:            "database_error",
		ErrorDescription: "A database error occurred",
	}

	InvalidRequestError = ServiceError{
		Type:             ClientErrorType,
		Code:             "CSE-4000",
		Error:            "invalid_request",
		ErrorDescription: "The request is invalid",
	}

	ValidationError = ServiceError{
		Type:             ClientErrorType,
		Code:             "CSE-4001",
		Error:            "validation_error",
		ErrorDescription: "Validation failed",
	}

	ResourceNotFoundError = ServiceError{
		Type:             ClientErrorType,
		Code:             "CSE-4004",
		Error:            "resource_not_found",
		ErrorDescription: "Resource not found",
	}

	ConflictError = ServiceError{
		Type:             ClientErrorType,
		Code:             "CSE-4009",
		Error:            "conflict",
		ErrorDescription: "Request conflicts with current state",
	}

	InvalidStateTransitionError = ServiceError{
		Type:             ClientErrorType,
		Code:             "CSE-4022",
		Error:            "invalid_state_transition",
		ErrorDescription: "The requested status change is not permitted",
	}
)

func CustomServiceError(baseError ServiceError, description string) *ServiceError {
	return &ServiceError{
		Type:             baseError.Type,
		Code:             baseError.Code,
		Error:            baseError.Error,
		ErrorDescription: description,
	}
}

// IsClientError reports whether the error should be surfaced as a 4xx.
func (e *ServiceError) IsClientError() bool {
	return e != nil && e.Type == ClientErrorType
}

// FromError classifies a store or lifecycle error. Unknown errors are internal server errors.
func FromError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, lifecycle.ErrInvalidStateTransition):
		return CustomServiceError(InvalidStateTransitionError, err.Error())
	case errors.Is(err, lifecycle.ErrConsentNotAuthorizable):
		return CustomServiceError(InvalidRequestError, err.Error())
	case errors.Is(err, dao.ErrConflict), errors.Is(err, dao.ErrConcurrentModification):
		return CustomServiceError(ConflictError, err.Error())
	case errors.Is(err, dao.ErrUnknownStatus), errors.Is(err, dao.ErrIdentifierPreset),
		errors.Is(err, dao.ErrInvalidInput), errors.Is(err, dao.ErrReferenceMissing),
		errors.Is(err, utils.ErrInvalidField), errors.Is(err, lifecycle.ErrInvalidInitialStatus):
		return CustomServiceError(ValidationError, err.Error())
	case errors.Is(err, dao.ErrNoRowsAffected):
		return CustomServiceError(ResourceNotFoundError, err.Error())
	case errors.Is(err, dao.ErrInsertion), errors.Is(err, dao.ErrRetrieval),
		errors.Is(err, dao.ErrUpdation), errors.Is(err, dao.ErrDeletion):
		e := DatabaseError
		return &e
	}
	e := InternalServerError
	return &e
}
