// Package errors contains the error taxonomy shared by services and HTTP handlers.
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryNoError is used when a call completed without error.
	CategoryNoError Category = iota
	// CategoryDataError The client sent invalid data, for example a creation form
	// that fails the local domain rules. Validation errors carry per-field messages.
	CategoryDataError
	// CategoryUnauthorized The client is not authorized to call a write route
	CategoryUnauthorized
	// CategoryResourceNotFound The client is attempting to access a campaign or
	// transaction that is not known locally
	CategoryResourceNotFound
	// CategoryDataConflict The request conflicts with existing state
	CategoryDataConflict
	// CategorySubmission The wallet or chain adapter rejected a write before a
	// transaction hash was issued
	CategorySubmission
	// CategoryDependencyFailure The chain endpoint (or the database) could not be reached
	CategoryDependencyFailure
	// CategoryGeneralError The service failed in an unexpected way
	CategoryGeneralError
	// CategoryConnectionTimeout A read against the chain endpoint timed out
	CategoryConnectionTimeout
)

func (c Category) String() string {
	switch c {
	case CategoryNoError:
		return "CategoryNoError"
	case CategoryDataError:
		return "CategoryDataError"
	case CategoryUnauthorized:
		return "CategoryUnauthorized"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	case CategoryDataConflict:
		return "CategoryDataConflict"
	case CategorySubmission:
		return "CategorySubmission"
	case CategoryDependencyFailure:
		return "CategoryDependencyFailure"
	case CategoryConnectionTimeout:
		return "CategoryConnectionTimeout"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError represents service specific type that
// is used all over the services.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
	// Fields holds per-field messages for validation errors.
	Fields map[string]string
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is reports whether target carries the same user-facing message.
func (err ServiceError) Is(target error) bool {
	if target == nil {
		return false
	}
	return err.Message == target.Error()
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

// FieldErrors returns the per-field validation messages carried by err, if any.
func FieldErrors(err error) map[string]string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Fields
	}
	return nil
}

func newServiceError(cat Category, err error, message, fallback string) error {
	if err == nil {
		err = errors.New(fallback)
	}
	return &ServiceError{
		Category: cat,
		Message:  message,
		Err:      err,
	}
}

// GeneralError returns a general service error.
// The message sent to the user is "Internal Server Error"; err is only logged.
func GeneralError(err error) error {
	return newServiceError(CategoryGeneralError, err, "Internal Server Error", "internal server error")
}

// ResourceNotFoundError returns an error with category ResourceNotFound
func ResourceNotFoundError(err error, message string) error {
	return newServiceError(CategoryResourceNotFound, err, message, "resource not found: "+message)
}

// BadRequestError returns an error with category DataError
func BadRequestError(err error, message string) error {
	return newServiceError(CategoryDataError, err, message, "bad request: "+message)
}

// ValidationError returns a DataError carrying one message per invalid field.
func ValidationError(fields map[string]string) error {
	return &ServiceError{
		Category: CategoryDataError,
		Message:  "validation failed",
		Err:      errors.New("validation failed"),
		Fields:   fields,
	}
}

// UnAuthorizedError returns an error with category CategoryUnauthorized
func UnAuthorizedError(err error, message string) error {
	return newServiceError(CategoryUnauthorized, err, message, "unauthorized")
}

// ConflictError returns an error with category CategoryDataConflict
func ConflictError(err error, message string) error {
	return newServiceError(CategoryDataConflict, err, message, "conflict")
}

// SubmissionError returns an error with category CategorySubmission.
// It is used when a write never produced a transaction hash.
func SubmissionError(err error, message string) error {
	return newServiceError(CategorySubmission, err, message, "submission rejected")
}

// DependencyError returns an error with category CategoryDependencyFailure.
// It is used for connectivity failures against the chain endpoint.
func DependencyError(err error, message string) error {
	return newServiceError(CategoryDependencyFailure, err, message, "dependency failure")
}

// TimeoutError returns an error with category CategoryConnectionTimeout
func TimeoutError(err error, message string) error {
	return newServiceError(CategoryConnectionTimeout, err, message, "connection timeout")
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryDataConflict:
		return http.StatusConflict
	case CategorySubmission:
		return http.StatusUnprocessableEntity
	case CategoryDependencyFailure:
		return http.StatusBadGateway
	case CategoryConnectionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
