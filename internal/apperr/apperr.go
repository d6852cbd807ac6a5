package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by the catalog, comments, accounts and portfolio services.
var (
	ErrInvalidSubteam  = errors.New("invalid subteam")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrRepository      = errors.New("repository error")
	ErrUnauthorized    = errors.New("not allowed")
	ErrUnauthenticated = errors.New("authentication failed")
	ErrConflict        = errors.New("conflict")
)

// Validation returns an ErrValidation carrying a user-facing message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Repository wraps a storage collaborator failure. Sentinels already in the
// taxonomy pass through unchanged so NotFound stays NotFound.
func Repository(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrRepository, op, err)
}

// Classified reports whether err already belongs to the taxonomy.
func Classified(err error) bool {
	for _, s := range []error{ErrInvalidSubteam, ErrValidation, ErrNotFound, ErrRepository, ErrUnauthorized, ErrUnauthenticated, ErrConflict} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

// HTTPStatus maps an error onto the status code the handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidSubteam), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRepository):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
