package apierr

import (
	"errors"
	"fmt"
	"net/http"

	aggdomain "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From classifies an arbitrary service error into an API error. Errors that
// already carry an *Error are returned unchanged.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound), aggdomain.IsCode(err, aggdomain.CodeNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument), aggdomain.IsCode(err, aggdomain.CodeValidation):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, pkgerrors.ErrConflict), aggdomain.IsCode(err, aggdomain.CodeConflict):
		return New(http.StatusConflict, "conflict", err)
	case errors.Is(err, pkgerrors.ErrGenerationFailed):
		return New(http.StatusBadGateway, "generation_failed", err)
	default:
		return New(http.StatusInternalServerError, "internal", err)
	}
}
