package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "tunelink/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// AddAccountRequest is the HTTP request body for POST /accounts.
type AddAccountRequest struct {
	Platform   string `json:"platform" validate:"required"`
	AccountID  string `json:"account_id" validate:"required"`
	ProfileURL string `json:"profile_url" validate:"omitempty,url"`
}

// Validate implements httputil.Validatable.
func (r *AddAccountRequest) Validate() error {
	r.Platform = strings.ToLower(strings.TrimSpace(r.Platform))
	r.AccountID = strings.TrimSpace(r.AccountID)
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError translates the first validator failure into a domain error.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return dErrors.Newf(dErrors.CodeInvalidInput, "field %s failed validation on %s", first.Field(), first.Tag())
	}
	return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid request body")
}
