package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
)

// RequestValidator plugs go-playground/validator into echo so handlers can
// call c.Validate on bound request bodies.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New()}
}

// Validate checks the struct tags and reports every failed field in one
// validation error.
func (rv *RequestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errs.As(err, &fields) {
		return errs.Validation("%s", err.Error())
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fieldMessage(f))
	}
	return errs.Validation("%s", strings.Join(msgs, "; "))
}

func fieldMessage(f validator.FieldError) string {
	name := strings.ToLower(f.Field())
	switch f.Tag() {
	case "required":
		return name + " is required"
	case "min":
		return name + " must be at least " + f.Param()
	case "max":
		return name + " must be at most " + f.Param()
	case "gt":
		return name + " must be greater than " + f.Param()
	case "dive":
		return name + " is invalid"
	}
	return name + " failed " + f.Tag()
}
