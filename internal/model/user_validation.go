package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Password length bounds. bcrypt only accepts up to 72 bytes of input.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
	maxNameLength     = 100
	maxEmailLength    = 254
)

var errPasswordTooLong = errors.New("must be no more than 72 bytes long")

// Validate checks the request fields.
// Returns validation.Errors keyed by JSON field name.
func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, maxNameLength)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, maxNameLength)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, maxEmailLength), is.Email),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(MinPasswordLength, 0),
			validation.By(maxBytes(MaxPasswordBytes)),
		),
	)
}

// Validate checks that both credentials are present.
func (r TokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func maxBytes(limit int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > limit {
			return errPasswordTooLong
		}
		return nil
	}
}
