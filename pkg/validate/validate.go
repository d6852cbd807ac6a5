package validate

import (
	"errors"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
	"github.com/ninersracing/kbwiki/internal/apperr"
)

var v = validator.New()

// Struct validates s against its `validate` tags and returns an
// apperr.ErrValidation listing every failing field.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("%v", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		param := fe.Param()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, field+" must be at least "+param+" characters")
		case "max":
			msgs = append(msgs, field+" must be at most "+param+" characters")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+param)
		case "eqfield":
			msgs = append(msgs, field+" must match "+strings.ToLower(param))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return apperr.Validation("%s", strings.Join(msgs, ", "))
}

// Email checks the address format.
func Email(addr string) error {
	if err := checkmail.ValidateFormat(addr); err != nil {
		return apperr.Validation("email must be a valid email")
	}
	return nil
}
