package apperr

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldMessages maps "Struct.Field" (or just "Field") to the message shown
// when that field fails validation.
type FieldMessages map[string]string

// FromBinding turns the error returned by gin's ShouldBind into a
// KindValidation error, picking the message of the first failing field.
func FromBinding(err error, messages FieldMessages) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if msg, ok := messages[fe.Field()]; ok {
			return Validation(msg)
		}
		return Validation("Neispravna vrednost polja: " + fe.Field())
	}
	return Wrap(KindValidation, err, "Neispravni podaci.")
}
