// Package validate wires go-playground/validator with AfriPay's custom rules
// and converts its errors into svcerr.ValidationError.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"afripay/internal/services/svcerr"
	"afripay/internal/solanapay"

	"github.com/go-playground/validator/v10"
)

// New returns a validator that reports JSON field names and understands
// the solana_pubkey tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("solana_pubkey", func(fl validator.FieldLevel) bool {
		_, err := solanapay.ParsePublicKey(fl.Field().String())
		return err == nil
	})
	return v
}

// Struct validates s and returns a *svcerr.ValidationError on failure.
func Struct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &svcerr.ValidationError{Fields: map[string]string{}}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "solana_pubkey":
		return "must be a valid Solana address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "dive", "gt":
		return "is invalid"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
