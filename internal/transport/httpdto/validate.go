package httpdto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	chatapp_errors "chatapp/pkg/errors"
)

var validate = validator.New()

// Validate checks the validate tags of a request and reports the failing
// fields as an invalid input error.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", chatapp_errors.ErrInvalidInput, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s is %s", lowerFirst(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", chatapp_errors.ErrInvalidInput, strings.Join(fields, ", "))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
