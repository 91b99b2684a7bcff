package envrig

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	tagValidator     *validator.Validate
	tagValidatorOnce sync.Once
)

func getTagValidator() *validator.Validate {
	tagValidatorOnce.Do(func() {
		tagValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return tagValidator
}

// validateTags applies `validate` struct tag rules (go-playground/validator syntax).
// Rule failures become FieldErrors; a malformed config value is returned as error.
func validateTags(cfg any) ([]FieldError, error) {
	err := getTagValidator().Struct(cfg)
	if err == nil {
		return nil, nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil, fmt.Errorf("validate tags: %w", err)
	}

	var ruleErrs validator.ValidationErrors
	if !errors.As(err, &ruleErrs) {
		return nil, fmt.Errorf("validate tags: %w", err)
	}

	fieldErrors := make([]FieldError, 0, len(ruleErrs))
	for _, fe := range ruleErrs {
		msg := fmt.Sprintf("failed %q rule", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q rule (%s)", fe.Tag(), fe.Param())
		}
		fieldErrors = append(fieldErrors, FieldError{
			FieldPath: trimRootNamespace(fe.StructNamespace()),
			Code:      ErrCodeValidate,
			Message:   msg,
		})
	}
	return fieldErrors, nil
}

// trimRootNamespace drops the root type name: "Config.Servers[0].Host" → "Servers[0].Host".
func trimRootNamespace(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
