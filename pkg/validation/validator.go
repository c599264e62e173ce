package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	MaxSynonymLength = 512

	// PREFIX:VALUE, e.g. NCBI:562, KEGG:cpd_C00001, GTDB:Escherichia coli
	synonymPattern   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9._-]*:\S(.*\S)?$`)
	predicatePattern = regexp.MustCompile(`^biolink:[a-z][a-z0-9_]*$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("synonym", func(fl validator.FieldLevel) bool {
		return ValidSynonym(fl.Field().String()) == nil
	})
	_ = validate.RegisterValidation("predicate", func(fl validator.FieldLevel) bool {
		return ValidPredicate(fl.Field().String()) == nil
	})
}

// ValidSynonym checks the external identifier grammar PREFIX:VALUE.
func ValidSynonym(s string) error {
	if s == "" {
		return errors.New("synonym cannot be empty")
	}
	if len(s) > MaxSynonymLength {
		return fmt.Errorf("synonym '%.32s...' exceeds maximum length of %d characters", s, MaxSynonymLength)
	}
	if strings.ContainsAny(s, "\t\n\r") {
		return fmt.Errorf("synonym %q contains control whitespace", s)
	}
	if !synonymPattern.MatchString(s) {
		return fmt.Errorf("synonym %q is invalid (expected PREFIX:VALUE)", s)
	}
	return nil
}

// ValidPredicate checks that p is a biolink-style relation.
func ValidPredicate(p string) error {
	if !predicatePattern.MatchString(p) {
		return fmt.Errorf("predicate %q is invalid (expected biolink:snake_case)", p)
	}
	return nil
}

// Struct validates v against its `validate` struct tags.
func Struct(v any) error {
	if v == nil {
		return errors.New("value cannot be nil")
	}
	return formatValidationError(validate.Struct(v))
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := e.Namespace()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			msgs = append(msgs, fmt.Errorf("%s: field is required", field))
		case "min":
			msgs = append(msgs, fmt.Errorf("%s: must be at least %s", field, param))
		case "max":
			msgs = append(msgs, fmt.Errorf("%s: must not exceed %s", field, param))
		case "oneof":
			msgs = append(msgs, fmt.Errorf("%s: must be one of [%s]", field, param))
		case "synonym":
			msgs = append(msgs, fmt.Errorf("%s: %q is not a PREFIX:VALUE identifier", field, e.Value()))
		case "predicate":
			msgs = append(msgs, fmt.Errorf("%s: %q is not a biolink predicate", field, e.Value()))
		default:
			msgs = append(msgs, fmt.Errorf("%s: validation failed (%s)", field, tag))
		}
	}
	return errors.Join(msgs...)
}
