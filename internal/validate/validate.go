// Package validate checks form input before anything is sent to the backend.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/campusattend/console/internal/types"
)

// Summary messages shown to the operator.
const (
	MsgUserRequired   = "First name, last name, and email are required"
	MsgUserEmail      = "Please enter a valid email address (e.g., example@domain.com)"
	MsgUserRole       = "Please select a role"
	MsgPolicyRequired = "Please fill in all required fields with valid values"
)

const (
	emailTag = "campus_email"
	roleTag  = "staff_role"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(emailTag, func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation(roleTag, func(fl validator.FieldLevel) bool {
		return types.IsRole(fl.Field().String())
	})

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{emailTag, roleTag} {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case emailTag:
		return "must be a valid email address with a domain extension"
	case roleTag:
		return "must be one of " + strings.Join(types.Roles, ", ")
	default:
		return ""
	}
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned when input fails validation. Message is the summary
// shown to the operator.
type Error struct {
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Field returns the message for field, or "".
func (e *Error) Field(name string) string {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message
		}
	}
	return ""
}

// User trims the input and checks it. The trimmed input is returned so the
// caller sends exactly what was validated.
func User(in types.UserInput) (types.UserInput, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Role = strings.TrimSpace(in.Role)

	err := check(in, func(errs validator.ValidationErrors) string {
		for _, fe := range errs {
			if fe.Tag() == "required" && fe.Field() != "role" {
				return MsgUserRequired
			}
		}
		for _, fe := range errs {
			if fe.Tag() == emailTag {
				return MsgUserEmail
			}
		}
		return MsgUserRole
	})
	return in, err
}

// Policy checks a policy form.
func Policy(in types.PolicyInput) error {
	return check(in, func(validator.ValidationErrors) string {
		return MsgPolicyRequired
	})
}

func check(in any, summarize func(validator.ValidationErrors) string) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	fields := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: fe.Translate(translator)})
	}
	return &Error{Message: summarize(errs), Fields: fields}
}
