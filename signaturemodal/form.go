package signaturemodal

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"docsign/signature"
)

// Field identifies an editable input of the new-request form.
type Field string

const (
	FieldSignerName     Field = "signerName"
	FieldSignerEmail    Field = "signerEmail"
	FieldTitle          Field = "title"
	FieldLanguage       Field = "language"
	FieldExpirationDays Field = "expirationDays"
)

var (
	ErrUnknownField = errors.New("signaturemodal: unknown form field")
	ErrInvalidValue = errors.New("signaturemodal: invalid field value")
)

// Form holds the user-editable part of a new request.
type Form struct {
	SignerName     string `json:"signerName" validate:"required"`
	SignerEmail    string `json:"signerEmail" validate:"required,email"`
	Title          string `json:"title"`
	Language       string `json:"language" validate:"required,oneof=da en sv no"`
	ExpirationDays int    `json:"expirationDays" validate:"required,oneof=7 14 30 60"`
}

func defaultForm() Form {
	return Form{
		Language:       signature.DefaultLanguage,
		ExpirationDays: signature.DefaultExpirationDays,
	}
}

var setters = map[Field]func(f *Form, value string) error{
	FieldSignerName: func(f *Form, v string) error {
		f.SignerName = v
		return nil
	},
	FieldSignerEmail: func(f *Form, v string) error {
		f.SignerEmail = v
		return nil
	},
	FieldTitle: func(f *Form, v string) error {
		f.Title = v
		return nil
	},
	FieldLanguage: func(f *Form, v string) error {
		f.Language = v
		return nil
	},
	FieldExpirationDays: func(f *Form, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, FieldExpirationDays, v)
		}
		f.ExpirationDays = n
		return nil
	},
}

// Option is a label/value pair for a picklist input.
type Option struct {
	Label string
	Value string
}

var languageOptions = []Option{
	{Label: "Danish", Value: "da"},
	{Label: "English", Value: "en"},
	{Label: "Swedish", Value: "sv"},
	{Label: "Norwegian", Value: "no"},
}

var expirationOptions = []Option{
	{Label: "7 days", Value: "7"},
	{Label: "14 days", Value: "14"},
	{Label: "30 days", Value: "30"},
	{Label: "60 days", Value: "60"},
}

func LanguageOptions() []Option   { return append([]Option(nil), languageOptions...) }
func ExpirationOptions() []Option { return append([]Option(nil), expirationOptions...) }

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		return name
	})
	return v
}

// validateForm reports every invalid field with its inline message; an
// empty map means the form is valid.
func validateForm(f Form) map[Field]string {
	errs := make(map[Field]string)
	err := formValidator.Struct(f)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs[FieldSignerName] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		errs[Field(fe.Field())] = fieldMessage(fe.Tag())
	}
	return errs
}

func fieldMessage(tag string) string {
	switch tag {
	case "required":
		return "Complete this field."
	case "email":
		return "Enter a valid email address."
	case "oneof":
		return "Select a valid option."
	default:
		return "Enter a valid value."
	}
}
