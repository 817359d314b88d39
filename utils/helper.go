package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "US"

var validate = validator.New()

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err // Phone number is invalid
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil // Phone number is valid for the specified country code
}

func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	errorResponse := make(map[string]string)
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

// ValidateStruct runs `validate` tags and folds failures into a ValidationError.
func ValidateStruct(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	fields := ProcessValidationErrors(err)
	if len(fields) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" failed "+fields[k])
	}
	return &ValidationError{Message: "invalid input: " + strings.Join(parts, ", ")}
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

// first n letters of s, uppercased; digits and symbols are skipped
func LetterCode(s string, n int) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() >= n {
			break
		}
		if unicode.IsLetter(r) && r < unicode.MaxASCII {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// cut s to at most n runes
func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
