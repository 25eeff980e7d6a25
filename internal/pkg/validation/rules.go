package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/domain/cgpa"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Validation rule patterns
var (
	EmailPattern = `^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`

	// Password must contain at least one letter and one digit
	PasswordLetterPattern = `[A-Za-z]`
	PasswordDigitPattern  = `[0-9]`

	PasswordMinLength = 8
	PasswordMaxLength = 72 // bcrypt input limit

	NameMinLength = 1
	NameMaxLength = 100
)

// CompiledPatterns caches compiled regex patterns
var CompiledPatterns = struct {
	Email          *regexp.Regexp
	PasswordLetter *regexp.Regexp
	PasswordDigit  *regexp.Regexp
}{
	Email:          regexp.MustCompile(EmailPattern),
	PasswordLetter: regexp.MustCompile(PasswordLetterPattern),
	PasswordDigit:  regexp.MustCompile(PasswordDigitPattern),
}

// StringValidation is a small builder for string checks
type StringValidation struct {
	Value    string
	MinLen   int
	MaxLen   int
	Required bool
	Patterns []*regexp.Regexp
}

// NewStringValidation creates a new string validation
func NewStringValidation(value string) *StringValidation {
	return &StringValidation{
		Value:    value,
		Required: true,
	}
}

// WithMinLength sets minimum length in characters
func (v *StringValidation) WithMinLength(min int) *StringValidation {
	v.MinLen = min
	return v
}

// WithMaxLength sets maximum length in characters
func (v *StringValidation) WithMaxLength(max int) *StringValidation {
	v.MaxLen = max
	return v
}

// WithPattern adds a regex every value must match
func (v *StringValidation) WithPattern(pattern *regexp.Regexp) *StringValidation {
	v.Patterns = append(v.Patterns, pattern)
	return v
}

// WithRequired sets if field is required
func (v *StringValidation) WithRequired(required bool) *StringValidation {
	v.Required = required
	return v
}

// Validate performs validation
func (v *StringValidation) Validate() bool {
	if v.Value == "" {
		return !v.Required
	}

	n := utf8.RuneCountInString(v.Value)
	if v.MinLen > 0 && n < v.MinLen {
		return false
	}
	if v.MaxLen > 0 && n > v.MaxLen {
		return false
	}

	for _, p := range v.Patterns {
		if !p.MatchString(v.Value) {
			return false
		}
	}

	return true
}

// ValidEmail checks the email pattern case-insensitively
func ValidEmail(email string) bool {
	return NewStringValidation(strings.ToLower(strings.TrimSpace(email))).
		WithPattern(CompiledPatterns.Email).
		Validate()
}

// ValidPassword enforces length and letter+digit composition
func ValidPassword(password string) bool {
	return NewStringValidation(password).
		WithMinLength(PasswordMinLength).
		WithMaxLength(PasswordMaxLength).
		WithPattern(CompiledPatterns.PasswordLetter).
		WithPattern(CompiledPatterns.PasswordDigit).
		Validate()
}

// ValidCalculationName checks a trimmed calculation name
func ValidCalculationName(name string) bool {
	return NewStringValidation(strings.TrimSpace(name)).
		WithMinLength(NameMinLength).
		WithMaxLength(NameMaxLength).
		Validate()
}

// validateGrade backs the "grade" struct tag
func validateGrade(fl validator.FieldLevel) bool {
	_, err := cgpa.ParseGrade(fl.Field().String())
	return err == nil
}

// Register adds the custom tags to a validator instance
func Register(v *validator.Validate) error {
	return v.RegisterValidation("grade", validateGrade)
}

// RegisterWithGin registers the custom tags on gin's binding validator
func RegisterWithGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return Register(v)
}
