package validation

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordPolicy is the deployment's password complexity rule.
type PasswordPolicy struct {
	MinLength            int
	RequireUpper         bool
	RequireLower         bool
	RequireDigitOrSymbol bool
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:            8,
		RequireUpper:         true,
		RequireLower:         true,
		RequireDigitOrSymbol: true,
	}
}

// Rule checks a string password value against the policy.
func (p PasswordPolicy) Rule() validation.RuleFunc {
	return func(value any) error {
		password, _ := value.(string)
		if password == "" {
			return nil
		}

		if len([]rune(password)) < p.MinLength {
			return errors.New("password is too short")
		}
		if len(password) > MaxPasswordBytes {
			return errors.New("password is too long")
		}

		var upper, lower, digitOrSymbol bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsLower(r):
				lower = true
			case unicode.IsDigit(r), !unicode.IsLetter(r):
				digitOrSymbol = true
			}
		}

		if (p.RequireUpper && !upper) || (p.RequireLower && !lower) || (p.RequireDigitOrSymbol && !digitOrSymbol) {
			return errors.New(p.complexityMessage())
		}
		return nil
	}
}

func (p PasswordPolicy) complexityMessage() string {
	var parts []string
	if p.RequireUpper {
		parts = append(parts, "an uppercase letter")
	}
	if p.RequireLower {
		parts = append(parts, "a lowercase letter")
	}
	if p.RequireDigitOrSymbol {
		parts = append(parts, "a number or special character")
	}
	return "password must contain " + strings.Join(parts, ", ")
}

type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in SignupInput) Validate(policy PasswordPolicy) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(3, 100)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.Required, validation.By(policy.Rule())),
	)
}

type SigninInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in SigninInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(1, MaxPasswordBytes)),
	)
}

// FieldErrors flattens an ozzo validation result into field -> message.
// Any other error is returned under the "body" key.
func FieldErrors(err error) map[string]string {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return map[string]string{"body": err.Error()}
	}

	out := make(map[string]string, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		out[field] = fieldErr.Error()
	}
	return out
}
