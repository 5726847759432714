package shared

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	phonePattern   = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	phoneSeparator = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// Validator returns the shared struct validator. Field names in errors use
// the json tag so they line up with column names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return IsValidPhone(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// ValidateStruct runs struct tag validation and converts failures into a ValidationError
func ValidateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError(err.Error())
	}
	fields := make([]string, 0, len(fieldErrs))
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
		msgs = append(msgs, fe.Field()+" failed '"+fe.Tag()+"'")
	}
	return NewValidationError("invalid fields: "+strings.Join(msgs, "; "), fields...)
}

// IsValidEmail reports whether s is a well-formed email address
func IsValidEmail(s string) bool {
	return Validator().Var(s, "required,email") == nil
}

// IsValidPhone accepts 7 to 15 digits with an optional leading plus.
// Spaces, dashes, dots and parentheses are ignored.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(phoneSeparator.Replace(strings.TrimSpace(s)))
}

// ValidateContact checks optional email and phone values. Empty values pass.
func ValidateContact(email, phone string) error {
	var bad []string
	if email = strings.TrimSpace(email); email != "" && !IsValidEmail(email) {
		bad = append(bad, "email")
	}
	if phone = strings.TrimSpace(phone); phone != "" && !IsValidPhone(phone) {
		bad = append(bad, "phone")
	}
	if len(bad) > 0 {
		return NewValidationError("malformed contact details: "+strings.Join(bad, ", "), bad...)
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

// NonNegative returns a ValidationError naming every negative amount
func NonNegative(amounts map[string]decimal.Decimal) error {
	var bad []string
	for name, v := range amounts {
		if v.IsNegative() {
			bad = append(bad, name)
		}
	}
	if len(bad) > 0 {
		return NewValidationError("amounts cannot be negative: "+strings.Join(sortedCopy(bad), ", "), bad...)
	}
	return nil
}

// Percentages returns a ValidationError naming every value outside [0,100]
func Percentages(values map[string]decimal.Decimal) error {
	var bad []string
	for name, v := range values {
		if v.IsNegative() || v.GreaterThan(hundred) {
			bad = append(bad, name)
		}
	}
	if len(bad) > 0 {
		return NewValidationError("percentages must be within 0-100: "+strings.Join(sortedCopy(bad), ", "), bad...)
	}
	return nil
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
