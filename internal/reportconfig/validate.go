package reportconfig

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/marginrecon/internal/contracts"
)

// ValidationError 검증 실패 (실행 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match contracts.ErrConfigValidation
func (e ValidationError) Unwrap() error {
	return contracts.ErrConfigValidation
}

// ValidationErrors collects every failed rule of one config
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, v := range e {
		parts = append(parts, v.Error())
	}
	return "config validation: " + strings.Join(parts, "; ")
}

func (e ValidationErrors) Unwrap() error {
	return contracts.ErrConfigValidation
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
			return identRe.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks the config shape and cross references. Every failure is
// reported, not just the first.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if err := structValidator().Struct(cfg); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("%w: %v", contracts.ErrConfigValidation, err)
		}
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: describe(fe),
			})
		}
	}

	for i, p := range cfg.ComparePairs() {
		for _, side := range []struct{ field, name string }{{"left", p.Left}, {"right", p.Right}} {
			if side.name == "" {
				continue
			}
			if _, ok := cfg.Report(side.name); !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("pairs[%d].%s", i, side.field),
					Message: fmt.Sprintf("unknown report %q", side.name),
				})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "unique":
		return "must not contain duplicates"
	case "datetime":
		return fmt.Sprintf("%q does not match layout %s", fe.Value(), fe.Param())
	case "sqlident":
		return fmt.Sprintf("%q is not a plain SQL identifier", fe.Value())
	case "nefield":
		return "must differ from " + strings.ToLower(fe.Param())
	default:
		return "failed rule " + fe.Tag()
	}
}

// Warn reports settings that are legal but probably unintended
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	for _, p := range cfg.ComparePairs() {
		for _, name := range []string{p.Left, p.Right} {
			if r, ok := cfg.Report(name); ok && !r.IsValid() {
				warnings = append(warnings, Warning{
					Code:    "INVALID_REPORT_PAIRED",
					Message: fmt.Sprintf("report %s is marked invalid; pair %s/%s will be skipped", name, p.Left, p.Right),
				})
			}
		}
	}

	for _, m := range cfg.MarginClasses {
		if m != strings.ToUpper(m) {
			warnings = append(warnings, Warning{
				Code:    "LOWERCASE_MARGIN_CLASS",
				Message: fmt.Sprintf("margin class %q is not upper case; stored codes are", m),
			})
		}
	}

	paired := make(map[string]bool)
	for _, p := range cfg.ComparePairs() {
		paired[p.Left], paired[p.Right] = true, true
	}
	for _, r := range cfg.Reports {
		if !paired[r.Name] {
			warnings = append(warnings, Warning{
				Code:    "UNPAIRED_REPORT",
				Message: fmt.Sprintf("report %s is fetched but never compared", r.Name),
			})
		}
	}

	return warnings
}
