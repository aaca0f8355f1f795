package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the global validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ConfigError represents a validation error for a specific field.
type ConfigError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of config errors.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks structural constraints plus the cross-field model rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var details ValidationErrors
			for _, fe := range validationErrors {
				details = append(details, ConfigError{
					Field:   fe.Namespace(),
					Message: formatValidationError(fe),
					Value:   fe.Value(),
				})
			}
			return details
		}
		return err
	}
	return validateModels(&cfg.Models)
}

// validateModels enforces registry uniqueness and referential integrity for
// the default/fallback pair and the routing table.
func validateModels(mc *ModelsConfig) error {
	var details ValidationErrors

	seen := make(map[string]struct{}, len(mc.Registry))
	for _, def := range mc.Registry {
		if _, dup := seen[def.Name]; dup {
			details = append(details, ConfigError{
				Field:   "models.registry",
				Message: "model name declared twice",
				Value:   def.Name,
			})
		}
		seen[def.Name] = struct{}{}
	}

	if _, ok := seen[mc.Default]; !ok {
		details = append(details, ConfigError{
			Field:   "models.default",
			Message: "not present in the registry",
			Value:   mc.Default,
		})
	}
	if _, ok := seen[mc.Fallback]; !ok {
		details = append(details, ConfigError{
			Field:   "models.fallback",
			Message: "not present in the registry",
			Value:   mc.Fallback,
		})
	}

	for taskType, names := range mc.Routing.TaskTypes {
		for _, name := range names {
			if _, ok := seen[name]; !ok {
				details = append(details, ConfigError{
					Field:   "models.routing.task_types." + taskType,
					Message: "references unknown model",
					Value:   name,
				})
			}
		}
	}
	for _, name := range mc.Routing.DefaultModels {
		if _, ok := seen[name]; !ok {
			details = append(details, ConfigError{
				Field:   "models.routing.default_models",
				Message: "references unknown model",
				Value:   name,
			})
		}
	}

	if len(details) > 0 {
		return details
	}
	return nil
}

// formatValidationError converts validator.FieldError to a readable message.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "nefield":
		return fmt.Sprintf("must differ from %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
