package config

import (
	"fmt"
	"strings"
)

// requiredSections are the top-level keys every configuration document must
// carry, with the type each one must decode to.
var requiredSections = []string{"region", "model", "storage", "throttling", "theme"}

// ValidationError describes one configuration problem with enough context
// for the operator to fix it without reading source code.
type ValidationError struct {
	Field       string
	Value       interface{}
	Problem     string
	Suggestion  string
	ValidValues []string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	var msg strings.Builder
	msg.WriteString("\nError in configuration:\n\n")
	msg.WriteString(fmt.Sprintf("  %s: %v  # <-- %s\n\n", e.Field, e.Value, e.Problem))

	if e.Suggestion != "" {
		msg.WriteString(fmt.Sprintf("Did you mean '%s'?\n\n", e.Suggestion))
	}

	if len(e.ValidValues) > 0 {
		msg.WriteString("Valid options:\n")
		for _, v := range e.ValidValues {
			msg.WriteString(fmt.Sprintf("  - %s\n", v))
		}
		msg.WriteString("\n")
	}

	return msg.String()
}

// ValidationResult holds multiple validation errors
type ValidationResult struct {
	Errors   []error
	Warnings []string
}

// HasErrors returns true if there are any errors
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// AddError adds a validation error
func (r *ValidationResult) AddError(err error) {
	r.Errors = append(r.Errors, err)
}

// AddWarning adds a validation warning
func (r *ValidationResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// MissingSections returns the names of required sections absent from the
// raw document, in declaration order.
func MissingSections(raw map[string]interface{}) []string {
	var missing []string
	for _, section := range requiredSections {
		if v, ok := raw[section]; !ok || v == nil {
			missing = append(missing, section)
		}
	}
	return missing
}

// Validate checks a parsed configuration document.
func Validate(raw map[string]interface{}) *ValidationResult {
	result := &ValidationResult{}

	if missing := MissingSections(raw); len(missing) > 0 {
		result.AddError(ValidationError{
			Field:       strings.Join(missing, ", "),
			Value:       "<absent>",
			Problem:     fmt.Sprintf("missing required section(s): %s", strings.Join(missing, ", ")),
			ValidValues: requiredSections,
		})
		return result
	}

	validateRegion(raw["region"], result)
	validateModel(raw["model"], result)
	validateStorage(raw["storage"], result)
	validateThrottling(raw["throttling"], result)
	validateTheme(raw["theme"], result)

	return result
}

func validateRegion(v interface{}, result *ValidationResult) {
	region, ok := v.(string)
	if !ok || region == "" {
		result.AddError(ValidationError{
			Field:      "region",
			Value:      v,
			Problem:    "must be a non-empty region string",
			Suggestion: "us-east-1",
		})
	}
}

func validateModel(v interface{}, result *ValidationResult) {
	model, ok := v.(map[string]interface{})
	if !ok {
		result.AddError(ValidationError{
			Field:   "model",
			Value:   v,
			Problem: "must be a map with 'id' and 'embedding_model'",
		})
		return
	}

	for _, key := range []string{"id", "embedding_model"} {
		if s, ok := model[key].(string); !ok || s == "" {
			result.AddError(ValidationError{
				Field:   "model." + key,
				Value:   model[key],
				Problem: "must be a non-empty model identifier",
			})
		}
	}
}

func validateStorage(v interface{}, result *ValidationResult) {
	storage, ok := v.(map[string]interface{})
	if !ok {
		result.AddError(ValidationError{
			Field:   "storage",
			Value:   v,
			Problem: "must be a map with 'tier' and 'table_capacity'",
		})
		return
	}

	tier, _ := storage["tier"].(string)
	switch tier {
	case "on-demand", "provisioned":
	default:
		result.AddError(ValidationError{
			Field:       "storage.tier",
			Value:       storage["tier"],
			Problem:     "unknown storage tier",
			ValidValues: []string{"on-demand", "provisioned"},
		})
	}

	if !isPositiveInt(storage["table_capacity"]) {
		result.AddError(ValidationError{
			Field:   "storage.table_capacity",
			Value:   storage["table_capacity"],
			Problem: "must be a positive integer",
		})
	}
}

func validateThrottling(v interface{}, result *ValidationResult) {
	throttling, ok := v.(map[string]interface{})
	if !ok {
		result.AddError(ValidationError{
			Field:   "throttling",
			Value:   v,
			Problem: "must be a map with 'rate_limit' and 'burst_limit'",
		})
		return
	}

	for _, key := range []string{"rate_limit", "burst_limit"} {
		if !isPositiveInt(throttling[key]) {
			result.AddError(ValidationError{
				Field:   "throttling." + key,
				Value:   throttling[key],
				Problem: "must be a positive integer",
			})
		}
	}
}

func validateTheme(v interface{}, result *ValidationResult) {
	theme, ok := v.(map[string]interface{})
	if !ok {
		result.AddError(ValidationError{
			Field:   "theme",
			Value:   v,
			Problem: "must be a map with 'primary_color' and 'title'",
		})
		return
	}

	if s, ok := theme["primary_color"].(string); !ok || !strings.HasPrefix(s, "#") {
		result.AddError(ValidationError{
			Field:      "theme.primary_color",
			Value:      theme["primary_color"],
			Problem:    "must be a hex color",
			Suggestion: "#1a73e8",
		})
	}
	if s, ok := theme["title"].(string); !ok || s == "" {
		result.AddWarning("theme.title is empty - the widget will render without a header title")
	}
}

func isPositiveInt(v interface{}) bool {
	switch n := v.(type) {
	case int:
		return n > 0
	case int64:
		return n > 0
	case float64:
		return n > 0 && n == float64(int64(n))
	}
	return false
}
