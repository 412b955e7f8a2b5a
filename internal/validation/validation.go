package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hyperengineering/autoroi/internal/types"
)

const (
	// MaxNameLength bounds process, group and organization names.
	MaxNameLength = 200
	// MaxOrganizationIDLength bounds organization identifiers.
	MaxOrganizationIDLength = 128
	// MaxHorizonMonths bounds the projection horizon.
	MaxHorizonMonths = 600
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// Addf appends a formatted validation error.
func (c *Collector) Addf(field, format string, args ...any) {
	c.errors = append(c.errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// Messages flattens the errors into "field: message" strings.
func (c *Collector) Messages() []string {
	out := make([]string, 0, len(c.errors))
	for _, e := range c.errors {
		out = append(out, e.Error())
	}
	return out
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateRange returns an error if the value is outside [min, max].
func ValidateRange(field string, value, min, max float64) *ValidationError {
	if value < min || value > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %.1f and %.1f", min, max),
		}
	}
	return nil
}

// ValidateNonNegative returns an error if the value is below zero.
func ValidateNonNegative(field string, value float64) *ValidationError {
	if value < 0 {
		return &ValidationError{
			Field:   field,
			Message: "must not be negative",
		}
	}
	return nil
}

// orgIDPattern matches lowercase alphanumerics with inner hyphens or underscores.
var orgIDPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]*[a-z0-9])?$`)

// ValidateOrganizationID checks an organization identifier's format.
func ValidateOrganizationID(field, id string) *ValidationError {
	if err := ValidateRequired(field, id); err != nil {
		return err
	}
	if err := ValidateMaxLength(field, id, MaxOrganizationIDLength); err != nil {
		return err
	}
	if !orgIDPattern.MatchString(id) {
		return &ValidationError{
			Field:   field,
			Message: "must be lowercase alphanumeric with hyphens or underscores",
		}
	}
	return nil
}

// ValidateHorizon checks a projection horizon in months.
func ValidateHorizon(field string, months int) *ValidationError {
	if months < 1 || months > MaxHorizonMonths {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between 1 and %d months", MaxHorizonMonths),
		}
	}
	return nil
}

// ValidateSaveRequest validates a POST /data/save body. Range problems in
// individual processes are corrected by normalization, so only identity and
// text fields are checked here.
func ValidateSaveRequest(req types.SaveDataRequest) []ValidationError {
	var c Collector
	c.Add(ValidateOrganizationID("organizationId", req.OrganizationID))

	for i, g := range req.Groups {
		field := fmt.Sprintf("groups[%d]", i)
		c.Add(ValidateMaxLength(field+".name", g.Name, MaxNameLength))
		c.Add(ValidateNoNullBytes(field+".name", g.Name))
		c.Add(ValidateNonNegative(field+".averageHourlyWage", g.AverageHourlyWage))
	}

	seen := make(map[string]bool, len(req.Processes))
	for i, p := range req.Processes {
		field := fmt.Sprintf("processes[%d]", i)
		c.Add(ValidateRequired(field+".name", p.Name))
		c.Add(ValidateMaxLength(field+".name", p.Name, MaxNameLength))
		c.Add(ValidateUTF8(field+".name", p.Name))
		c.Add(ValidateNoNullBytes(field+".name", p.Name))
		c.Add(ValidateNonNegative(field+".taskVolume", p.TaskVolume))
		c.Add(ValidateNonNegative(field+".timePerTask", p.TimePerTask))
		if p.ID != "" {
			if seen[p.ID] {
				c.Addf(field+".id", "duplicate process id %q", p.ID)
			}
			seen[p.ID] = true
		}
	}
	return c.Errors()
}

// ValidateGlobalDefaults validates an organization's defaults payload.
func ValidateGlobalDefaults(d types.GlobalDefaults) []ValidationError {
	var c Collector
	c.Add(ValidateNonNegative("averageHourlyWage", d.AverageHourlyWage))
	c.Add(ValidateRange("financial.discountRate", d.Financial.DiscountRate, 0, 1))
	c.Add(ValidateRange("financial.inflationRate", d.Financial.InflationRate, -1, 1))
	c.Add(ValidateRange("financial.taxRate", d.Financial.TaxRate, 0, 1))
	c.Add(ValidateRange("financial.riskPremiumFactor", d.Financial.RiskPremiumFactor, 0, 1))
	if d.Financial.GlobalRiskFactor != nil {
		c.Add(ValidateRange("financial.globalRiskFactor", *d.Financial.GlobalRiskFactor, 0, 10))
	}
	c.Add(ValidateNonNegative("effortAnchors.costTarget", d.EffortAnchors.CostTarget))
	c.Add(ValidateNonNegative("effortAnchors.timeTarget", d.EffortAnchors.TimeTarget))
	c.Add(ValidateRange("attrition.annualAttritionPercent", d.Attrition.AnnualAttritionPercent, 0, 100))
	return c.Errors()
}
