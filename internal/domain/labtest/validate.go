package labtest

import (
	"strings"

	"github.com/labtrack/labtrack/internal/domain/catalog"
)

// minCancelReasonLen is the shortest accepted cancellation reason.
const minCancelReasonLen = 10

// ValidateResultPayload checks an entered payload against the template's
// report type. It runs before any persistence write, so a violation
// never leaves a partial save behind.
//
// Standard templates: every parameter whose type is not "heading" must
// carry a non-empty value; violations return IncompleteResultError
// naming the missing fields. Culture templates: a terminal growth-status
// choice is required, and growth requires the isolated organism.
func ValidateResultPayload(tmpl *catalog.Template, payload *ResultPayload) error {
	if payload == nil {
		return &ValidationError{Msg: "result payload is required"}
	}

	if tmpl.IsCulture() {
		return validateCulture(payload)
	}
	return validateStandard(tmpl, payload)
}

func validateStandard(tmpl *catalog.Template, payload *ResultPayload) error {
	if payload.Kind != ResultKindStandard {
		return &ValidationError{Msg: "template expects standard parameter results"}
	}
	if payload.Culture != nil {
		return &ValidationError{Msg: "standard results may not carry a culture payload"}
	}

	var missing []string
	for _, name := range tmpl.RequiredFields() {
		if strings.TrimSpace(payload.Values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &IncompleteResultError{Missing: missing}
	}
	return nil
}

func validateCulture(payload *ResultPayload) error {
	if payload.Kind != ResultKindCulture || payload.Culture == nil {
		return &ValidationError{Msg: "template expects a culture result"}
	}
	if len(payload.Values) > 0 {
		return &ValidationError{Msg: "culture results may not carry parameter values"}
	}

	c := payload.Culture
	switch c.GrowthStatus {
	case GrowthNegative:
		// no organism or panel required
	case GrowthPositive:
		if strings.TrimSpace(c.OrganismIsolated) == "" {
			return &IncompleteResultError{Missing: []string{"organismIsolated"}}
		}
	default:
		return &ValidationError{Msg: `growth status must be "growth" or "no_growth"`}
	}

	for _, s := range c.Sensitivities {
		switch s.Sensitivity {
		case SensitivitySusceptible, SensitivityResistant, SensitivityIntermediate:
		default:
			return &ValidationError{Msg: "sensitivity must be S, R or I"}
		}
	}
	return nil
}

// validateReason checks a free-text rejection or edit reason.
func validateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Msg: "a reason is required"}
	}
	return nil
}

// validateCancelReason enforces the longer justification cancellations
// require.
func validateCancelReason(reason string) error {
	if len(strings.TrimSpace(reason)) < minCancelReasonLen {
		return &ValidationError{Msg: "cancellation reason must be at least 10 characters"}
	}
	return nil
}
