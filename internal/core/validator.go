package core

// validator.go checks normalized rows and resolves reference names to ids.
//
// Validation happens in a fixed order and collects every problem:
//  1. Presence: each canonical field must hold a non-blank value
//  2. Resolution: company, department and position must match an entity
//     in the session's reference sets (trimmed, case-insensitive)
//
// Rows with any problem become validationError with all reasons attached;
// the rest become resolved with a submission payload. Validation is pure.

import (
	"fmt"
	"strings"
)

// ValidationError represents a single problem found in a row.
type ValidationError struct {
	Field   CanonicalField
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// RowValidator validates normalized rows against one session's references.
type RowValidator struct {
	refs References
}

// NewRowValidator creates a validator for the given reference data.
func NewRowValidator(refs References) *RowValidator {
	return &RowValidator{refs: refs}
}

// ValidateRow returns every problem found in the row, in check order.
func (v *RowValidator) ValidateRow(n NormalizedRow) []ValidationError {
	var errs []ValidationError

	for _, f := range CanonicalFields {
		if fieldBlank(f, n.Get(f)) {
			errs = append(errs, ValidationError{
				Field:   f,
				Value:   n.Get(f),
				Message: fmt.Sprintf("Missing required field %q", f.Label()),
			})
		}
	}

	checks := []struct {
		field CanonicalField
		set   ReferenceSet
	}{
		{FieldCompany, v.refs.Companies},
		{FieldDepartment, v.refs.Departments},
		{FieldPosition, v.refs.Positions},
	}
	for _, c := range checks {
		value := n.Get(c.field)
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, ok := c.set.Lookup(value); !ok {
			errs = append(errs, ValidationError{
				Field:   c.field,
				Value:   value,
				Message: fmt.Sprintf("%s %q not found", c.field.Label(), value),
			})
		}
	}

	return errs
}

// Validate classifies a normalized row. The returned outcome carries either
// all validation reasons and no payload, or a payload and no reasons.
func (v *RowValidator) Validate(n NormalizedRow) RowOutcome {
	out := RowOutcome{
		Line:       n.Line,
		Normalized: n,
		Status:     StatusPending,
	}

	if errs := v.ValidateRow(n); len(errs) > 0 {
		out.Reasons = make([]string, len(errs))
		for i, e := range errs {
			out.Reasons[i] = e.Message
		}
		out.advance(StatusValidationError)
		return out
	}

	company, _ := v.refs.Companies.Lookup(n.Company)
	department, _ := v.refs.Departments.Lookup(n.Department)
	position, _ := v.refs.Positions.Lookup(n.Position)

	out.Payload = &ResolvedPayload{
		Name:         n.Name,
		Email:        n.Email,
		TaxID:        DigitsOnly(n.TaxID),
		CompanyID:    company.ID,
		DepartmentID: department.ID,
		PositionID:   position.ID,
	}
	out.advance(StatusResolved)
	return out
}

// Validate is a convenience wrapper around RowValidator.Validate.
func Validate(n NormalizedRow, refs References) RowOutcome {
	return NewRowValidator(refs).Validate(n)
}

// fieldBlank reports whether a canonical value counts as missing.
// A tax id without a single digit is treated as missing.
func fieldBlank(f CanonicalField, value string) bool {
	if strings.TrimSpace(value) == "" {
		return true
	}
	return f == FieldTaxID && DigitsOnly(value) == ""
}

// DigitsOnly strips everything but ASCII digits ("123.456.789-09" -> "12345678909").
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
