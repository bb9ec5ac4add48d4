package core

import (
	"testing"
)

// submittedOutcomes builds rows already in submitted state for the given names.
func submittedOutcomes(names ...string) []RowOutcome {
	out := make([]RowOutcome, len(names))
	for i, name := range names {
		out[i] = RowOutcome{
			Line:       i + 2,
			Normalized: NormalizedRow{Line: i + 2, Name: name},
			Payload:    &ResolvedPayload{Name: name},
			Status:     StatusSubmitted,
		}
	}
	return out
}

func TestRowStatus_CanAdvance(t *testing.T) {
	tests := []struct {
		from, to RowStatus
		want     bool
	}{
		{StatusPending, StatusResolved, true},
		{StatusPending, StatusValidationError, true},
		{StatusPending, StatusSubmitted, false},
		{StatusResolved, StatusSubmitted, true},
		{StatusResolved, StatusPending, false},
		{StatusSubmitted, StatusSuccess, true},
		{StatusSubmitted, StatusServerError, true},
		{StatusSubmitted, StatusResolved, false},
		{StatusSuccess, StatusServerError, false},
		{StatusServerError, StatusSuccess, false},
		{StatusValidationError, StatusResolved, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanAdvance(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMarkSubmitted(t *testing.T) {
	outcomes := []RowOutcome{
		{Line: 2, Status: StatusResolved, Payload: &ResolvedPayload{Name: "Ana"}},
		{Line: 3, Status: StatusValidationError, Reasons: []string{"bad"}},
		{Line: 4, Status: StatusResolved, Payload: &ResolvedPayload{Name: "Bruno"}},
	}

	out, payloads := MarkSubmitted(outcomes)

	if len(payloads) != 2 || payloads[0].Name != "Ana" || payloads[1].Name != "Bruno" {
		t.Fatalf("payloads = %+v, want Ana and Bruno in row order", payloads)
	}
	if out[0].Status != StatusSubmitted || out[2].Status != StatusSubmitted {
		t.Errorf("resolved rows should be submitted: %q, %q", out[0].Status, out[2].Status)
	}
	if out[1].Status != StatusValidationError {
		t.Errorf("invalid row changed status to %q", out[1].Status)
	}
	if outcomes[0].Status != StatusResolved {
		t.Error("MarkSubmitted mutated its input")
	}
}

func TestReconcile_MatchesByName(t *testing.T) {
	outcomes := submittedOutcomes("Ana", "Bruno", "Carla")
	results := []SubmissionResult{
		{Name: "Carla", Status: ResultSuccess, EmailDeliveryStatus: "queued"},
		{Name: " Ana ", Status: ResultError, Error: "Email already registered"},
		{Name: "Bruno", Status: ResultDuplicate},
	}

	out, stats := Reconcile(outcomes, results)

	if stats.Matched != 3 || stats.Unmatched != 0 || stats.UnknownResults != 0 {
		t.Errorf("stats = %+v", stats)
	}

	if out[0].Status != StatusServerError || out[0].Reasons[0] != "Email already registered" {
		t.Errorf("Ana = %q %v", out[0].Status, out[0].Reasons)
	}
	if out[1].Status != StatusServerError || out[1].Reasons[0] != "Record already exists" {
		t.Errorf("Bruno = %q %v", out[1].Status, out[1].Reasons)
	}
	if out[2].Status != StatusSuccess || out[2].EmailDeliveryStatus != "queued" {
		t.Errorf("Carla = %q email=%q", out[2].Status, out[2].EmailDeliveryStatus)
	}
	for _, o := range outcomes {
		if o.Status != StatusSubmitted {
			t.Fatal("Reconcile mutated its input")
		}
	}
}

func TestReconcile_DuplicateNamesFIFO(t *testing.T) {
	outcomes := submittedOutcomes("Ana", "Ana")
	results := []SubmissionResult{
		{Name: "Ana", Status: ResultError, Error: "Tax ID already registered"},
		{Name: "Ana", Status: ResultSuccess},
	}

	out, stats := Reconcile(outcomes, results)

	if stats.Matched != 2 {
		t.Errorf("Matched = %d, want 2", stats.Matched)
	}
	if out[0].Status != StatusServerError {
		t.Errorf("first Ana = %q, want serverError", out[0].Status)
	}
	if out[1].Status != StatusSuccess {
		t.Errorf("second Ana = %q, want success", out[1].Status)
	}
}

func TestReconcile_UnknownAndMissingResults(t *testing.T) {
	outcomes := submittedOutcomes("Ana", "Bruno")
	results := []SubmissionResult{
		{Name: "Ana", Status: ResultSuccess},
		{Name: "Zeca", Status: ResultSuccess},
		{Name: "Ana", Status: ResultSuccess}, // second result for a single row
	}

	out, stats := Reconcile(outcomes, results)

	if stats.UnknownResults != 2 {
		t.Errorf("UnknownResults = %d, want 2", stats.UnknownResults)
	}
	if stats.Unmatched != 1 {
		t.Errorf("Unmatched = %d, want 1", stats.Unmatched)
	}
	if out[1].Status != StatusSubmitted {
		t.Errorf("Bruno = %q, want still submitted before Finalize", out[1].Status)
	}

	final := Finalize(out)
	if final[1].Status != StatusServerError || final[1].Reasons[0] != ReasonNoResult {
		t.Errorf("after Finalize Bruno = %q %v", final[1].Status, final[1].Reasons)
	}
	if final[0].Status != StatusSuccess {
		t.Errorf("Finalize changed a terminal row: %q", final[0].Status)
	}
}

func TestReconcile_IgnoresNonSubmittedRows(t *testing.T) {
	outcomes := []RowOutcome{
		{Line: 2, Normalized: NormalizedRow{Name: "Ana"}, Status: StatusValidationError, Reasons: []string{"x"}},
	}
	out, stats := Reconcile(outcomes, []SubmissionResult{{Name: "Ana", Status: ResultSuccess}})

	if out[0].Status != StatusValidationError {
		t.Errorf("validation error row changed to %q", out[0].Status)
	}
	if stats.UnknownResults != 1 {
		t.Errorf("UnknownResults = %d, want 1", stats.UnknownResults)
	}
}

func TestReconcile_UnknownStatusIsServerError(t *testing.T) {
	out, _ := Reconcile(submittedOutcomes("Ana"), []SubmissionResult{{Name: "Ana", Status: "weird"}})
	if out[0].Status != StatusServerError {
		t.Fatalf("Status = %q, want serverError", out[0].Status)
	}
	if out[0].Reasons[0] != "Server rejected the record (weird)" {
		t.Errorf("Reason = %q", out[0].Reasons[0])
	}
}

func TestFailBatch(t *testing.T) {
	outcomes := append(submittedOutcomes("Ana", "Bruno"), RowOutcome{
		Line:    9,
		Status:  StatusValidationError,
		Reasons: []string{`Missing required field "Email"`},
	})

	out := FailBatch(outcomes)

	for _, o := range out[:2] {
		if o.Status != StatusServerError {
			t.Errorf("line %d = %q, want serverError", o.Line, o.Status)
		}
		if len(o.Reasons) != 1 || o.Reasons[0] != ReasonBatchFailed {
			t.Errorf("line %d reasons = %v", o.Line, o.Reasons)
		}
	}
	if len(out[2].Reasons) != 1 {
		t.Errorf("validation error row gained reasons: %v", out[2].Reasons)
	}
}
