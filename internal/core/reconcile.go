package core

import (
	"fmt"
	"strings"
)

// Reasons attached by the reconciler when the service gives no specific error.
const (
	ReasonBatchFailed   = "Batch submission failed; no record from this file was created"
	ReasonNoResult      = "No result returned by the server for this record"
	reasonRejectedFmt   = "Server rejected the record (%s)"
	reasonDuplicateText = "Record already exists"
)

// ReconcileStats summarizes how results were matched to rows.
type ReconcileStats struct {
	Matched        int // results applied to a row
	UnknownResults int // results whose name matched no submitted row
	Unmatched      int // submitted rows that received no result
}

// cloneOutcomes copies the slice so reducers never mutate their input.
func cloneOutcomes(outcomes []RowOutcome) []RowOutcome {
	out := make([]RowOutcome, len(outcomes))
	copy(out, outcomes)
	return out
}

// MarkSubmitted moves every resolved row to submitted and returns the
// payloads in row order.
func MarkSubmitted(outcomes []RowOutcome) ([]RowOutcome, []ResolvedPayload) {
	out := cloneOutcomes(outcomes)
	var payloads []ResolvedPayload
	for i := range out {
		if out[i].Status != StatusResolved || out[i].Payload == nil {
			continue
		}
		if out[i].advance(StatusSubmitted) {
			payloads = append(payloads, *out[i].Payload)
		}
	}
	return out, payloads
}

// matchKey is the name used to pair a result with a row.
func matchKey(name string) string {
	return strings.TrimSpace(name)
}

// Reconcile folds per-record results back into the outcomes.
//
// Results are matched by trimmed name against the row's original name.
// Each result is consumed once; rows sharing a name receive results in
// file order. Rows without a result keep their status and are counted in
// ReconcileStats.Unmatched.
func Reconcile(outcomes []RowOutcome, results []SubmissionResult) ([]RowOutcome, ReconcileStats) {
	out := cloneOutcomes(outcomes)
	var stats ReconcileStats

	queues := make(map[string][]int)
	for i, o := range out {
		if o.Status == StatusSubmitted {
			key := matchKey(o.Normalized.Name)
			queues[key] = append(queues[key], i)
		}
	}

	for _, res := range results {
		key := matchKey(res.Name)
		queue := queues[key]
		if len(queue) == 0 {
			stats.UnknownResults++
			continue
		}
		idx := queue[0]
		queues[key] = queue[1:]

		applyResult(&out[idx], res)
		stats.Matched++
	}

	for _, queue := range queues {
		stats.Unmatched += len(queue)
	}

	return out, stats
}

// applyResult sets the terminal status of one submitted row.
func applyResult(o *RowOutcome, res SubmissionResult) {
	o.EmailDeliveryStatus = res.EmailDeliveryStatus

	if res.Status == ResultSuccess {
		o.advance(StatusSuccess)
		return
	}

	reason := strings.TrimSpace(res.Error)
	if reason == "" {
		if res.Status == ResultDuplicate {
			reason = reasonDuplicateText
		} else {
			reason = fmt.Sprintf(reasonRejectedFmt, res.Status)
		}
	}
	if o.advance(StatusServerError) {
		o.Reasons = append(o.Reasons, reason)
	}
}

// FailBatch marks every submitted row as serverError after a whole-batch failure.
func FailBatch(outcomes []RowOutcome) []RowOutcome {
	return failSubmitted(outcomes, ReasonBatchFailed)
}

// Finalize resolves rows still waiting for a result after reconciliation.
// After Finalize no row is left in submitted.
func Finalize(outcomes []RowOutcome) []RowOutcome {
	return failSubmitted(outcomes, ReasonNoResult)
}

func failSubmitted(outcomes []RowOutcome, reason string) []RowOutcome {
	out := cloneOutcomes(outcomes)
	for i := range out {
		if out[i].Status != StatusSubmitted {
			continue
		}
		if out[i].advance(StatusServerError) {
			out[i].Reasons = append(out[i].Reasons, reason)
		}
	}
	return out
}
