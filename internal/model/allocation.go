package model

// StoreSlot is one target storefront for the current run. Slots under
// one run share the run's business entity; a slot receives at most one
// product per run.
type StoreSlot struct {
	Name           string `json:"name" yaml:"name"`
	BusinessNumber string `json:"business_number" yaml:"business_number"`
}

// AllocationOutcome distinguishes an assignment from a skipped slot.
type AllocationOutcome string

const (
	OutcomeAssigned               AllocationOutcome = "assigned"
	OutcomeNoAvailableCombination AllocationOutcome = "no_available_combination"
)

// AllocationResult is the decision for one store slot. Every slot in a
// run receives exactly one result. Combination is nil unless Outcome
// is OutcomeAssigned.
type AllocationResult struct {
	Slot        StoreSlot         `json:"slot"`
	Outcome     AllocationOutcome `json:"outcome"`
	Combination *Combination      `json:"combination,omitempty"`
}

// Assigned reports whether the slot received a combination.
func (r AllocationResult) Assigned() bool {
	return r.Outcome == OutcomeAssigned && r.Combination != nil
}

// RunReport summarizes one sheet-level export run. A run reports
// counts rather than aborting a multi-sheet export on one failure.
type RunReport struct {
	SheetName            string `json:"sheet_name"`
	BusinessNumber       string `json:"business_number"`
	Slots                int    `json:"slots"`
	FilteredByHistory    int    `json:"filtered_by_history"`
	SkippedMalformed     int    `json:"skipped_malformed"`
	Assigned             int    `json:"assigned"`
	SkippedNoCombination int    `json:"skipped_no_combination"`
	Uploaded             int    `json:"uploaded"`
	UploadFailed         int    `json:"upload_failed"`
	Persisted            int    `json:"persisted"`
	FlushAttempts        int    `json:"flush_attempts"`
	Error                string `json:"error,omitempty"`
}
