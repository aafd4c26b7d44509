package reconcile

import "cadence/internal/matching"

// Report aggregates the outcome of one dry run.
type Report struct {
	Total       int
	Matched     int
	ReviewQueue int
	Unmatched   int
	Skipped     int
	Duplicates  int
	Results     []matching.MatchResult
}

func (r *Report) add(result matching.MatchResult) {
	r.Total++
	r.Results = append(r.Results, result)
	r.count(result.Outcome)
}

func (r *Report) count(outcome matching.Outcome) {
	switch outcome {
	case matching.OutcomeAutoLinkable:
		r.Matched++
	case matching.OutcomeReviewQueue:
		r.ReviewQueue++
	case matching.OutcomeUnmatched:
		r.Unmatched++
	case matching.OutcomeSkipped:
		r.Skipped++
	case matching.OutcomeDuplicate:
		r.Duplicates++
	}
}

// ItemError records a write that failed for one external item.
type ItemError struct {
	ExternalID string
	Message    string
}

// CommitReport is the classification report plus the writes a commit made.
// Inserted counts new links; Created counts catalog songs created for
// unmatched items. A partially failed commit is recognisable by a non-empty
// Errors list alongside nonzero Inserted.
type CommitReport struct {
	Report
	Action   string
	Inserted int
	Created  int
	Errors   []ItemError
}

func (r *CommitReport) fail(externalID string, err error) {
	r.Errors = append(r.Errors, ItemError{ExternalID: externalID, Message: err.Error()})
}
