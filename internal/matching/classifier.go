package matching

import (
	"errors"
	"fmt"
)

const (
	DefaultAutoLinkThreshold = 70
	DefaultReviewFloor       = 30
)

// Thresholds bound the auto-link and review buckets. The same values drive
// preview classification and bulk accept-by-score commits.
type Thresholds struct {
	AutoLink    int
	ReviewFloor int
}

// DefaultThresholds returns the stock auto-link and review thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{AutoLink: DefaultAutoLinkThreshold, ReviewFloor: DefaultReviewFloor}
}

// Validate ensures 0 < ReviewFloor < AutoLink <= 100.
func (t Thresholds) Validate() error {
	if t.AutoLink <= 0 || t.AutoLink > maxScore {
		return fmt.Errorf("auto link threshold %d outside 1..%d", t.AutoLink, maxScore)
	}
	if t.ReviewFloor <= 0 {
		return errors.New("review floor must be positive")
	}
	if t.ReviewFloor >= t.AutoLink {
		return fmt.Errorf("review floor %d must be below auto link threshold %d", t.ReviewFloor, t.AutoLink)
	}
	return nil
}

// Facts are the per-item inputs the classifier needs beyond the score.
type Facts struct {
	// Linked is true when the dedup guard found an existing link.
	Linked bool
	// Excluded is true when the caller asked for the item to be skipped.
	Excluded bool
}

// Classify buckets a scored result. Dedup state short-circuits every other
// check, then caller exclusion, then the score thresholds.
func (t Thresholds) Classify(candidate Candidate, best *Scored, facts Facts) Outcome {
	switch {
	case facts.Linked:
		return OutcomeDuplicate
	case facts.Excluded:
		return OutcomeSkipped
	case candidate.Empty() || best == nil || best.Score <= 0:
		return OutcomeUnmatched
	case best.Score >= t.AutoLink:
		return OutcomeAutoLinkable
	case best.Score >= t.ReviewFloor:
		return OutcomeReviewQueue
	default:
		return OutcomeUnmatched
	}
}

// Evaluate runs parse, score, and classify for one item. Duplicate and
// skipped items are not scored.
func (t Thresholds) Evaluate(item ExternalItem, idx *CatalogIndex, facts Facts) MatchResult {
	result := MatchResult{
		Item:      item,
		Candidate: ParseLabel(item.RawLabel),
	}
	if !facts.Linked && !facts.Excluded {
		result.Best, result.RunnerUp = idx.Best(result.Candidate)
	}
	result.Outcome = t.Classify(result.Candidate, result.Best, facts)
	return result
}
