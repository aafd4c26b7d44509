package reconcile

import (
	"fmt"
	"strings"

	"cadence/internal/services"
)

// Action selects what a commit writes. The concrete types are AcceptSelected,
// AcceptHighScores, Skip, and DefaultSync.
type Action interface {
	// Name returns the wire discriminator for the action.
	Name() string
	isAction()
}

// AcceptSelected links each external id to the catalog entry named in
// Overrides, bypassing scoring.
type AcceptSelected struct {
	Overrides map[string]int64
}

// AcceptHighScores links every item whose best score reaches the auto-link
// threshold.
type AcceptHighScores struct{}

// Skip acknowledges items the caller chose to ignore. Nothing is persisted.
type Skip struct {
	IDs []string
}

// DefaultSync links auto-linkable items and creates catalog songs for items
// that parsed into a candidate but matched nothing.
type DefaultSync struct{}

func (AcceptSelected) Name() string   { return "accept-selected" }
func (AcceptHighScores) Name() string { return "accept-high-scores" }
func (Skip) Name() string             { return "skip" }
func (DefaultSync) Name() string      { return "default" }

func (AcceptSelected) isAction()   {}
func (AcceptHighScores) isAction() {}
func (Skip) isAction()             {}
func (DefaultSync) isAction()      {}

// ParseAction builds an Action from its wire discriminator and the optional
// per-action fields. An empty type selects DefaultSync.
func ParseAction(kind string, overrides map[string]int64, ids []string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "default", "sync":
		return DefaultSync{}, nil
	case "accept-selected", "accept_selected":
		if len(overrides) == 0 {
			return nil, services.Wrap(services.ErrValidation, "reconcile", "parse action", "accept-selected requires overrides", nil)
		}
		return AcceptSelected{Overrides: overrides}, nil
	case "accept-high-scores", "accept_high_scores":
		return AcceptHighScores{}, nil
	case "skip":
		return Skip{IDs: ids}, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "reconcile", "parse action", fmt.Sprintf("unknown action %q", kind), nil)
	}
}
