package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/services"
	"cadence/internal/store"
)

// Store is the persistence surface the executor needs. *store.Store
// satisfies it.
type Store interface {
	LinkFinder
	ListSongs(ctx context.Context) ([]store.Song, error)
	CreateLink(ctx context.Context, link store.Link) (*store.Link, error)
	CreateSongWithLink(ctx context.Context, title, artist string, link store.Link) (*store.Song, *store.Link, error)
}

// Executor runs dry runs and commits against the song catalog.
type Executor struct {
	store      Store
	guard      *Guard
	thresholds matching.Thresholds
	logger     *slog.Logger
}

// NewExecutor constructs an executor. Zero thresholds select the defaults.
func NewExecutor(st Store, thresholds matching.Thresholds, logger *slog.Logger) *Executor {
	if thresholds == (matching.Thresholds{}) {
		thresholds = matching.DefaultThresholds()
	}
	return &Executor{
		store:      st,
		guard:      NewGuard(st),
		thresholds: thresholds,
		logger:     logging.NewComponentLogger(logger, "reconcile"),
	}
}

// Thresholds returns the classification thresholds in effect.
func (e *Executor) Thresholds() matching.Thresholds {
	return e.thresholds
}

func (e *Executor) loadCatalog(ctx context.Context) (*matching.CatalogIndex, error) {
	songs, err := e.store.ListSongs(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "reconcile", "load catalog", "list songs", err)
	}
	entries := make([]matching.CatalogEntry, 0, len(songs))
	for _, song := range songs {
		entries = append(entries, song.CatalogEntry())
	}
	return matching.NewCatalogIndex(entries), nil
}

// classify produces one MatchResult per item using a single catalog snapshot
// and a single read of the link table. An item that would link to a catalog
// entry already linked for its source, or claimed by an earlier item of the
// batch, is held for review instead. Unmatched items sharing a new-song key
// with an earlier item are held the same way.
func (e *Executor) classify(ctx context.Context, items []matching.ExternalItem, exclude map[string]bool) (*matching.CatalogIndex, []matching.MatchResult, error) {
	idx, err := e.loadCatalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	linked, err := e.guard.LinkedSet(ctx, items)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "reconcile", "dedup check", "read links", err)
	}
	claims := newBatchClaims()
	results := make([]matching.MatchResult, 0, len(items))
	for _, item := range items {
		facts := matching.Facts{
			Linked:   linked[item.SourceType][item.ExternalID],
			Excluded: exclude[item.ExternalID],
		}
		result := e.thresholds.Evaluate(item, idx, facts)
		if err := e.holdContested(ctx, &result, claims); err != nil {
			return nil, nil, services.Wrap(services.ErrTransient, "reconcile", "dedup check", "read entity links", err)
		}
		results = append(results, result)
	}
	return idx, results, nil
}

func (e *Executor) holdContested(ctx context.Context, result *matching.MatchResult, claims *batchClaims) error {
	item := result.Item
	switch result.Outcome {
	case matching.OutcomeAutoLinkable:
		existing, err := e.guard.EntityLink(ctx, item.SourceType, result.Best.Entry.ID)
		if err != nil {
			return err
		}
		switch {
		case existing != nil:
			result.HoldForReview(matching.ReasonEntityLinked)
		case !claims.claimEntity(item.SourceType, result.Best.Entry.ID, item.ExternalID):
			result.HoldForReview(matching.ReasonClaimedInBatch)
		}
	case matching.OutcomeUnmatched:
		if result.Candidate.Empty() {
			return nil
		}
		if !claims.claimNewSong(item.SourceType, result.Candidate.NormalizedKey, item.ExternalID) {
			result.HoldForReview(matching.ReasonClaimedInBatch)
		}
	}
	if result.Reason != "" {
		e.logger.Debug("held item for review",
			logging.Decision("reconcile_hold", string(matching.OutcomeReviewQueue), result.Reason,
				logging.ExternalID(item.ExternalID))...,
		)
	}
	return nil
}

// DryRun classifies items and reports the outcome without writing anything.
// Items whose external id is in exclude are reported as skipped.
func (e *Executor) DryRun(ctx context.Context, items []matching.ExternalItem, exclude []string) (*Report, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	_, results, err := e.classify(ctx, items, toSet(exclude))
	if err != nil {
		return nil, err
	}
	report := &Report{Results: make([]matching.MatchResult, 0, len(results))}
	for _, result := range results {
		report.add(result)
	}
	e.logger.Info("dry run classified items",
		logging.Decision("reconcile_preview", "", "",
			logging.Int("total", report.Total),
			logging.Int("matched", report.Matched),
			logging.Int("review_queue", report.ReviewQueue),
			logging.Int("unmatched", report.Unmatched),
			logging.Int("duplicates", report.Duplicates),
		)...,
	)
	return report, nil
}

// Commit classifies items and writes what action selects. Validation problems
// fail the whole call before any write; individual write failures are
// recorded in the report and the batch continues.
func (e *Executor) Commit(ctx context.Context, items []matching.ExternalItem, action Action) (*CommitReport, error) {
	if action == nil {
		action = DefaultSync{}
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	var exclude map[string]bool
	if skip, ok := action.(Skip); ok {
		exclude = toSet(skip.IDs)
	}
	idx, results, err := e.classify(ctx, items, exclude)
	if err != nil {
		return nil, err
	}
	if selected, ok := action.(AcceptSelected); ok {
		if err := validateOverrides(selected.Overrides, items, idx); err != nil {
			return nil, err
		}
	}

	report := &CommitReport{Action: action.Name()}
	report.Results = make([]matching.MatchResult, 0, len(results))
	created := make(map[string]matching.CatalogEntry)
	for _, result := range results {
		if err := ctx.Err(); err != nil {
			report.fail(result.Item.ExternalID, err)
		} else {
			e.commitOne(ctx, action, idx, &result, created, report)
		}
		report.add(result)
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldDecisionType, "reconcile_commit"),
		logging.String("action", report.Action),
		logging.Int("total", report.Total),
		logging.Int("inserted", report.Inserted),
		logging.Int("created", report.Created),
		logging.Int("duplicates", report.Duplicates),
		logging.Int("errors", len(report.Errors)),
	}
	if len(report.Errors) > 0 {
		logging.WarnWithContext(e.logger, "commit finished with item errors", "reconcile_commit_partial",
			append(attrs,
				logging.String(logging.FieldErrorHint, "inspect the per-item errors in the commit report"),
				logging.String(logging.FieldImpact, "failed items remain unlinked"),
			)...)
	} else {
		e.logger.Info("commit finished", logging.Args(attrs...)...)
	}
	return report, nil
}

// commitOne dispatches a single classified item to the write the action
// calls for. The result's outcome is updated when the write finds the item
// linked already, or its catalog entry taken, after classification ran.
// created maps new-song keys to the songs this batch created.
func (e *Executor) commitOne(ctx context.Context, action Action, idx *matching.CatalogIndex, result *matching.MatchResult, created map[string]matching.CatalogEntry, report *CommitReport) {
	switch a := action.(type) {
	case AcceptSelected:
		entryID, ok := a.Overrides[result.Item.ExternalID]
		if !ok || result.Outcome == matching.OutcomeDuplicate {
			return
		}
		entry, _ := idx.Lookup(entryID)
		e.link(ctx, result, entry, report)
	case AcceptHighScores:
		if result.Outcome == matching.OutcomeAutoLinkable {
			e.link(ctx, result, result.Best.Entry, report)
		}
	case Skip:
	case DefaultSync:
		switch result.Outcome {
		case matching.OutcomeAutoLinkable:
			e.link(ctx, result, result.Best.Entry, report)
		case matching.OutcomeUnmatched:
			if result.Candidate.Empty() {
				return
			}
			// Another source in this batch already created the song.
			if entry, ok := created[result.Candidate.NormalizedKey]; ok {
				e.link(ctx, result, entry, report)
				return
			}
			if song := e.create(ctx, result, report); song != nil {
				created[result.Candidate.NormalizedKey] = song.CatalogEntry()
			}
		}
	}
}

// link writes a link from the item to entry after re-checking both sides of
// the Dedup Guard.
func (e *Executor) link(ctx context.Context, result *matching.MatchResult, entry matching.CatalogEntry, report *CommitReport) {
	item := result.Item
	if linked, failed := e.alreadyLinked(ctx, item, report); failed {
		return
	} else if linked {
		result.Outcome = matching.OutcomeDuplicate
		return
	}
	taken, err := e.guard.EntityLink(ctx, item.SourceType, entry.ID)
	if err != nil {
		e.writeFailed(item, fmt.Errorf("dedup check: %w", err), report)
		return
	}
	if taken != nil {
		result.HoldForReview(matching.ReasonEntityLinked)
		return
	}
	_, err = e.store.CreateLink(ctx, store.Link{
		SourceType: item.SourceType,
		ExternalID: item.ExternalID,
		EntityKind: store.EntitySong,
		EntityID:   entry.ID,
	})
	switch {
	case errors.Is(err, store.ErrLinkExists):
		result.Outcome = matching.OutcomeDuplicate
	case errors.Is(err, store.ErrEntityLinked):
		result.HoldForReview(matching.ReasonEntityLinked)
	case err != nil:
		e.writeFailed(item, err, report)
	default:
		report.Inserted++
		e.logger.Debug("linked external item",
			logging.ExternalID(item.ExternalID),
			logging.SongID(entry.ID),
		)
	}
}

// create adds a new catalog song for an unmatched candidate and links it.
// It returns the song when one was written.
func (e *Executor) create(ctx context.Context, result *matching.MatchResult, report *CommitReport) *store.Song {
	item, cand := result.Item, result.Candidate
	if linked, failed := e.alreadyLinked(ctx, item, report); failed {
		return nil
	} else if linked {
		result.Outcome = matching.OutcomeDuplicate
		return nil
	}
	song, _, err := e.store.CreateSongWithLink(ctx, cand.Title, cand.Artist, store.Link{
		SourceType: item.SourceType,
		ExternalID: item.ExternalID,
	})
	if errors.Is(err, store.ErrLinkExists) {
		result.Outcome = matching.OutcomeDuplicate
		return nil
	}
	if err != nil {
		e.writeFailed(item, err, report)
		return nil
	}
	report.Created++
	report.Inserted++
	e.logger.Debug("created song for unmatched item",
		logging.ExternalID(item.ExternalID),
		logging.SongID(song.ID),
	)
	return song
}

func (e *Executor) alreadyLinked(ctx context.Context, item matching.ExternalItem, report *CommitReport) (linked, failed bool) {
	existing, err := e.guard.Existing(ctx, item)
	if err != nil {
		e.writeFailed(item, fmt.Errorf("dedup check: %w", err), report)
		return false, true
	}
	return existing != nil, false
}

func (e *Executor) writeFailed(item matching.ExternalItem, err error, report *CommitReport) {
	report.fail(item.ExternalID, err)
	e.logger.Warn("commit write failed",
		logging.ExternalID(item.ExternalID),
		logging.Error(err),
		logging.String(logging.FieldEventType, "reconcile_write_failed"),
		logging.String(logging.FieldErrorHint, "retry the commit; already linked items are skipped"),
		logging.String(logging.FieldImpact, "item left unlinked"),
	)
}

func validateItems(items []matching.ExternalItem) error {
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.ExternalID == "" {
			return services.Wrap(services.ErrValidation, "reconcile", "validate items", fmt.Sprintf("item %d has no external id", i), nil)
		}
		if !item.SourceType.Valid() {
			return services.Wrap(services.ErrValidation, "reconcile", "validate items", fmt.Sprintf("item %s has unknown source type %q", item.ExternalID, item.SourceType), nil)
		}
		key := string(item.SourceType) + "\x00" + item.ExternalID
		if _, dup := seen[key]; dup {
			return services.Wrap(services.ErrValidation, "reconcile", "validate items", fmt.Sprintf("item %s listed twice", item.ExternalID), nil)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func validateOverrides(overrides map[string]int64, items []matching.ExternalItem, idx *matching.CatalogIndex) error {
	present := make(map[string]bool, len(items))
	for _, item := range items {
		present[item.ExternalID] = true
	}
	for externalID, entryID := range overrides {
		if !present[externalID] {
			return services.Wrap(services.ErrValidation, "reconcile", "validate overrides", fmt.Sprintf("override target %s is not in the batch", externalID), nil)
		}
		if _, ok := idx.Lookup(entryID); !ok {
			return services.Wrap(services.ErrValidation, "reconcile", "validate overrides", fmt.Sprintf("override for %s names missing catalog entry %d", externalID, entryID), nil)
		}
	}
	return nil
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
