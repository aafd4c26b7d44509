package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/reconcile"
	"cadence/internal/services"
	"cadence/internal/store"
	"cadence/internal/testsupport"
)

func newExecutor(t *testing.T) (*reconcile.Executor, *store.Store, []store.Song) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	songs := testsupport.SeedSongs(t, st,
		[2]string{"Wonderwall", "Oasis"},
		[2]string{"Yesterday", "The Beatles"},
		[2]string{"Hotel California", "Eagles"},
	)
	return reconcile.NewExecutor(st, matching.DefaultThresholds(), logging.NewNop()), st, songs
}

func fileItem(id, label string) matching.ExternalItem {
	return matching.ExternalItem{ExternalID: id, SourceType: matching.SourceFile, RawLabel: label}
}

// threeItems yields one auto-linkable, one review, and one empty candidate.
func threeItems() []matching.ExternalItem {
	return []matching.ExternalItem{
		fileItem("f-high", "Wonderwall - Oasis.mp3"),
		fileItem("f-mid", "Hotel Cal.mp3"),
		fileItem("f-none", "[HD].mp4"),
	}
}

func TestDryRunCountsPerOutcome(t *testing.T) {
	exec, st, _ := newExecutor(t)
	report, err := exec.DryRun(context.Background(), threeItems(), nil)
	if err != nil {
		t.Fatalf("DryRun failed: %v", err)
	}
	if report.Total != 3 || report.Matched != 1 || report.ReviewQueue != 1 || report.Unmatched != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.Results[0].Outcome != matching.OutcomeAutoLinkable || report.Results[0].BestScore() != 100 {
		t.Fatalf("expected auto-linkable exact match, got %+v", report.Results[0])
	}
	if report.Results[1].Outcome != matching.OutcomeReviewQueue {
		t.Fatalf("expected review queue, got %s (score %d)", report.Results[1].Outcome, report.Results[1].BestScore())
	}
	if report.Results[2].Best != nil {
		t.Fatalf("expected no best match for empty candidate")
	}

	links, err := st.ListLinks(context.Background(), matching.SourceFile)
	if err != nil {
		t.Fatalf("ListLinks failed: %v", err)
	}
	if len(links) != 0 {
		t.Fatalf("dry run wrote %d links", len(links))
	}
}

func TestDryRunExcludedItemsAreSkipped(t *testing.T) {
	exec, _, _ := newExecutor(t)
	report, err := exec.DryRun(context.Background(), threeItems(), []string{"f-high"})
	if err != nil {
		t.Fatalf("DryRun failed: %v", err)
	}
	if report.Skipped != 1 || report.Matched != 0 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.Results[0].Best != nil {
		t.Fatal("skipped item should not be scored")
	}
}

func TestAcceptHighScoresIsIdempotent(t *testing.T) {
	exec, st, songs := newExecutor(t)
	ctx := context.Background()

	first, err := exec.Commit(ctx, threeItems(), reconcile.AcceptHighScores{})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if first.Inserted != 1 || first.Created != 0 || len(first.Errors) != 0 {
		t.Fatalf("unexpected first commit: %+v", first)
	}
	link, err := st.FindLink(ctx, matching.SourceFile, "f-high")
	if err != nil || link == nil || link.EntityID != songs[0].ID {
		t.Fatalf("expected f-high linked to Wonderwall, got %+v %v", link, err)
	}

	second, err := exec.Commit(ctx, threeItems(), reconcile.AcceptHighScores{})
	if err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}
	if second.Inserted != 0 || second.Duplicates != 1 {
		t.Fatalf("expected no inserts and one duplicate, got %+v", second)
	}
	if second.Results[0].Outcome != matching.OutcomeDuplicate {
		t.Fatalf("expected duplicate outcome, got %s", second.Results[0].Outcome)
	}
}

func TestDedupPrecedesScoring(t *testing.T) {
	exec, st, songs := newExecutor(t)
	ctx := context.Background()
	// Linked to the wrong song on purpose: the score would say auto-link.
	if _, err := st.CreateLink(ctx, store.Link{SourceType: matching.SourceFile, ExternalID: "f-high", EntityKind: store.EntitySong, EntityID: songs[1].ID}); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}
	report, err := exec.DryRun(ctx, threeItems(), nil)
	if err != nil {
		t.Fatalf("DryRun failed: %v", err)
	}
	if report.Results[0].Outcome != matching.OutcomeDuplicate || report.Duplicates != 1 {
		t.Fatalf("expected duplicate, got %+v", report.Results[0])
	}
}

func TestAcceptSelectedOverridesScoring(t *testing.T) {
	exec, st, songs := newExecutor(t)
	ctx := context.Background()
	action, err := reconcile.ParseAction("accept-selected", map[string]int64{"f-mid": songs[1].ID}, nil)
	if err != nil {
		t.Fatalf("ParseAction failed: %v", err)
	}

	for run := 0; run < 2; run++ {
		report, err := exec.Commit(ctx, threeItems(), action)
		if err != nil {
			t.Fatalf("Commit run %d failed: %v", run, err)
		}
		want := 1
		if run == 1 {
			want = 0
		}
		if report.Inserted != want {
			t.Fatalf("run %d inserted %d, want %d", run, report.Inserted, want)
		}
	}
	link, err := st.FindLink(ctx, matching.SourceFile, "f-mid")
	if err != nil || link == nil || link.EntityID != songs[1].ID {
		t.Fatalf("expected override link to Yesterday, got %+v %v", link, err)
	}
	other, _ := st.FindLink(ctx, matching.SourceFile, "f-high")
	if other != nil {
		t.Fatal("accept-selected must not link items outside the overrides")
	}
}

func TestAcceptSelectedValidation(t *testing.T) {
	exec, st, songs := newExecutor(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		overrides map[string]int64
	}{
		{"missing catalog entry", map[string]int64{"f-mid": 9999}},
		{"unknown external id", map[string]int64{"f-nope": songs[0].ID}},
	}
	for _, tc := range cases {
		_, err := exec.Commit(ctx, threeItems(), reconcile.AcceptSelected{Overrides: tc.overrides})
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
	if _, err := reconcile.ParseAction("accept-selected", nil, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty overrides, got %v", err)
	}
	links, _ := st.ListLinks(ctx, matching.SourceFile)
	if len(links) != 0 {
		t.Fatalf("validation failure must not write, found %d links", len(links))
	}
}

func TestAcceptSelectedHoldsSecondItemForSameSong(t *testing.T) {
	exec, st, songs := newExecutor(t)
	ctx := context.Background()
	items := []matching.ExternalItem{
		fileItem("f-a", "Wonderwall - Oasis.mp3"),
		fileItem("f-b", "Wonderwall (demo).mp3"),
	}
	report, err := exec.Commit(ctx, items, reconcile.AcceptSelected{Overrides: map[string]int64{
		"f-a": songs[0].ID,
		"f-b": songs[0].ID,
	}})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if report.Inserted != 1 || len(report.Errors) != 0 {
		t.Fatalf("expected one insert and no item errors, got %+v", report)
	}
	held := report.Results[1]
	if held.Outcome != matching.OutcomeReviewQueue || held.Reason != matching.ReasonEntityLinked {
		t.Fatalf("expected f-b held for review, got %s (%q)", held.Outcome, held.Reason)
	}
	if link, _ := st.FindLink(ctx, matching.SourceFile, "f-b"); link != nil {
		t.Fatalf("f-b must stay unlinked, got %+v", link)
	}
}

func TestTwoFilesForSameSongLinkOnce(t *testing.T) {
	exec, st, songs := newExecutor(t)
	ctx := context.Background()
	items := []matching.ExternalItem{
		fileItem("f-mp3", "Wonderwall - Oasis.mp3"),
		fileItem("f-pdf", "Wonderwall - Oasis.pdf"),
	}

	preview, err := exec.DryRun(ctx, items, nil)
	if err != nil {
		t.Fatalf("DryRun failed: %v", err)
	}
	if preview.Matched != 1 || preview.ReviewQueue != 1 {
		t.Fatalf("expected one match and one review, got %+v", preview)
	}
	if got := preview.Results[1].Reason; got != matching.ReasonClaimedInBatch {
		t.Fatalf("expected f-pdf held as claimed in batch, got %q", got)
	}

	first, err := exec.Commit(ctx, items, reconcile.DefaultSync{})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if first.Inserted != 1 || first.ReviewQueue != 1 || len(first.Errors) != 0 {
		t.Fatalf("commit disagreed with preview: %+v", first)
	}
	link, err := st.FindLinkByEntity(ctx, matching.SourceFile, store.EntitySong, songs[0].ID)
	if err != nil || link == nil || link.ExternalID != "f-mp3" {
		t.Fatalf("expected Wonderwall linked to f-mp3, got %+v %v", link, err)
	}

	second, err := exec.Commit(ctx, items, reconcile.DefaultSync{})
	if err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}
	if second.Inserted != 0 || len(second.Errors) != 0 {
		t.Fatalf("expected a clean rerun, got %+v", second)
	}
	if second.Results[0].Outcome != matching.OutcomeDuplicate {
		t.Fatalf("expected f-mp3 duplicate, got %s", second.Results[0].Outcome)
	}
	if r := second.Results[1]; r.Outcome != matching.OutcomeReviewQueue || r.Reason != matching.ReasonEntityLinked {
		t.Fatalf("expected f-pdf held as entity linked, got %s (%q)", r.Outcome, r.Reason)
	}
}

func TestDryRunHoldsItemWhenSongLinkedElsewhere(t *testing.T) {
	exec, st, songs := newExecutor(t)
	ctx := context.Background()
	if _, err := st.CreateLink(ctx, store.Link{SourceType: matching.SourceFile, ExternalID: "f-old", EntityKind: store.EntitySong, EntityID: songs[0].ID}); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}
	report, err := exec.DryRun(ctx, []matching.ExternalItem{fileItem("f-new", "Wonderwall - Oasis.mp3")}, nil)
	if err != nil {
		t.Fatalf("DryRun failed: %v", err)
	}
	if report.Matched != 0 || report.ReviewQueue != 1 || report.Results[0].Reason != matching.ReasonEntityLinked {
		t.Fatalf("expected item held for review, got %+v", report)
	}
	if report.Results[0].Best == nil || report.Results[0].Best.Entry.ID != songs[0].ID {
		t.Fatal("held item should keep its best match for manual review")
	}

	// Another source may still link the same song.
	calendar := matching.ExternalItem{ExternalID: "evt-1", SourceType: matching.SourceCalendarEvent, RawLabel: "Wonderwall - Oasis"}
	report, err = exec.DryRun(ctx, []matching.ExternalItem{calendar}, nil)
	if err != nil {
		t.Fatalf("DryRun failed: %v", err)
	}
	if report.Matched != 1 {
		t.Fatalf("expected calendar item auto-linkable, got %+v", report.Results[0])
	}
}

// racyStore hides existing entity links from the guard, as if another writer
// linked the song between the check and the insert.
type racyStore struct {
	*store.Store
}

func (racyStore) FindLinkByEntity(context.Context, matching.SourceType, store.EntityKind, int64) (*store.Link, error) {
	return nil, nil
}

func TestEntityConstraintAtWriteIsHeldNotFailed(t *testing.T) {
	_, st, songs := newExecutor(t)
	exec := reconcile.NewExecutor(racyStore{st}, matching.DefaultThresholds(), logging.NewNop())
	ctx := context.Background()
	if _, err := st.CreateLink(ctx, store.Link{SourceType: matching.SourceFile, ExternalID: "f-old", EntityKind: store.EntitySong, EntityID: songs[0].ID}); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}
	report, err := exec.Commit(ctx, []matching.ExternalItem{fileItem("f-new", "Wonderwall - Oasis.mp3")}, reconcile.AcceptHighScores{})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if report.Inserted != 0 || len(report.Errors) != 0 {
		t.Fatalf("expected no insert and no error, got %+v", report)
	}
	if r := report.Results[0]; r.Outcome != matching.OutcomeReviewQueue || r.Reason != matching.ReasonEntityLinked {
		t.Fatalf("expected item held for review, got %s (%q)", r.Outcome, r.Reason)
	}
}

func TestDefaultSyncCreatesOneSongPerKey(t *testing.T) {
	exec, st, _ := newExecutor(t)
	ctx := context.Background()
	items := []matching.ExternalItem{
		fileItem("f-mp3", "Blackbird Fingerstyle Study - Smith.mp3"),
		fileItem("f-pdf", "Blackbird Fingerstyle Study - Smith.pdf"),
	}
	report, err := exec.Commit(ctx, items, reconcile.DefaultSync{})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if report.Created != 1 || report.Inserted != 1 || len(report.Errors) != 0 {
		t.Fatalf("expected one created song, got %+v", report)
	}
	if r := report.Results[1]; r.Outcome != matching.OutcomeReviewQueue || r.Reason != matching.ReasonClaimedInBatch {
		t.Fatalf("expected f-pdf held for review, got %s (%q)", r.Outcome, r.Reason)
	}
	songs, err := st.ListSongs(ctx)
	if err != nil {
		t.Fatalf("ListSongs failed: %v", err)
	}
	count := 0
	for _, song := range songs {
		if song.Title == "Blackbird Fingerstyle Study" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one Blackbird song, found %d", count)
	}

	again, err := exec.Commit(ctx, items, reconcile.DefaultSync{})
	if err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}
	if again.Created != 0 || again.Inserted != 0 || len(again.Errors) != 0 {
		t.Fatalf("expected a clean rerun, got %+v", again)
	}
}

func TestDefaultSyncReusesSongCreatedForAnotherSource(t *testing.T) {
	exec, st, _ := newExecutor(t)
	ctx := context.Background()
	items := []matching.ExternalItem{
		fileItem("f-new", "Zzyzx Qqq - Xkcd.mp3"),
		{ExternalID: "evt-new", SourceType: matching.SourceCalendarEvent, RawLabel: "Zzyzx Qqq - Xkcd"},
	}
	report, err := exec.Commit(ctx, items, reconcile.DefaultSync{})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if report.Created != 1 || report.Inserted != 2 || len(report.Errors) != 0 {
		t.Fatalf("expected one song linked from both sources, got %+v", report)
	}
	fileLink, _ := st.FindLink(ctx, matching.SourceFile, "f-new")
	calLink, _ := st.FindLink(ctx, matching.SourceCalendarEvent, "evt-new")
	if fileLink == nil || calLink == nil || fileLink.EntityID != calLink.EntityID {
		t.Fatalf("expected both links on the same song, got %+v %+v", fileLink, calLink)
	}
}

func TestDefaultSyncCreatesSongsForUnmatched(t *testing.T) {
	exec, st, _ := newExecutor(t)
	ctx := context.Background()
	items := []matching.ExternalItem{
		fileItem("f-high", "Wonderwall - Oasis.mp3"),
		fileItem("f-new", "Zzyzx Qqq - Xkcd.mp3"),
		fileItem("f-none", "[HD].mp4"),
	}
	report, err := exec.Commit(ctx, items, nil)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if report.Action != "default" || report.Inserted != 2 || report.Created != 1 {
		t.Fatalf("unexpected default commit: %+v", report)
	}
	songs, err := st.ListSongs(ctx)
	if err != nil {
		t.Fatalf("ListSongs failed: %v", err)
	}
	last := songs[len(songs)-1]
	if last.Title != "Zzyzx Qqq" || last.Artist != "Xkcd" {
		t.Fatalf("unexpected created song %+v", last)
	}

	again, err := exec.Commit(ctx, items, reconcile.DefaultSync{})
	if err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}
	if again.Inserted != 0 || again.Created != 0 || again.Duplicates != 2 {
		t.Fatalf("expected idempotent rerun, got %+v", again)
	}
}

func TestSkipWritesNothing(t *testing.T) {
	exec, st, _ := newExecutor(t)
	ctx := context.Background()
	action, err := reconcile.ParseAction("skip", nil, []string{"f-high", "f-mid"})
	if err != nil {
		t.Fatalf("ParseAction failed: %v", err)
	}
	report, err := exec.Commit(ctx, threeItems(), action)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if report.Skipped != 2 || report.Inserted != 0 {
		t.Fatalf("unexpected skip report: %+v", report)
	}
	links, _ := st.ListLinks(ctx, matching.SourceFile)
	if len(links) != 0 {
		t.Fatalf("skip wrote %d links", len(links))
	}
}

func TestInvalidItemsRejected(t *testing.T) {
	exec, _, _ := newExecutor(t)
	items := []matching.ExternalItem{fileItem("dup", "a"), fileItem("dup", "b")}
	if _, err := exec.DryRun(context.Background(), items, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for duplicate ids, got %v", err)
	}
	if _, err := reconcile.ParseAction("merge", nil, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown action, got %v", err)
	}
}
