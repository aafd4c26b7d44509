package matching_test

import (
	"testing"

	"cadence/internal/matching"
)

func wonderwallCatalog() *matching.CatalogIndex {
	return matching.NewCatalogIndex([]matching.CatalogEntry{
		{ID: 1, Title: "Wonderwall", Artist: "Oasis"},
		{ID: 2, Title: "Wonderwall Acoustic", Artist: "Oasis"},
		{ID: 3, Title: "Hotel California", Artist: "Eagles"},
	})
}

func TestBestAndRunnerUp(t *testing.T) {
	idx := wonderwallCatalog()
	cand := matching.ParseLabel("Wonderwall - Oasis (live).mp4")

	best, runnerUp := idx.Best(cand)
	if best == nil || runnerUp == nil {
		t.Fatalf("expected best and runner-up, got %v %v", best, runnerUp)
	}
	if best.Entry.ID != 1 || best.Score != 100 {
		t.Fatalf("unexpected best match: %+v", best)
	}
	if runnerUp.Entry.ID != 2 {
		t.Fatalf("unexpected runner-up: %+v", runnerUp)
	}
	if runnerUp.Score >= best.Score {
		t.Fatalf("expected runner-up strictly lower, got %d vs %d", runnerUp.Score, best.Score)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	idx := wonderwallCatalog()
	cand := matching.ParseLabel("Wonderwal - Oassis")
	b1, r1 := idx.Best(cand)
	b2, r2 := idx.Best(cand)
	if b1.Entry.ID != b2.Entry.ID || b1.Score != b2.Score || r1.Entry.ID != r2.Entry.ID || r1.Score != r2.Score {
		t.Fatalf("scoring not deterministic: %+v/%+v vs %+v/%+v", b1, r1, b2, r2)
	}
}

func TestScoreIsMonotonicInEditDistance(t *testing.T) {
	entry := matching.CatalogEntry{ID: 1, Title: "Wonderwall", Artist: "Oasis"}
	variants := []string{"Wonderwall", "Wonderwal", "Wonderw", "Wonder", "Won", "W"}
	prev := 101
	for _, title := range variants {
		score := matching.ScoreEntry(matching.Candidate{Title: title, Artist: "Oasis"}, entry)
		if score > prev {
			t.Fatalf("score for %q (%d) exceeded closer variant (%d)", title, score, prev)
		}
		prev = score
	}

	artists := []string{"Oasis", "Oasi", "Oa", "Blur"}
	prev = 101
	for _, artist := range artists {
		score := matching.ScoreEntry(matching.Candidate{Title: "Wonderwall", Artist: artist}, entry)
		if score > prev {
			t.Fatalf("score for artist %q (%d) exceeded closer variant (%d)", artist, score, prev)
		}
		prev = score
	}
}

func TestTitleOutweighsArtist(t *testing.T) {
	right := matching.CatalogEntry{ID: 1, Title: "Yesterday", Artist: "The Beatles"}
	exactTitle := matching.ScoreEntry(matching.Candidate{Title: "Yesterday", Artist: "Oasis"}, right)
	exactArtist := matching.ScoreEntry(matching.Candidate{Title: "Wonderwall", Artist: "The Beatles"}, right)
	if exactTitle <= exactArtist {
		t.Fatalf("expected exact title (%d) to outrank exact artist (%d)", exactTitle, exactArtist)
	}
}

func TestExactMatchIgnoresCaseAndWhitespace(t *testing.T) {
	entry := matching.CatalogEntry{ID: 1, Title: "Hotel California", Artist: "Eagles"}
	score := matching.ScoreEntry(matching.Candidate{Title: "  hotel   CALIFORNIA", Artist: "eagles "}, entry)
	if score != 100 {
		t.Fatalf("expected 100, got %d", score)
	}
}

func TestScoreBounds(t *testing.T) {
	entry := matching.CatalogEntry{ID: 1, Title: "A", Artist: "B"}
	score := matching.ScoreEntry(matching.Candidate{Title: "a very long unrelated title", Artist: "someone else entirely"}, entry)
	if score < 0 || score > 100 {
		t.Fatalf("score out of range: %d", score)
	}
	if got := matching.ScoreEntry(matching.Candidate{}, entry); got != 0 {
		t.Fatalf("expected empty candidate to score 0, got %d", got)
	}
}

func TestTiesKeepIndexOrder(t *testing.T) {
	idx := matching.NewCatalogIndex([]matching.CatalogEntry{
		{ID: 7, Title: "Blackbird", Artist: "The Beatles"},
		{ID: 4, Title: "Blackbird", Artist: "The Beatles"},
	})
	best, runnerUp := idx.Best(matching.Candidate{Title: "Blackbird", Artist: "The Beatles"})
	if best.Entry.ID != 7 || runnerUp.Entry.ID != 4 {
		t.Fatalf("expected index order tie-break, got %d then %d", best.Entry.ID, runnerUp.Entry.ID)
	}
}

func TestCatalogLookup(t *testing.T) {
	idx := wonderwallCatalog()
	if idx.Len() != 3 {
		t.Fatalf("unexpected len %d", idx.Len())
	}
	if entry, ok := idx.Lookup(3); !ok || entry.Title != "Hotel California" {
		t.Fatalf("unexpected lookup result %+v %v", entry, ok)
	}
	if _, ok := idx.Lookup(99); ok {
		t.Fatal("expected missing id")
	}
}
