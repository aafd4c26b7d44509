package matching_test

import (
	"testing"

	"cadence/internal/matching"
)

func TestParseLabel(t *testing.T) {
	cases := []struct {
		raw    string
		title  string
		artist string
	}{
		{"Wonderwall - Oasis (live).mp4", "Wonderwall", "Oasis"},
		{"Hotel_California_by_Eagles [HD].mp3", "Hotel California", "Eagles"},
		{"Blackbird - The Beatles - HQ Audio.mp3", "Blackbird", "The Beatles"},
		{"Stairway To Heaven – Led Zeppelin (Official Video) 1080p.mkv", "Stairway To Heaven", "Led Zeppelin"},
		{"Yesterday.pdf", "Yesterday", ""},
		{"Mr. Brightside", "Mr. Brightside", ""},
		{"tabs/Smoke On The Water - Deep Purple.gp5", "Smoke On The Water", "Deep Purple"},
		{"- Oasis", "Oasis", ""},
		{"[HD].mp4", "", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		got := matching.ParseLabel(tc.raw)
		if got.Title != tc.title || got.Artist != tc.artist {
			t.Fatalf("ParseLabel(%q) = {%q, %q}, want {%q, %q}", tc.raw, got.Title, got.Artist, tc.title, tc.artist)
		}
	}
}

func TestParseLabelKeepsByInsideTitles(t *testing.T) {
	cases := []struct {
		raw    string
		title  string
		artist string
	}{
		{"Stand by Me.mp3", "Stand by Me", ""},
		{"Stand by Me by Ben E King.mp3", "Stand by Me", "Ben E King"},
		{"Yesterday by The Beatles.pdf", "Yesterday", "The Beatles"},
		{"Songs to Learn by Ear This Year And Next.pdf", "Songs to Learn by Ear This Year And Next", ""},
	}
	for _, tc := range cases {
		got := matching.ParseLabel(tc.raw)
		if got.Title != tc.title || got.Artist != tc.artist {
			t.Fatalf("ParseLabel(%q) = {%q, %q}, want {%q, %q}", tc.raw, got.Title, got.Artist, tc.title, tc.artist)
		}
	}
}

func TestParseLabelNormalizedKey(t *testing.T) {
	got := matching.ParseLabel("Wonderwall - Oasis (live).mp4")
	if got.NormalizedKey != "wonderwall|oasis" {
		t.Fatalf("unexpected key %q", got.NormalizedKey)
	}
	accented := matching.ParseLabel("Café del Mar.mp3")
	if accented.NormalizedKey != "cafe del mar|" {
		t.Fatalf("expected accents folded, got %q", accented.NormalizedKey)
	}
}

func TestParseLabelIsDeterministic(t *testing.T) {
	raw := "Don't Stop Me Now by Queen (Remastered 2011).flac"
	first := matching.ParseLabel(raw)
	for i := 0; i < 5; i++ {
		if next := matching.ParseLabel(raw); next != first {
			t.Fatalf("parse %d differed: %+v vs %+v", i, next, first)
		}
	}
	if first.Title != "Don't Stop Me Now" || first.Artist != "Queen" {
		t.Fatalf("unexpected candidate %+v", first)
	}
}

func TestEmptyCandidate(t *testing.T) {
	if !matching.ParseLabel("   ").Empty() {
		t.Fatal("expected blank label to yield empty candidate")
	}
	if matching.ParseLabel("Yesterday").Empty() {
		t.Fatal("expected non-empty candidate")
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Simon & Garfunkel ": "simon and garfunkel",
		"Beyoncé":              "beyonce",
		"Don’t  Look Back":     "dont look back",
		"AC/DC":                "ac dc",
		"":                     "",
	}
	for in, want := range cases {
		if got := matching.Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
