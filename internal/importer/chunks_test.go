package importer_test

import (
	"testing"
	"time"

	"cadence/internal/importer"
)

func TestSplitMonths(t *testing.T) {
	from := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	chunks := importer.SplitMonths(from, to)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantStarts := []time.Time{
		from,
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, chunk := range chunks {
		if chunk.Index != i || !chunk.Start.Equal(wantStarts[i]) {
			t.Fatalf("chunk %d = %+v", i, chunk)
		}
		if i > 0 && !chunks[i-1].End.Equal(chunk.Start) {
			t.Fatalf("chunks %d and %d are not contiguous", i-1, i)
		}
	}
	if !chunks[2].End.Equal(to) {
		t.Fatalf("last chunk should end at range end, got %v", chunks[2].End)
	}

	decemberToJanuary := importer.SplitMonths(time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	if len(decemberToJanuary) != 2 || decemberToJanuary[1].Start.Year() != 2026 {
		t.Fatalf("unexpected year rollover chunks: %+v", decemberToJanuary)
	}
	if got := importer.SplitMonths(to, from); got != nil {
		t.Fatalf("expected nil for inverted range, got %+v", got)
	}
}
