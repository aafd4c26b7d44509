package matching

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	titleWeight  = 0.7
	artistWeight = 0.3
	maxScore     = 100
)

// Similarity compares a normalized candidate string against a normalized
// reference. The edit distance is measured relative to the reference length,
// so for a fixed reference a strictly smaller distance never lowers the
// result. Returns a value in [0, 1].
func Similarity(candidate, reference string) float64 {
	if candidate == reference {
		return 1
	}
	refLen := utf8.RuneCountInString(reference)
	if refLen == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(candidate, reference)
	sim := 1 - float64(dist)/float64(refLen)
	if sim < 0 {
		return 0
	}
	return sim
}

// ScoreEntry computes the 0-100 confidence that c refers to entry. Title
// similarity carries more weight than artist similarity; a candidate without
// an artist is scored on title alone.
func ScoreEntry(c Candidate, entry CatalogEntry) int {
	return scoreNormalized(Normalize(c.Title), Normalize(c.Artist), c.HasArtist(), Normalize(entry.Title), Normalize(entry.Artist))
}

func scoreNormalized(title, artist string, hasArtist bool, entryTitle, entryArtist string) int {
	if title == "" {
		return 0
	}
	titleSim := Similarity(title, entryTitle)
	var raw float64
	if hasArtist {
		raw = titleWeight*titleSim + artistWeight*Similarity(artist, entryArtist)
	} else {
		raw = titleSim
	}
	score := int(math.Round(raw * maxScore))
	if score > maxScore {
		return maxScore
	}
	if score < 0 {
		return 0
	}
	return score
}

// Rank scores c against every entry and returns the results ordered by score
// descending. Equal scores keep index order.
func (c *CatalogIndex) Rank(cand Candidate) []Scored {
	if c == nil || cand.Empty() {
		return nil
	}
	title := Normalize(cand.Title)
	artist := Normalize(cand.Artist)
	hasArtist := cand.HasArtist()

	ranked := make([]Scored, 0, len(c.entries))
	for _, e := range c.entries {
		ranked = append(ranked, Scored{
			Entry: e.entry,
			Score: scoreNormalized(title, artist, hasArtist, e.title, e.artist),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Best returns the top two scored entries. Entries scoring zero are dropped.
func (c *CatalogIndex) Best(cand Candidate) (best, runnerUp *Scored) {
	ranked := c.Rank(cand)
	if len(ranked) > 0 && ranked[0].Score > 0 {
		top := ranked[0]
		best = &top
	}
	if len(ranked) > 1 && ranked[1].Score > 0 {
		second := ranked[1]
		runnerUp = &second
	}
	return best, runnerUp
}
