package importer

import "time"

// Chunk is one half-open window [Start, End) of an import range.
type Chunk struct {
	Index int
	Start time.Time
	End   time.Time
}

// SplitMonths splits [from, to) at calendar-month boundaries in from's
// location. Chunks are returned in chronological order.
func SplitMonths(from, to time.Time) []Chunk {
	if !from.Before(to) {
		return nil
	}
	var chunks []Chunk
	start := from
	for start.Before(to) {
		next := time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, start.Location())
		end := next
		if to.Before(end) {
			end = to
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: end})
		start = end
	}
	return chunks
}
