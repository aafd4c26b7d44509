package matching

// CatalogIndex is an immutable snapshot of catalog entries with their
// comparison forms precomputed. Entry order is the tie-break order for
// scoring, so callers load entries in id order.
type CatalogIndex struct {
	entries []indexedEntry
	byID    map[int64]int
}

type indexedEntry struct {
	entry  CatalogEntry
	title  string
	artist string
}

// NewCatalogIndex snapshots entries in the order given.
func NewCatalogIndex(entries []CatalogEntry) *CatalogIndex {
	idx := &CatalogIndex{
		entries: make([]indexedEntry, 0, len(entries)),
		byID:    make(map[int64]int, len(entries)),
	}
	for _, entry := range entries {
		if _, dup := idx.byID[entry.ID]; dup {
			continue
		}
		idx.byID[entry.ID] = len(idx.entries)
		idx.entries = append(idx.entries, indexedEntry{
			entry:  entry,
			title:  Normalize(entry.Title),
			artist: Normalize(entry.Artist),
		})
	}
	return idx
}

// Len returns the number of entries in the snapshot.
func (c *CatalogIndex) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Lookup returns the entry with id if present.
func (c *CatalogIndex) Lookup(id int64) (CatalogEntry, bool) {
	if c == nil {
		return CatalogEntry{}, false
	}
	pos, ok := c.byID[id]
	if !ok {
		return CatalogEntry{}, false
	}
	return c.entries[pos].entry, true
}

// Entries returns a copy of the snapshot in index order.
func (c *CatalogIndex) Entries() []CatalogEntry {
	if c == nil {
		return nil
	}
	out := make([]CatalogEntry, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.entry
	}
	return out
}
