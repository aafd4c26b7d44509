package reconcile

import (
	"context"

	"cadence/internal/matching"
	"cadence/internal/store"
)

// LinkFinder reads existing links. *store.Store satisfies it.
type LinkFinder interface {
	FindLink(ctx context.Context, source matching.SourceType, externalID string) (*store.Link, error)
	LinkedExternalIDs(ctx context.Context, source matching.SourceType, ids []string) (map[string]bool, error)
	FindLinkByEntity(ctx context.Context, source matching.SourceType, kind store.EntityKind, entityID int64) (*store.Link, error)
}

// Guard answers whether an external item, or the catalog entry it would link
// to, is already linked. It never caches:
// each call re-reads the store, so a resumed or retried commit sees the writes
// of the attempt before it.
type Guard struct {
	links LinkFinder
}

// NewGuard wraps a link finder.
func NewGuard(links LinkFinder) *Guard {
	return &Guard{links: links}
}

// Existing returns the current link for the item, or nil.
func (g *Guard) Existing(ctx context.Context, item matching.ExternalItem) (*store.Link, error) {
	return g.links.FindLink(ctx, item.SourceType, item.ExternalID)
}

// EntityLink returns the link that already points at the song for source, or
// nil. A song is linked to at most one item per source.
func (g *Guard) EntityLink(ctx context.Context, source matching.SourceType, songID int64) (*store.Link, error) {
	return g.links.FindLinkByEntity(ctx, source, store.EntitySong, songID)
}

// LinkedSet returns which of items are linked, grouped by source type.
func (g *Guard) LinkedSet(ctx context.Context, items []matching.ExternalItem) (map[matching.SourceType]map[string]bool, error) {
	ids := make(map[matching.SourceType][]string)
	for _, item := range items {
		ids[item.SourceType] = append(ids[item.SourceType], item.ExternalID)
	}
	linked := make(map[matching.SourceType]map[string]bool, len(ids))
	for source, batch := range ids {
		set, err := g.links.LinkedExternalIDs(ctx, source, batch)
		if err != nil {
			return nil, err
		}
		linked[source] = set
	}
	return linked, nil
}

// batchClaims remembers which catalog entries and which new-song keys earlier
// items of the same batch resolved to, per source.
type batchClaims struct {
	entities map[entityClaim]string
	newSongs map[keyClaim]string
}

type entityClaim struct {
	source matching.SourceType
	id     int64
}

type keyClaim struct {
	source matching.SourceType
	key    string
}

func newBatchClaims() *batchClaims {
	return &batchClaims{
		entities: make(map[entityClaim]string),
		newSongs: make(map[keyClaim]string),
	}
}

// claimEntity records externalID as the owner of the entry for source. It
// returns false when another item got there first.
func (c *batchClaims) claimEntity(source matching.SourceType, entryID int64, externalID string) bool {
	claim := entityClaim{source: source, id: entryID}
	if owner, ok := c.entities[claim]; ok && owner != externalID {
		return false
	}
	c.entities[claim] = externalID
	return true
}

func (c *batchClaims) claimNewSong(source matching.SourceType, key, externalID string) bool {
	claim := keyClaim{source: source, key: key}
	if owner, ok := c.newSongs[claim]; ok && owner != externalID {
		return false
	}
	c.newSongs[claim] = externalID
	return true
}
