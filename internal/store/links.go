package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cadence/internal/matching"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ querier = (*sql.DB)(nil)
	_ querier = (*sql.Tx)(nil)
)

const linkColumns = "id, source_type, external_id, entity_kind, entity_id, owner, snapshot_json, synced_at, created_at"

func scanLink(scanner rowScanner) (*Link, error) {
	var (
		link       Link
		sourceType string
		entityKind string
		snapshot   sql.NullString
		syncedRaw  string
		createdRaw string
	)
	if err := scanner.Scan(&link.ID, &sourceType, &link.ExternalID, &entityKind, &link.EntityID, &link.Owner, &snapshot, &syncedRaw, &createdRaw); err != nil {
		return nil, err
	}
	link.SourceType = matching.SourceType(sourceType)
	link.EntityKind = EntityKind(entityKind)
	if snapshot.Valid && snapshot.String != "" {
		decoded, err := decodeSnapshot(snapshot.String)
		if err != nil {
			return nil, err
		}
		link.Snapshot = &decoded
	}
	if synced, err := parseTimeString(syncedRaw); err == nil {
		link.SyncedAt = synced
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		link.CreatedAt = created
	}
	return &link, nil
}

// FindLink returns the link for an external item, or nil when the item has
// never been reconciled. Callers re-read immediately before every write.
func (s *Store) FindLink(ctx context.Context, source matching.SourceType, externalID string) (*Link, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+linkColumns+" FROM external_links WHERE source_type = ? AND external_id = ?",
		string(source), externalID,
	)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find link: %w", err)
	}
	return link, nil
}

// FindLinkByEntity returns the link that points at a catalog entity for the
// given source, or nil.
func (s *Store) FindLinkByEntity(ctx context.Context, source matching.SourceType, kind EntityKind, entityID int64) (*Link, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+linkColumns+" FROM external_links WHERE source_type = ? AND entity_kind = ? AND entity_id = ?",
		string(source), string(kind), entityID,
	)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find link by entity: %w", err)
	}
	return link, nil
}

// LinkedExternalIDs returns the subset of ids that already have a link.
func (s *Store) LinkedExternalIDs(ctx context.Context, source matching.SourceType, ids []string) (map[string]bool, error) {
	ctx = ensureContext(ctx)
	linked := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return linked, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(source))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT external_id FROM external_links WHERE source_type = ? AND external_id IN ("+makePlaceholders(len(ids))+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query linked ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan linked id: %w", err)
		}
		linked[id] = true
	}
	return linked, rows.Err()
}

// CreateLink inserts a link for an existing catalog entity. Unique violations
// are reported as ErrLinkExists or ErrEntityLinked.
func (s *Store) CreateLink(ctx context.Context, link Link) (*Link, error) {
	ctx = ensureContext(ctx)
	var created *Link
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = s.insertLink(ctx, tx, link)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListLinks returns every link for a source in creation order.
func (s *Store) ListLinks(ctx context.Context, source matching.SourceType) ([]Link, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+linkColumns+" FROM external_links WHERE source_type = ? ORDER BY id",
		string(source),
	)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()
	var links []Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

// MarkSynced records that local and remote agree on snapshot.
func (s *Store) MarkSynced(ctx context.Context, linkID int64, snapshot LessonSnapshot) error {
	encoded, err := encodeSnapshot(&snapshot)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE external_links SET snapshot_json = ?, synced_at = ? WHERE id = ?",
		encoded, s.timestamp(), linkID,
	)
	if err != nil {
		return fmt.Errorf("mark link synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) insertLink(ctx context.Context, q querier, link Link) (*Link, error) {
	encoded, err := encodeSnapshot(link.Snapshot)
	if err != nil {
		return nil, err
	}
	now := s.timestamp()
	res, err := q.ExecContext(ctx,
		`INSERT INTO external_links (source_type, external_id, entity_kind, entity_id, owner, snapshot_json, synced_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(link.SourceType), link.ExternalID, string(link.EntityKind), link.EntityID, link.Owner, encoded, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert link: %w", classifyConstraint(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("link id: %w", err)
	}
	link.ID = id
	link.SyncedAt, _ = parseTimeString(now)
	link.CreatedAt = link.SyncedAt
	return &link, nil
}
