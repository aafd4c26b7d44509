package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cadence/internal/matching"
)

const conflictSelect = `SELECT c.id, c.link_id, l.source_type, l.external_id, l.entity_kind, l.entity_id, l.owner,
	c.local_json, c.remote_json, c.detected_at, c.resolution, c.resolved_at
	FROM conflicts c JOIN external_links l ON l.id = c.link_id`

func scanConflict(scanner rowScanner) (*Conflict, error) {
	var (
		conflict    Conflict
		sourceType  string
		entityKind  string
		localRaw    string
		remoteRaw   string
		detectedRaw string
		resolution  sql.NullString
		resolvedRaw sql.NullString
	)
	if err := scanner.Scan(&conflict.ID, &conflict.LinkID, &sourceType, &conflict.ExternalID, &entityKind, &conflict.EntityID, &conflict.Owner,
		&localRaw, &remoteRaw, &detectedRaw, &resolution, &resolvedRaw); err != nil {
		return nil, err
	}
	conflict.SourceType = matching.SourceType(sourceType)
	conflict.EntityKind = EntityKind(entityKind)
	var err error
	if conflict.Local, err = decodeSnapshot(localRaw); err != nil {
		return nil, err
	}
	if conflict.Remote, err = decodeSnapshot(remoteRaw); err != nil {
		return nil, err
	}
	if detected, err := parseTimeString(detectedRaw); err == nil {
		conflict.DetectedAt = detected
	}
	conflict.Resolution = Resolution(resolution.String)
	conflict.ResolvedAt = parseNullTime(resolvedRaw)
	return &conflict, nil
}

// RecordConflict stores a new outstanding conflict for the link. When one is
// already outstanding its snapshots are replaced with local and remote, so
// resolving with use_remote applies the newest remote version, and the record
// is returned with created=false. The id and detection time are kept.
func (s *Store) RecordConflict(ctx context.Context, id string, linkID int64, local, remote LessonSnapshot) (*Conflict, bool, error) {
	ctx = ensureContext(ctx)
	localRaw, err := encodeSnapshot(&local)
	if err != nil {
		return nil, false, err
	}
	remoteRaw, err := encodeSnapshot(&remote)
	if err != nil {
		return nil, false, err
	}
	res, err := s.execWithRetry(ctx,
		"INSERT OR IGNORE INTO conflicts (id, link_id, local_json, remote_json, detected_at) VALUES (?, ?, ?, ?, ?)",
		id, linkID, localRaw, remoteRaw, s.timestamp(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert conflict: %w", err)
	}
	created := false
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		created = true
	}
	if !created {
		if _, err := s.execWithRetry(ctx,
			"UPDATE conflicts SET local_json = ?, remote_json = ? WHERE link_id = ? AND resolved_at IS NULL",
			localRaw, remoteRaw, linkID,
		); err != nil {
			return nil, false, fmt.Errorf("refresh conflict: %w", err)
		}
	}
	conflict, err := s.OutstandingConflict(ctx, linkID)
	if err != nil {
		return nil, false, err
	}
	if conflict == nil {
		return nil, false, fmt.Errorf("conflict for link %d missing after insert", linkID)
	}
	return conflict, created, nil
}

// OutstandingConflict returns the unresolved conflict for a link, or nil.
func (s *Store) OutstandingConflict(ctx context.Context, linkID int64) (*Conflict, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, conflictSelect+" WHERE c.link_id = ? AND c.resolved_at IS NULL", linkID)
	conflict, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("outstanding conflict: %w", err)
	}
	return conflict, nil
}

// GetConflict fetches a conflict by id regardless of state.
func (s *Store) GetConflict(ctx context.Context, id string) (*Conflict, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, conflictSelect+" WHERE c.id = ?", id)
	conflict, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conflict: %w", err)
	}
	return conflict, nil
}

// ListConflicts returns conflicts ordered by detection time. When owner is
// non-empty only that owner's conflicts are returned.
func (s *Store) ListConflicts(ctx context.Context, owner string, outstandingOnly bool) ([]Conflict, error) {
	ctx = ensureContext(ctx)
	query := conflictSelect + " WHERE 1 = 1"
	var args []any
	if owner != "" {
		query += " AND l.owner = ?"
		args = append(args, owner)
	}
	if outstandingOnly {
		query += " AND c.resolved_at IS NULL"
	}
	query += " ORDER BY c.detected_at, c.id"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()
	var conflicts []Conflict
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		conflicts = append(conflicts, *conflict)
	}
	return conflicts, rows.Err()
}

// CountOutstandingConflicts returns the number of unresolved conflicts.
func (s *Store) CountOutstandingConflicts(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM conflicts WHERE resolved_at IS NULL").Scan(&count); err != nil {
		return 0, fmt.Errorf("count conflicts: %w", err)
	}
	return count, nil
}

// ResolveUseRemote overwrites the local lesson with the conflict's remote
// snapshot and closes the conflict in one transaction. ErrNotFound is returned
// when the conflict does not exist or was already resolved.
func (s *Store) ResolveUseRemote(ctx context.Context, id string) (*Conflict, error) {
	ctx = ensureContext(ctx)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, conflictSelect+" WHERE c.id = ? AND c.resolved_at IS NULL", id)
		conflict, err := scanConflict(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load conflict: %w", err)
		}
		if err := s.applySnapshot(ctx, tx, conflict.LinkID, conflict.EntityID, conflict.Remote); err != nil {
			return err
		}
		return s.closeConflict(ctx, tx, id, ResolutionUseRemote)
	})
	if err != nil {
		return nil, err
	}
	return s.GetConflict(ctx, id)
}

// ResolveUseLocal closes the conflict after the local state was pushed to the
// remote; pushed becomes the link's agreed snapshot.
func (s *Store) ResolveUseLocal(ctx context.Context, id string, pushed LessonSnapshot) (*Conflict, error) {
	ctx = ensureContext(ctx)
	encoded, err := encodeSnapshot(&pushed)
	if err != nil {
		return nil, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var linkID int64
		row := tx.QueryRowContext(ctx, "SELECT link_id FROM conflicts WHERE id = ? AND resolved_at IS NULL", id)
		if err := row.Scan(&linkID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("load conflict: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE external_links SET snapshot_json = ?, synced_at = ? WHERE id = ?",
			encoded, s.timestamp(), linkID,
		); err != nil {
			return fmt.Errorf("update link snapshot: %w", err)
		}
		return s.closeConflict(ctx, tx, id, ResolutionUseLocal)
	})
	if err != nil {
		return nil, err
	}
	return s.GetConflict(ctx, id)
}

func (s *Store) closeConflict(ctx context.Context, q querier, id string, resolution Resolution) error {
	res, err := q.ExecContext(ctx,
		"UPDATE conflicts SET resolution = ?, resolved_at = ? WHERE id = ? AND resolved_at IS NULL",
		string(resolution), s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("close conflict: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
