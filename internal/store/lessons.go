package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const lessonColumns = "id, owner, student_id, title, scheduled_at, ends_at, notes, created_at, updated_at"

func scanLesson(scanner rowScanner) (*Lesson, error) {
	var (
		lesson       Lesson
		scheduledRaw string
		endsRaw      sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(&lesson.ID, &lesson.Owner, &lesson.StudentID, &lesson.Title, &scheduledRaw, &endsRaw, &lesson.Notes, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	scheduled, err := parseTimeString(scheduledRaw)
	if err != nil {
		return nil, fmt.Errorf("parse scheduled_at: %w", err)
	}
	lesson.ScheduledAt = scheduled
	if ends := parseNullTime(endsRaw); ends != nil {
		lesson.EndsAt = *ends
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		lesson.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		lesson.UpdatedAt = updated
	}
	return &lesson, nil
}

// GetLesson fetches a lesson by id.
func (s *Store) GetLesson(ctx context.Context, id int64) (*Lesson, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+lessonColumns+" FROM lessons WHERE id = ?", id)
	lesson, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	return lesson, nil
}

// ListLessons returns the owner's lessons ordered by start time.
func (s *Store) ListLessons(ctx context.Context, owner string) ([]Lesson, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+lessonColumns+" FROM lessons WHERE owner = ? ORDER BY scheduled_at, id", owner)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()
	var lessons []Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, *lesson)
	}
	return lessons, rows.Err()
}

// CreateLessonWithLink writes a lesson and its external link atomically. The
// link snapshot is set to the lesson's synced fields.
func (s *Store) CreateLessonWithLink(ctx context.Context, lesson Lesson, link Link) (*Lesson, *Link, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(lesson.Title) == "" {
		return nil, nil, errors.New("create lesson: title is required")
	}
	if lesson.ScheduledAt.IsZero() {
		return nil, nil, errors.New("create lesson: scheduled time is required")
	}
	var created *Link
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO lessons (owner, student_id, title, scheduled_at, ends_at, notes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			lesson.Owner, lesson.StudentID, lesson.Title, formatTime(lesson.ScheduledAt), nullableTime(lesson.EndsAt), lesson.Notes, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert lesson: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("lesson id: %w", err)
		}
		lesson.ID = id
		lesson.CreatedAt, _ = parseTimeString(now)
		lesson.UpdatedAt = lesson.CreatedAt

		snapshot := lesson.Snapshot()
		link.EntityKind = EntityLesson
		link.EntityID = id
		link.Owner = lesson.Owner
		link.Snapshot = &snapshot
		created, err = s.insertLink(ctx, tx, link)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &lesson, created, nil
}

// UpdateLesson overwrites the synced fields of a lesson with a local edit.
func (s *Store) UpdateLesson(ctx context.Context, id int64, snapshot LessonSnapshot) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE lessons SET title = ?, scheduled_at = ?, ends_at = ?, notes = ?, updated_at = ? WHERE id = ?",
		snapshot.Title, formatTime(snapshot.ScheduledAt), nullableTime(snapshot.EndsAt), snapshot.Notes, s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyRemoteSnapshot fast-forwards a lesson to the remote state and records
// the new agreed snapshot on the link in one transaction.
func (s *Store) ApplyRemoteSnapshot(ctx context.Context, linkID, lessonID int64, remote LessonSnapshot) error {
	ctx = ensureContext(ctx)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.applySnapshot(ctx, tx, linkID, lessonID, remote)
	})
}

func (s *Store) applySnapshot(ctx context.Context, q querier, linkID, lessonID int64, snapshot LessonSnapshot) error {
	now := s.timestamp()
	res, err := q.ExecContext(ctx,
		"UPDATE lessons SET title = ?, scheduled_at = ?, ends_at = ?, notes = ?, updated_at = ? WHERE id = ?",
		snapshot.Title, formatTime(snapshot.ScheduledAt), nullableTime(snapshot.EndsAt), snapshot.Notes, now, lessonID,
	)
	if err != nil {
		return fmt.Errorf("apply lesson snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	encoded, err := encodeSnapshot(&snapshot)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		"UPDATE external_links SET snapshot_json = ?, synced_at = ? WHERE id = ?",
		encoded, now, linkID,
	); err != nil {
		return fmt.Errorf("update link snapshot: %w", err)
	}
	return nil
}
