package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const studentColumns = "id, email, display_name, is_shadow, claimed_at, created_at"

func scanStudent(scanner rowScanner) (*Student, error) {
	var (
		student    Student
		shadow     int
		claimedRaw sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&student.ID, &student.Email, &student.DisplayName, &shadow, &claimedRaw, &createdRaw); err != nil {
		return nil, err
	}
	student.Shadow = shadow != 0
	student.ClaimedAt = parseNullTime(claimedRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		student.CreatedAt = created
	}
	return &student, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindStudentByEmail looks up a student by case-insensitive email.
func (s *Store) FindStudentByEmail(ctx context.Context, email string) (*Student, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+studentColumns+" FROM students WHERE email = ?", normalizeEmail(email))
	student, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find student: %w", err)
	}
	return student, nil
}

// GetStudent fetches a student by id.
func (s *Store) GetStudent(ctx context.Context, id int64) (*Student, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+studentColumns+" FROM students WHERE id = ?", id)
	student, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return student, nil
}

// CreateStudent inserts a real (non-shadow) student.
func (s *Store) CreateStudent(ctx context.Context, email, displayName string) (*Student, error) {
	return s.insertStudent(ctx, email, displayName, false)
}

// EnsureShadowStudent returns the student with email, creating a shadow
// record when none exists. created reports whether a new row was written.
func (s *Store) EnsureShadowStudent(ctx context.Context, email, displayName string) (*Student, bool, error) {
	ctx = ensureContext(ctx)
	email = normalizeEmail(email)
	if email == "" {
		return nil, false, errors.New("ensure shadow student: email is required")
	}
	res, err := s.execWithRetry(ctx,
		"INSERT OR IGNORE INTO students (email, display_name, is_shadow, created_at) VALUES (?, ?, 1, ?)",
		email, strings.TrimSpace(displayName), s.timestamp(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert shadow student: %w", err)
	}
	created := false
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		created = true
	}
	student, err := s.FindStudentByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if student == nil {
		return nil, false, fmt.Errorf("shadow student %s vanished after insert", email)
	}
	return student, created, nil
}

// ClaimShadowStudent converts a shadow student into a real account. It
// returns nil when no shadow student with email exists.
func (s *Store) ClaimShadowStudent(ctx context.Context, email, displayName string) (*Student, error) {
	ctx = ensureContext(ctx)
	email = normalizeEmail(email)
	res, err := s.execWithRetry(ctx,
		`UPDATE students SET is_shadow = 0, claimed_at = ?,
		 display_name = CASE WHEN ? <> '' THEN ? ELSE display_name END
		 WHERE email = ? AND is_shadow = 1`,
		s.timestamp(), strings.TrimSpace(displayName), strings.TrimSpace(displayName), email,
	)
	if err != nil {
		return nil, fmt.Errorf("claim shadow student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.FindStudentByEmail(ctx, email)
}

func (s *Store) insertStudent(ctx context.Context, email, displayName string, shadow bool) (*Student, error) {
	ctx = ensureContext(ctx)
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("insert student: email is required")
	}
	res, err := s.execWithRetry(ctx,
		"INSERT INTO students (email, display_name, is_shadow, created_at) VALUES (?, ?, ?, ?)",
		email, strings.TrimSpace(displayName), boolToInt(shadow), s.timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert student: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("student id: %w", err)
	}
	return s.GetStudent(ctx, id)
}
