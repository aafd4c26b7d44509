package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const songColumns = "id, title, artist, created_at"

func scanSong(scanner rowScanner) (*Song, error) {
	var (
		song       Song
		createdRaw string
	)
	if err := scanner.Scan(&song.ID, &song.Title, &song.Artist, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		song.CreatedAt = created
	}
	return &song, nil
}

// ListSongs returns the song catalog in id order, which is also the scoring
// tie-break order.
func (s *Store) ListSongs(ctx context.Context) ([]Song, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+songColumns+" FROM songs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()
	var songs []Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, *song)
	}
	return songs, rows.Err()
}

// GetSong fetches a song by id.
func (s *Store) GetSong(ctx context.Context, id int64) (*Song, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+songColumns+" FROM songs WHERE id = ?", id)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get song: %w", err)
	}
	return song, nil
}

// CreateSong inserts a catalog song.
func (s *Store) CreateSong(ctx context.Context, title, artist string) (*Song, error) {
	ctx = ensureContext(ctx)
	var song *Song
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		song, err = s.insertSong(ctx, tx, title, artist)
		return err
	})
	return song, err
}

// CreateSongWithLink creates a song and links it to an external item in one
// transaction. link.EntityKind and link.EntityID are filled in.
func (s *Store) CreateSongWithLink(ctx context.Context, title, artist string, link Link) (*Song, *Link, error) {
	ctx = ensureContext(ctx)
	var (
		song    *Song
		created *Link
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if song, err = s.insertSong(ctx, tx, title, artist); err != nil {
			return err
		}
		link.EntityKind = EntitySong
		link.EntityID = song.ID
		created, err = s.insertLink(ctx, tx, link)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return song, created, nil
}

func (s *Store) insertSong(ctx context.Context, q querier, title, artist string) (*Song, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("insert song: title is required")
	}
	now := s.timestamp()
	res, err := q.ExecContext(ctx,
		"INSERT INTO songs (title, artist, created_at, updated_at) VALUES (?, ?, ?, ?)",
		title, strings.TrimSpace(artist), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert song: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("song id: %w", err)
	}
	created, _ := parseTimeString(now)
	return &Song{ID: id, Title: title, Artist: strings.TrimSpace(artist), CreatedAt: created}, nil
}
