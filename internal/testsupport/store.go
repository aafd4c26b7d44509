package testsupport

import (
	"context"
	"testing"

	"cadence/internal/config"
	"cadence/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedSongs inserts songs given as title/artist pairs and returns them in
// insertion order.
func SeedSongs(t testing.TB, st *store.Store, pairs ...[2]string) []store.Song {
	t.Helper()

	songs := make([]store.Song, 0, len(pairs))
	for _, pair := range pairs {
		song, err := st.CreateSong(context.Background(), pair[0], pair[1])
		if err != nil {
			t.Fatalf("store.CreateSong(%q): %v", pair[0], err)
		}
		songs = append(songs, *song)
	}
	return songs
}
