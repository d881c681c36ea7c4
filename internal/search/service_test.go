package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mrcrazy10100/movie-bot/internal/store"
)

type fakeIndex struct {
	mu       sync.Mutex
	healthy  bool
	hits     []MovieRecord
	err      error
	indexed  []MovieRecord
	deleted  []int64
	searched []string
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) Search(query string, limit int) ([]MovieRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeIndex) IndexMovies(records []MovieRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, records...)
	return nil
}

func (f *fakeIndex) DeleteMovie(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIndex) snapshot() ([]MovieRecord, []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MovieRecord(nil), f.indexed...), append([]int64(nil), f.deleted...)
}

func seedCatalog(t *testing.T, titles ...string) *store.MemoryStore {
	t.Helper()
	catalog := store.NewMemoryStore()
	for _, title := range titles {
		if _, err := catalog.InsertMovie(context.Background(), store.Movie{Title: title, Link: "https://x.example", UploaderID: 1}); err != nil {
			t.Fatalf("seed %q: %v", title, err)
		}
	}
	return catalog
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTitlesUsesCatalogEvenWhenIndexHealthy(t *testing.T) {
	catalog := seedCatalog(t, "Nova", "Supernova", "Dune")
	index := &fakeIndex{healthy: true, hits: []MovieRecord{{ID: 3, Title: "Dune"}}}
	svc := NewService(catalog, index, zap.NewNop())

	items, err := svc.Titles(context.Background(), "NOV", 5)
	if err != nil {
		t.Fatalf("Titles: %v", err)
	}
	if len(items) != 2 || items[0].Title != "Supernova" || items[1].Title != "Nova" {
		t.Fatalf("Titles = %+v", items)
	}
	if len(index.searched) != 0 {
		t.Fatalf("index consulted for titles: %v", index.searched)
	}
}

func TestSimilarPrefersHealthyIndex(t *testing.T) {
	catalog := seedCatalog(t, "Interstellar", "Dune")
	index := &fakeIndex{healthy: true, hits: []MovieRecord{{ID: 1, Title: "Interstellar"}, {ID: 99, Title: "Gone"}}}
	svc := NewService(catalog, index, zap.NewNop())

	items := svc.Similar(context.Background(), "intersteller", 5)
	if len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("Similar = %+v, want only the live entry", items)
	}
}

func TestSimilarFallsBackToCatalog(t *testing.T) {
	catalog := seedCatalog(t, "The Dark Knight", "Knight and Day", "Up")
	cases := []struct {
		name  string
		index Index
	}{
		{name: "no index", index: nil},
		{name: "unhealthy", index: &fakeIndex{healthy: false}},
		{name: "index error", index: &fakeIndex{healthy: true, err: errors.New("boom")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(catalog, tc.index, zap.NewNop())
			items := svc.Similar(context.Background(), "knight of up", 5)
			if len(items) != 2 {
				t.Fatalf("got=%d want=2", len(items))
			}
			if items[0].Title != "Knight and Day" || items[1].Title != "The Dark Knight" {
				t.Fatalf("Similar order = %q, %q", items[0].Title, items[1].Title)
			}
		})
	}
}

func TestIndexAndDeleteAreForwarded(t *testing.T) {
	index := &fakeIndex{healthy: true}
	svc := NewService(seedCatalog(t), index, nil)

	svc.IndexMovie(store.Movie{ID: 5, Title: "Nova", Year: "2024"})
	svc.DeleteMovie(6)

	waitFor(t, func() bool {
		indexed, deleted := index.snapshot()
		return len(indexed) == 1 && len(deleted) == 1
	})
	indexed, deleted := index.snapshot()
	if indexed[0].ID != 5 || indexed[0].Year != "2024" || deleted[0] != 6 {
		t.Fatalf("indexed=%+v deleted=%v", indexed, deleted)
	}
}

func TestUnhealthyIndexSkipsWrites(t *testing.T) {
	index := &fakeIndex{healthy: false}
	svc := NewService(seedCatalog(t, "Nova"), index, nil)

	svc.IndexMovie(store.Movie{ID: 1})
	svc.DeleteMovie(1)
	if err := svc.ReindexAll(context.Background()); err != nil {
		t.Fatalf("ReindexAll: %v", err)
	}
	indexed, deleted := index.snapshot()
	if len(indexed) != 0 || len(deleted) != 0 {
		t.Fatalf("unexpected writes: %v %v", indexed, deleted)
	}
}

func TestReindexAll(t *testing.T) {
	index := &fakeIndex{healthy: true}
	svc := NewService(seedCatalog(t, "Nova", "Dune"), index, nil)

	if err := svc.ReindexAll(context.Background()); err != nil {
		t.Fatalf("ReindexAll: %v", err)
	}
	indexed, _ := index.snapshot()
	if len(indexed) != 2 {
		t.Fatalf("got=%d want=2 records", len(indexed))
	}
}
