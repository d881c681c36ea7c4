package search

import (
	"context"

	"github.com/mrcrazy10100/movie-bot/internal/store"
)

// MovieRecord is the data we index for a catalog entry.
type MovieRecord struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Year     string `json:"year"`
	Quality  string `json:"quality"`
	Language string `json:"language"`
}

// RecordFromMovie projects a catalog entry onto its index record.
func RecordFromMovie(m store.Movie) MovieRecord {
	return MovieRecord{
		ID:       m.ID,
		Title:    m.Title,
		Year:     m.Year,
		Quality:  m.Quality,
		Language: m.Language,
	}
}

// Index is a full-text movie index.
type Index interface {
	Healthy() bool
	Search(query string, limit int) ([]MovieRecord, error)
	IndexMovies(records []MovieRecord) error
	DeleteMovie(id int64) error
}

// Catalog is the slice of the catalog store the search service reads.
type Catalog interface {
	ListMovies(ctx context.Context, limit int) ([]store.Movie, error)
	SearchMoviesByTitle(ctx context.Context, substring string, limit int) ([]store.Movie, error)
	GetMovie(ctx context.Context, movieID int64) (store.Movie, error)
}
