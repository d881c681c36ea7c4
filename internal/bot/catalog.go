package bot

import (
	"context"

	"github.com/mrcrazy10100/movie-bot/internal/store"
)

// Catalog is the persistent store the bot reads and writes.
type Catalog interface {
	EnsureUser(ctx context.Context, userID int64, username, defaultRole string) (store.User, error)
	SetRole(ctx context.Context, userID int64, role string) error

	InsertMovie(ctx context.Context, item store.Movie) (store.Movie, error)
	ListMovies(ctx context.Context, limit int) ([]store.Movie, error)
	SearchMoviesByTitle(ctx context.Context, substring string, limit int) ([]store.Movie, error)
	GetMovie(ctx context.Context, movieID int64) (store.Movie, error)
	DeleteMovie(ctx context.Context, movieID int64) error

	GrantAgent(ctx context.Context, agentID, grantedBy int64) error
	RevokeAgent(ctx context.Context, agentID int64) (bool, error)
	ListAgents(ctx context.Context) ([]store.Agent, error)
	GetAgent(ctx context.Context, agentID int64) (store.Agent, error)

	InsertRequest(ctx context.Context, item store.Request) (store.Request, error)
	ListRequestsByUser(ctx context.Context, userID int64) ([]store.Request, error)

	CountUsers(ctx context.Context) (int, error)
	CountMovies(ctx context.Context) (int, error)
	CountAgents(ctx context.Context) (int, error)
	CountPendingRequests(ctx context.Context) (int, error)
}

// Searcher looks titles up and keeps any secondary index current.
type Searcher interface {
	Titles(ctx context.Context, query string, limit int) ([]store.Movie, error)
	Similar(ctx context.Context, query string, limit int) []store.Movie
	IndexMovie(item store.Movie)
	DeleteMovie(id int64)
}

// MediaArchiver copies entry photos to long-term storage.
type MediaArchiver interface {
	ArchiveAsync(movieID int64, ref string)
	Remove(ctx context.Context, movieID int64, ref string) error
}

// catalogSearch serves title lookups straight from the catalog.
type catalogSearch struct {
	catalog Catalog
}

func (c catalogSearch) Titles(ctx context.Context, query string, limit int) ([]store.Movie, error) {
	return c.catalog.SearchMoviesByTitle(ctx, query, limit)
}

func (catalogSearch) Similar(context.Context, string, int) []store.Movie { return nil }
func (catalogSearch) IndexMovie(store.Movie) {}
func (catalogSearch) DeleteMovie(int64) {}

type noopArchiver struct{}

func (noopArchiver) ArchiveAsync(int64, string) {}
func (noopArchiver) Remove(context.Context, int64, string) error { return nil }
