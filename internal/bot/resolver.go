package bot

import (
	"context"
	"strings"
	"time"

	"github.com/mrcrazy10100/movie-bot/internal/store"
)

// Resolution is either a non-empty match list or a freshly filed request.
// Similar may accompany a request with loosely related titles.
type Resolution struct {
	Matches []store.Movie
	Request *store.Request
	Similar []store.Movie
}

// Resolver decides whether free text hits the catalog or becomes a request.
type Resolver struct {
	catalog Catalog
	search  Searcher
	limit   int
}

func NewResolver(catalog Catalog, search Searcher, limit int) *Resolver {
	if search == nil {
		search = catalogSearch{catalog: catalog}
	}
	if limit <= 0 {
		limit = 5
	}
	return &Resolver{catalog: catalog, search: search, limit: limit}
}

// Resolve matches query as a case-insensitive title substring, newest
// first. With no match it files exactly one pending request; repeated
// queries file repeated requests.
func (r *Resolver) Resolve(ctx context.Context, userID int64, query string) (Resolution, error) {
	query = strings.TrimSpace(query)
	matches, err := r.search.Titles(ctx, query, r.limit)
	if err != nil {
		return Resolution{}, storageError("search movies", err)
	}
	if len(matches) > 0 {
		return Resolution{Matches: matches}, nil
	}

	req, err := r.catalog.InsertRequest(ctx, store.Request{
		RequesterID: userID,
		Query:       query,
		Status:      store.RequestPending,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Resolution{}, storageError("save request", err)
	}
	return Resolution{Request: &req, Similar: r.search.Similar(ctx, query, r.limit)}, nil
}
