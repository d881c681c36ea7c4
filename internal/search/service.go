package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mrcrazy10100/movie-bot/internal/store"
)

// Service answers title lookups against the catalog and keeps the
// optional Meilisearch index in step with it.
type Service struct {
	catalog Catalog
	index   Index
	logger  *zap.Logger
}

// NewService creates a search service. index may be nil if Meilisearch is not configured.
func NewService(catalog Catalog, index Index, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalog, index: index, logger: logger}
}

// IndexReady reports whether a secondary index is configured and reachable.
func (s *Service) IndexReady() bool {
	return s.index != nil && s.index.Healthy()
}

// Titles returns catalog entries whose title contains query, newest first.
// The catalog is authoritative: the index ranks by relevance and word
// prefix, so it cannot reproduce substring semantics.
func (s *Service) Titles(ctx context.Context, query string, limit int) ([]store.Movie, error) {
	items, err := s.catalog.SearchMoviesByTitle(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search titles: %w", err)
	}
	return items, nil
}

// Similar returns titles related to query for an unmatched search.
// Meilisearch supplies typo-tolerant hits when healthy; otherwise each
// word of the query is looked up in the catalog.
func (s *Service) Similar(ctx context.Context, query string, limit int) []store.Movie {
	if limit <= 0 {
		return nil
	}
	if s.IndexReady() {
		records, err := s.index.Search(query, limit)
		if err == nil {
			return s.resolveRecords(ctx, records)
		}
		s.logger.Warn("meilisearch error, falling back to catalog", zap.Error(err))
	}
	return s.similarFromCatalog(ctx, query, limit)
}

// resolveRecords drops hits that no longer exist in the catalog.
func (s *Service) resolveRecords(ctx context.Context, records []MovieRecord) []store.Movie {
	items := make([]store.Movie, 0, len(records))
	for _, record := range records {
		item, err := s.catalog.GetMovie(ctx, record.ID)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

func (s *Service) similarFromCatalog(ctx context.Context, query string, limit int) []store.Movie {
	seen := make(map[int64]store.Movie)
	for _, word := range strings.Fields(query) {
		if len([]rune(word)) < 3 {
			continue
		}
		items, err := s.catalog.SearchMoviesByTitle(ctx, word, limit)
		if err != nil {
			s.logger.Warn("similar titles lookup failed", zap.String("word", word), zap.Error(err))
			continue
		}
		for _, item := range items {
			seen[item.ID] = item
		}
	}

	items := make([]store.Movie, 0, len(seen))
	for _, item := range seen {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// IndexMovie indexes a movie (fire-and-forget to Meilisearch).
func (s *Service) IndexMovie(item store.Movie) {
	if !s.IndexReady() {
		return
	}
	go func() {
		if err := s.index.IndexMovies([]MovieRecord{RecordFromMovie(item)}); err != nil {
			s.logger.Warn("index movie", zap.Int64("movie_id", item.ID), zap.Error(err))
		}
	}()
}

// DeleteMovie removes a movie from the search index (fire-and-forget).
func (s *Service) DeleteMovie(id int64) {
	if !s.IndexReady() {
		return
	}
	go func() {
		if err := s.index.DeleteMovie(id); err != nil {
			s.logger.Warn("delete movie from index", zap.Int64("movie_id", id), zap.Error(err))
		}
	}()
}

// ReindexAll reads every catalog entry and pushes it to Meilisearch.
func (s *Service) ReindexAll(ctx context.Context) error {
	if !s.IndexReady() {
		return nil
	}
	items, err := s.catalog.ListMovies(ctx, 0)
	if err != nil {
		return fmt.Errorf("reindex load movies: %w", err)
	}
	records := make([]MovieRecord, 0, len(items))
	for _, item := range items {
		records = append(records, RecordFromMovie(item))
	}
	if err := s.index.IndexMovies(records); err != nil {
		return fmt.Errorf("reindex movies: %w", err)
	}
	s.logger.Info("search index rebuilt", zap.Int("movies", len(records)))
	return nil
}
