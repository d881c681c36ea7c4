package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const idxMovies = "moviebot_movies"

// Meili implements Index via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the movie index.
// The client is returned even when the first health check fails; the
// background monitor flips it healthy once the server comes up.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxMovies,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("create index (may already exist)", zap.String("index", idxMovies), zap.Error(err))
	}

	searchable := []string{"title"}
	if _, err := m.client.Index(idxMovies).UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attrs", zap.String("index", idxMovies), zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search runs a relevance-ranked query against the movie index.
func (m *Meili) Search(query string, limit int) ([]MovieRecord, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 10
	}

	resp, err := m.client.Index(idxMovies).Search(query, &meili.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id", "title", "year", "quality", "language"},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	records := make([]MovieRecord, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		record, ok := hitToRecord(hit)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func hitToRecord(hit meili.Hit) (MovieRecord, bool) {
	raw, ok := hit["id"]
	if !ok {
		return MovieRecord{}, false
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return MovieRecord{}, false
	}
	return MovieRecord{
		ID:       id,
		Title:    decodeString(hit, "title"),
		Year:     decodeString(hit, "year"),
		Quality:  decodeString(hit, "quality"),
		Language: decodeString(hit, "language"),
	}, true
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexMovies adds or updates movies in the search index.
func (m *Meili) IndexMovies(records []MovieRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxMovies).AddDocuments(records, nil)
	return err
}

// DeleteMovie removes a movie from the search index.
func (m *Meili) DeleteMovie(id int64) error {
	_, err := m.client.Index(idxMovies).DeleteDocument(strconv.FormatInt(id, 10), nil)
	return err
}
