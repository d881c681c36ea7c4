// Package media copies entry posters out of the chat platform into object storage.
package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Fetcher downloads a platform media reference.
type Fetcher interface {
	FetchFile(ctx context.Context, ref string) (io.ReadCloser, int64, error)
}

// Archiver stores entry photos under movies/<id>/<ref>.jpg. A nil
// ObjectStore or Fetcher disables it.
type Archiver struct {
	objects ObjectStore
	fetcher Fetcher
	logger  *zap.Logger
	timeout time.Duration
}

func NewArchiver(objects ObjectStore, fetcher Fetcher, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		objects: objects,
		fetcher: fetcher,
		logger:  logger,
		timeout: 60 * time.Second,
	}
}

func (a *Archiver) Enabled() bool {
	return a != nil && a.objects != nil && a.fetcher != nil
}

// Key is the object key for a movie's photo.
func Key(movieID int64, ref string) string {
	return fmt.Sprintf("movies/%d/%s.jpg", movieID, sanitizeRef(ref))
}

func sanitizeRef(ref string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, ref)
}

// Archive fetches ref and uploads it.
func (a *Archiver) Archive(ctx context.Context, movieID int64, ref string) error {
	if !a.Enabled() || ref == "" {
		return nil
	}
	body, size, err := a.fetcher.FetchFile(ctx, ref)
	if err != nil {
		return fmt.Errorf("fetch media: %w", err)
	}
	defer body.Close()

	if err := a.objects.Put(ctx, Key(movieID, ref), body, size, "image/jpeg"); err != nil {
		return fmt.Errorf("archive media: %w", err)
	}
	return nil
}

// ArchiveAsync archives in the background; failures are logged only.
func (a *Archiver) ArchiveAsync(movieID int64, ref string) {
	if !a.Enabled() || ref == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.Archive(ctx, movieID, ref); err != nil {
			a.logger.Warn("archive media failed", zap.Int64("movie_id", movieID), zap.Error(err))
			return
		}
		a.logger.Debug("media archived", zap.Int64("movie_id", movieID), zap.String("key", Key(movieID, ref)))
	}()
}

// Remove deletes an archived photo.
func (a *Archiver) Remove(ctx context.Context, movieID int64, ref string) error {
	if !a.Enabled() || ref == "" {
		return nil
	}
	if err := a.objects.Delete(ctx, Key(movieID, ref)); err != nil {
		return fmt.Errorf("remove media: %w", err)
	}
	return nil
}
