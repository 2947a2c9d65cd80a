package filesystem

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/user/review-crawler/internal/entity"
	"github.com/user/review-crawler/internal/repository"
)

// ReviewWriterImpl writes a review collection as a plain text file, one
// review per line.
type ReviewWriterImpl struct {
	fs     afero.Fs
	logger *zap.Logger
}

var _ repository.ReviewWriter = (*ReviewWriterImpl)(nil)

// NewReviewWriter creates a writer on fs. Use afero.NewOsFs() for the real disk.
func NewReviewWriter(fs afero.Fs, logger *zap.Logger) *ReviewWriterImpl {
	return &ReviewWriterImpl{fs: fs, logger: logger}
}

// Write replaces the destination file with reviews joined by newlines,
// creating the destination directory first if needed. Nothing is touched
// when reviews is empty. The write is not atomic.
func (w *ReviewWriterImpl) Write(ctx context.Context, target entity.CrawlTarget, reviews entity.ReviewCollection) (bool, error) {
	if reviews.Len() == 0 {
		w.logger.Info("No reviews collected, skipping write", zap.String("dest", target.Destination()))
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	exists, err := afero.DirExists(w.fs, target.DestDir)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", target.DestDir, err)
	}
	if exists {
		w.logger.Info("Destination directory already exists", zap.String("dir", target.DestDir))
	} else {
		if err := w.fs.MkdirAll(target.DestDir, 0o755); err != nil {
			return false, fmt.Errorf("create %s: %w", target.DestDir, err)
		}
		w.logger.Info("Created destination directory", zap.String("dir", target.DestDir))
	}

	dest := target.Destination()
	w.logger.Info("Writing reviews", zap.String("dest", dest), zap.Int("reviews", reviews.Len()))
	data := []byte(strings.Join(reviews, "\n"))
	if err := afero.WriteFile(w.fs, dest, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", dest, err)
	}
	w.logger.Info("Finished writing reviews", zap.String("dest", dest))
	return true, nil
}
