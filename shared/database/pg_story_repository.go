package database

import (
	"context"
	"errors"
	"fmt"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

const storyColumns = `id, title, description, story_context, art_style, generation_status, generation_progress,
cover_image_url, cover_video_url, image_prompt, likes_count, dislikes_count, creator_id, created_at, updated_at`

const getStoryByIDQuery = `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`

const updateStoryGenerationStatusQuery = `
UPDATE stories
SET generation_status = $2, generation_progress = $3, updated_at = NOW()
WHERE id = $1`

const setStoryCoverImageIfEmptyQuery = `
UPDATE stories
SET cover_image_url = $2, updated_at = NOW()
WHERE id = $1 AND (cover_image_url IS NULL OR cover_image_url = '')`

const setStoryCoverVideoIfEmptyQuery = `
UPDATE stories
SET cover_video_url = $2, updated_at = NOW()
WHERE id = $1 AND (cover_video_url IS NULL OR cover_video_url = '')`

type pgStoryRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgStoryRepository creates a postgres-backed story repository.
func NewPgStoryRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

func (r *pgStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	logFields := []zap.Field{zap.String("storyID", id.String())}

	var story models.Story
	if err := pgxscan.Get(ctx, querier(ctx, r.db), &story, getStoryByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Story not found", logFields...)
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("get story %s: %w", id, err)
	}
	return &story, nil
}

func (r *pgStoryRepository) UpdateGenerationStatus(ctx context.Context, id uuid.UUID, status models.GenerationStatus, progress int) error {
	if progress < 0 {
		progress = 0
	} else if progress > 100 {
		progress = 100
	}
	logFields := []zap.Field{
		zap.String("storyID", id.String()),
		zap.String("status", string(status)),
		zap.Int("progress", progress),
	}

	tag, err := querier(ctx, r.db).Exec(ctx, updateStoryGenerationStatusQuery, id, status, progress)
	if err != nil {
		r.logger.Error("Failed to update story generation status", append(logFields, zap.Error(err))...)
		return fmt.Errorf("update story status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("Story not found while updating generation status", logFields...)
		return models.ErrNotFound
	}
	r.logger.Debug("Story generation status updated", logFields...)
	return nil
}

func (r *pgStoryRepository) SetCoverImageIfEmpty(ctx context.Context, id uuid.UUID, imageURL string) (bool, error) {
	return r.setIfEmpty(ctx, setStoryCoverImageIfEmptyQuery, id, imageURL, "cover_image")
}

func (r *pgStoryRepository) SetCoverVideoIfEmpty(ctx context.Context, id uuid.UUID, videoURL string) (bool, error) {
	return r.setIfEmpty(ctx, setStoryCoverVideoIfEmptyQuery, id, videoURL, "cover_video")
}

func (r *pgStoryRepository) setIfEmpty(ctx context.Context, query string, id uuid.UUID, value, field string) (bool, error) {
	logFields := []zap.Field{zap.String("storyID", id.String()), zap.String("field", field)}

	tag, err := querier(ctx, r.db).Exec(ctx, query, id, value)
	if err != nil {
		r.logger.Error("Failed to set story asset", append(logFields, zap.Error(err))...)
		return false, fmt.Errorf("set story %s %s: %w", field, id, err)
	}
	set := tag.RowsAffected() > 0
	r.logger.Debug("Story asset write", append(logFields, zap.Bool("applied", set))...)
	return set, nil
}
