package database

import (
	"context"
	"errors"
	"fmt"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

var _ interfaces.ReaderProgressRepository = (*pgReaderProgressRepository)(nil)

const getReaderProgressQuery = `
SELECT user_id, story_id, current_node_id, path_taken, is_completed, chapters_read, reading_points, updated_at
FROM reader_progress
WHERE user_id = $1 AND story_id = $2`

const saveReaderProgressQuery = `
INSERT INTO reader_progress (user_id, story_id, current_node_id, path_taken, is_completed, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (user_id, story_id) DO UPDATE SET
    current_node_id = EXCLUDED.current_node_id,
    path_taken = EXCLUDED.path_taken,
    is_completed = reader_progress.is_completed OR EXCLUDED.is_completed,
    updated_at = NOW()`

const addReaderReadingQuery = `
UPDATE reader_progress
SET chapters_read = chapters_read + $3, reading_points = reading_points + $4, updated_at = NOW()
WHERE user_id = $1 AND story_id = $2`

type pgReaderProgressRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgReaderProgressRepository creates a postgres-backed progress repository.
func NewPgReaderProgressRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.ReaderProgressRepository {
	return &pgReaderProgressRepository{
		db:     db,
		logger: logger.Named("PgReaderProgressRepo"),
	}
}

func (r *pgReaderProgressRepository) Get(ctx context.Context, userID, storyID uuid.UUID) (*models.ReaderProgress, error) {
	logFields := []zap.Field{zap.Stringer("userID", userID), zap.Stringer("storyID", storyID)}

	progress := &models.ReaderProgress{}
	var path pq.StringArray
	err := querier(ctx, r.db).QueryRow(ctx, getReaderProgressQuery, userID, storyID).Scan(
		&progress.UserID,
		&progress.StoryID,
		&progress.CurrentNodeID,
		&path,
		&progress.IsCompleted,
		&progress.ChaptersRead,
		&progress.ReadingPoints,
		&progress.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Reader progress not found", logFields...)
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get reader progress", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("get reader progress: %w", err)
	}
	progress.PathTaken = []string(path)
	return progress, nil
}

func (r *pgReaderProgressRepository) Save(ctx context.Context, progress *models.ReaderProgress) error {
	logFields := []zap.Field{
		zap.Stringer("userID", progress.UserID),
		zap.Stringer("storyID", progress.StoryID),
		zap.Stringer("currentNodeID", progress.CurrentNodeID),
		zap.Int("pathLen", len(progress.PathTaken)),
	}

	path := progress.PathTaken
	if path == nil {
		path = []string{}
	}
	_, err := querier(ctx, r.db).Exec(ctx, saveReaderProgressQuery,
		progress.UserID,
		progress.StoryID,
		progress.CurrentNodeID,
		pq.Array(path),
		progress.IsCompleted,
	)
	if err != nil {
		if IsPgForeignKeyError(err) {
			r.logger.Warn("Reader progress references a missing story or node", logFields...)
			return models.ErrNotFound
		}
		r.logger.Error("Failed to save reader progress", append(logFields, zap.Error(err))...)
		return fmt.Errorf("save reader progress: %w", err)
	}
	r.logger.Debug("Reader progress saved", logFields...)
	return nil
}

func (r *pgReaderProgressRepository) AddReading(ctx context.Context, userID, storyID uuid.UUID, chapters, points int) error {
	logFields := []zap.Field{
		zap.Stringer("userID", userID),
		zap.Stringer("storyID", storyID),
		zap.Int("chapters", chapters),
		zap.Int("points", points),
	}

	tag, err := querier(ctx, r.db).Exec(ctx, addReaderReadingQuery, userID, storyID, chapters, points)
	if err != nil {
		r.logger.Error("Failed to add reading", append(logFields, zap.Error(err))...)
		return fmt.Errorf("add reading: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("Reader progress not found while adding reading", logFields...)
		return models.ErrNotFound
	}
	return nil
}
