package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var _ interfaces.StoryNodeRepository = (*pgStoryNodeRepository)(nil)

const storyNodeColumns = `id, story_id, node_key, content, is_placeholder, is_ending, ending_type, sequence_order,
parent_choice_id, image_url, video_url, audio_url, image_prompt, created_at, updated_at`

const getStoryNodeByIDQuery = `SELECT ` + storyNodeColumns + ` FROM story_nodes WHERE id = $1`

const getStoryNodeByKeyQuery = `SELECT ` + storyNodeColumns + ` FROM story_nodes WHERE story_id = $1 AND node_key = $2`

const createStoryNodeQuery = `
INSERT INTO story_nodes (id, story_id, node_key, content, is_placeholder, is_ending, ending_type, sequence_order, parent_choice_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + storyNodeColumns

// Only a placeholder can be resolved; the first writer wins.
const resolveStoryNodeQuery = `
UPDATE story_nodes
SET content = $2, is_placeholder = FALSE, is_ending = $3, ending_type = $4, updated_at = NOW()
WHERE id = $1 AND is_placeholder = TRUE`

const setStoryNodeParentChoiceQuery = `
UPDATE story_nodes SET parent_choice_id = $2, updated_at = NOW() WHERE id = $1`

const setStoryNodeImageQuery = `
UPDATE story_nodes SET image_url = $2, image_prompt = $3, updated_at = NOW() WHERE id = $1`

const setStoryNodeVideoQuery = `
UPDATE story_nodes SET video_url = $2, updated_at = NOW() WHERE id = $1`

type pgStoryNodeRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgStoryNodeRepository creates a postgres-backed node repository.
func NewPgStoryNodeRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.StoryNodeRepository {
	return &pgStoryNodeRepository{
		db:     db,
		logger: logger.Named("PgStoryNodeRepo"),
	}
}

func (r *pgStoryNodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoryNode, error) {
	logFields := []zap.Field{zap.String("nodeID", id.String())}
	return r.getOne(ctx, logFields, getStoryNodeByIDQuery, id)
}

func (r *pgStoryNodeRepository) GetByKey(ctx context.Context, storyID uuid.UUID, nodeKey string) (*models.StoryNode, error) {
	logFields := []zap.Field{zap.String("storyID", storyID.String()), zap.String("nodeKey", nodeKey)}
	return r.getOne(ctx, logFields, getStoryNodeByKeyQuery, storyID, nodeKey)
}

func (r *pgStoryNodeRepository) getOne(ctx context.Context, logFields []zap.Field, query string, args ...interface{}) (*models.StoryNode, error) {
	var node models.StoryNode
	if err := pgxscan.Get(ctx, querier(ctx, r.db), &node, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Story node not found", logFields...)
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story node", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("get story node: %w", err)
	}
	return &node, nil
}

func (r *pgStoryNodeRepository) Create(ctx context.Context, params models.NewNodeParams) (*models.StoryNode, error) {
	id := uuid.New()
	isPlaceholder := strings.TrimSpace(params.Content) == ""
	logFields := []zap.Field{
		zap.String("nodeID", id.String()),
		zap.String("storyID", params.StoryID.String()),
		zap.String("nodeKey", params.NodeKey),
		zap.Bool("placeholder", isPlaceholder),
	}

	var node models.StoryNode
	err := pgxscan.Get(ctx, querier(ctx, r.db), &node, createStoryNodeQuery,
		id,
		params.StoryID,
		params.NodeKey,
		params.Content,
		isPlaceholder,
		params.IsEnding,
		params.EndingType,
		params.SequenceOrder,
		params.ParentChoiceID,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			r.logger.Warn("Story node key already exists", logFields...)
			return nil, models.ErrAlreadyExists
		}
		if IsPgForeignKeyError(err) {
			r.logger.Warn("Story node references a missing story", logFields...)
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to create story node", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("create story node: %w", err)
	}
	r.logger.Debug("Story node created", logFields...)
	return &node, nil
}

func (r *pgStoryNodeRepository) Resolve(ctx context.Context, id uuid.UUID, res models.NodeResolution) (bool, error) {
	logFields := []zap.Field{zap.String("nodeID", id.String()), zap.Bool("ending", res.IsEnding)}

	tag, err := querier(ctx, r.db).Exec(ctx, resolveStoryNodeQuery, id, res.Content, res.IsEnding, res.EndingType)
	if err != nil {
		r.logger.Error("Failed to resolve story node", append(logFields, zap.Error(err))...)
		return false, fmt.Errorf("resolve story node %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Info("Story node was already resolved", logFields...)
		return false, nil
	}
	r.logger.Info("Story node resolved", logFields...)
	return true, nil
}

func (r *pgStoryNodeRepository) SetParentChoice(ctx context.Context, nodeID, choiceID uuid.UUID) error {
	return r.exec(ctx, "parent_choice", setStoryNodeParentChoiceQuery, nodeID, choiceID)
}

func (r *pgStoryNodeRepository) SetImage(ctx context.Context, id uuid.UUID, imageURL, imagePrompt string) error {
	return r.exec(ctx, "image", setStoryNodeImageQuery, id, imageURL, imagePrompt)
}

func (r *pgStoryNodeRepository) SetVideo(ctx context.Context, id uuid.UUID, videoURL string) error {
	return r.exec(ctx, "video", setStoryNodeVideoQuery, id, videoURL)
}

func (r *pgStoryNodeRepository) exec(ctx context.Context, field, query string, id uuid.UUID, args ...interface{}) error {
	logFields := []zap.Field{zap.String("nodeID", id.String()), zap.String("field", field)}

	tag, err := querier(ctx, r.db).Exec(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		r.logger.Error("Failed to update story node", append(logFields, zap.Error(err))...)
		return fmt.Errorf("update story node %s %s: %w", field, id, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("Story node not found for update", logFields...)
		return models.ErrNotFound
	}
	return nil
}
