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

var _ interfaces.StoryChoiceRepository = (*pgStoryChoiceRepository)(nil)

const storyChoiceColumns = `id, from_node_id, to_node_id, choice_text, consequence_hint, order_index, is_visible, created_by, created_at`

const listStoryChoicesByNodeQuery = `
SELECT c.id, c.from_node_id, c.to_node_id, c.choice_text, c.consequence_hint, c.order_index, c.is_visible, c.created_by, c.created_at,
       n.id, n.story_id, n.node_key, n.content, n.is_placeholder, n.is_ending, n.ending_type, n.sequence_order,
       n.parent_choice_id, n.image_url, n.video_url, n.audio_url, n.image_prompt, n.created_at, n.updated_at
FROM story_choices c
JOIN story_nodes n ON n.id = c.to_node_id
WHERE c.from_node_id = $1 AND c.is_visible = TRUE
ORDER BY c.order_index, c.created_at`

const getStoryChoiceByIDQuery = `SELECT ` + storyChoiceColumns + ` FROM story_choices WHERE id = $1`

const createStoryChoiceQuery = `
INSERT INTO story_choices (id, from_node_id, to_node_id, choice_text, consequence_hint, order_index, is_visible, created_by)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
RETURNING ` + storyChoiceColumns

const updateStoryChoiceTargetQuery = `UPDATE story_choices SET to_node_id = $2 WHERE id = $1`

type pgStoryChoiceRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgStoryChoiceRepository creates a postgres-backed choice repository.
func NewPgStoryChoiceRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.StoryChoiceRepository {
	return &pgStoryChoiceRepository{
		db:     db,
		logger: logger.Named("PgStoryChoiceRepo"),
	}
}

func (r *pgStoryChoiceRepository) ListByNode(ctx context.Context, nodeID uuid.UUID) ([]*models.StoryChoice, error) {
	logFields := []zap.Field{zap.String("nodeID", nodeID.String())}

	rows, err := querier(ctx, r.db).Query(ctx, listStoryChoicesByNodeQuery, nodeID)
	if err != nil {
		r.logger.Error("Failed to list story choices", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("list choices of node %s: %w", nodeID, err)
	}
	defer rows.Close()

	choices := make([]*models.StoryChoice, 0, models.MaxChoicesPerNode)
	for rows.Next() {
		c := &models.StoryChoice{TargetNode: &models.StoryNode{}}
		n := c.TargetNode
		if err := rows.Scan(
			&c.ID, &c.FromNodeID, &c.ToNodeID, &c.ChoiceText, &c.ConsequenceHint, &c.OrderIndex, &c.IsVisible, &c.CreatedBy, &c.CreatedAt,
			&n.ID, &n.StoryID, &n.NodeKey, &n.Content, &n.IsPlaceholder, &n.IsEnding, &n.EndingType, &n.SequenceOrder,
			&n.ParentChoiceID, &n.ImageURL, &n.VideoURL, &n.AudioURL, &n.ImagePrompt, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan story choice", append(logFields, zap.Error(err))...)
			return nil, fmt.Errorf("scan choice of node %s: %w", nodeID, err)
		}
		choices = append(choices, c)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating story choices", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("iterate choices of node %s: %w", nodeID, err)
	}

	r.logger.Debug("Story choices listed", append(logFields, zap.Int("count", len(choices)))...)
	return choices, nil
}

func (r *pgStoryChoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoryChoice, error) {
	logFields := []zap.Field{zap.String("choiceID", id.String())}

	var choice models.StoryChoice
	if err := pgxscan.Get(ctx, querier(ctx, r.db), &choice, getStoryChoiceByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Story choice not found", logFields...)
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story choice", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("get story choice %s: %w", id, err)
	}
	return &choice, nil
}

func (r *pgStoryChoiceRepository) Create(ctx context.Context, params models.NewChoiceParams) (*models.StoryChoice, error) {
	id := uuid.New()
	logFields := []zap.Field{
		zap.String("choiceID", id.String()),
		zap.String("fromNodeID", params.FromNodeID.String()),
		zap.String("toNodeID", params.ToNodeID.String()),
		zap.Int("orderIndex", params.OrderIndex),
	}

	var choice models.StoryChoice
	err := pgxscan.Get(ctx, querier(ctx, r.db), &choice, createStoryChoiceQuery,
		id,
		params.FromNodeID,
		params.ToNodeID,
		params.ChoiceText,
		params.ConsequenceHint,
		params.OrderIndex,
		params.CreatedBy,
	)
	if err != nil {
		if IsPgForeignKeyError(err) {
			r.logger.Warn("Story choice references a missing node", logFields...)
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to create story choice", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("create story choice: %w", err)
	}
	r.logger.Debug("Story choice created", logFields...)
	return &choice, nil
}

func (r *pgStoryChoiceRepository) UpdateTarget(ctx context.Context, choiceID, toNodeID uuid.UUID) error {
	logFields := []zap.Field{zap.String("choiceID", choiceID.String()), zap.String("toNodeID", toNodeID.String())}

	tag, err := querier(ctx, r.db).Exec(ctx, updateStoryChoiceTargetQuery, choiceID, toNodeID)
	if err != nil {
		r.logger.Error("Failed to update story choice target", append(logFields, zap.Error(err))...)
		return fmt.Errorf("update choice target %s: %w", choiceID, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("Story choice not found for target update", logFields...)
		return models.ErrNotFound
	}
	r.logger.Info("Story choice retargeted", logFields...)
	return nil
}
