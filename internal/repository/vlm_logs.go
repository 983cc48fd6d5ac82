package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"wisefido-vision/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// VLMLogsRepository VLM分析日志仓库（vlm_logs 表）
type VLMLogsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVLMLogsRepository 创建VLM日志仓库
func NewVLMLogsRepository(db *sql.DB, logger *zap.Logger) *VLMLogsRepository {
	return &VLMLogsRepository{
		db:     db,
		logger: logger,
	}
}

// AddVLMLog 追加一条VLM分析日志，时间戳由数据库生成
func (r *VLMLogsRepository) AddVLMLog(ctx context.Context, eventID, cameraID, description string, embedding []float64, subjects []string) error {
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if description == "" {
		return fmt.Errorf("description is required")
	}

	query := `
		INSERT INTO vlm_logs (
			event_id,
			log_time,
			camera_id,
			collective_description,
			description_embedding,
			subjects_in_log
		) VALUES ($1, NOW(), $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		eventID,
		cameraID,
		description,
		pq.Array(embedding),
		pq.Array(subjects),
	)
	if err != nil {
		return fmt.Errorf("failed to add vlm log: %w", err)
	}

	return nil
}

// GetPersonInvolvement 查询某人参与过的全部事件及其在每个事件中的起止时间
func (r *VLMLogsRepository) GetPersonInvolvement(ctx context.Context, trackingID string) ([]models.InvolvementDetail, error) {
	if trackingID == "" {
		return nil, fmt.Errorf("tracking_id is required")
	}

	query := `
		SELECT
			l.event_id,
			MIN(l.log_time) AS involvement_start,
			MAX(l.log_time) AS involvement_end,
			e.status,
			e.start_time
		FROM vlm_logs l
		JOIN events e ON e.event_id = l.event_id
		WHERE $1 = ANY(l.subjects_in_log)
		GROUP BY l.event_id, e.status, e.start_time
		ORDER BY involvement_start DESC
	`

	rows, err := r.db.QueryContext(ctx, query, trackingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query involvement: %w", err)
	}
	defer rows.Close()

	var details []models.InvolvementDetail
	for rows.Next() {
		var d models.InvolvementDetail
		if err := rows.Scan(
			&d.EventID,
			&d.InvolvementStart,
			&d.InvolvementEnd,
			&d.EventStatus,
			&d.EventStartTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan involvement: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate involvement: %w", err)
	}

	return details, nil
}

// SearchLogsByEmbedding 按描述向量相似度检索日志
// 语义检索的占位实现：全量加载后在内存中做余弦相似度排序
func (r *VLMLogsRepository) SearchLogsByEmbedding(ctx context.Context, queryVector []float64, k int) ([]models.LogSearchResult, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}
	if k <= 0 {
		k = 5
	}

	query := `
		SELECT
			event_id,
			log_time,
			collective_description,
			description_embedding
		FROM vlm_logs
		WHERE cardinality(description_embedding) > 0
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query vlm logs: %w", err)
	}
	defer rows.Close()

	var results []models.LogSearchResult
	for rows.Next() {
		var result models.LogSearchResult
		var embedding pq.Float64Array
		if err := rows.Scan(
			&result.EventID,
			&result.LogTime,
			&result.Description,
			&embedding,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vlm log: %w", err)
		}
		result.Score = cosineSimilarity(queryVector, []float64(embedding))
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vlm logs: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}
