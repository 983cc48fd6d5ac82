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

// SubjectsRepository 人员记录仓库（tracked_subjects 表）
type SubjectsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubjectsRepository 创建人员记录仓库
func NewSubjectsRepository(db *sql.DB, logger *zap.Logger) *SubjectsRepository {
	return &SubjectsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateSubject 创建人员记录，初始状态为 normal
func (r *SubjectsRepository) CreateSubject(ctx context.Context, trackingID string, reidVector []float64, cameraID string) error {
	if trackingID == "" {
		return fmt.Errorf("tracking_id is required")
	}

	query := `
		INSERT INTO tracked_subjects (
			tracking_id,
			current_status,
			current_camera_id,
			reid_vector,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, NOW(), NOW())
	`

	_, err := r.db.ExecContext(ctx, query,
		trackingID,
		string(models.StatusNormal),
		cameraID,
		pq.Array(reidVector),
	)
	if err != nil {
		return fmt.Errorf("failed to create subject: %w", err)
	}

	return nil
}

// UpdateSubjectStatus 更新人员状态，cameraID 非空时同时更新所在摄像头
func (r *SubjectsRepository) UpdateSubjectStatus(ctx context.Context, trackingID, status, cameraID string) error {
	if trackingID == "" {
		return fmt.Errorf("tracking_id is required")
	}
	if status == "" {
		return fmt.Errorf("status is required")
	}

	var err error
	if cameraID != "" {
		query := `
			UPDATE tracked_subjects
			SET current_status = $2,
			    current_camera_id = $3,
			    updated_at = NOW()
			WHERE tracking_id = $1
		`
		_, err = r.db.ExecContext(ctx, query, trackingID, status, cameraID)
	} else {
		query := `
			UPDATE tracked_subjects
			SET current_status = $2,
			    updated_at = NOW()
			WHERE tracking_id = $1
		`
		_, err = r.db.ExecContext(ctx, query, trackingID, status)
	}

	if err != nil {
		return fmt.Errorf("failed to update subject status: %w", err)
	}

	return nil
}

// GetSubject 根据 tracking_id 获取人员记录
func (r *SubjectsRepository) GetSubject(ctx context.Context, trackingID string) (*models.TrackedSubject, error) {
	if trackingID == "" {
		return nil, fmt.Errorf("tracking_id is required")
	}

	query := `
		SELECT
			tracking_id,
			current_status,
			current_camera_id,
			representative_thumbnail_url,
			reid_vector,
			created_at,
			updated_at
		FROM tracked_subjects
		WHERE tracking_id = $1
	`

	var subject models.TrackedSubject
	var thumbnail sql.NullString
	var reidVector pq.Float64Array

	err := r.db.QueryRowContext(ctx, query, trackingID).Scan(
		&subject.TrackingID,
		&subject.CurrentStatus,
		&subject.CurrentCameraID,
		&thumbnail,
		&reidVector,
		&subject.CreatedAt,
		&subject.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("subject not found: tracking_id=%s", trackingID)
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	if thumbnail.Valid {
		subject.ThumbnailURL = &thumbnail.String
	}
	subject.ReidVector = []float64(reidVector)

	return &subject, nil
}

// FindSubjectByVector 按re-id向量相似度查找人员
// 跨摄像头re-id的占位实现：全量加载后在内存中做余弦相似度排序。
// 生命周期引擎不调用该方法。
func (r *SubjectsRepository) FindSubjectByVector(ctx context.Context, vector []float64, k int) ([]models.TrackedSubject, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		k = 1
	}

	query := `
		SELECT
			tracking_id,
			current_status,
			current_camera_id,
			reid_vector
		FROM tracked_subjects
		WHERE cardinality(reid_vector) > 0
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}
	defer rows.Close()

	type scored struct {
		subject models.TrackedSubject
		score   float64
	}
	var candidates []scored

	for rows.Next() {
		var subject models.TrackedSubject
		var reidVector pq.Float64Array
		if err := rows.Scan(
			&subject.TrackingID,
			&subject.CurrentStatus,
			&subject.CurrentCameraID,
			&reidVector,
		); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subject.ReidVector = []float64(reidVector)
		candidates = append(candidates, scored{
			subject: subject,
			score:   cosineSimilarity(vector, subject.ReidVector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subjects: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]models.TrackedSubject, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c.subject)
	}

	return results, nil
}
