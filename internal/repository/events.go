package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-vision/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// EventsRepository 事件仓库（events 表）
type EventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEventsRepository 创建事件仓库
func NewEventsRepository(db *sql.DB, logger *zap.Logger) *EventsRepository {
	return &EventsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateEvent 创建事件
// event_id 由调用方预先分配，保证内存态与持久态ID一致
func (r *EventsRepository) CreateEvent(ctx context.Context, eventID, startCameraID, participantTrackingID string) error {
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if participantTrackingID == "" {
		return fmt.Errorf("participant tracking_id is required")
	}

	query := `
		INSERT INTO events (
			event_id,
			start_time,
			end_time,
			status,
			start_camera_id,
			involved_cameras,
			participant_tracking_ids,
			final_summary
		) VALUES ($1, NOW(), NULL, $2, $3, $4, $5, '')
	`

	_, err := r.db.ExecContext(ctx, query,
		eventID,
		models.EventStatusActive,
		startCameraID,
		pq.Array([]string{startCameraID}),
		pq.Array([]string{participantTrackingID}),
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// AddParticipant 添加事件参与者
// 幂等：已在参与者列表中的 tracking_id 不会重复追加
func (r *EventsRepository) AddParticipant(ctx context.Context, eventID, trackingID string) error {
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if trackingID == "" {
		return fmt.Errorf("tracking_id is required")
	}

	query := `
		UPDATE events
		SET participant_tracking_ids = array_append(participant_tracking_ids, $2)
		WHERE event_id = $1
		  AND $2 <> ALL(participant_tracking_ids)
	`

	_, err := r.db.ExecContext(ctx, query, eventID, trackingID)
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

// EndEvent 结束事件
// finalStatus 为空时默认 ended_cleared
func (r *EventsRepository) EndEvent(ctx context.Context, eventID, finalStatus, summary string) error {
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if finalStatus == "" {
		finalStatus = models.EventStatusEndedCleared
	}

	query := `
		UPDATE events
		SET status = $2,
		    end_time = NOW(),
		    final_summary = $3
		WHERE event_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, eventID, finalStatus, summary)
	if err != nil {
		return fmt.Errorf("failed to end event: %w", err)
	}

	return nil
}

// GetEvent 根据 event_id 获取事件
func (r *EventsRepository) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}

	query := `
		SELECT
			event_id,
			start_time,
			end_time,
			status,
			start_camera_id,
			involved_cameras,
			participant_tracking_ids,
			final_summary
		FROM events
		WHERE event_id = $1
	`

	var event models.Event
	var endTime sql.NullTime
	var involvedCameras, participants pq.StringArray

	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&event.EventID,
		&event.StartTime,
		&endTime,
		&event.Status,
		&event.StartCameraID,
		&involvedCameras,
		&participants,
		&event.FinalSummary,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event not found: event_id=%s", eventID)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	if endTime.Valid {
		event.EndTime = &endTime.Time
	}
	event.InvolvedCameras = []string(involvedCameras)
	event.ParticipantTrackingIDs = []string(participants)

	return &event, nil
}
