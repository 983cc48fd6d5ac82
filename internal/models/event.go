package models

import (
	"time"
)

// 事件状态（对应 events 表 status 列）
const (
	EventStatusActive         = "active"
	EventStatusEndedCleared   = "ended_cleared"
	EventStatusEndedEscalated = "ended_escalated"
)

// TrackedSubject 人员记录（对应 tracked_subjects 表）
type TrackedSubject struct {
	TrackingID      string    `json:"tracking_id" db:"tracking_id"`
	CurrentStatus   string    `json:"current_status" db:"current_status"`
	CurrentCameraID string    `json:"current_camera_id" db:"current_camera_id"`
	ThumbnailURL    *string   `json:"representative_thumbnail_url,omitempty" db:"representative_thumbnail_url"`
	ReidVector      []float64 `json:"reid_vector" db:"reid_vector"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Event 事件记录（对应 events 表）
type Event struct {
	EventID                string     `json:"event_id" db:"event_id"`
	StartTime              time.Time  `json:"start_time" db:"start_time"`
	EndTime                *time.Time `json:"end_time,omitempty" db:"end_time"`
	Status                 string     `json:"status" db:"status"`
	StartCameraID          string     `json:"start_camera_id" db:"start_camera_id"`
	InvolvedCameras        []string   `json:"involved_cameras" db:"involved_cameras"`
	ParticipantTrackingIDs []string   `json:"participant_tracking_ids" db:"participant_tracking_ids"`
	FinalSummary           string     `json:"final_summary" db:"final_summary"`
}

// VLMLog VLM分析日志（对应 vlm_logs 表）
type VLMLog struct {
	LogID                 int64     `json:"log_id" db:"log_id"`
	EventID               string    `json:"event_id" db:"event_id"`
	LogTime               time.Time `json:"log_time" db:"log_time"`
	CameraID              string    `json:"camera_id" db:"camera_id"`
	FrameImageURL         *string   `json:"frame_image_url,omitempty" db:"frame_image_url"`
	CollectiveDescription string    `json:"collective_description" db:"collective_description"`
	DescriptionEmbedding  []float64 `json:"description_embedding" db:"description_embedding"`
	SubjectsInLog         []string  `json:"subjects_in_log" db:"subjects_in_log"`
}

// InvolvementDetail 人员参与事件的时间段（分析查询结果）
type InvolvementDetail struct {
	EventID          string    `json:"event_id"`
	InvolvementStart time.Time `json:"person_involvement_start"`
	InvolvementEnd   time.Time `json:"person_involvement_end"`
	EventStatus      string    `json:"event_status"`
	EventStartTime   time.Time `json:"event_start_time"`
}

// LogSearchResult 语义检索结果（按描述向量相似度排序）
type LogSearchResult struct {
	Score       float64   `json:"score"`
	LogTime     time.Time `json:"timestamp"`
	Description string    `json:"collective_description"`
	EventID     string    `json:"event_id"`
}
