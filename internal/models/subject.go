package models

import (
	"time"
)

// SubjectStatus 人员姿态状态
type SubjectStatus string

const (
	StatusNormal     SubjectStatus = "normal"     // 正常
	StatusPending    SubjectStatus = "pending"    // 倒地姿态待确认
	StatusSuspicious SubjectStatus = "suspicious" // 倒地姿态已确认
)

// COCO 关键点索引（姿态模型输出顺序）
// 倒地判断只使用躯干4个关键点
const (
	KeypointLeftShoulder  = 5
	KeypointRightShoulder = 6
	KeypointLeftHip       = 11
	KeypointRightHip      = 12
)

// Keypoint 单个关键点（像素坐标 + 置信度）
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// BoundingBox 检测框（xyxy 像素坐标）
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// TrackObservation 跟踪器单帧单人观测
// TrackID 是跟踪器的临时ID，目标丢失后可能被复用
type TrackObservation struct {
	TrackID   int64       `json:"track_id"`
	Box       BoundingBox `json:"box"`
	Keypoints []Keypoint  `json:"keypoints"`
}

// Frame 跟踪器单帧完整输出
// ImageJPEG 为原始帧图像（JPEG编码），仅在需要VLM分析时携带
type Frame struct {
	CameraID  string             `json:"camera_id,omitempty"`
	Timestamp int64              `json:"timestamp"` // Unix毫秒
	Height    float64            `json:"frame_height"`
	Tracks    []TrackObservation `json:"tracks"`
	ImageJPEG []byte             `json:"image_jpeg,omitempty"`
}

// Time 帧时间戳
func (f *Frame) Time() time.Time {
	return time.UnixMilli(f.Timestamp)
}

// Subject 被跟踪人员（内存态，按临时track_id维护）
type Subject struct {
	TrackID       int64         // 跟踪器临时ID
	TrackingID    string        // 系统持久ID（person_xxxxxxxx）
	Status        SubjectStatus // normal / pending / suspicious
	PoseStartTime time.Time     // 进入pending的时间，回到normal时清零
	Confirmed     bool          // 本次pending周期内是否已确认过suspicious
}
