package models

// CommandAction 持久化命令类型
type CommandAction string

const (
	ActionCreateSubject       CommandAction = "create_subject"
	ActionUpdateSubjectStatus CommandAction = "update_subject_status"
	ActionCreateEvent         CommandAction = "create_event"
	ActionAddParticipant      CommandAction = "add_participant"
	ActionEndEvent            CommandAction = "end_event"
	ActionAddVLMLog           CommandAction = "add_vlm_log"
	ActionShutdown            CommandAction = "shutdown"
)

// Command 持久化命令（不可变，Action决定哪个payload非空）
// 检测循环与DB写入器之间唯一的通信载体
type Command struct {
	Action              CommandAction
	CreateSubject       *CreateSubjectPayload
	UpdateSubjectStatus *UpdateSubjectStatusPayload
	CreateEvent         *CreateEventPayload
	AddParticipant      *AddParticipantPayload
	EndEvent            *EndEventPayload
	AddVLMLog           *AddVLMLogPayload
}

// CreateSubjectPayload 创建人员记录
type CreateSubjectPayload struct {
	TrackingID string
	ReidVector []float64 // 允许为空（暂无re-id向量）
	CameraID   string
}

// UpdateSubjectStatusPayload 更新人员状态
type UpdateSubjectStatusPayload struct {
	TrackingID string
	Status     string
	CameraID   string // 可选，为空则不更新
}

// CreateEventPayload 创建事件
// EventID 由调用方预先分配，内存态与持久态共用同一ID
type CreateEventPayload struct {
	EventID               string
	StartCameraID         string
	ParticipantTrackingID string
}

// AddParticipantPayload 添加事件参与者（幂等）
type AddParticipantPayload struct {
	EventID    string
	TrackingID string
}

// EndEventPayload 结束事件
type EndEventPayload struct {
	EventID      string
	FinalStatus  string // 默认 ended_cleared
	FinalSummary string // 默认 ""
}

// AddVLMLogPayload 追加VLM分析日志
type AddVLMLogPayload struct {
	EventID     string
	CameraID    string
	Description string
	Embedding   []float64
	Subjects    []string
}

// VLM任务类型
const (
	TaskAnalyze  = "analyze"
	TaskShutdown = "shutdown"
)

// VLMTask VLM分析任务（检测循环 → VLM工作器）
type VLMTask struct {
	Task      string
	EventID   string
	Subjects  []VLMTaskSubject
	FrameJPEG []byte
}

// VLMTaskSubject 任务中的人员引用
type VLMTaskSubject struct {
	TrackingID string
}

// VLM结果动作（当前仅作为扩展点，生命周期管理器不消费）
const (
	ResultSuggestClearFlag = "suggest_clear_flag"
)

// VLMResult VLM工作器的建议输出
type VLMResult struct {
	Action     string
	TrackingID string
}
