package lifecycle

import (
	"time"

	"wisefido-vision/internal/config"
	"wisefido-vision/internal/dispatch"
	"wisefido-vision/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// activeEvent 内存态事件
// lastEscalation为零值时表示从未触发过VLM分析，下一帧立即触发
type activeEvent struct {
	id             string
	participants   map[string]struct{}
	lastEscalation time.Time
}

// Manager 事件生命周期管理器
// 全系统同一时刻最多只存在一个活跃事件。与Tracker在同一个检测
// 协程内同步执行，因此内部状态不加锁。
type Manager struct {
	config   *config.Config
	dbQueue  *dispatch.CommandQueue
	vlmQueue *dispatch.TaskQueue
	logger   *zap.Logger
	active   *activeEvent
}

// NewManager 创建事件生命周期管理器
func NewManager(cfg *config.Config, dbQueue *dispatch.CommandQueue, vlmQueue *dispatch.TaskQueue, logger *zap.Logger) *Manager {
	return &Manager{
		config:   cfg,
		dbQueue:  dbQueue,
		vlmQueue: vlmQueue,
		logger:   logger,
	}
}

// Update 根据本帧的suspicious集合推进事件生命周期
// 每帧按 start → end → escalate 的优先级执行，start与end互斥，
// escalate可与start发生在同一帧（创建后立即分析）。
func (m *Manager) Update(suspicious []*models.Subject, frame *models.Frame, now time.Time) {
	// START：出现suspicious且无活跃事件
	if len(suspicious) > 0 && m.active == nil {
		m.startEvent(suspicious, now)
	}

	// END：suspicious清空且有活跃事件
	if len(suspicious) == 0 && m.active != nil {
		m.endEvent()
		return
	}

	// ESCALATE：到达分析间隔
	if m.active != nil && now.Sub(m.active.lastEscalation) >= m.config.Vision.VLMInterval {
		m.escalate(suspicious, frame, now)
	}
}

// ActiveEventID 当前活跃事件ID，无活跃事件时返回空串
func (m *Manager) ActiveEventID() string {
	if m.active == nil {
		return ""
	}
	return m.active.id
}

// Participants 当前活跃事件的参与者ID集合（副本）
func (m *Manager) Participants() []string {
	if m.active == nil {
		return nil
	}
	ids := make([]string, 0, len(m.active.participants))
	for id := range m.active.participants {
		ids = append(ids, id)
	}
	return ids
}

// startEvent 创建事件
// 事件ID在此处预分配并随命令下发，内存态与持久态始终一致。
// 参与者只先登记第一个suspicious的人，其余在下一次escalate补入
func (m *Manager) startEvent(suspicious []*models.Subject, now time.Time) {
	eventID := uuid.New().String()
	firstParticipant := suspicious[0].TrackingID

	m.active = &activeEvent{
		id:           eventID,
		participants: map[string]struct{}{firstParticipant: {}},
		// lastEscalation保持零值，强制下方escalate分支立即执行
	}

	m.logger.Warn("Event started",
		zap.String("event_id", eventID),
		zap.String("first_participant", firstParticipant),
		zap.Int("suspicious_count", len(suspicious)),
	)

	m.dbQueue.Put(models.Command{
		Action: models.ActionCreateEvent,
		CreateEvent: &models.CreateEventPayload{
			EventID:               eventID,
			StartCameraID:         m.config.Vision.CameraID,
			ParticipantTrackingID: firstParticipant,
		},
	})
}

// endEvent 结束事件并丢弃内存态，此后事件历史只存在于持久层
func (m *Manager) endEvent() {
	m.logger.Info("Event ended",
		zap.String("event_id", m.active.id),
		zap.Int("participant_count", len(m.active.participants)),
	)

	m.dbQueue.Put(models.Command{
		Action: models.ActionEndEvent,
		EndEvent: &models.EndEventPayload{
			EventID:      m.active.id,
			FinalStatus:  models.EventStatusEndedCleared,
			FinalSummary: "",
		},
	})

	m.active = nil
}

// escalate 补入新参与者并提交一次VLM分析任务
// 无论是否有新参与者，lastEscalation都会更新：该间隔控制的是
// 分析频率，不是成员变化
func (m *Manager) escalate(suspicious []*models.Subject, frame *models.Frame, now time.Time) {
	for _, subject := range suspicious {
		if _, ok := m.active.participants[subject.TrackingID]; ok {
			continue
		}

		m.logger.Info("Participant joined event",
			zap.String("event_id", m.active.id),
			zap.String("tracking_id", subject.TrackingID),
		)

		m.dbQueue.Put(models.Command{
			Action: models.ActionAddParticipant,
			AddParticipant: &models.AddParticipantPayload{
				EventID:    m.active.id,
				TrackingID: subject.TrackingID,
			},
		})
		m.active.participants[subject.TrackingID] = struct{}{}
	}

	taskSubjects := make([]models.VLMTaskSubject, 0, len(suspicious))
	for _, subject := range suspicious {
		taskSubjects = append(taskSubjects, models.VLMTaskSubject{TrackingID: subject.TrackingID})
	}

	m.logger.Debug("VLM analysis triggered",
		zap.String("event_id", m.active.id),
		zap.Int("subject_count", len(taskSubjects)),
	)

	m.vlmQueue.Put(models.VLMTask{
		Task:      models.TaskAnalyze,
		EventID:   m.active.id,
		Subjects:  taskSubjects,
		FrameJPEG: frame.ImageJPEG,
	})

	m.active.lastEscalation = now
}
