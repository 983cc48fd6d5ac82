package tracker

import (
	"fmt"
	"time"

	"wisefido-vision/internal/config"
	"wisefido-vision/internal/dispatch"
	"wisefido-vision/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tracker 人员状态跟踪器
// 以跟踪器的临时track_id为键维护内存态Subject表，逐帧执行
// normal → pending → suspicious 的去抖状态机。所有持久化
// 副作用只通过命令队列发出，本身不做任何I/O。
type Tracker struct {
	config   *config.Config
	dbQueue  *dispatch.CommandQueue
	logger   *zap.Logger
	subjects map[int64]*models.Subject
}

// NewTracker 创建跟踪器
func NewTracker(cfg *config.Config, dbQueue *dispatch.CommandQueue, logger *zap.Logger) *Tracker {
	return &Tracker{
		config:   cfg,
		dbQueue:  dbQueue,
		logger:   logger,
		subjects: make(map[int64]*models.Subject),
	}
}

// Update 处理一帧的完整观测集，返回本帧状态发生变化的Subject
// （包括新建和因track丢失被移除的）。
func (t *Tracker) Update(frame *models.Frame, now time.Time) []*models.Subject {
	var changed []*models.Subject

	seen := make(map[int64]bool, len(frame.Tracks))

	for i := range frame.Tracks {
		obs := &frame.Tracks[i]
		seen[obs.TrackID] = true

		subject, exists := t.subjects[obs.TrackID]
		if !exists {
			subject = t.createSubject(obs.TrackID)
		}

		onGround := IsPersonOnGround(
			obs.Keypoints,
			frame.Height,
			t.config.Vision.GroundThresholdPercent,
			t.config.Vision.KeypointConfidence,
		)

		// 新建与同帧状态迁移只记一次变化
		if t.applyPose(subject, onGround, now) || !exists {
			changed = append(changed, subject)
		}
	}

	// 清理丢失的track：本帧未出现即移除，不发持久化命令
	for trackID, subject := range t.subjects {
		if !seen[trackID] {
			t.logger.Info("Track lost",
				zap.Int64("track_id", trackID),
				zap.String("tracking_id", subject.TrackingID),
			)
			delete(t.subjects, trackID)
			changed = append(changed, subject)
		}
	}

	return changed
}

// SuspiciousSubjects 当前处于suspicious状态的Subject
func (t *Tracker) SuspiciousSubjects() []*models.Subject {
	var suspicious []*models.Subject
	for _, subject := range t.subjects {
		if subject.Status == models.StatusSuspicious {
			suspicious = append(suspicious, subject)
		}
	}
	return suspicious
}

// Subjects 当前全部在跟Subject
func (t *Tracker) Subjects() []*models.Subject {
	all := make([]*models.Subject, 0, len(t.subjects))
	for _, subject := range t.subjects {
		all = append(all, subject)
	}
	return all
}

// createSubject 为首次出现的track创建Subject并发出建档命令
func (t *Tracker) createSubject(trackID int64) *models.Subject {
	subject := &models.Subject{
		TrackID:    trackID,
		TrackingID: newTrackingID(),
		Status:     models.StatusNormal,
	}
	t.subjects[trackID] = subject

	t.logger.Info("New subject",
		zap.Int64("track_id", trackID),
		zap.String("tracking_id", subject.TrackingID),
	)

	t.dbQueue.Put(models.Command{
		Action: models.ActionCreateSubject,
		CreateSubject: &models.CreateSubjectPayload{
			TrackingID: subject.TrackingID,
			ReidVector: []float64{}, // 暂无re-id向量
			CameraID:   t.config.Vision.CameraID,
		},
	})

	return subject
}

// applyPose 将倒地判断结果套入状态机，返回状态是否变化
func (t *Tracker) applyPose(subject *models.Subject, onGround bool, now time.Time) bool {
	if onGround {
		switch {
		case subject.Status == models.StatusNormal:
			subject.Status = models.StatusPending
			subject.PoseStartTime = now
			return true

		case subject.Status == models.StatusPending &&
			now.Sub(subject.PoseStartTime) >= t.config.Vision.PoseConfirmation &&
			!subject.Confirmed:
			subject.Status = models.StatusSuspicious
			subject.Confirmed = true

			t.logger.Warn("Subject confirmed suspicious",
				zap.Int64("track_id", subject.TrackID),
				zap.String("tracking_id", subject.TrackingID),
			)

			t.dbQueue.Put(models.Command{
				Action: models.ActionUpdateSubjectStatus,
				UpdateSubjectStatus: &models.UpdateSubjectStatusPayload{
					TrackingID: subject.TrackingID,
					Status:     string(models.StatusSuspicious),
				},
			})
			return true
		}
		return false
	}

	// 未倒地：非normal状态一律回落，确认窗口计时清零
	if subject.Status != models.StatusNormal {
		t.logger.Info("Subject back to normal",
			zap.Int64("track_id", subject.TrackID),
			zap.String("tracking_id", subject.TrackingID),
		)

		subject.Status = models.StatusNormal
		subject.PoseStartTime = time.Time{}
		subject.Confirmed = false

		t.dbQueue.Put(models.Command{
			Action: models.ActionUpdateSubjectStatus,
			UpdateSubjectStatus: &models.UpdateSubjectStatusPayload{
				TrackingID: subject.TrackingID,
				Status:     string(models.StatusNormal),
			},
		})
		return true
	}

	return false
}

// newTrackingID 生成系统持久ID（person_ + 8位hex）
func newTrackingID() string {
	u := uuid.New()
	return fmt.Sprintf("person_%x", u[:4])
}
