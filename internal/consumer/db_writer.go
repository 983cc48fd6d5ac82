package consumer

import (
	"context"
	"database/sql"

	"wisefido-vision/internal/common/database"
	"wisefido-vision/internal/dispatch"
	"wisefido-vision/internal/models"
	"wisefido-vision/internal/notifier"
	"wisefido-vision/internal/repository"

	"go.uber.org/zap"
)

// DBWriter 持久化命令消费者
// 系统中唯一向存储写入的组件（单写者），逐条串行消费命令队列，
// 因此人员/事件记录的写入天然无竞争。单条命令失败只记日志，
// 不重试、不中断后续消费。
type DBWriter struct {
	queue        *dispatch.CommandQueue
	subjectsRepo *repository.SubjectsRepository
	eventsRepo   *repository.EventsRepository
	vlmLogsRepo  *repository.VLMLogsRepository
	notifier     *notifier.Notifier
	db           *sql.DB
	logger       *zap.Logger
}

// NewDBWriter 创建持久化命令消费者
// db 的所有权移交给writer，Run退出时负责关闭
func NewDBWriter(
	queue *dispatch.CommandQueue,
	subjectsRepo *repository.SubjectsRepository,
	eventsRepo *repository.EventsRepository,
	vlmLogsRepo *repository.VLMLogsRepository,
	eventNotifier *notifier.Notifier,
	db *sql.DB,
	logger *zap.Logger,
) *DBWriter {
	return &DBWriter{
		queue:        queue,
		subjectsRepo: subjectsRepo,
		eventsRepo:   eventsRepo,
		vlmLogsRepo:  vlmLogsRepo,
		notifier:     eventNotifier,
		db:           db,
		logger:       logger,
	}
}

// Run 消费循环，收到shutdown命令或队列关闭后退出
// 服务关闭时上游会先取消ctx再推入哨兵，清空积压期间的写入
// 不能随ctx一起中止，因此DB操作使用不受取消影响的上下文
func (w *DBWriter) Run(ctx context.Context) {
	w.logger.Info("DB writer started")

	opCtx := context.WithoutCancel(ctx)
	for {
		cmd, ok := w.queue.Get()
		if !ok {
			break
		}

		if cmd.Action == models.ActionShutdown {
			w.logger.Info("DB writer shutdown signal received")
			break
		}

		if err := w.apply(opCtx, cmd); err != nil {
			w.logger.Error("Failed to apply command",
				zap.String("action", string(cmd.Action)),
				zap.Error(err),
			)
		}
	}

	if err := database.Close(w.db); err != nil {
		w.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	w.logger.Info("DB writer stopped")
}

// apply 按action分发到对应仓库方法
func (w *DBWriter) apply(ctx context.Context, cmd models.Command) error {
	switch cmd.Action {
	case models.ActionCreateSubject:
		p := cmd.CreateSubject
		if p == nil {
			w.warnMalformed(cmd)
			return nil
		}
		return w.subjectsRepo.CreateSubject(ctx, p.TrackingID, p.ReidVector, p.CameraID)

	case models.ActionUpdateSubjectStatus:
		p := cmd.UpdateSubjectStatus
		if p == nil {
			w.warnMalformed(cmd)
			return nil
		}
		return w.subjectsRepo.UpdateSubjectStatus(ctx, p.TrackingID, p.Status, p.CameraID)

	case models.ActionCreateEvent:
		p := cmd.CreateEvent
		if p == nil {
			w.warnMalformed(cmd)
			return nil
		}
		if err := w.eventsRepo.CreateEvent(ctx, p.EventID, p.StartCameraID, p.ParticipantTrackingID); err != nil {
			return err
		}
		if w.notifier != nil {
			w.notifier.Publish(ctx, notifier.EventNotification{
				Type:       notifier.NotifyEventStarted,
				EventID:    p.EventID,
				CameraID:   p.StartCameraID,
				TrackingID: p.ParticipantTrackingID,
			})
		}
		return nil

	case models.ActionAddParticipant:
		p := cmd.AddParticipant
		if p == nil {
			w.warnMalformed(cmd)
			return nil
		}
		return w.eventsRepo.AddParticipant(ctx, p.EventID, p.TrackingID)

	case models.ActionEndEvent:
		p := cmd.EndEvent
		if p == nil {
			w.warnMalformed(cmd)
			return nil
		}
		if err := w.eventsRepo.EndEvent(ctx, p.EventID, p.FinalStatus, p.FinalSummary); err != nil {
			return err
		}
		if w.notifier != nil {
			w.notifier.Publish(ctx, notifier.EventNotification{
				Type:    notifier.NotifyEventEnded,
				EventID: p.EventID,
			})
		}
		return nil

	case models.ActionAddVLMLog:
		p := cmd.AddVLMLog
		if p == nil {
			w.warnMalformed(cmd)
			return nil
		}
		if err := w.vlmLogsRepo.AddVLMLog(ctx, p.EventID, p.CameraID, p.Description, p.Embedding, p.Subjects); err != nil {
			return err
		}
		if w.notifier != nil {
			w.notifier.Publish(ctx, notifier.EventNotification{
				Type:        notifier.NotifyVLMLogged,
				EventID:     p.EventID,
				CameraID:    p.CameraID,
				Description: p.Description,
			})
		}
		return nil

	default:
		// 未知action：警告后丢弃，消费继续
		w.logger.Warn("Unknown command action",
			zap.String("action", string(cmd.Action)),
		)
		return nil
	}
}

func (w *DBWriter) warnMalformed(cmd models.Command) {
	w.logger.Warn("Malformed command: missing payload",
		zap.String("action", string(cmd.Action)),
	)
}
