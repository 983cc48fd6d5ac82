package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-vision/internal/common/database"
	commonmqtt "wisefido-vision/internal/common/mqtt"
	commonredis "wisefido-vision/internal/common/redis"
	"wisefido-vision/internal/config"
	"wisefido-vision/internal/consumer"
	"wisefido-vision/internal/dispatch"
	"wisefido-vision/internal/lifecycle"
	"wisefido-vision/internal/models"
	"wisefido-vision/internal/notifier"
	"wisefido-vision/internal/repository"
	"wisefido-vision/internal/source"
	"wisefido-vision/internal/tracker"
	"wisefido-vision/internal/vlm"
	"wisefido-vision/internal/worker"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 关闭时等待消费者清空队列的上限
const consumerDrainTimeout = 10 * time.Second

// VisionService 视觉监测服务（整合各层）
//
// 三个执行上下文，只通过命令队列通信：
//   - 检测循环：帧观测 → Tracker → Lifecycle Manager（无任何I/O）
//   - DB写入器：串行消费持久化命令
//   - VLM工作器：消费分析任务
type VisionService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *commonmqtt.Client

	dbQueue     *dispatch.CommandQueue
	vlmQueue    *dispatch.TaskQueue
	resultQueue *dispatch.ResultQueue

	tracker   *tracker.Tracker
	manager   *lifecycle.Manager
	writer    *consumer.DBWriter
	vlmWorker *worker.VLMWorker
	frameSrc  source.Source

	detectDone   chan struct{}
	consumerDone chan struct{}
}

// NewVisionService 创建视觉监测服务
func NewVisionService(cfg *config.Config, logger *zap.Logger) (*VisionService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	if err := commonredis.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 3. 连接 MQTT
	mqttClient, err := commonmqtt.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// 4. 创建 Repository 层
	subjectsRepo := repository.NewSubjectsRepository(db, logger)
	eventsRepo := repository.NewEventsRepository(db, logger)
	vlmLogsRepo := repository.NewVLMLogsRepository(db, logger)

	// 5. 创建命令队列
	dbQueue := dispatch.NewCommandQueue()
	vlmQueue := dispatch.NewTaskQueue()
	resultQueue := dispatch.NewResultQueue()

	// 6. 创建消费者
	eventNotifier := notifier.NewNotifier(cfg, redisClient, mqttClient, logger)
	writer := consumer.NewDBWriter(dbQueue, subjectsRepo, eventsRepo, vlmLogsRepo, eventNotifier, db, logger)

	vlmClient := vlm.NewClient(cfg, logger)
	vlmWorker := worker.NewVLMWorker(cfg, vlmQueue, dbQueue, resultQueue, vlmClient, logger)

	// 7. 创建检测层
	subjectTracker := tracker.NewTracker(cfg, dbQueue, logger)
	eventManager := lifecycle.NewManager(cfg, dbQueue, vlmQueue, logger)

	// 8. 创建帧来源
	frameSrc, err := newFrameSource(cfg, mqttClient, logger)
	if err != nil {
		return nil, err
	}

	return &VisionService{
		config:       cfg,
		logger:       logger,
		db:           db,
		redisClient:  redisClient,
		mqttClient:   mqttClient,
		dbQueue:      dbQueue,
		vlmQueue:     vlmQueue,
		resultQueue:  resultQueue,
		tracker:      subjectTracker,
		manager:      eventManager,
		writer:       writer,
		vlmWorker:    vlmWorker,
		frameSrc:     frameSrc,
		detectDone:   make(chan struct{}),
		consumerDone: make(chan struct{}),
	}, nil
}

// newFrameSource 按配置选择帧来源
func newFrameSource(cfg *config.Config, mqttClient *commonmqtt.Client, logger *zap.Logger) (source.Source, error) {
	switch cfg.Vision.Source.Type {
	case "file":
		return source.NewFileSource(cfg, logger), nil
	case "mqtt", "":
		return source.NewMQTTSource(cfg, mqttClient, logger), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Vision.Source.Type)
	}
}

// Start 启动服务并阻塞运行检测循环，帧来源耗尽或上下文取消后返回
func (s *VisionService) Start(ctx context.Context) error {
	s.logger.Info("Starting vision service",
		zap.String("camera_id", s.config.Vision.CameraID),
		zap.String("source_type", s.config.Vision.Source.Type),
	)

	frames, err := s.frameSrc.Start(ctx)
	if err != nil {
		close(s.detectDone)
		return fmt.Errorf("failed to start frame source: %w", err)
	}

	// 启动后台消费者
	go func() {
		defer close(s.consumerDone)

		workerDone := make(chan struct{})
		go func() {
			defer close(workerDone)
			s.vlmWorker.Run(ctx)
		}()

		s.writer.Run(ctx)
		<-workerDone
	}()

	// 检测循环（唯一的延迟敏感路径，不做任何阻塞I/O）
	defer close(s.detectDone)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Detection loop cancelled")
			return nil
		case frame, ok := <-frames:
			if !ok {
				s.logger.Info("Frame source exhausted")
				return nil
			}
			s.processFrame(frame)
		}
	}
}

// processFrame 处理一帧：跟踪状态机 → 事件生命周期
func (s *VisionService) processFrame(frame *models.Frame) {
	now := frame.Time()
	if frame.Timestamp == 0 {
		now = time.Now()
	}

	s.tracker.Update(frame, now)
	s.manager.Update(s.tracker.SuspiciousSubjects(), frame, now)
}

// Stop 停止服务
// 顺序：停帧来源 → 等检测循环退出 → 发送关闭哨兵 → 限时等消费者清空
func (s *VisionService) Stop() error {
	s.logger.Info("Stopping vision service")

	if err := s.frameSrc.Stop(); err != nil {
		s.logger.Error("Failed to stop frame source",
			zap.Error(err),
		)
	}

	select {
	case <-s.detectDone:
	case <-time.After(consumerDrainTimeout):
		s.logger.Warn("Detection loop did not exit in time")
	}

	// 关闭哨兵：消费者处理完已入队的消息后退出
	s.dbQueue.Put(models.Command{Action: models.ActionShutdown})
	s.vlmQueue.Put(models.VLMTask{Task: models.TaskShutdown})

	select {
	case <-s.consumerDone:
	case <-time.After(consumerDrainTimeout):
		s.logger.Warn("Consumers did not drain in time",
			zap.Int("db_backlog", s.dbQueue.Len()),
			zap.Int("vlm_backlog", s.vlmQueue.Len()),
		)
	}

	// 数据库连接由DB写入器在退出时关闭
	if err := commonredis.Close(s.redisClient); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}
	s.mqttClient.Disconnect()

	s.logger.Info("Vision service stopped")
	return nil
}
