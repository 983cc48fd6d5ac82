package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	commonmqtt "wisefido-vision/internal/common/mqtt"
	"wisefido-vision/internal/config"
	"wisefido-vision/internal/models"

	"go.uber.org/zap"
)

// MQTTSource 实时跟踪数据来源
// 边缘端推理进程按主题 vision/{camera_id}/tracks 发布每帧跟踪结果。
// 帧通道带小缓冲，检测循环来不及消费时丢弃新帧（跟踪观测是
// 瞬时数据，积压旧帧没有意义）。
type MQTTSource struct {
	config     *config.Config
	mqttClient *commonmqtt.Client
	logger     *zap.Logger

	mu      sync.Mutex
	frames  chan *models.Frame
	stopped bool
	dropped uint64
}

// NewMQTTSource 创建MQTT来源
func NewMQTTSource(cfg *config.Config, mqttClient *commonmqtt.Client, logger *zap.Logger) *MQTTSource {
	return &MQTTSource{
		config:     cfg,
		mqttClient: mqttClient,
		logger:     logger,
		frames:     make(chan *models.Frame, 4),
	}
}

// Start 订阅跟踪数据主题
func (s *MQTTSource) Start(ctx context.Context) (<-chan *models.Frame, error) {
	topic := s.config.Vision.Source.Topic
	if err := s.mqttClient.Subscribe(topic, s.config.MQTT.QoS, s.handleMessage); err != nil {
		return nil, fmt.Errorf("failed to subscribe to tracks topic: %w", err)
	}

	s.logger.Info("MQTT source started",
		zap.String("topic", topic),
	)

	return s.frames, nil
}

// Stop 取消订阅并关闭帧通道
func (s *MQTTSource) Stop() error {
	if err := s.mqttClient.Unsubscribe(s.config.Vision.Source.Topic); err != nil {
		s.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.frames)
	}
	s.mu.Unlock()

	s.logger.Info("MQTT source stopped")
	return nil
}

// handleMessage 处理一条跟踪数据消息
func (s *MQTTSource) handleMessage(topic string, payload []byte) error {
	// 主题格式: vision/{camera_id}/tracks
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	cameraID := parts[1]

	var frame models.Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		s.logger.Error("Failed to unmarshal frame",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	if frame.CameraID == "" {
		frame.CameraID = cameraID
	}
	if frame.Timestamp == 0 {
		frame.Timestamp = time.Now().UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	select {
	case s.frames <- &frame:
	default:
		// 检测循环落后，丢弃新帧
		s.dropped++
		s.logger.Debug("Frame dropped",
			zap.Uint64("total_dropped", s.dropped),
		)
	}

	return nil
}
