package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	commonmqtt "wisefido-vision/internal/common/mqtt"
	commonredis "wisefido-vision/internal/common/redis"
	"wisefido-vision/internal/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 通知类型
const (
	NotifyEventStarted = "event_started"
	NotifyEventEnded   = "event_ended"
	NotifyVLMLogged    = "vlm_logged"
)

// EventNotification 事件生命周期通知
// 下游（看板、护理端App）通过 Redis Stream 或 MQTT 订阅
type EventNotification struct {
	Type        string `json:"type"`
	EventID     string `json:"event_id"`
	CameraID    string `json:"camera_id"`
	TrackingID  string `json:"tracking_id,omitempty"`
	Description string `json:"description,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Notifier 事件通知发布器
// 通知属于尽力而为：发布失败只记日志，不影响持久化流程
type Notifier struct {
	config      *config.Config
	redisClient *redis.Client
	mqttClient  *commonmqtt.Client
	logger      *zap.Logger
}

// NewNotifier 创建通知发布器（redisClient / mqttClient 允许为nil）
func NewNotifier(cfg *config.Config, redisClient *redis.Client, mqttClient *commonmqtt.Client, logger *zap.Logger) *Notifier {
	return &Notifier{
		config:      cfg,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		logger:      logger,
	}
}

// Publish 发布一条事件通知
func (n *Notifier) Publish(ctx context.Context, notification EventNotification) {
	if notification.Timestamp == 0 {
		notification.Timestamp = time.Now().Unix()
	}

	if n.redisClient != nil {
		if _, err := commonredis.PublishJSONToStream(ctx, n.redisClient, n.config.Vision.Notify.Stream, notification); err != nil {
			n.logger.Error("Failed to publish notification to redis stream",
				zap.String("stream", n.config.Vision.Notify.Stream),
				zap.String("type", notification.Type),
				zap.Error(err),
			)
		}
	}

	if n.mqttClient != nil {
		payload, err := json.Marshal(notification)
		if err != nil {
			n.logger.Error("Failed to marshal notification",
				zap.Error(err),
			)
			return
		}

		topic := fmt.Sprintf("%s/%s/event", n.config.Vision.Notify.MQTTTopic, notification.CameraID)
		if err := n.mqttClient.Publish(topic, n.config.MQTT.QoS, false, payload); err != nil {
			n.logger.Error("Failed to publish notification to MQTT",
				zap.String("topic", topic),
				zap.String("type", notification.Type),
				zap.Error(err),
			)
		}
	}
}
