package config

import (
	"os"
	"strconv"
	"time"

	common "wisefido-vision/internal/common/config"
)

// Config 视觉监测服务配置
type Config struct {
	Database common.DatabaseConfig
	Redis    common.RedisConfig
	MQTT     common.MQTTConfig

	// VLM 分析服务配置（OpenAI兼容接口）
	VLM struct {
		BaseURL string
		APIKey  string
		Model   string
		Timeout time.Duration
	}

	// 检测配置
	Vision struct {
		CameraID string

		// 倒地姿态确认窗口：姿态必须连续保持该时长才标记suspicious
		PoseConfirmation time.Duration
		// VLM分析触发间隔：事件活跃期间每隔该时长提交一次分析任务
		VLMInterval time.Duration
		// 倒地判断阈值：躯干平均Y超过帧高的该比例视为倒地
		GroundThresholdPercent float64
		// 关键点置信度阈值：低于该值的关键点不参与倒地判断
		KeypointConfidence float64
		// 描述向量维度（占位实现）
		EmbeddingDim int

		// 跟踪数据来源
		Source struct {
			Type  string // "mqtt" 或 "file"
			Topic string // MQTT主题，如 "vision/+/tracks"
			Path  string // 文件回放路径（JSONL）
		}

		// 事件通知
		Notify struct {
			Stream    string // Redis Stream 名称
			MQTTTopic string // MQTT主题前缀，完整主题为 {prefix}/{camera_id}/event
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "video_analytics")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-vision")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.VLM.BaseURL = getEnv("VLM_BASE_URL", "https://api.openai.com/v1")
	cfg.VLM.APIKey = getEnv("VLM_API_KEY", "")
	cfg.VLM.Model = getEnv("VLM_MODEL", "gpt-4o")
	cfg.VLM.Timeout = time.Duration(getEnvFloat("VLM_TIMEOUT_SEC", 30)) * time.Second

	cfg.Vision.CameraID = getEnv("CAMERA_ID", "cam_01")
	cfg.Vision.PoseConfirmation = secondsToDuration(getEnvFloat("POSE_CONFIRMATION_SEC", 1.0))
	cfg.Vision.VLMInterval = secondsToDuration(getEnvFloat("VLM_INTERVAL_SEC", 5.0))
	cfg.Vision.GroundThresholdPercent = getEnvFloat("GROUND_THRESHOLD_PERCENT", 0.55)
	cfg.Vision.KeypointConfidence = getEnvFloat("KEYPOINT_CONFIDENCE", 0.5)
	cfg.Vision.EmbeddingDim = getEnvInt("EMBEDDING_DIM", 256)

	cfg.Vision.Source.Type = getEnv("SOURCE_TYPE", "mqtt")
	cfg.Vision.Source.Topic = getEnv("SOURCE_TOPIC", "vision/+/tracks")
	cfg.Vision.Source.Path = getEnv("SOURCE_PATH", "")

	cfg.Vision.Notify.Stream = getEnv("NOTIFY_STREAM", "vision:events")
	cfg.Vision.Notify.MQTTTopic = getEnv("NOTIFY_MQTT_TOPIC", "vision")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
