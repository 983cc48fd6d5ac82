package worker

import (
	"context"
	"math/rand"

	"wisefido-vision/internal/config"
	"wisefido-vision/internal/dispatch"
	"wisefido-vision/internal/models"

	"go.uber.org/zap"
)

// Analyzer VLM分析能力（由 vlm.Client 实现，测试中可替换）
type Analyzer interface {
	AnalyzeFrame(ctx context.Context, frameJPEG []byte, trackingIDs []string) (string, error)
}

// VLMWorker VLM分析工作器
// 消费分析任务队列，调用VLM生成描述并把日志命令发回持久化队列。
// 分析失败只记日志：不重试，也绝不回滚事件状态。
type VLMWorker struct {
	config   *config.Config
	tasks    *dispatch.TaskQueue
	dbQueue  *dispatch.CommandQueue
	results  *dispatch.ResultQueue
	analyzer Analyzer
	logger   *zap.Logger
}

// NewVLMWorker 创建VLM工作器
func NewVLMWorker(
	cfg *config.Config,
	tasks *dispatch.TaskQueue,
	dbQueue *dispatch.CommandQueue,
	results *dispatch.ResultQueue,
	analyzer Analyzer,
	logger *zap.Logger,
) *VLMWorker {
	return &VLMWorker{
		config:   cfg,
		tasks:    tasks,
		dbQueue:  dbQueue,
		results:  results,
		analyzer: analyzer,
		logger:   logger,
	}
}

// Run 消费循环，收到shutdown任务或队列关闭后退出
// 与DB写入器相同，关闭哨兵到来前的积压任务要完整处理，
// 分析调用使用不受取消影响的上下文
func (w *VLMWorker) Run(ctx context.Context) {
	w.logger.Info("VLM worker started")

	opCtx := context.WithoutCancel(ctx)
	for {
		task, ok := w.tasks.Get()
		if !ok {
			break
		}

		if task.Task == models.TaskShutdown {
			w.logger.Info("VLM worker shutdown signal received")
			break
		}

		if task.Task != models.TaskAnalyze {
			w.logger.Warn("Unknown VLM task",
				zap.String("task", task.Task),
			)
			continue
		}

		w.runAnalysis(opCtx, task)
	}

	w.logger.Info("VLM worker stopped")
}

// runAnalysis 执行一次分析并发出日志命令
func (w *VLMWorker) runAnalysis(ctx context.Context, task models.VLMTask) {
	trackingIDs := make([]string, 0, len(task.Subjects))
	for _, s := range task.Subjects {
		trackingIDs = append(trackingIDs, s.TrackingID)
	}

	w.logger.Info("Running VLM analysis",
		zap.String("event_id", task.EventID),
		zap.Strings("subjects", trackingIDs),
	)

	description, err := w.analyzer.AnalyzeFrame(ctx, task.FrameJPEG, trackingIDs)
	if err != nil {
		w.logger.Error("VLM analysis failed",
			zap.String("event_id", task.EventID),
			zap.Error(err),
		)
		return
	}

	w.logger.Info("VLM analysis complete",
		zap.String("event_id", task.EventID),
		zap.String("description", description),
	)

	// TODO: 接入embedding服务后替换随机占位向量
	embedding := placeholderEmbedding(w.config.Vision.EmbeddingDim)

	w.dbQueue.Put(models.Command{
		Action: models.ActionAddVLMLog,
		AddVLMLog: &models.AddVLMLogPayload{
			EventID:     task.EventID,
			CameraID:    w.config.Vision.CameraID,
			Description: description,
			Embedding:   embedding,
			Subjects:    trackingIDs,
		},
	})
}

// placeholderEmbedding 生成占位描述向量
func placeholderEmbedding(dim int) []float64 {
	embedding := make([]float64, dim)
	for i := range embedding {
		embedding[i] = rand.Float64()
	}
	return embedding
}
