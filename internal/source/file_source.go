package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"wisefido-vision/internal/config"
	"wisefido-vision/internal/models"

	"go.uber.org/zap"
)

// FileSource 文件回放来源
// 逐行读取JSONL文件，每行一个完整的Frame。帧时间戳来自文件内容，
// 回放不做速率控制，检测逻辑以帧内时间为准
type FileSource struct {
	config *config.Config
	logger *zap.Logger
	frames chan *models.Frame
	stop   chan struct{}
}

// NewFileSource 创建文件回放来源
func NewFileSource(cfg *config.Config, logger *zap.Logger) *FileSource {
	return &FileSource{
		config: cfg,
		logger: logger,
		frames: make(chan *models.Frame),
		stop:   make(chan struct{}),
	}
}

// Start 打开文件并开始回放
func (s *FileSource) Start(ctx context.Context) (<-chan *models.Frame, error) {
	path := s.config.Vision.Source.Path
	if path == "" {
		return nil, fmt.Errorf("source path is required for file source")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}

	s.logger.Info("File source started",
		zap.String("path", path),
	)

	go s.replay(ctx, file)

	return s.frames, nil
}

// Stop 停止回放
func (s *FileSource) Stop() error {
	close(s.stop)
	return nil
}

// replay 回放循环，文件耗尽或被停止后关闭帧通道
func (s *FileSource) replay(ctx context.Context, file *os.File) {
	defer close(s.frames)
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// 单行可能携带base64帧图像，放宽行长限制
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var frame models.Frame
		if err := json.Unmarshal(line, &frame); err != nil {
			s.logger.Warn("Skipping malformed frame line",
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}

		select {
		case s.frames <- &frame:
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("Failed to read source file",
			zap.Error(err),
		)
	}

	s.logger.Info("File source replay finished",
		zap.Int("frames", lineNo),
	)
}
