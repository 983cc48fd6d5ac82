// Package source 提供跟踪观测的注入来源。
//
// 姿态/跟踪模型是外部协作方：生产环境由边缘端推理进程把每帧的
// 跟踪结果以JSON发到MQTT；回放与测试使用文件/通道来源。状态机
// 逻辑只实现一份，与具体来源解耦。
package source

import (
	"context"

	"wisefido-vision/internal/models"
)

// Source 跟踪观测来源
// Start 返回帧通道；来源停止（Stop、上下文取消或数据耗尽）后通道关闭
type Source interface {
	Start(ctx context.Context) (<-chan *models.Frame, error)
	Stop() error
}

// ChannelSource 由调用方直接注入帧的来源（测试用）
type ChannelSource struct {
	frames chan *models.Frame
}

// NewChannelSource 创建通道来源
func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{
		frames: make(chan *models.Frame, buffer),
	}
}

// Start 实现 Source
func (s *ChannelSource) Start(ctx context.Context) (<-chan *models.Frame, error) {
	return s.frames, nil
}

// Stop 实现 Source
func (s *ChannelSource) Stop() error {
	close(s.frames)
	return nil
}

// Push 注入一帧
func (s *ChannelSource) Push(frame *models.Frame) {
	s.frames <- frame
}
