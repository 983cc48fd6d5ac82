package vlm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"wisefido-vision/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// chatRequest OpenAI兼容 chat completions 请求
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

// chatResponse OpenAI兼容 chat completions 响应
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client VLM分析客户端（OpenAI兼容接口）
type Client struct {
	httpClient *resty.Client
	model      string
	logger     *zap.Logger
}

// NewClient 创建VLM客户端
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.VLM.BaseURL).
		SetTimeout(cfg.VLM.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.VLM.APIKey != "" {
		client.SetAuthToken(cfg.VLM.APIKey)
	}

	return &Client{
		httpClient: client,
		model:      cfg.VLM.Model,
		logger:     logger,
	}
}

// AnalyzeFrame 分析一帧图像中指定人员的行为，返回简短文本描述
func (c *Client) AnalyzeFrame(ctx context.Context, frameJPEG []byte, trackingIDs []string) (string, error) {
	if len(frameJPEG) == 0 {
		return "", fmt.Errorf("frame image is required")
	}

	prompt := fmt.Sprintf(
		"Analyze the following subjects: %s. What are each of them doing? Keep it extremely short.",
		strings.Join(trackingIDs, ", "),
	)
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frameJPEG)

	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []chatContent{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
				},
			},
		},
	}

	c.logger.Debug("Calling VLM API",
		zap.String("model", c.model),
		zap.Int("subject_count", len(trackingIDs)),
		zap.Int("frame_bytes", len(frameJPEG)),
	)

	var response chatResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		SetError(&response).
		Post("/chat/completions")

	if err != nil {
		return "", fmt.Errorf("failed to call VLM API: %w", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("VLM API error: %s (status: %d)", response.Error.Message, resp.StatusCode())
	}
	if resp.IsError() {
		return "", fmt.Errorf("VLM API returned status %d", resp.StatusCode())
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("VLM API returned no choices")
	}

	description := strings.TrimSpace(response.Choices[0].Message.Content)
	if description == "" {
		return "", fmt.Errorf("VLM API returned empty description")
	}

	return description, nil
}
