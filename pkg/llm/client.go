package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/z-wentao/lingoflow/pkg/config"
	"github.com/z-wentao/lingoflow/pkg/logger"
)

// ErrEmptyResponse 模型返回了空内容
var ErrEmptyResponse = errors.New("LLM 未返回结果")

// Generator 把提示词变成一段文本
// 策略、例句生成器、随机单词生成器都只依赖这个接口
type Generator interface {
	GenerateResponse(ctx context.Context, prompt string) (string, error)
}

// Client 大模型客户端（OpenAI 兼容的 chat completions 接口）
// 单次请求，不重试；失败时记录日志并返回错误，由调用方决定降级方式
type Client struct {
	client       *openai.Client
	model        string
	systemPrompt string
	logger       *slog.Logger
}

// NewClient 创建大模型客户端
func NewClient(cfg config.LLMConfig, l *slog.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.TimeoutSeconds > 0 {
		oc.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = "你是一个词典助手。"
	}

	return &Client{
		client:       openai.NewClientWithConfig(oc),
		model:        cfg.Model,
		systemPrompt: systemPrompt,
		logger:       logger.OrDefault(l).With("component", "llm"),
	}
}

// GenerateResponse 发送一次对话请求，返回 choices[0].message.content
func (c *Client) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: c.systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		c.logger.Warn("LLM 请求失败", "model", c.model, "err", err)
		return "", fmt.Errorf("调用 LLM API 失败: %w", err)
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn("LLM 响应没有 choices", "model", c.model)
		return "", ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("LLM 响应", "content", content)
	return content, nil
}
