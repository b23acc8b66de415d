package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/prompts"
)

var (
	// ErrNoRandomWord 多次尝试后仍未得到新的随机单词
	ErrNoRandomWord = errors.New("未能生成随机单词")

	// ErrUnknownStyle 不支持的单词风格
	ErrUnknownStyle = errors.New("不支持的单词风格")
)

// DefaultStyle 未指定风格时使用的默认风格
const DefaultStyle = "life"

// Styles 支持的随机单词风格
var Styles = []string{"work", "life", "computer", "study"}

const randomWordAttempts = 3

// Service 基于大模型的例句与随机单词生成服务
type Service struct {
	gen    Generator
	recent *RecentWords
	logger *slog.Logger
	now    func() time.Time
}

// NewService 创建生成服务，recent 由调用方注入以便在多个请求间共享
func NewService(gen Generator, recent *RecentWords, l *slog.Logger) *Service {
	if recent == nil {
		recent = NewRecentWords(DefaultRecentWords)
	}
	return &Service{
		gen:    gen,
		recent: recent,
		logger: logger.OrDefault(l).With("component", "llm_service"),
		now:    time.Now,
	}
}

// GenerateExamples 生成 count 个英文例句
func (s *Service) GenerateExamples(ctx context.Context, word string, count int) ([]string, error) {
	content, err := s.gen.GenerateResponse(ctx, prompts.Examples(word, count))
	if err != nil {
		return nil, err
	}

	var result struct {
		Examples []string `json:"examples"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &result); err != nil {
		s.logger.Warn("例句 JSON 解析失败", "word", word, "content", content, "err", err)
		return nil, fmt.Errorf("解析例句失败: %w", err)
	}

	examples := make([]string, 0, len(result.Examples))
	for _, e := range result.Examples {
		if e = strings.TrimSpace(e); e != "" {
			examples = append(examples, e)
		}
	}
	return examples, nil
}

// GenerateRandomWord 按风格生成一个最近没有出现过的单词
func (s *Service) GenerateRandomWord(ctx context.Context, style string) (string, error) {
	style, err := NormalizeStyle(style)
	if err != nil {
		return "", err
	}

	prompt := prompts.RandomWord(style, s.now().Unix())

	for attempt := 1; attempt <= randomWordAttempts; attempt++ {
		content, err := s.gen.GenerateResponse(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}

		var result struct {
			Word string `json:"word"`
		}
		if err := json.Unmarshal([]byte(stripCodeFence(content)), &result); err != nil {
			s.logger.Warn("随机单词 JSON 解析失败", "attempt", attempt, "content", content, "err", err)
			continue
		}

		word := strings.TrimSpace(result.Word)
		if word == "" {
			continue
		}
		if !s.recent.TryAdd(word) {
			s.logger.Debug("随机单词最近出现过，重新生成", "word", word, "attempt", attempt)
			continue
		}
		return word, nil
	}

	return "", ErrNoRandomWord
}

// NormalizeStyle 校验风格，空字符串返回默认风格
func NormalizeStyle(style string) (string, error) {
	style = strings.ToLower(strings.TrimSpace(style))
	if style == "" {
		return DefaultStyle, nil
	}
	for _, s := range Styles {
		if s == style {
			return style, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownStyle, style)
}

// stripCodeFence 去掉模型常见的 ```json ... ``` 包裹
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
