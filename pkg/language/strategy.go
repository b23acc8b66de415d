// Package language 各语言变体的查询策略
//
// 每个策略负责三件事：生成释义与注音、翻译例句、用绑定的 TTS 后端合成音频。
// 所有方法都不返回错误：大模型或 TTS 失败时降级为空字段或原句。
package language

import (
	"context"
	"log/slog"
	"strings"

	"github.com/z-wentao/lingoflow/pkg/llm"
	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/models"
	"github.com/z-wentao/lingoflow/pkg/tts"
)

// 支持的语言代码
const (
	English    = "en"
	Mandarin   = "zh"
	Cantonese  = "zh-yue"
	Sichuanese = "zh-sc"
)

// Strategy 单个语言变体的策略
type Strategy interface {
	// Code 语言代码
	Code() string

	// GenerateDefinition 生成释义和注音，失败时字段为空
	GenerateDefinition(ctx context.Context, word string) models.Definition

	// TranslateExamples 翻译例句，返回与输入等长、同序的列表
	TranslateExamples(ctx context.Context, examples []string) []string

	// GenerateAudio 合成音频，返回文件名，失败时返回空字符串
	GenerateAudio(ctx context.Context, text, word string) string
}

// base 各策略共享的依赖和工具方法
type base struct {
	code   string
	gen    llm.Generator
	audio  tts.Generator
	logger *slog.Logger
}

func newBase(code string, gen llm.Generator, audio tts.Generator, l *slog.Logger) base {
	return base{
		code:   code,
		gen:    gen,
		audio:  audio,
		logger: logger.OrDefault(l).With("component", "strategy", "lang", code),
	}
}

func (b *base) Code() string {
	return b.code
}

func (b *base) GenerateAudio(ctx context.Context, text, word string) string {
	if b.audio == nil {
		return ""
	}
	name, err := b.audio.GenerateAudio(ctx, text, b.code, word)
	if err != nil {
		b.logger.Warn("音频生成失败", "word", word, "err", err)
		return ""
	}
	return name
}

// ask 调用大模型，失败或空响应时返回 false
func (b *base) ask(ctx context.Context, prompt string) (string, bool) {
	resp, err := b.gen.GenerateResponse(ctx, prompt)
	if err != nil {
		return "", false
	}
	resp = strings.TrimSpace(resp)
	return resp, resp != ""
}

// pronounceWord 非中文单词先翻译成中文，失败时返回空字符串
func (b *base) pronounceWord(ctx context.Context, word string, translatePrompt func(string) string) string {
	if IsChinese(word) {
		return word
	}
	translated, ok := b.ask(ctx, translatePrompt(word))
	if !ok {
		b.logger.Warn("单词翻译失败", "word", word)
		return ""
	}
	return translated
}

// define 请求释义并按行前缀解析
func (b *base) define(ctx context.Context, word, prompt, definitionLabel, phoneticLabel string) models.Definition {
	resp, ok := b.ask(ctx, prompt)
	if !ok {
		b.logger.Warn("释义生成失败", "word", word)
		return models.Definition{}
	}

	def := parseDefinition(resp, definitionLabel, phoneticLabel)
	if def.Definition == "" && def.Phonetic == "" {
		b.logger.Warn("释义格式无法解析", "word", word, "response", resp)
	}
	return def
}

// translateEach 逐句翻译，失败时保留原句
func (b *base) translateEach(ctx context.Context, examples []string, prompt func(string) string) []string {
	out := make([]string, len(examples))
	for i, example := range examples {
		translated, ok := b.ask(ctx, prompt(example))
		if !ok {
			b.logger.Warn("例句翻译失败，保留原句", "example", example)
			out[i] = example
			continue
		}
		out[i] = translated
	}
	return out
}

// parseDefinition 按精确的行前缀提取释义和注音，不匹配的行忽略
func parseDefinition(resp, definitionLabel, phoneticLabel string) models.Definition {
	var def models.Definition
	for _, line := range strings.Split(strings.TrimSpace(resp), "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, definitionLabel):
			def.Definition = strings.TrimSpace(strings.TrimPrefix(line, definitionLabel))
		case strings.HasPrefix(line, phoneticLabel):
			def.Phonetic = strings.TrimSpace(strings.TrimPrefix(line, phoneticLabel))
		}
	}
	return def
}

// IsChinese 文本是否包含 CJK 统一表意文字（U+4E00..U+9FFF）
func IsChinese(text string) bool {
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}
