package language

import (
	"context"
	"log/slog"

	"github.com/z-wentao/lingoflow/pkg/llm"
	"github.com/z-wentao/lingoflow/pkg/models"
	"github.com/z-wentao/lingoflow/pkg/prompts"
	"github.com/z-wentao/lingoflow/pkg/tts"
)

// EnglishStrategy 英语，也是未知语言的兜底策略
type EnglishStrategy struct {
	base
}

func NewEnglish(gen llm.Generator, audio tts.Generator, l *slog.Logger) *EnglishStrategy {
	return &EnglishStrategy{base: newBase(English, gen, audio, l)}
}

func (s *EnglishStrategy) GenerateDefinition(ctx context.Context, word string) models.Definition {
	return s.define(ctx, word, prompts.EnglishDefinition(word), "Definition:", "Phonetic:")
}

// TranslateExamples 英语例句无需翻译，返回副本
func (s *EnglishStrategy) TranslateExamples(_ context.Context, examples []string) []string {
	out := make([]string, len(examples))
	copy(out, examples)
	return out
}
