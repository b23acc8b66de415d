package language

import (
	"context"
	"log/slog"

	"github.com/z-wentao/lingoflow/pkg/llm"
	"github.com/z-wentao/lingoflow/pkg/models"
	"github.com/z-wentao/lingoflow/pkg/prompts"
	"github.com/z-wentao/lingoflow/pkg/tts"
)

// SichuaneseStrategy 四川话，没有单词翻译步骤
type SichuaneseStrategy struct {
	base
}

func NewSichuanese(gen llm.Generator, audio tts.Generator, l *slog.Logger) *SichuaneseStrategy {
	return &SichuaneseStrategy{base: newBase(Sichuanese, gen, audio, l)}
}

func (s *SichuaneseStrategy) GenerateDefinition(ctx context.Context, word string) models.Definition {
	return s.define(ctx, word, prompts.SichuaneseDefinition(word), "解释：", "音标：")
}

func (s *SichuaneseStrategy) TranslateExamples(ctx context.Context, examples []string) []string {
	return s.translateEach(ctx, examples, prompts.SichuaneseSentence)
}
