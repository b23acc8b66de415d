package language

import (
	"context"
	"log/slog"

	"github.com/z-wentao/lingoflow/pkg/llm"
	"github.com/z-wentao/lingoflow/pkg/models"
	"github.com/z-wentao/lingoflow/pkg/prompts"
	"github.com/z-wentao/lingoflow/pkg/tts"
)

// CantoneseStrategy 粤语（繁体字，粤拼）
type CantoneseStrategy struct {
	base
}

func NewCantonese(gen llm.Generator, audio tts.Generator, l *slog.Logger) *CantoneseStrategy {
	return &CantoneseStrategy{base: newBase(Cantonese, gen, audio, l)}
}

func (s *CantoneseStrategy) GenerateDefinition(ctx context.Context, word string) models.Definition {
	pronounce := s.pronounceWord(ctx, word, prompts.CantoneseTranslateWord)

	subject := pronounce
	if subject == "" {
		subject = word
	}
	def := s.define(ctx, word, prompts.CantoneseDefinition(subject), "解释：", "粤拼：")
	def.PronounceWord = pronounce
	return def
}

func (s *CantoneseStrategy) TranslateExamples(ctx context.Context, examples []string) []string {
	return s.translateEach(ctx, examples, prompts.CantoneseSentence)
}
