package language

import (
	"context"
	"log/slog"

	"github.com/z-wentao/lingoflow/pkg/llm"
	"github.com/z-wentao/lingoflow/pkg/models"
	"github.com/z-wentao/lingoflow/pkg/prompts"
	"github.com/z-wentao/lingoflow/pkg/tts"
)

// MandarinStrategy 普通话
type MandarinStrategy struct {
	base
}

func NewMandarin(gen llm.Generator, audio tts.Generator, l *slog.Logger) *MandarinStrategy {
	return &MandarinStrategy{base: newBase(Mandarin, gen, audio, l)}
}

// GenerateDefinition 非中文单词先译成中文，再查释义和拼音
func (s *MandarinStrategy) GenerateDefinition(ctx context.Context, word string) models.Definition {
	pronounce := s.pronounceWord(ctx, word, prompts.MandarinTranslateWord)

	subject := pronounce
	if subject == "" {
		subject = word
	}
	def := s.define(ctx, word, prompts.MandarinDefinition(subject), "Definition:", "Phonetic:")
	def.PronounceWord = pronounce
	return def
}

func (s *MandarinStrategy) TranslateExamples(ctx context.Context, examples []string) []string {
	return s.translateEach(ctx, examples, prompts.MandarinSentence)
}
