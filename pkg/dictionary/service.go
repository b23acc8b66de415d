// Package dictionary 单词查询编排：基础例句 -> 各语言释义与例句 -> 音频 -> 持久化
package dictionary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/z-wentao/lingoflow/pkg/language"
	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/models"
	"github.com/z-wentao/lingoflow/pkg/storage"
)

const (
	DefaultExampleCount = 2
	MaxExampleCount     = 10

	defaultAudioConcurrency = 4
)

var (
	ErrEmptyWord   = errors.New("单词不能为空")
	ErrNoLanguages = errors.New("至少需要一种语言")
)

// ExampleSource 生成英文基础例句
type ExampleSource interface {
	GenerateExamples(ctx context.Context, word string, count int) ([]string, error)
}

// StrategySource 按语言代码查找策略
type StrategySource interface {
	Get(code string) language.Strategy
}

// Service 查询编排器
type Service struct {
	examples         ExampleSource
	strategies       StrategySource
	store            storage.RecordStore
	audioConcurrency int
	logger           *slog.Logger
	now              func() time.Time
}

// NewService 创建编排器，audioConcurrency <= 0 时使用默认并发数
func NewService(examples ExampleSource, strategies StrategySource, store storage.RecordStore, audioConcurrency int, l *slog.Logger) *Service {
	if audioConcurrency <= 0 {
		audioConcurrency = defaultAudioConcurrency
	}
	return &Service{
		examples:         examples,
		strategies:       strategies,
		store:            store,
		audioConcurrency: audioConcurrency,
		logger:           logger.OrDefault(l).With("component", "dictionary"),
		now:              time.Now,
	}
}

// Store 记录存储
func (s *Service) Store() storage.RecordStore {
	return s.store
}

// QueryWord 查询单词并保存记录
// 单个语言的失败只会让该语言的字段为空，只有参数错误、ctx 取消和存储错误会返回
func (s *Service) QueryWord(ctx context.Context, word string, languages []string, exampleCount int) (*models.QueryResult, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, ErrEmptyWord
	}
	languages = NormalizeLanguages(languages)
	if len(languages) == 0 {
		return nil, ErrNoLanguages
	}
	exampleCount = normalizeCount(exampleCount)

	start := time.Now()
	s.logger.Info("开始查询", "word", word, "languages", languages, "examples", exampleCount)

	base := s.baseExamples(ctx, word, exampleCount)

	// 每个语言写自己的槽位，不需要加锁
	definitions := make([]models.Definition, len(languages))
	translated := make([][]string, len(languages))

	g, gctx := errgroup.WithContext(ctx)
	for i, lang := range languages {
		strategy := s.strategies.Get(lang)
		g.Go(func() error {
			definitions[i] = strategy.GenerateDefinition(gctx, word)
			return nil
		})
		g.Go(func() error {
			translated[i] = strategy.TranslateExamples(gctx, base)
			return nil
		})
	}
	_ = g.Wait()
	// 取消后各策略都会降级为空，这样的结果不保存
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := models.QueryResults{
		Definitions: make(map[string]models.Definition, len(languages)),
		Examples:    make(map[string][]models.ExampleSentence, len(languages)),
	}
	for i, lang := range languages {
		results.Definitions[lang] = definitions[i]
		sentences := make([]models.ExampleSentence, len(translated[i]))
		for j, text := range translated[i] {
			sentences[j] = models.ExampleSentence{Text: text}
		}
		results.Examples[lang] = sentences
	}

	s.generateAudio(ctx, word, languages, results.Examples)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成记录 ID 失败: %w", err)
	}
	result := &models.QueryResult{
		ID:        id.String(),
		Word:      word,
		Languages: languages,
		Results:   results,
		Timestamp: s.now().UTC(),
	}

	if err := s.store.Save(result); err != nil {
		s.logger.Error("保存查询记录失败", "word", word, "err", err)
		return nil, fmt.Errorf("保存查询记录失败: %w", err)
	}

	s.logger.Info("查询完成", "word", word, "id", result.ID, "elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// baseExamples 生成基础例句，失败时使用固定例句
func (s *Service) baseExamples(ctx context.Context, word string, count int) []string {
	examples, err := s.examples.GenerateExamples(ctx, word, count)
	if err != nil || len(examples) == 0 {
		s.logger.Warn("例句生成失败，使用默认例句", "word", word, "err", err)
		examples = fallbackExamples(word)
	}
	if len(examples) > count {
		examples = examples[:count]
	}
	return examples
}

func fallbackExamples(word string) []string {
	return []string{
		fmt.Sprintf("The word %s is useful.", word),
		fmt.Sprintf("I like the word %s.", word),
	}
}

type audioTask struct {
	lang  string
	index int
	text  string
}

// generateAudio 为每个 (语言, 下标) 合成音频，结果直接写回对应例句
func (s *Service) generateAudio(ctx context.Context, word string, languages []string, examples map[string][]models.ExampleSentence) {
	var tasks []audioTask
	for _, lang := range languages {
		for i, ex := range examples[lang] {
			tasks = append(tasks, audioTask{lang: lang, index: i, text: ex.Text})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.audioConcurrency)
	for _, task := range tasks {
		strategy := s.strategies.Get(task.lang)
		sentence := &examples[task.lang][task.index]
		g.Go(func() error {
			sentence.AudioURL = strategy.GenerateAudio(gctx, task.text, word)
			return nil
		})
	}
	_ = g.Wait()
}

// NormalizeLanguages 去空白、去重，保持首次出现的顺序
func NormalizeLanguages(languages []string) []string {
	seen := make(map[string]struct{}, len(languages))
	out := make([]string, 0, len(languages))
	for _, lang := range languages {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	return out
}

func normalizeCount(n int) int {
	switch {
	case n <= 0:
		return DefaultExampleCount
	case n > MaxExampleCount:
		return MaxExampleCount
	}
	return n
}
