package dictionary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-wentao/lingoflow/pkg/language"
	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/models"
	"github.com/z-wentao/lingoflow/pkg/storage"
	"github.com/z-wentao/lingoflow/pkg/tts"
)

type fakeExamples struct {
	examples []string
	err      error
	calls    int32
}

func (f *fakeExamples) GenerateExamples(_ context.Context, word string, count int) ([]string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.examples, nil
}

// echoStrategy 把单词和语言写进输出，用来检查结果是否串位
type echoStrategy struct {
	code       string
	audioCalls *int32
	delay      time.Duration
}

func (s *echoStrategy) Code() string { return s.code }

func (s *echoStrategy) GenerateDefinition(_ context.Context, word string) models.Definition {
	time.Sleep(s.delay)
	return models.Definition{Definition: word + "@" + s.code, Phonetic: "/" + word + "/"}
}

func (s *echoStrategy) TranslateExamples(_ context.Context, examples []string) []string {
	out := make([]string, len(examples))
	for i, ex := range examples {
		out[i] = s.code + ":" + ex
	}
	return out
}

func (s *echoStrategy) GenerateAudio(_ context.Context, text, word string) string {
	if s.audioCalls != nil {
		atomic.AddInt32(s.audioCalls, 1)
	}
	time.Sleep(s.delay)
	return fmt.Sprintf("%s|%s", word, text)
}

type echoStrategies struct {
	audioCalls int32
	delay      time.Duration
}

func (e *echoStrategies) Get(code string) language.Strategy {
	return &echoStrategy{code: code, audioCalls: &e.audioCalls, delay: e.delay}
}

type failingStore struct {
	storage.RecordStore
}

func (failingStore) Save(*models.QueryRecord) error { return errors.New("disk full") }

func newTestService(examples ExampleSource, strategies StrategySource, store storage.RecordStore) *Service {
	return NewService(examples, strategies, store, 3, logger.Discard())
}

func TestQueryWord_Validation(t *testing.T) {
	svc := newTestService(&fakeExamples{}, &echoStrategies{}, storage.NewMemoryRecordStore())

	_, err := svc.QueryWord(context.Background(), "   ", []string{"en"}, 2)
	assert.ErrorIs(t, err, ErrEmptyWord)

	_, err = svc.QueryWord(context.Background(), "hello", nil, 2)
	assert.ErrorIs(t, err, ErrNoLanguages)

	_, err = svc.QueryWord(context.Background(), "hello", []string{" ", ""}, 2)
	assert.ErrorIs(t, err, ErrNoLanguages)
}

func TestQueryWord_MergesByLanguage(t *testing.T) {
	store := storage.NewMemoryRecordStore()
	strategies := &echoStrategies{}
	examples := &fakeExamples{examples: []string{"Hello there.", "Say hello.", "Extra one."}}
	svc := newTestService(examples, strategies, store)

	res, err := svc.QueryWord(context.Background(), " hello ", []string{"en", "zh", " en ", "zh-sc"}, 2)
	require.NoError(t, err)

	assert.Equal(t, "hello", res.Word)
	assert.Equal(t, []string{"en", "zh", "zh-sc"}, res.Languages)
	assert.Len(t, res.Results.Definitions, 3)
	assert.Len(t, res.Results.Examples, 3)
	assert.Equal(t, int32(1), atomic.LoadInt32(&examples.calls), "base examples are generated once")

	for _, lang := range res.Languages {
		assert.Equal(t, "hello@"+lang, res.Results.Definitions[lang].Definition)
		require.Len(t, res.Results.Examples[lang], 2, lang)
		for i, ex := range res.Results.Examples[lang] {
			want := lang + ":" + examples.examples[i]
			assert.Equal(t, want, ex.Text)
			assert.Equal(t, "hello|"+want, ex.AudioURL)
		}
	}
	assert.Equal(t, int32(6), atomic.LoadInt32(&strategies.audioCalls))

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, time.UTC, res.Timestamp.Location())
	saved, err := store.Get(res.ID)
	require.NoError(t, err)
	assert.Equal(t, res, saved)
}

func TestQueryWord_FallbackExamples(t *testing.T) {
	for name, examples := range map[string]*fakeExamples{
		"error": {err: errors.New("llm down")},
		"empty": {examples: []string{}},
	} {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(examples, &echoStrategies{}, storage.NewMemoryRecordStore())

			res, err := svc.QueryWord(context.Background(), "hello", []string{"en"}, 5)
			require.NoError(t, err)
			got := res.Results.Examples["en"]
			require.Len(t, got, 2)
			assert.Equal(t, "en:The word hello is useful.", got[0].Text)
			assert.Equal(t, "en:I like the word hello.", got[1].Text)

			res, err = svc.QueryWord(context.Background(), "hello", []string{"en"}, 1)
			require.NoError(t, err)
			assert.Len(t, res.Results.Examples["en"], 1)
		})
	}
}

func TestQueryWord_DefaultCount(t *testing.T) {
	examples := &fakeExamples{examples: []string{"a", "b", "c"}}
	svc := newTestService(examples, &echoStrategies{}, storage.NewMemoryRecordStore())

	res, err := svc.QueryWord(context.Background(), "hello", []string{"en"}, 0)
	require.NoError(t, err)
	assert.Len(t, res.Results.Examples["en"], DefaultExampleCount)

	assert.Equal(t, MaxExampleCount, normalizeCount(100))
	assert.Equal(t, 7, normalizeCount(7))
}

func TestQueryWord_StorageError(t *testing.T) {
	svc := newTestService(&fakeExamples{examples: []string{"a"}}, &echoStrategies{}, failingStore{})

	res, err := svc.QueryWord(context.Background(), "hello", []string{"en"}, 1)
	assert.Error(t, err)
	assert.Nil(t, res)
}

// ctxStrategy 遵守 ctx：取消后所有字段降级为空
type ctxStrategy struct {
	code       string
	afterAudio func()
}

func (s *ctxStrategy) Code() string { return s.code }

func (s *ctxStrategy) GenerateDefinition(ctx context.Context, word string) models.Definition {
	if ctx.Err() != nil {
		return models.Definition{}
	}
	return models.Definition{Definition: word}
}

func (s *ctxStrategy) TranslateExamples(ctx context.Context, examples []string) []string {
	return append([]string(nil), examples...)
}

func (s *ctxStrategy) GenerateAudio(ctx context.Context, text, word string) string {
	if s.afterAudio != nil {
		s.afterAudio()
	}
	if ctx.Err() != nil {
		return ""
	}
	return word + ".mp3"
}

type ctxStrategies struct{ s *ctxStrategy }

func (c ctxStrategies) Get(string) language.Strategy { return c.s }

func TestQueryWord_CancelledContextIsNotSaved(t *testing.T) {
	store := storage.NewMemoryRecordStore()
	svc := newTestService(&fakeExamples{examples: []string{"a"}}, ctxStrategies{&ctxStrategy{code: "en"}}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.QueryWord(ctx, "hello", []string{"en", "zh"}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)

	records, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestQueryWord_CancelledDuringAudioIsNotSaved(t *testing.T) {
	store := storage.NewMemoryRecordStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	strategy := &ctxStrategy{code: "en", afterAudio: cancel}
	svc := newTestService(&fakeExamples{examples: []string{"a"}}, ctxStrategies{strategy}, store)

	res, err := svc.QueryWord(ctx, "hello", []string{"en"}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)

	records, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestQueryWord_ConcurrentQueriesStayIsolated(t *testing.T) {
	store := storage.NewMemoryRecordStore()
	svc := newTestService(&fakeExamples{examples: []string{"x", "y"}}, &echoStrategies{delay: time.Millisecond}, store)

	words := []string{"apple", "banana", "cherry", "durian"}
	results := make([]*models.QueryResult, len(words))
	var wg sync.WaitGroup
	for i, w := range words {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.QueryWord(context.Background(), w, []string{"en", "zh", "zh-yue"}, 2)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, words[i], res.Word)
		for lang, def := range res.Results.Definitions {
			assert.Equal(t, words[i]+"@"+lang, def.Definition)
		}
		for _, list := range res.Results.Examples {
			for _, ex := range list {
				assert.True(t, strings.HasPrefix(ex.AudioURL, words[i]+"|"), ex.AudioURL)
			}
		}
	}

	records, err := store.List()
	require.NoError(t, err)
	assert.Len(t, records, len(words))
}

// scriptedLLM 按提示词返回固定响应
type scriptedLLM struct{}

func (scriptedLLM) GenerateResponse(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "translate the English word"):
		return "你好", nil
	case strings.Contains(prompt, "in Mandarin Chinese"):
		return "Definition: 打招呼的用语\nPhonetic: nǐ hǎo", nil
	case strings.Contains(prompt, "in English"):
		return "Definition: used as a greeting\nPhonetic: /həˈloʊ/", nil
	case strings.Contains(prompt, "Sentence: Hello there."):
		return "你好呀。", nil
	case strings.Contains(prompt, "Sentence: She said hello."):
		return "她说了你好。", nil
	}
	return "", errors.New("unexpected prompt")
}

type staticAudio struct{}

func (staticAudio) GenerateAudio(_ context.Context, text, lang, word string) (string, error) {
	return tts.AudioFilename(word, lang, text, "mp3"), nil
}

func TestQueryWord_EndToEndWithFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFileRecordStore(dir, logger.Discard())
	require.NoError(t, err)

	registry := language.NewRegistry(scriptedLLM{}, tts.NewRouter(staticAudio{}, nil), logger.Discard())
	examples := &fakeExamples{examples: []string{"Hello there.", "She said hello."}}
	svc := NewService(examples, registry, store, 2, logger.Discard())

	res, err := svc.QueryWord(context.Background(), "hello", []string{"en", "zh"}, 2)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Results.Definitions["en"].Phonetic)
	assert.Equal(t, "nǐ hǎo", res.Results.Definitions["zh"].Phonetic)
	assert.Equal(t, "你好", res.Results.Definitions["zh"].PronounceWord)

	zh := res.Results.Examples["zh"]
	require.Len(t, zh, 2)
	assert.Equal(t, "你好呀。", zh[0].Text)
	assert.Equal(t, "她说了你好。", zh[1].Text)
	assert.Equal(t, tts.AudioFilename("hello", "zh", "你好呀。", "mp3"), zh[0].AudioURL)
	assert.Equal(t, "Hello there.", res.Results.Examples["en"][0].Text)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "hello_"))

	saved, err := store.Get(res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Results, saved.Results)
}
