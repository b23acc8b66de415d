package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-wentao/lingoflow/pkg/logger"
)

// scriptedGenerator 按顺序返回预设响应
type scriptedGenerator struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	prompts   []string
}

func (g *scriptedGenerator) GenerateResponse(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return "", errors.New("no more responses")
}

func newTestService(gen Generator, recent *RecentWords) *Service {
	s := NewService(gen, recent, logger.Discard())
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestGenerateExamples(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"examples": ["Hello, how are you doing today?", "  ", "She said hello to everyone at the party."]}`,
	}}
	s := newTestService(gen, nil)

	examples, err := s.GenerateExamples(context.Background(), "hello", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello, how are you doing today?", "She said hello to everyone at the party."}, examples)
	assert.Contains(t, gen.prompts[0], `using the word "hello"`)
}

func TestGenerateExamples_CodeFence(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"```json\n{\"examples\": [\"I said hello.\"]}\n```"}}
	s := newTestService(gen, nil)

	examples, err := s.GenerateExamples(context.Background(), "hello", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"I said hello."}, examples)
}

func TestGenerateExamples_Failures(t *testing.T) {
	s := newTestService(&scriptedGenerator{errs: []error{errors.New("down")}}, nil)
	_, err := s.GenerateExamples(context.Background(), "hello", 2)
	assert.Error(t, err)

	s = newTestService(&scriptedGenerator{responses: []string{"Sure! Here are some examples"}}, nil)
	_, err = s.GenerateExamples(context.Background(), "hello", 2)
	assert.Error(t, err)
}

func TestGenerateRandomWord(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{"word": "deadline"}`}}
	recent := NewRecentWords(10)
	s := newTestService(gen, recent)

	word, err := s.GenerateRandomWord(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, "deadline", word)
	assert.True(t, recent.Contains("Deadline"))
	assert.Contains(t, gen.prompts[0], "Style type: work")
	assert.Contains(t, gen.prompts[0], "Timestamp: 1700000000")
}

func TestGenerateRandomWord_SkipsRecent(t *testing.T) {
	recent := NewRecentWords(10)
	require.True(t, recent.TryAdd("deadline"))

	gen := &scriptedGenerator{responses: []string{
		`{"word": "deadline"}`,
		`not json`,
		`{"word": "meeting"}`,
	}}
	s := newTestService(gen, recent)

	word, err := s.GenerateRandomWord(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "meeting", word)
	assert.Len(t, gen.prompts, 3)
	assert.Contains(t, gen.prompts[0], "Style type: life")
}

func TestGenerateRandomWord_Exhausted(t *testing.T) {
	recent := NewRecentWords(10)
	recent.TryAdd("deadline")

	gen := &scriptedGenerator{responses: []string{
		`{"word": "deadline"}`, `{"word": "DEADLINE"}`, `{"word": ""}`, `{"word": "never asked"}`,
	}}
	s := newTestService(gen, recent)

	_, err := s.GenerateRandomWord(context.Background(), "work")
	assert.ErrorIs(t, err, ErrNoRandomWord)
	assert.Len(t, gen.prompts, 3)
}

func TestGenerateRandomWord_UnknownStyle(t *testing.T) {
	gen := &scriptedGenerator{}
	s := newTestService(gen, nil)

	_, err := s.GenerateRandomWord(context.Background(), "sports")
	assert.ErrorIs(t, err, ErrUnknownStyle)
	assert.Empty(t, gen.prompts)
}

func TestRecentWords_RingBuffer(t *testing.T) {
	r := NewRecentWords(3)
	for _, w := range []string{"a", "b", "c"} {
		assert.True(t, r.TryAdd(w))
	}
	assert.False(t, r.TryAdd("B"))
	assert.Equal(t, []string{"a", "b", "c"}, r.Words())

	assert.True(t, r.TryAdd("d"))
	assert.Equal(t, []string{"b", "c", "d"}, r.Words())
	assert.False(t, r.Contains("a"))
	assert.True(t, r.Contains("d"))
}

func TestRecentWords_Concurrent(t *testing.T) {
	r := NewRecentWords(DefaultRecentWords)

	var wg sync.WaitGroup
	var mu sync.Mutex
	added := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.TryAdd(fmt.Sprintf("word-%d", i%5)) {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, added)
	assert.Len(t, r.Words(), 5)
}
