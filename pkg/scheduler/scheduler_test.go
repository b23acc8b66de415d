package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-wentao/lingoflow/pkg/config"
	"github.com/z-wentao/lingoflow/pkg/logger"
	"github.com/z-wentao/lingoflow/pkg/models"
)

type fakeWords struct {
	word  string
	err   error
	style string
}

func (f *fakeWords) GenerateRandomWord(_ context.Context, style string) (string, error) {
	f.style = style
	return f.word, f.err
}

type fakeQuerier struct {
	word      string
	languages []string
	count     int
}

func (f *fakeQuerier) QueryWord(_ context.Context, word string, languages []string, count int) (*models.QueryResult, error) {
	f.word, f.languages, f.count = word, languages, count
	return &models.QueryResult{ID: "rec-1", Word: word}, nil
}

type fakeCleaner struct{ calls int32 }

func (f *fakeCleaner) CleanExpired() (int, error) {
	atomic.AddInt32(&f.calls, 1)
	return 3, nil
}

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		WordOfTheDay:     "0 8 * * *",
		WordStyle:        "study",
		Languages:        []string{"en", "zh-sc"},
		ExampleCount:     3,
		IndexCleanupCron: "@hourly",
	}
}

func TestRunWordOfTheDay(t *testing.T) {
	words := &fakeWords{word: "curriculum"}
	querier := &fakeQuerier{}
	s := New(testConfig(), words, querier, nil, logger.Discard())

	res, err := s.RunWordOfTheDay()
	require.NoError(t, err)
	assert.Equal(t, "rec-1", res.ID)
	assert.Equal(t, "study", words.style)
	assert.Equal(t, "curriculum", querier.word)
	assert.Equal(t, []string{"en", "zh-sc"}, querier.languages)
	assert.Equal(t, 3, querier.count)
}

func TestRunWordOfTheDay_NoWord(t *testing.T) {
	querier := &fakeQuerier{}
	s := New(testConfig(), &fakeWords{err: errors.New("exhausted")}, querier, nil, logger.Discard())

	_, err := s.RunWordOfTheDay()
	assert.Error(t, err)
	assert.Empty(t, querier.word)
}

func TestStartStop(t *testing.T) {
	cleaner := &fakeCleaner{}
	s := New(testConfig(), &fakeWords{}, &fakeQuerier{}, cleaner, logger.Discard())

	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)
	require.NoError(t, s.Start(), "start is idempotent")
	s.Stop()
	s.Stop()

	s.RunIndexCleanup()
	assert.Equal(t, int32(1), atomic.LoadInt32(&cleaner.calls))
}

func TestStart_InvalidCron(t *testing.T) {
	cfg := testConfig()
	cfg.WordOfTheDay = "not a cron"
	s := New(cfg, &fakeWords{}, &fakeQuerier{}, nil, logger.Discard())
	assert.Error(t, s.Start())
}

func TestStart_NothingConfigured(t *testing.T) {
	s := New(config.SchedulerConfig{IndexCleanupCron: "@hourly"}, &fakeWords{}, &fakeQuerier{}, nil, logger.Discard())
	require.NoError(t, s.Start())
	assert.Empty(t, s.cron.Entries())
	s.Stop()
}
