package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-wentao/lingoflow/pkg/config"
	"github.com/z-wentao/lingoflow/pkg/logger"
)

func TestAudioFilename_Deterministic(t *testing.T) {
	a := AudioFilename("hello", "zh", "你好，今天过得怎么样？", "mp3")
	b := AudioFilename("hello", "zh", "你好，今天过得怎么样？", "mp3")
	c := AudioFilename("hello", "zh-yue", "你好，今天过得怎么样？", "mp3")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^hello_zh_[0-9a-f]{16}\.mp3$`, a)
	assert.Regexp(t, `^ice_cream_zh-sc_[0-9a-f]{16}\.wav$`, AudioFilename("ice cream", "ZH-SC", "x", "wav"))
}

func TestOpenAISpeech_GenerateAudio(t *testing.T) {
	var got struct {
		Model          string `json:"model"`
		Input          string `json:"input"`
		Voice          string `json:"voice"`
		ResponseFormat string `json:"response_format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-fake-mp3"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := NewOpenAISpeech(config.OpenAITTSConfig{
		BaseURL: srv.URL + "/v1",
		APIKey:  "sk-test",
		Model:   "tts-1",
	}, dir, logger.Discard())

	name, err := p.GenerateAudio(context.Background(), "Hello there.", "en", "hello")
	require.NoError(t, err)
	assert.Equal(t, AudioFilename("hello", "en", "Hello there.", "mp3"), name)

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "ID3-fake-mp3", string(data))

	assert.Equal(t, "tts-1", got.Model)
	assert.Equal(t, "Hello there.", got.Input)
	assert.Equal(t, "onyx", got.Voice)
	assert.Equal(t, "mp3", got.ResponseFormat)

	// 未知语言使用英语音色，但文件名保留原语言
	name, err = p.GenerateAudio(context.Background(), "Bonjour.", "fr", "hello")
	require.NoError(t, err)
	assert.Equal(t, "onyx", got.Voice)
	assert.Contains(t, name, "_fr_")
}

func TestOpenAISpeech_Failure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := NewOpenAISpeech(config.OpenAITTSConfig{BaseURL: srv.URL + "/v1", APIKey: "sk", Model: "tts-1"}, dir, logger.Discard())

	name, err := p.GenerateAudio(context.Background(), "Hello.", "en", "hello")
	assert.Error(t, err)
	assert.Empty(t, name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestOpenAISpeech_EmptyInput(t *testing.T) {
	p := NewOpenAISpeech(config.OpenAITTSConfig{APIKey: "sk"}, t.TempDir(), logger.Discard())
	_, err := p.GenerateAudio(context.Background(), "", "en", "hello")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func newTestDui(t *testing.T, baseURL, dir string, maxFailures uint32) *Dui {
	t.Helper()
	return NewDui(config.DuiConfig{
		BaseURL:        baseURL,
		MaxRetries:     3,
		RetryDelayMs:   1,
		TimeoutSeconds: 5,
		Breaker:        config.BreakerConfig{MaxFailures: maxFailures, OpenSeconds: 60},
	}, dir, logger.Discard())
}

func TestDui_GenerateAudio(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		_, _ = w.Write([]byte("RIFF-fake-wav"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := newTestDui(t, srv.URL, dir, 5)

	name, err := d.GenerateAudio(context.Background(), "我好喜欢吃火锅哦。", "zh-sc", "hotpot")
	require.NoError(t, err)
	assert.Equal(t, AudioFilename("hotpot", "zh-sc", "我好喜欢吃火锅哦。", "wav"), name)

	assert.Equal(t, "wqingf_csn", query["voiceId"])
	assert.Equal(t, "我好喜欢吃火锅哦。", query["text"])
	assert.Equal(t, "1", query["speed"])
	assert.Equal(t, "50", query["volume"])
	assert.Equal(t, "wav", query["audioType"])

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "RIFF-fake-wav", string(data))
}

func TestDui_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	d := newTestDui(t, srv.URL, t.TempDir(), 5)
	_, err := d.GenerateAudio(context.Background(), "你好", "zh", "hello")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDui_GivesUpAfterThreeAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newTestDui(t, srv.URL, t.TempDir(), 5)
	name, err := d.GenerateAudio(context.Background(), "你好", "zh-yue", "hello")
	assert.Error(t, err)
	assert.Empty(t, name)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDui_UnsupportedLanguage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := newTestDui(t, srv.URL, t.TempDir(), 5)
	_, err := d.GenerateAudio(context.Background(), "Hello.", "en", "hello")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestDui_BreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := newTestDui(t, srv.URL, t.TempDir(), 1)

	_, err := d.GenerateAudio(context.Background(), "你好", "zh", "hello")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	_, err = d.GenerateAudio(context.Background(), "你好", "zh", "hello")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "open breaker must not hit the API")
}

func TestDui_CancelledCallsDoNotTripBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	d := newTestDui(t, srv.URL, t.TempDir(), 1)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := d.GenerateAudio(cancelled, "你好", "zh", "hello")
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, d.breaker.State())

	name, err := d.GenerateAudio(context.Background(), "你好", "zh", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDui_DeadlineDuringRetryDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDui(config.DuiConfig{
		BaseURL:        srv.URL,
		MaxRetries:     3,
		RetryDelayMs:   200,
		TimeoutSeconds: 5,
		Breaker:        config.BreakerConfig{MaxFailures: 1, OpenSeconds: 60},
	}, t.TempDir(), logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := d.GenerateAudio(ctx, "你好", "zh", "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, gobreaker.StateClosed, d.breaker.State())
}

type namedGenerator string

func (g namedGenerator) GenerateAudio(context.Context, string, string, string) (string, error) {
	return string(g), nil
}

func TestRouter(t *testing.T) {
	a, b := namedGenerator("a"), namedGenerator("b")
	r := NewRouter(a, map[string]Generator{"zh-SC": b})

	assert.Equal(t, b, r.For("zh-sc"))
	assert.Equal(t, b, r.For("ZH-SC"))
	assert.Equal(t, a, r.For("en"))
	assert.Equal(t, a, r.For("klingon"))
}

func TestNewRouterFromConfig(t *testing.T) {
	cfg := config.TTSConfig{
		AudioDir: t.TempDir(),
		Routes:   map[string]string{"en": "openai", "zh-sc": "dui"},
		OpenAI:   config.OpenAITTSConfig{APIKey: "sk"},
	}
	r, err := NewRouterFromConfig(cfg, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &Dui{}, r.For("zh-sc"))
	assert.IsType(t, &OpenAISpeech{}, r.For("en"))
	assert.IsType(t, &OpenAISpeech{}, r.For("zh"))

	cfg.Routes["zh"] = "edge"
	_, err = NewRouterFromConfig(cfg, logger.Discard())
	assert.Error(t, err)
}
