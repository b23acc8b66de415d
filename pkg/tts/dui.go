package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/z-wentao/lingoflow/pkg/config"
	"github.com/z-wentao/lingoflow/pkg/logger"
)

// 语言 -> DUI 音色
var defaultDuiVoices = map[string]string{
	"zh-sc":  "wqingf_csn",    // 四川话女声，甜美自然
	"zh-yue": "lunaif_ctn",    // 粤语女声，偏正式
	"zh":     "qiumum_0gushi", // 普通话，活泼开朗
}

// Dui 思必驰 DUI 短句合成后端
// 网络错误、超时、非 200 时固定间隔重试；连续失败过多时熔断，直接快速失败
type Dui struct {
	httpClient *http.Client
	baseURL    string
	voices     map[string]string
	speed      float64
	volume     int
	maxRetries int
	retryDelay time.Duration
	breaker    *gobreaker.CircuitBreaker
	audioDir   string
	logger     *slog.Logger
}

// NewDui 创建 DUI 后端
func NewDui(cfg config.DuiConfig, audioDir string, l *slog.Logger) *Dui {
	lg := logger.OrDefault(l).With("component", "tts", "backend", "dui")

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	retryDelay := time.Duration(cfg.RetryDelayMs) * time.Millisecond
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	openFor := time.Duration(cfg.Breaker.OpenSeconds) * time.Second
	if openFor <= 0 {
		openFor = time.Minute
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "dui-tts",
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// 调用方取消或超时不算后端故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("熔断器状态变化", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Dui{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		voices:     mergeLower(defaultDuiVoices, cfg.Voices),
		speed:      cfg.Speed,
		volume:     cfg.Volume,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		breaker:    breaker,
		audioDir:   audioDir,
		logger:     lg,
	}
}

// Name 后端名称
func (d *Dui) Name() string {
	return "dui"
}

// GenerateAudio 合成 wav 音频
func (d *Dui) GenerateAudio(ctx context.Context, text, language, word string) (string, error) {
	if err := validateInput(text, language, word); err != nil {
		return "", err
	}

	voiceID, ok := d.voices[strings.ToLower(language)]
	if !ok {
		d.logger.Warn("不支持的语言", "lang", language)
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	filename := AudioFilename(word, language, text, "wav")
	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.synthesizeWithRetry(ctx, d.buildURL(voiceID, text), filename)
	})
	if err != nil {
		return "", err
	}

	return filename, nil
}

func (d *Dui) buildURL(voiceID, text string) string {
	speed := d.speed
	if speed <= 0 {
		speed = 1
	}
	volume := d.volume
	if volume <= 0 {
		volume = 50
	}

	params := url.Values{}
	params.Set("voiceId", voiceID)
	params.Set("text", text)
	params.Set("speed", strconv.FormatFloat(speed, 'f', -1, 64))
	params.Set("volume", strconv.Itoa(volume))
	params.Set("audioType", "wav")

	return d.baseURL + "?" + params.Encode()
}

// synthesizeWithRetry 带重试的合成
func (d *Dui) synthesizeWithRetry(ctx context.Context, requestURL, filename string) error {
	var lastErr error

	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		err := d.synthesize(ctx, requestURL, filename)
		if err == nil {
			return nil
		}

		lastErr = err
		d.logger.Warn("语音合成失败", "attempt", attempt, "max", d.maxRetries, "err", err)

		if ctx.Err() != nil {
			return fmt.Errorf("任务被取消: %w", ctx.Err())
		}

		if attempt < d.maxRetries {
			select {
			case <-time.After(d.retryDelay):
			case <-ctx.Done():
				return fmt.Errorf("任务被取消: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("重试 %d 次后仍然失败: %w", d.maxRetries, lastErr)
}

func (d *Dui) synthesize(ctx context.Context, requestURL, filename string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API 返回错误 (状态码 %d): %s", resp.StatusCode, string(body))
	}

	return saveAudio(d.audioDir, filename, resp.Body)
}
