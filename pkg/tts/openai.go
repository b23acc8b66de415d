package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/z-wentao/lingoflow/pkg/config"
	"github.com/z-wentao/lingoflow/pkg/logger"
)

// 各语言默认音色
var defaultOpenAIVoices = map[string]string{
	"en":     "onyx",
	"zh":     "nova",
	"zh-yue": "shimmer",
	"zh-sc":  "echo",
}

// 各语言默认朗读要求（仅 gpt-4o-mini-tts 生效）
var defaultOpenAIInstructions = map[string]string{
	"en":     "Speak in clear, natural American English at a moderate pace for language learners.",
	"zh":     "请用标准普通话自然地朗读，语速适中。",
	"zh-yue": "請用地道嘅香港粵語朗讀，語速適中。",
	"zh-sc":  "请用地道的四川话朗读，语速适中。",
}

// OpenAISpeech 通用多语言 TTS 后端（OpenAI 兼容 /audio/speech 接口）
// 不重试，失败直接返回错误
type OpenAISpeech struct {
	client       *openai.Client
	model        string
	speed        float64
	voices       map[string]string
	instructions map[string]string
	audioDir     string
	logger       *slog.Logger
}

// NewOpenAISpeech 创建通用 TTS 后端
func NewOpenAISpeech(cfg config.OpenAITTSConfig, audioDir string, l *slog.Logger) *OpenAISpeech {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.TTSModel1)
	}
	speed := cfg.Speed
	if speed <= 0 {
		speed = 1.0
	}

	return &OpenAISpeech{
		client:       openai.NewClientWithConfig(oc),
		model:        model,
		speed:        speed,
		voices:       mergeLower(defaultOpenAIVoices, cfg.Voices),
		instructions: mergeLower(defaultOpenAIInstructions, cfg.Instructions),
		audioDir:     audioDir,
		logger:       logger.OrDefault(l).With("component", "tts", "backend", "openai"),
	}
}

// Name 后端名称
func (p *OpenAISpeech) Name() string {
	return "openai"
}

// GenerateAudio 合成 mp3 音频
func (p *OpenAISpeech) GenerateAudio(ctx context.Context, text, language, word string) (string, error) {
	if err := validateInput(text, language, word); err != nil {
		return "", err
	}

	lang := strings.ToLower(language)
	voice, ok := p.voices[lang]
	if !ok {
		lang = "en"
		voice = p.voices[lang]
	}

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          p.speed,
	}
	if p.model == "gpt-4o-mini-tts" {
		req.Instructions = p.instructions[lang]
	}

	resp, err := p.client.CreateSpeech(ctx, req)
	if err != nil {
		p.logger.Warn("语音合成失败", "lang", language, "voice", voice, "err", err)
		return "", fmt.Errorf("调用 TTS API 失败: %w", err)
	}
	defer resp.Close()

	filename := AudioFilename(word, language, text, "mp3")
	if err := saveAudio(p.audioDir, filename, resp); err != nil {
		p.logger.Warn("保存音频失败", "file", filename, "err", err)
		return "", err
	}

	p.logger.Debug("语音合成完成", "file", filename, "voice", voice)
	return filename, nil
}

func mergeLower(defaults, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[strings.ToLower(k)] = v
	}
	return out
}
