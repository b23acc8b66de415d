package language

import (
	"log/slog"
	"strings"

	"github.com/z-wentao/lingoflow/pkg/llm"
	"github.com/z-wentao/lingoflow/pkg/tts"
)

// Registry 语言代码 -> 策略
type Registry struct {
	strategies map[string]Strategy
	fallback   Strategy
	codes      []string
}

// NewRegistry 创建全部内置策略，每个策略绑定路由给出的 TTS 后端
func NewRegistry(gen llm.Generator, router *tts.Router, l *slog.Logger) *Registry {
	audio := func(code string) tts.Generator {
		if router == nil {
			return nil
		}
		return router.For(code)
	}

	en := NewEnglish(gen, audio(English), l)
	return NewRegistryFrom(en,
		en,
		NewMandarin(gen, audio(Mandarin), l),
		NewCantonese(gen, audio(Cantonese), l),
		NewSichuanese(gen, audio(Sichuanese), l),
	)
}

// NewRegistryFrom 用给定策略创建注册表，fallback 处理未知语言
func NewRegistryFrom(fallback Strategy, strategies ...Strategy) *Registry {
	r := &Registry{
		strategies: make(map[string]Strategy, len(strategies)),
		fallback:   fallback,
	}
	for _, s := range strategies {
		code := strings.ToLower(s.Code())
		if _, exists := r.strategies[code]; !exists {
			r.codes = append(r.codes, code)
		}
		r.strategies[code] = s
	}
	return r
}

// Get 查找策略，大小写不敏感；未知语言返回兜底策略
func (r *Registry) Get(code string) Strategy {
	if s, ok := r.strategies[strings.ToLower(strings.TrimSpace(code))]; ok {
		return s
	}
	return r.fallback
}

// Codes 支持的语言代码，按注册顺序
func (r *Registry) Codes() []string {
	out := make([]string, len(r.codes))
	copy(out, r.codes)
	return out
}
