package tts

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/z-wentao/lingoflow/pkg/config"
)

// Router 静态的 语言 -> 后端 映射
type Router struct {
	routes   map[string]Generator
	fallback Generator
}

// NewRouter 创建路由，未配置的语言使用 fallback
func NewRouter(fallback Generator, routes map[string]Generator) *Router {
	r := &Router{
		routes:   make(map[string]Generator, len(routes)),
		fallback: fallback,
	}
	for lang, g := range routes {
		r.routes[strings.ToLower(lang)] = g
	}
	return r
}

// For 返回语言绑定的后端
func (r *Router) For(language string) Generator {
	if g, ok := r.routes[strings.ToLower(language)]; ok {
		return g
	}
	return r.fallback
}

// NewRouterFromConfig 按配置创建两个后端并组装路由，通用后端作为兜底
func NewRouterFromConfig(cfg config.TTSConfig, l *slog.Logger) (*Router, error) {
	backends := map[string]Generator{
		"openai": NewOpenAISpeech(cfg.OpenAI, cfg.AudioDir, l),
		"dui":    NewDui(cfg.Dui, cfg.AudioDir, l),
	}

	routes := make(map[string]Generator, len(cfg.Routes))
	for lang, name := range cfg.Routes {
		g, ok := backends[name]
		if !ok {
			return nil, fmt.Errorf("语言 %s 配置了未知的 TTS 后端: %s", lang, name)
		}
		routes[lang] = g
	}

	return NewRouter(backends["openai"], routes), nil
}
