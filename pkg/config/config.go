package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// APIKeyEnv 配置文件未填写 API Key 时读取的环境变量
const APIKeyEnv = "LINGOFLOW_LLM_API_KEY"

// Config 应用配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	TTS       TTSConfig       `yaml:"tts"`
	Storage   StorageConfig   `yaml:"storage"`
	Queue     QueueConfig     `yaml:"queue"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Maimemo   MaimemoConfig   `yaml:"maimemo"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LLMConfig 大模型配置（任意 OpenAI 兼容接口，默认硅基流动）
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	SystemPrompt   string `yaml:"system_prompt"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// TTSConfig 语音合成配置
type TTSConfig struct {
	AudioDir       string            `yaml:"audio_dir"`
	MaxConcurrency int               `yaml:"max_concurrency"` // 单次查询同时进行的合成数
	Routes         map[string]string `yaml:"routes"`          // 语言 -> 后端名称（openai / dui）
	OpenAI         OpenAITTSConfig   `yaml:"openai"`
	Dui            DuiConfig         `yaml:"dui"`
}

// OpenAITTSConfig 通用多语言 TTS 后端配置
type OpenAITTSConfig struct {
	BaseURL      string            `yaml:"base_url"`
	APIKey       string            `yaml:"api_key"`
	Model        string            `yaml:"model"`
	Speed        float64           `yaml:"speed"`
	Voices       map[string]string `yaml:"voices"`
	Instructions map[string]string `yaml:"instructions"`
}

// DuiConfig 思必驰 DUI 短句合成配置
type DuiConfig struct {
	BaseURL        string            `yaml:"base_url"`
	Voices         map[string]string `yaml:"voices"`
	Speed          float64           `yaml:"speed"`
	Volume         int               `yaml:"volume"`
	MaxRetries     int               `yaml:"max_retries"`
	RetryDelayMs   int               `yaml:"retry_delay_ms"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Breaker        BreakerConfig     `yaml:"breaker"`
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	MaxFailures uint32 `yaml:"max_failures"` // 连续失败多少次后熔断
	OpenSeconds int    `yaml:"open_seconds"` // 熔断持续时间
}

// StorageConfig 查询记录存储配置
type StorageConfig struct {
	Type     string         `yaml:"type"` // file / memory / redis / postgres / hybrid
	Dir      string         `yaml:"dir"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"` // 0 表示不过期
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// QueueConfig 队列配置
type QueueConfig struct {
	Type       string         `yaml:"type"`
	BufferSize int            `yaml:"buffer_size"`
	RabbitMQ   RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig RabbitMQ 配置
type RabbitMQConfig struct {
	URL       string `yaml:"url"`
	QueueName string `yaml:"queue_name"`
}

// WorkerConfig 异步查询 Worker 配置
type WorkerConfig struct {
	PoolSize       int `yaml:"pool_size"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// SchedulerConfig 定时任务配置，cron 表达式为空表示不启用
type SchedulerConfig struct {
	WordOfTheDay     string   `yaml:"word_of_the_day"`
	WordStyle        string   `yaml:"word_style"`
	Languages        []string `yaml:"languages"`
	ExampleCount     int      `yaml:"example_count"`
	IndexCleanupCron string   `yaml:"index_cleanup"`
}

// MaimemoConfig 墨墨背单词开放 API 配置
type MaimemoConfig struct {
	BaseURL string `yaml:"base_url"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // json / text
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return Parse(data)
}

// Parse 解析 YAML 配置并填充默认值
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(APIKeyEnv)
	}
	if c.LLM.APIKey == "" || c.LLM.APIKey == "sk-xxx" {
		return fmt.Errorf("请在配置文件或环境变量 %s 中设置有效的 LLM API Key", APIKeyEnv)
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.siliconflow.cn/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "internlm/internlm2_5-7b-chat"
	}
	if c.LLM.SystemPrompt == "" {
		c.LLM.SystemPrompt = "你是一个词典助手。"
	}

	c.validateTTS()

	switch c.Storage.Type {
	case "":
		c.Storage.Type = "file"
	case "file", "memory", "redis", "postgres", "hybrid":
	default:
		return fmt.Errorf("不支持的存储类型: %s", c.Storage.Type)
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "storage/queries"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if (c.Storage.Type == "postgres" || c.Storage.Type == "hybrid") && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("存储类型 %s 需要配置 postgres.dsn", c.Storage.Type)
	}

	if c.Queue.Type == "" {
		c.Queue.Type = "memory"
	}
	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 100
	}
	if c.Queue.RabbitMQ.QueueName == "" {
		c.Queue.RabbitMQ.QueueName = "lingoflow_lookups"
	}

	if c.Worker.PoolSize <= 0 {
		c.Worker.PoolSize = 2
	}
	if c.Worker.TimeoutSeconds <= 0 {
		c.Worker.TimeoutSeconds = 300
	}

	if c.Scheduler.WordStyle == "" {
		c.Scheduler.WordStyle = "life"
	}
	if len(c.Scheduler.Languages) == 0 {
		c.Scheduler.Languages = []string{"en", "zh"}
	}
	if c.Scheduler.ExampleCount <= 0 {
		c.Scheduler.ExampleCount = 2
	}

	if c.Maimemo.BaseURL == "" {
		c.Maimemo.BaseURL = "https://open.maimemo.com/open/api/v1"
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8000
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	return nil
}

func (c *Config) validateTTS() {
	t := &c.TTS
	if t.AudioDir == "" {
		t.AudioDir = "storage/audio"
	}
	if t.MaxConcurrency <= 0 {
		t.MaxConcurrency = 8
	}
	if len(t.Routes) == 0 {
		t.Routes = map[string]string{
			"en":     "openai",
			"zh":     "openai",
			"zh-yue": "openai",
			"zh-sc":  "dui",
		}
	}

	if t.OpenAI.BaseURL == "" {
		t.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if t.OpenAI.APIKey == "" {
		t.OpenAI.APIKey = c.LLM.APIKey
	}
	if t.OpenAI.Model == "" {
		t.OpenAI.Model = "gpt-4o-mini-tts"
	}
	if t.OpenAI.Speed <= 0 {
		t.OpenAI.Speed = 1.0
	}

	if t.Dui.BaseURL == "" {
		t.Dui.BaseURL = "https://dds.dui.ai/runtime/v1/synthesize"
	}
	if t.Dui.Speed <= 0 {
		t.Dui.Speed = 1
	}
	if t.Dui.Volume <= 0 {
		t.Dui.Volume = 50
	}
	if t.Dui.MaxRetries <= 0 {
		t.Dui.MaxRetries = 3
	}
	if t.Dui.RetryDelayMs <= 0 {
		t.Dui.RetryDelayMs = 1000
	}
	if t.Dui.TimeoutSeconds <= 0 {
		t.Dui.TimeoutSeconds = 30
	}
	if t.Dui.Breaker.MaxFailures == 0 {
		t.Dui.Breaker.MaxFailures = 5
	}
	if t.Dui.Breaker.OpenSeconds <= 0 {
		t.Dui.Breaker.OpenSeconds = 60
	}

	routes := make(map[string]string, len(t.Routes))
	for lang, backend := range t.Routes {
		routes[strings.ToLower(lang)] = strings.ToLower(backend)
	}
	t.Routes = routes
}
