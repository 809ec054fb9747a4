package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config 服务配置，从环境变量加载（命令行参数可覆盖部分字段）
type Config struct {
	Port    int    `env:"PORT" envDefault:"3000"`
	NodeEnv string `env:"NODE_ENV" envDefault:"development"`

	StaticDir       string        `env:"STATIC_DIR" envDefault:"public"`
	WSPath          string        `env:"WS_PATH" envDefault:"/socket.io"`
	SubProtocol     string        `env:"WS_SUBPROTOCOL" envDefault:"relay.v1"`
	PingInterval    time.Duration `env:"PING_INTERVAL" envDefault:"25s"`
	PingTimeout     time.Duration `env:"PING_TIMEOUT" envDefault:"60s"`
	MaxMessageBytes int64         `env:"MAX_MESSAGE_BYTES" envDefault:"1048576"`
	SendQueueSize   int           `env:"SEND_QUEUE_SIZE" envDefault:"256"`
	EventQueueSize  int           `env:"EVENT_QUEUE_SIZE" envDefault:"1024"`
	StatsInterval   time.Duration `env:"STATS_INTERVAL" envDefault:"30s"`

	Spawn SpawnBand `envPrefix:"SPAWN_"`
	Log   LogConfig `envPrefix:"LOG_"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// SpawnBand 出生点区域：x ∈ [MinX, MinX+Width)，y ∈ [MinY, MinY+Height)
type SpawnBand struct {
	MinX   int `env:"MIN_X" envDefault:"50" json:"minX"`
	Width  int `env:"WIDTH" envDefault:"700" json:"width"`
	MinY   int `env:"MIN_Y" envDefault:"50" json:"minY"`
	Height int `env:"HEIGHT" envDefault:"500" json:"height"`
}

// LogConfig 日志输出配置
type LogConfig struct {
	File    string `env:"FILE" envDefault:"app.log"`
	Level   string `env:"LEVEL" envDefault:"debug"`
	Console bool   `env:"CONSOLE" envDefault:"true"`
}

// LoadConfig 从环境变量解析配置
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DefaultConfig 不读取环境变量的默认配置（测试与嵌入使用）
func DefaultConfig() Config {
	var cfg Config
	// 空环境下只会应用 envDefault
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// Production NODE_ENV=production 时不自行监听端口，由外部宿主进程嵌入
func (c Config) Production() bool {
	return strings.EqualFold(c.NodeEnv, "production")
}

// Addr 监听地址
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ReadTimeout 读超时 = 心跳间隔 + 心跳超时
func (c Config) ReadTimeout() time.Duration {
	return c.PingInterval + c.PingTimeout
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		errs = append(errs, fmt.Errorf("ws path must start with /: %q", c.WSPath))
	}
	if c.PingInterval <= 0 || c.PingTimeout <= 0 {
		errs = append(errs, errors.New("ping interval and timeout must be positive"))
	}
	if c.SendQueueSize <= 0 || c.EventQueueSize <= 0 {
		errs = append(errs, errors.New("queue sizes must be positive"))
	}
	if err := c.Spawn.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b SpawnBand) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("spawn band must have positive size: %dx%d", b.Width, b.Height)
	}
	return nil
}
