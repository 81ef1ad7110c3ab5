package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Name     string
		Port     string
		LogLevel string
	}
	Database struct {
		Dsn          string
		MaxIdleConns int
		MaxOpenConns int
	}
	Redis struct {
		Addr     string
		DB       int
		Password string
	}
	OpenSearch struct {
		Addr string
	}
	MongoDB struct {
		Uri         string
		Database    string
		MaxPoolSize uint64
	}
	RabbitMQ struct {
		Url      string
		Exchange string
	}
	Consumer struct {
		ApiUrl     string
		Queue      string
		RoutingKey string
	}
	Jwt struct {
		SecretKey     string
		ExpireMinutes int
	}
	Admin struct {
		Username string
		Email    string
		Password string
	}
	RateLimit struct {
		ArticleWindow time.Duration
		CommentWindow time.Duration
	}
	AdCacheTTL time.Duration
}

// Load reads config/config.yml and applies BOARDAPP_* environment
// overrides (nested keys joined with "__", e.g. BOARDAPP_REDIS__ADDR).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("boardapp")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "boardapp")
	v.SetDefault("app.port", "8000")
	v.SetDefault("app.loglevel", "info")
	// Keys without defaults are invisible to Unmarshal when they are set
	// only through the environment, so every key gets one.
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxidleconns", 10)
	v.SetDefault("database.maxopenconns", 100)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("opensearch.addr", "")
	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "boardapp")
	v.SetDefault("mongodb.maxpoolsize", 10)
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "board.events")
	v.SetDefault("consumer.apiurl", "http://127.0.0.1:8000")
	v.SetDefault("consumer.queue", "board.notifications")
	v.SetDefault("consumer.routingkey", "#")
	v.SetDefault("jwt.secretkey", "")
	v.SetDefault("jwt.expireminutes", 60)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.email", "admin@example.com")
	v.SetDefault("admin.password", "")
	v.SetDefault("ratelimit.articlewindow", 5*time.Minute)
	v.SetDefault("ratelimit.commentwindow", time.Minute)
	v.SetDefault("adcachettl", time.Hour)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Jwt.SecretKey == "" {
		return nil, fmt.Errorf("jwt.secretkey is required")
	}

	return cfg, nil
}
