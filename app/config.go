package main

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Environment    string   `mapstructure:"ENVIRONMENT"`
	Version        string   `mapstructure:"VERSION"`
	AppURL         string   `mapstructure:"APP_URL"`
	TrustedOrigins []string `mapstructure:"TRUSTED_ORIGINS"`
	TLSCertFile    string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string   `mapstructure:"TLS_KEY_FILE"`

	DBHost           string `mapstructure:"POSTGRES_HOST"`
	DBPort           string `mapstructure:"POSTGRES_PORT"`
	DBUser           string `mapstructure:"POSTGRES_USER"`
	DBPassword       string `mapstructure:"POSTGRES_PASSWORD"`
	DBName           string `mapstructure:"POSTGRES_DB"`
	MigrationsSource string `mapstructure:"MIGRATIONS_SOURCE"`

	MailHost     string `mapstructure:"MAIL_HOST"`
	MailPort     int    `mapstructure:"MAIL_PORT"`
	MailUser     string `mapstructure:"MAIL_USER"`
	MailPassword string `mapstructure:"MAIL_PASSWORD"`
	MailSender   string `mapstructure:"MAIL_SENDER"`

	MQHost     string `mapstructure:"RABBITMQ_HOST"`
	MQPort     string `mapstructure:"RABBITMQ_PORT"`
	MQUser     string `mapstructure:"RABBITMQ_USER"`
	MQPassword string `mapstructure:"RABBITMQ_PASSWORD"`

	// CacheDriver is "memory" or "redis".
	CacheDriver string        `mapstructure:"CACHE_DRIVER"`
	CacheTTL    time.Duration `mapstructure:"CACHE_TTL"`
	RedisAddr   string        `mapstructure:"REDIS_ADDR"`
	PushChannel string        `mapstructure:"PUSH_CHANNEL"`

	MongoURI string `mapstructure:"MONGO_URI"`
	MongoDB  string `mapstructure:"MONGO_DB"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	AdminWebhookURL string `mapstructure:"ADMIN_WEBHOOK_URL"`
	ImageDir        string `mapstructure:"IMAGE_DIR"`
	StrictCleanup   bool   `mapstructure:"STRICT_CLEANUP"`

	RateLimitEnabled bool    `mapstructure:"RATE_LIMIT_ENABLED"`
	RateLimitRPS     float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int     `mapstructure:"RATE_LIMIT_BURST"`
}

func loadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", ":8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("MIGRATIONS_SOURCE", "file://migrations")
	v.SetDefault("RABBITMQ_PORT", "5672")
	v.SetDefault("CACHE_DRIVER", "memory")
	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("MONGO_DB", "blogcms")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("IMAGE_DIR", "storage/images")
	v.SetDefault("RATE_LIMIT_RPS", 2)
	v.SetDefault("RATE_LIMIT_BURST", 4)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
