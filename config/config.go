package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OSS      OSSConfig      `mapstructure:"oss"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Email    EmailConfig    `mapstructure:"email"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Plans    PlansConfig    `mapstructure:"plans"`
	AI       AIConfig       `mapstructure:"ai"`
	Billing  BillingConfig  `mapstructure:"billing"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type OAuthConfig struct {
	Github GithubOAuthConfig `mapstructure:"github"`
}

type GithubOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type EmailConfig struct {
	SMTPHost      string `mapstructure:"smtp_host"`
	SMTPPort      int    `mapstructure:"smtp_port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	From          string `mapstructure:"from"`
	InboundDomain string `mapstructure:"inbound_domain"` // 用户收件地址的域名部分
}

type QueueConfig struct {
	IngestQueue string `mapstructure:"ingest_queue"`
	MaxWorkers  int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// PlansConfig 各套餐的存储策略
type PlansConfig struct {
	Levels map[string]PlanLevel `mapstructure:"levels"`
}

type PlanLevel struct {
	UnlockedCap int     `mapstructure:"unlocked_cap"` // 解锁存储上限，0 表示不限
	HardCap     int     `mapstructure:"hard_cap"`     // 总存储硬上限，0 表示不限
	Price       float64 `mapstructure:"price"`
}

type AIConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	DailyLimit      int    `mapstructure:"daily_limit"`
	CooldownSeconds int    `mapstructure:"cooldown_seconds"`
	LockTTLSeconds  int    `mapstructure:"lock_ttl_seconds"`
}

type BillingConfig struct {
	StripeSecretKey     string `mapstructure:"stripe_secret_key"`
	WebhookSecret       string `mapstructure:"webhook_secret"`
	PriceIDProMonthly   string `mapstructure:"price_id_pro_monthly"`
	FrontendURL         string `mapstructure:"frontend_url"`
	LedgerRetentionDays int    `mapstructure:"ledger_retention_days"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	// 检查 config.local.yaml 是否存在
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("plans.levels.free.unlocked_cap", 1000)
	viper.SetDefault("plans.levels.free.hard_cap", 2000)
	viper.SetDefault("plans.levels.pro.unlocked_cap", 0)
	viper.SetDefault("plans.levels.pro.hard_cap", 0)

	viper.SetDefault("ai.timeout_seconds", 60)
	viper.SetDefault("ai.daily_limit", 50)
	viper.SetDefault("ai.cooldown_seconds", 60)
	viper.SetDefault("ai.lock_ttl_seconds", 120)

	viper.SetDefault("billing.ledger_retention_days", 90)

	viper.SetDefault("email.inbound_domain", "mail.inkfold.io")

	viper.SetDefault("queue.ingest_queue", "newsletter_ingest")
	viper.SetDefault("queue.max_workers", 4)
}
