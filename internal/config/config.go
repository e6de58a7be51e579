package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config 全部来自环境变量，.env 文件仅在本地开发时存在
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`

	// Postgres DSN，例如 host=localhost user=postgres dbname=recommender port=5432
	DatabaseDSN string `envconfig:"DATABASE_DSN"`

	// GitHub 访问令牌，为空或 "demo" 时进入演示模式
	GitHubToken string `envconfig:"GITHUB_TOKEN"`

	// Telegram Bot Token，系统级，为空时 Telegram 渠道不可用
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`

	// 单次任务的整体超时
	JobTimeoutMinutes int `envconfig:"JOB_TIMEOUT_MINUTES" default:"10"`

	// 缓存保质期，窗口内的缓存可以替代线上查询
	CacheWindowMinutes int `envconfig:"CACHE_WINDOW_MINUTES" default:"60"`

	// 数据保留天数，清理任务会删除更早的缓存和运行记录
	RetentionDays int `envconfig:"RETENTION_DAYS" default:"7"`

	// 定时模式下的 cron 表达式
	ScheduleCron string `envconfig:"SCHEDULE_CRON" default:"0 9 * * *"`
}

// Load 加载 .env (如果有) 并解析环境变量
func Load() (*Config, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}
	return &cfg, nil
}
