package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 主配置结构
type Config struct {
	App       App       `yaml:"app"`
	Server    Server    `yaml:"server"`
	Database  DB        `yaml:"database"`
	Cache     Cache     `yaml:"cache"`
	Auth      Auth      `yaml:"auth"`
	RateLimit Limit     `yaml:"rate_limit"`
	Shortcode Shortcode `yaml:"shortcode"`
	Log       Log       `yaml:"log"`
}

// 应用配置
type App struct {
	Name    string `yaml:"name"`
	Mode    string `yaml:"mode"`
	Version string `yaml:"version"`
	BaseURL string `yaml:"base_url"`
}

// 服务器配置
type Server struct {
	Port         int `yaml:"port"`
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
}

// 数据库配置，driver 为 mysql 或 sqlite
type DB struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
	MaxOpen  int    `yaml:"max_open"`
	MaxIdle  int    `yaml:"max_idle"`
}

// 缓存配置（Redis + 本地）
type Cache struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	TTLMinutes    int    `yaml:"ttl_minutes"`
	LocalItems    int64  `yaml:"local_items"`
	LocalTTLSecs  int    `yaml:"local_ttl_seconds"`
	BloomCapacity uint   `yaml:"bloom_capacity"`
}

// 认证配置
type Auth struct {
	Secret          string `yaml:"secret"`
	Issuer          string `yaml:"issuer"`
	ExpirationHours int    `yaml:"expiration_hours"`
	AdminUsername   string `yaml:"admin_username"`
	AdminPassword   string `yaml:"admin_password"`
	AdminEmail      string `yaml:"admin_email"`
}

// 限流配置
type Limit struct {
	Enabled   bool     `yaml:"enabled"`
	Requests  int64    `yaml:"requests_per_minute"`
	Burst     int64    `yaml:"burst"`
	SkipPaths []string `yaml:"skip_paths"`
}

// 短码配置
type Shortcode struct {
	Length      int `yaml:"length"`
	MaxAttempts int `yaml:"max_attempts"`
}

// 日志配置
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load 读取 yaml 配置，再用 .env 和环境变量覆盖敏感项
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// .env 不存在时忽略
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 环境变量优先于配置文件
func (c *Config) applyEnv() {
	setString(&c.App.BaseURL, "SHORTURL_BASE_URL")
	setString(&c.Database.Driver, "SHORTURL_DB_DRIVER")
	setString(&c.Database.Host, "SHORTURL_DB_HOST")
	setInt(&c.Database.Port, "SHORTURL_DB_PORT")
	setString(&c.Database.User, "SHORTURL_DB_USER")
	setString(&c.Database.Password, "SHORTURL_DB_PASSWORD")
	setString(&c.Database.Name, "SHORTURL_DB_NAME")
	setString(&c.Cache.Host, "SHORTURL_REDIS_HOST")
	setInt(&c.Cache.Port, "SHORTURL_REDIS_PORT")
	setString(&c.Cache.Password, "SHORTURL_REDIS_PASSWORD")
	setString(&c.Auth.Secret, "SHORTURL_JWT_SECRET")
	setString(&c.Auth.AdminPassword, "SHORTURL_ADMIN_PASSWORD")
	setString(&c.Log.Level, "SHORTURL_LOG_LEVEL")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10
	}
	if c.App.BaseURL == "" {
		c.App.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "shorturl-service"
	}
	if c.Auth.ExpirationHours == 0 {
		c.Auth.ExpirationHours = 24
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = 24 * 60
	}
	if c.Cache.LocalItems == 0 {
		c.Cache.LocalItems = 10000
	}
	if c.Cache.LocalTTLSecs == 0 {
		c.Cache.LocalTTLSecs = 300
	}
	if c.Cache.BloomCapacity == 0 {
		c.Cache.BloomCapacity = 1000000
	}
	if c.Shortcode.Length == 0 {
		c.Shortcode.Length = 7
	}
	if c.Shortcode.MaxAttempts == 0 {
		c.Shortcode.MaxAttempts = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth.secret 不能为空")
	}
	if c.Shortcode.Length < 4 || c.Shortcode.Length > 11 {
		return fmt.Errorf("shortcode.length 必须在 4 到 11 之间, 当前为 %d", c.Shortcode.Length)
	}
	if c.Shortcode.MaxAttempts < 1 {
		return fmt.Errorf("shortcode.max_attempts 必须大于 0, 当前为 %d", c.Shortcode.MaxAttempts)
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.Database.Name == "" {
		return errors.New("database.name 不能为空")
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
