package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Health    HealthConfig    `mapstructure:"health"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode          string     `mapstructure:"mode"`
	Address       string     `mapstructure:"address"`
	PublicBaseURL string     `mapstructure:"publicBaseURL"`
	ForceHTTPS    bool       `mapstructure:"forceHTTPS"`
	BodyLimitMB   int64      `mapstructure:"bodyLimitMB"`
	Cors          CorsConfig `mapstructure:"cors"`
	// TrustedProxies 是允许设置 X-Forwarded-For 的反向代理地址或网段，为空时只使用连接的对端地址
	TrustedProxies []string `mapstructure:"trustedProxies"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了关系数据库相关的配置
type DatabaseConfig struct {
	Driver       string         `mapstructure:"driver"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
	Sqlite       SqliteConfig   `mapstructure:"sqlite"`
	ProbeTimeout time.Duration  `mapstructure:"probeTimeout"`
	LogLevel     string         `mapstructure:"logLevel"`
	MaxIdleConns int            `mapstructure:"maxIdleConns"`
	MaxOpenConns int            `mapstructure:"maxOpenConns"`
}

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

// PostgresConfig 定义了PostgreSQL的连接参数
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN 返回gorm postgres驱动使用的连接串
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Name, p.SSLMode,
	)
}

// SqliteConfig 定义了SQLite文件的位置
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// CatalogConfig 定义了目录服务的行为开关
type CatalogConfig struct {
	// FallbackWrites 为false时，数据库不可用期间的写操作直接返回503
	FallbackWrites  bool   `mapstructure:"fallbackWrites"`
	DefaultCategory string `mapstructure:"defaultCategory"`
}

// UploadConfig 定义了文件上传的存储位置和限制
type UploadConfig struct {
	Dir            string `mapstructure:"dir"`
	MaxFileSizeMB  int64  `mapstructure:"maxFileSizeMB"`
	MaxScreenshots int    `mapstructure:"maxScreenshots"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig 定义了互动接口的IP频率限制
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Window  time.Duration `mapstructure:"window"`
	Max     int64         `mapstructure:"max"`
}

// HealthConfig 定义了后台健康检查器的配置
type HealthConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.address", ":3002")
	v.SetDefault("server.publicBaseURL", "")
	v.SetDefault("server.forceHTTPS", false)
	v.SetDefault("server.bodyLimitMB", 10)
	v.SetDefault("server.trustedProxies", []string{})
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:5173", "http://localhost:5174"})

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "password")
	v.SetDefault("database.postgres.name", "apk_store")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.sqlite.path", "apkstore.db")
	v.SetDefault("database.probeTimeout", 2*time.Second)
	v.SetDefault("database.logLevel", "silent")
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxOpenConns", 20)

	v.SetDefault("catalog.fallbackWrites", true)
	v.SetDefault("catalog.defaultCategory", "Other")

	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.maxFileSizeMB", 100)
	v.SetDefault("upload.maxScreenshots", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.max", 30)

	v.SetDefault("health.interval", 5*time.Second)
}

// LoadConfig 函数负责查找、加载和解析配置文件
// configFile 为空时，会在 ./config 和 . 中查找名为 config.yaml 的文件；
// 找不到配置文件不算错误，所有配置项都有默认值。
func LoadConfig(configFile string) (*Config, error) {
	// .env 文件是可选的
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 允许通过环境变量覆盖配置，例如 APKSTORE_SERVER_ADDRESS=:8080
	v.SetEnvPrefix("apkstore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法解析配置: %w", err)
	}
	if err := cfg.verify(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) verify() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSqlite:
	default:
		return fmt.Errorf("config: 不支持的数据库驱动 %q", c.Database.Driver)
	}
	for _, p := range c.Server.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("config: server.trustedProxies 中的 %q 不是有效的IP或网段", p)
			}
		}
	}
	if c.Database.ProbeTimeout <= 0 {
		return errors.New("config: database.probeTimeout 必须大于0")
	}
	if c.Upload.Dir == "" {
		return errors.New("config: upload.dir 不能为空")
	}
	if c.Catalog.DefaultCategory == "" {
		c.Catalog.DefaultCategory = "Other"
	}
	if c.RateLimit.Enabled && (c.RateLimit.Window <= 0 || c.RateLimit.Max <= 0) {
		return errors.New("config: 启用频率限制时 ratelimit.window 和 ratelimit.max 必须大于0")
	}
	if c.Health.Interval <= 0 {
		c.Health.Interval = 5 * time.Second
	}
	return nil
}
