package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	HTTP      HTTPConfig
	GRPC      GRPCConfig
	Log       LogConfig
	Ledger    LedgerConfig
	Alerts    AlertsConfig
	Integrity IntegrityConfig
}

type AppConfig struct {
	Name string
	Env  string
	// AutoMigrate applies pending migrations on server start.
	AutoMigrate bool
}

type DatabaseConfig struct {
	Driver          string // postgres, mysql, memory
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr           string // empty disables Redis; idempotency falls back to memory
	Password       string
	DB             int
	PoolSize       int
	IdempotencyTTL time.Duration
}

type HTTPConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64 // 0 disables rate limiting
	RateLimitBurst  int
}

type GRPCConfig struct {
	Port string // empty disables the gRPC server
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

type LedgerConfig struct {
	// OpeningBalance is booked as the first cashbook entry of an empty ledger.
	OpeningBalance int64
}

type AlertsConfig struct {
	Workers   int
	QueueSize int
}

type IntegrityConfig struct {
	MonitorInterval time.Duration // 0 disables the periodic check
}

// Load reads configuration with the following precedence:
// 1. environment variables with YUANDI_ prefix (e.g. YUANDI_DATABASE_PASSWORD)
// 2. config.toml
// 3. built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("YUANDI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("app.name"),
			Env:         v.GetString("app.env"),
			AutoMigrate: v.GetBool("app.auto_migrate"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Addr:           v.GetString("redis.addr"),
			Password:       v.GetString("redis.password"),
			DB:             v.GetInt("redis.db"),
			PoolSize:       v.GetInt("redis.pool_size"),
			IdempotencyTTL: v.GetDuration("redis.idempotency_ttl"),
		},
		HTTP: HTTPConfig{
			Port:            v.GetString("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			RateLimitRPS:    v.GetFloat64("http.rate_limit_rps"),
			RateLimitBurst:  v.GetInt("http.rate_limit_burst"),
		},
		GRPC: GRPCConfig{
			Port: v.GetString("grpc.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Ledger: LedgerConfig{
			OpeningBalance: v.GetInt64("ledger.opening_balance"),
		},
		Alerts: AlertsConfig{
			Workers:   v.GetInt("alerts.workers"),
			QueueSize: v.GetInt("alerts.queue_size"),
		},
		Integrity: IntegrityConfig{
			MonitorInterval: v.GetDuration("integrity.monitor_interval"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "yuandi-fulfillment")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.auto_migrate", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "yuandi")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.idempotency_ttl", 24*time.Hour)

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.rate_limit_rps", 100.0)
	v.SetDefault("http.rate_limit_burst", 200)

	v.SetDefault("grpc.port", "50051")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("ledger.opening_balance", 0)

	v.SetDefault("alerts.workers", 2)
	v.SetDefault("alerts.queue_size", 1024)

	v.SetDefault("integrity.monitor_interval", 0)
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "memory":
	default:
		return fmt.Errorf("database.driver must be postgres, mysql or memory, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.HTTP.Port == "" {
		return fmt.Errorf("http.port is required")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("http.rate_limit_rps cannot be negative")
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst <= 0 {
		return fmt.Errorf("http.rate_limit_burst must be positive when rate limiting is enabled")
	}
	if c.Alerts.Workers < 0 || c.Alerts.QueueSize < 0 {
		return fmt.Errorf("alerts.workers and alerts.queue_size cannot be negative")
	}
	if c.Integrity.MonitorInterval < 0 {
		return fmt.Errorf("integrity.monitor_interval cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "memory" {
			return fmt.Errorf("database.driver=memory is not allowed in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "mysql" {
		return d.mysqlConfig(false).FormatDSN()
	}
	return d.postgresURL()
}

// MigrationDSN is DSN with multi-statement execution enabled for MySQL,
// which the migration files need.
func (d *DatabaseConfig) MigrationDSN() string {
	if d.Driver == "mysql" {
		return d.mysqlConfig(true).FormatDSN()
	}
	return d.postgresURL()
}

func (d *DatabaseConfig) postgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func (d *DatabaseConfig) mysqlConfig(multiStatements bool) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = d.User
	mc.Passwd = d.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", d.Host, d.Port)
	mc.DBName = d.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.MultiStatements = multiStatements
	return mc
}
