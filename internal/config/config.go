package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	HTTPAddr        string        `env:"QC_HTTP_ADDR"        envDefault:":8080"`
	GRPCAddr        string        `env:"QC_GRPC_ADDR"        envDefault:":50051"`
	DBDriver        string        `env:"QC_DB_DRIVER"        envDefault:"mysql"`
	MySQLHost       string        `env:"QC_MYSQL_HOST"       envDefault:"localhost:3306"`
	MySQLUser       string        `env:"QC_MYSQL_USER"       envDefault:"root"`
	MySQLPassword   string        `env:"QC_MYSQL_PASSWORD"`
	MySQLDatabase   string        `env:"QC_MYSQL_DATABASE"   envDefault:"incoming_qc"`
	SQLitePath      string        `env:"QC_SQLITE_PATH"      envDefault:"incoming-qc.db"`
	RedisAddr       string        `env:"QC_REDIS_ADDR"`
	LogLevel        string        `env:"QC_LOG_LEVEL"        envDefault:"info"`
	LogFormat       string        `env:"QC_LOG_FORMAT"       envDefault:"json"`
	ShutdownTimeout time.Duration `env:"QC_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("QC_DB_DRIVER: unsupported value %q", c.DBDriver)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("QC_SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// MySQLConfig builds the driver config; the DSN itself is produced by FormatDSN.
func (c Config) MySQLConfig() *mysql.Config {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = c.MySQLHost
	mc.User = c.MySQLUser
	mc.Passwd = c.MySQLPassword
	mc.DBName = c.MySQLDatabase
	mc.ParseTime = true
	return mc
}
