package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`
	PostgresConn  string `mapstructure:"POSTGRES_CONN"`
	PostgresUser  string `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass  string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost  string `mapstructure:"POSTGRES_HOST"`
	PostgresPort  string `mapstructure:"POSTGRES_PORT"`
	PostgresDB    string `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL  string `mapstructure:"MIGRATION_URL"`

	StorageDriver         string        `mapstructure:"STORAGE_DRIVER"`
	DefaultStoppingPeriod time.Duration `mapstructure:"DEFAULT_STOPPING_PERIOD"`
	RequestTimeout        time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CollaboratorTimeout   time.Duration `mapstructure:"COLLABORATOR_TIMEOUT"`

	DispatchWorkers    int           `mapstructure:"DISPATCH_WORKERS"`
	DispatchQueueSize  int           `mapstructure:"DISPATCH_QUEUE_SIZE"`
	DispatchMaxRetries uint64        `mapstructure:"DISPATCH_MAX_RETRIES"`
	DispatchBackoff    time.Duration `mapstructure:"DISPATCH_BACKOFF"`
	EmailWebhookURL    string        `mapstructure:"EMAIL_WEBHOOK_URL"`
}

// Драйверы хранилища
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var keys = []string{
	"SERVER_ADDRESS",
	"POSTGRES_CONN",
	"POSTGRES_USERNAME",
	"POSTGRES_PASSWORD",
	"POSTGRES_HOST",
	"POSTGRES_PORT",
	"POSTGRES_DATABASE",
	"MIGRATION_URL",
	"STORAGE_DRIVER",
	"DEFAULT_STOPPING_PERIOD",
	"REQUEST_TIMEOUT",
	"COLLABORATOR_TIMEOUT",
	"DISPATCH_WORKERS",
	"DISPATCH_QUEUE_SIZE",
	"DISPATCH_MAX_RETRIES",
	"DISPATCH_BACKOFF",
	"EMAIL_WEBHOOK_URL",
}

// LoadConfig загружает конфигурацию из файла app.env и переменных окружения.
// Отсутствие файла не является ошибкой.
func LoadConfig(path string) (cfg Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("MIGRATION_URL", "file://migrations")
	v.SetDefault("STORAGE_DRIVER", DriverPostgres)
	v.SetDefault("DEFAULT_STOPPING_PERIOD", 14*24*time.Hour)
	v.SetDefault("REQUEST_TIMEOUT", 5*time.Second)
	v.SetDefault("COLLABORATOR_TIMEOUT", 3*time.Second)
	v.SetDefault("DISPATCH_WORKERS", 4)
	v.SetDefault("DISPATCH_QUEUE_SIZE", 256)
	v.SetDefault("DISPATCH_MAX_RETRIES", 5)
	v.SetDefault("DISPATCH_BACKOFF", 200*time.Millisecond)

	v.AutomaticEnv()
	for _, key := range keys {
		if err = v.BindEnv(key); err != nil {
			return
		}
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&cfg)
	if err != nil {
		return
	}
	cfg.PostgresConn = cfg.databaseURL()
	err = cfg.Validate()
	return
}

// databaseURL возвращает POSTGRES_CONN, а без него собирает адрес из отдельных
// переменных. Если частей не хватает, результат пустой.
func (c Config) databaseURL() string {
	if c.PostgresConn != "" {
		return c.PostgresConn
	}
	if c.PostgresUser == "" || c.PostgresPass == "" || c.PostgresHost == "" || c.PostgresPort == "" || c.PostgresDB == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

// Validate проверяет согласованность параметров.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.PostgresConn == "" {
			return errors.New("POSTGRES_CONN or POSTGRES_USERNAME/PASSWORD/HOST/PORT/DATABASE are required for postgres storage driver")
		}
	case DriverMemory:
	default:
		return errors.New("STORAGE_DRIVER must be postgres or memory")
	}
	if c.DefaultStoppingPeriod <= 0 {
		return errors.New("DEFAULT_STOPPING_PERIOD must be positive")
	}
	if c.DispatchWorkers <= 0 || c.DispatchQueueSize <= 0 {
		return errors.New("DISPATCH_WORKERS and DISPATCH_QUEUE_SIZE must be positive")
	}
	return nil
}
