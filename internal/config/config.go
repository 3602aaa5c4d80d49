package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPAddr           string        `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsPort        string        `envconfig:"METRICS_PORT" default:"9090"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	NotificationTTL    time.Duration `envconfig:"NOTIFICATION_TTL" default:"3s"`
	SessionTTL         time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	SeedCatalog        bool          `envconfig:"SEED_CATALOG" default:"true"`
	MaxMultipartMemory int64         `envconfig:"MAX_MULTIPART_MEMORY" default:"10485760"`
}

func Load() (*Config, error) {
	// Carrega .env da raiz do projeto
	_ = godotenv.Load("../../.env")
	// Se não encontrar, tenta no diretório atual
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("variáveis de ambiente inválidas: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
