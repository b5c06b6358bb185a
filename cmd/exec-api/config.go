package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"crucible/internal/common/cache"
	"crucible/internal/common/db"
	"crucible/internal/common/mq"
	"crucible/internal/exec/adhoc"
	"crucible/internal/exec/probe"
	"crucible/internal/exec/remote"
	"crucible/pkg/utils/logger"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// KafkaConfig holds broker settings plus the enqueue acknowledgement
// deadline used for fail-fast submission enqueue.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers"`
	ClientID        string        `yaml:"clientID"`
	EnqueueDeadline time.Duration `yaml:"enqueueDeadline"`
}

func (c KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:  c.Brokers,
		ClientID: c.ClientID,
	}
}

// AdminConfig guards the administrative endpoints.
type AdminConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

// AppConfig is the root configuration of the execution API.
type AppConfig struct {
	Logger   logger.Config     `yaml:"logger"`
	Server   ServerConfig      `yaml:"server"`
	Database db.MySQLConfig    `yaml:"database"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Kafka    KafkaConfig       `yaml:"kafka"`
	Adhoc    adhoc.Config      `yaml:"adhoc"`
	Remote   remote.Config     `yaml:"remote"`
	Probe    probe.Config      `yaml:"probe"`
	Exec     ExecConfig        `yaml:"exec"`
	Admin    AdminConfig       `yaml:"admin"`
}

// ExecConfig selects the execution backend preference.
type ExecConfig struct {
	Mode         string `yaml:"mode"`
	MaxCodeBytes int    `yaml:"maxCodeBytes"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &AppConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8081"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "crucible-exec-api"
	}
	if c.Kafka.EnqueueDeadline == 0 {
		c.Kafka.EnqueueDeadline = 5 * time.Second
	}
	if c.Exec.Mode == "" {
		c.Exec.Mode = "local"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
}
