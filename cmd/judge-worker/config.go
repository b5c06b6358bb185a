package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"crucible/internal/common/cache"
	"crucible/internal/common/db"
	"crucible/internal/common/mq"
	"crucible/internal/common/storage"
	"crucible/internal/exec/probe"
	"crucible/internal/judge/model"
	"crucible/internal/judge/scoring"
	"crucible/pkg/utils/logger"
)

// KafkaConfig holds broker settings for the worker consumer.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientID"`
}

func (c KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:  c.Brokers,
		ClientID: c.ClientID,
	}
}

// ExecConfig selects the execution backend preference for judged runs.
type ExecConfig struct {
	Mode string `yaml:"mode"`
}

// AppConfig is the root configuration of the judge worker.
type AppConfig struct {
	Logger   logger.Config            `yaml:"logger"`
	Database db.MySQLConfig           `yaml:"database"`
	Redis    cache.RedisConfig        `yaml:"redis"`
	Kafka    KafkaConfig              `yaml:"kafka"`
	MinIO    storage.MinIOConfig      `yaml:"minio"`
	Probe    probe.Config             `yaml:"probe"`
	Exec     ExecConfig               `yaml:"exec"`
	Limits   model.ExecutionLimits    `yaml:"limits"`
	Scoring  scoring.HTTPEngineConfig `yaml:"scoring"`
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
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "crucible-judge-worker"
	}
	if c.Exec.Mode == "" {
		c.Exec.Mode = "auto"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	defaults := model.DefaultLimits()
	if c.Limits.TimeoutMs == 0 {
		c.Limits.TimeoutMs = defaults.TimeoutMs
	}
	if c.Limits.MemoryMB == 0 {
		c.Limits.MemoryMB = defaults.MemoryMB
	}
	if c.Limits.MaxOutputBytes == 0 {
		c.Limits.MaxOutputBytes = defaults.MaxOutputBytes
	}
}
