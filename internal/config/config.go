package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Provider  ProviderConfig  `yaml:"provider"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Slave     SlaveConfig     `yaml:"slave"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
	// Project 本节点的默认项目标识，JSON 推送未携带 project 时使用
	Project string `yaml:"project"`
}

type MySQLConfig struct {
	// DSN 为空时不连数据库，元数据使用内置种子，记录仅写入内存仓储
	DSN string `yaml:"dsn"`
}

// ArchiveConfig 可选的记录归档（Elasticsearch / OpenSearch）
type ArchiveConfig struct {
	Addresses     []string `yaml:"addresses"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	Index         string   `yaml:"index"`
	TLSSkipVerify bool     `yaml:"tlsSkipVerify"`
	Provider      string   `yaml:"provider"` // elasticsearch | opensearch
}

type ProviderConfig struct {
	// RequestTimeout 每次出站请求的超时时间，默认 10s
	RequestTimeout string `yaml:"requestTimeout"`
}

func (p ProviderConfig) GetRequestTimeout() time.Duration {
	return parseDurationDefault(p.RequestTimeout, 10*time.Second)
}

type SchedulerConfig struct {
	ResendInterval        string `yaml:"resendInterval"`
	RepeatConfirmInterval string `yaml:"repeatConfirmInterval"`
	SyncInterval          string `yaml:"syncInterval"`
}

func (s SchedulerConfig) GetResendInterval() time.Duration {
	return parseDurationDefault(s.ResendInterval, 30*time.Second)
}

func (s SchedulerConfig) GetRepeatConfirmInterval() time.Duration {
	return parseDurationDefault(s.RepeatConfirmInterval, 10*time.Second)
}

func (s SchedulerConfig) GetSyncInterval() time.Duration {
	return parseDurationDefault(s.SyncInterval, time.Second)
}

// SlaveConfig 下游同步目标，形如 "http://slave:8686"
type SlaveConfig struct {
	Targets []string `yaml:"targets"`
	Timeout string   `yaml:"timeout"`
}

func (s SlaveConfig) GetTimeout() time.Duration {
	return parseDurationDefault(s.Timeout, 5*time.Second)
}

// LoggingConfig 控制日志级别
type LoggingConfig struct {
	// Level 支持 DEBUG / INFO / WARN / ERROR（大小写不敏感），默认 INFO。
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8686"
	}
	if cfg.Server.Project == "" {
		cfg.Server.Project = "DEFAULT"
	}
	if cfg.Archive.Provider == "" {
		cfg.Archive.Provider = "elasticsearch"
	}
	if cfg.Archive.Index == "" {
		cfg.Archive.Index = "omnis-alert-records"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	// 环境变量 LOG_LEVEL 优先级高于配置文件
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return &cfg, nil
}

func parseDurationDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
