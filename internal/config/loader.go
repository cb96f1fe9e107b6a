package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，例如 TIMETRACK_SERVER_POLL_INTERVAL
const EnvPrefix = "TIMETRACK"

// Path 数据目录下的配置文件路径
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Load 默认值 < 配置文件（可选） < 环境变量
func Load(dataDir string) (*Config, error) {
	cfg := Default(dataDir)

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := Path(cfg.DataDir)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults 注册全部键，AutomaticEnv 只覆盖已知键
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("store.driver", cfg.Store.Driver)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("store.dsn", cfg.Store.DSN)
	v.SetDefault("server.socket", cfg.Server.Socket)
	v.SetDefault("server.pub_socket", cfg.Server.PubSocket)
	v.SetDefault("server.poll_interval", cfg.Server.PollInterval)
	v.SetDefault("server.heartbeat_interval", cfg.Server.HeartbeatInterval)
	v.SetDefault("server.recv_timeout", cfg.Server.RecvTimeout)
	v.SetDefault("server.send_timeout", cfg.Server.SendTimeout)
	v.SetDefault("publish.redis.addr", cfg.Publish.Redis.Addr)
	v.SetDefault("publish.redis.channel", cfg.Publish.Redis.Channel)
	v.SetDefault("publish.redis.db", cfg.Publish.Redis.DB)
	v.SetDefault("timesheet.location", cfg.Timesheet.Location)
	v.SetDefault("web.addr", cfg.Web.Addr)
	v.SetDefault("log.level", cfg.Log.Level)
}

// Write 以 YAML 写出配置；overwrite 为假且文件存在时报错
func Write(cfg *Config, overwrite bool) (string, error) {
	path := Path(cfg.DataDir)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return path, err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return path, fmt.Errorf("encode config: %w", err)
	}
	header := []byte("# timetrack configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0644); err != nil {
		return path, err
	}
	return path, nil
}

// Render 配置的 YAML 文本，供 config show 使用
func Render(cfg *Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
