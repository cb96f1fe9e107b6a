package config

import (
	"fmt"
	"time"

	"timetrack-go/pkg/utils"
)

// FileName 数据目录下的配置文件名
const FileName = "config.yaml"

// 存储驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config 守护进程与客户端共用的配置
type Config struct {
	// DataDir 由命令行或环境变量决定，不写入文件
	DataDir string `yaml:"-" mapstructure:"-"`

	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Publish   PublishConfig   `yaml:"publish" mapstructure:"publish"`
	Timesheet TimesheetConfig `yaml:"timesheet" mapstructure:"timesheet"`
	Web       WebConfig       `yaml:"web" mapstructure:"web"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig 事件存储
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	// Path SQLite 文件，相对路径基于数据目录
	Path string `yaml:"path" mapstructure:"path"`
	// DSN PostgreSQL 连接串
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// ServerConfig 请求/发布通道与调度节奏
type ServerConfig struct {
	Socket            string        `yaml:"socket" mapstructure:"socket"`
	PubSocket         string        `yaml:"pub_socket" mapstructure:"pub_socket"`
	PollInterval      time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	RecvTimeout       time.Duration `yaml:"recv_timeout" mapstructure:"recv_timeout"`
	SendTimeout       time.Duration `yaml:"send_timeout" mapstructure:"send_timeout"`
}

// PublishConfig 广播的额外出口
type PublishConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Addr 为空表示不启用
type RedisConfig struct {
	Addr    string `yaml:"addr" mapstructure:"addr"`
	Channel string `yaml:"channel" mapstructure:"channel"`
	DB      int    `yaml:"db" mapstructure:"db"`
}

// TimesheetConfig 按天切分所用时区，空或 Local 为本机时区
type TimesheetConfig struct {
	Location string `yaml:"location" mapstructure:"location"`
}

// WebConfig HTTP 网关
type WebConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig 日志
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// Default 返回默认配置
func Default(dataDir string) *Config {
	if dataDir == "" {
		dataDir = utils.DefaultDataDir()
	}
	return &Config{
		DataDir: dataDir,
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   "timetrack.db",
		},
		Server: ServerConfig{
			Socket:            "timetrack.sock",
			PubSocket:         "timetrack-pub.sock",
			PollInterval:      300 * time.Millisecond,
			HeartbeatInterval: time.Minute,
			RecvTimeout:       5 * time.Second,
			SendTimeout:       500 * time.Millisecond,
		},
		Publish: PublishConfig{
			Redis: RedisConfig{Channel: "timetrack:state"},
		},
		Timesheet: TimesheetConfig{Location: "Local"},
		Web:       WebConfig{Addr: "127.0.0.1:8765"},
		Log:       LogConfig{Level: "info"},
	}
}

// DBPath SQLite 文件绝对路径
func (c *Config) DBPath() string {
	return utils.ResolveIn(c.DataDir, c.Store.Path)
}

// SocketPath 请求/回复套接字路径
func (c *Config) SocketPath() string {
	return utils.ResolveIn(c.DataDir, c.Server.Socket)
}

// PubSocketPath 发布套接字路径
func (c *Config) PubSocketPath() string {
	return utils.ResolveIn(c.DataDir, c.Server.PubSocket)
}

// Location 解析时区
func (c *Config) Location() (*time.Location, error) {
	switch c.Timesheet.Location {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timesheet.Location)
	if err != nil {
		return nil, fmt.Errorf("timesheet.location: %w", err)
	}
	return loc, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path must be set for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	durations := map[string]time.Duration{
		"server.poll_interval":      c.Server.PollInterval,
		"server.heartbeat_interval": c.Server.HeartbeatInterval,
		"server.recv_timeout":       c.Server.RecvTimeout,
		"server.send_timeout":       c.Server.SendTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if c.Server.Socket == "" || c.Server.PubSocket == "" {
		return fmt.Errorf("server.socket and server.pub_socket must be set")
	}
	if c.Publish.Redis.Addr != "" && c.Publish.Redis.Channel == "" {
		return fmt.Errorf("publish.redis.channel must be set when publish.redis.addr is")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
