// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/dao"
	"github.com/haierkeys/fast-note-offline/internal/netstatus"
	"github.com/haierkeys/fast-note-offline/internal/realtime"
	"github.com/haierkeys/fast-note-offline/internal/remote/httpremote"
	"github.com/haierkeys/fast-note-offline/internal/service"
	"github.com/haierkeys/fast-note-offline/internal/task"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/util"
	"github.com/haierkeys/fast-note-offline/pkg/workerpool"
	"github.com/haierkeys/fast-note-offline/pkg/writequeue"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// 远端类型
const (
	RemoteTypeHTTP = "http"
	RemoteTypeDB   = "db"
)

// AppConfig 应用配置
type AppConfig struct {
	File     string         `yaml:"-"` // 配置文件路径，不序列化
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Sync     SyncConfig     `yaml:"sync"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Demo     DemoConfig     `yaml:"demo"`
	App      AppSettings    `yaml:"app"`
	Tracer   TracerConfig   `yaml:"tracer"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别，参见 zapcore.ParseLevel
	Level string `yaml:"level" default:"info"`
	// File 日志文件路径，为空时只输出到 stderr
	File string `yaml:"file" default:"storage/logs/log.log"`
	// Production 是否启用 JSON 输出
	Production bool `yaml:"production" default:"true"`
}

// ServerConfig 本地 API 配置
type ServerConfig struct {
	// RunMode 运行模式 debug | release
	RunMode string `yaml:"run-mode" default:"release"`
	// HttpPort 本地 API 监听地址，为空表示不启动
	HttpPort string `yaml:"http-port" default:"127.0.0.1:9100"`
	// ReadTimeout 读取超时（秒）
	ReadTimeout int `yaml:"read-timeout" default:"60"`
	// WriteTimeout 写入超时（秒）
	WriteTimeout int `yaml:"write-timeout" default:"60"`
	// PrivateHttpListen 指标与 pprof 监听地址，为空表示不启动
	PrivateHttpListen string `yaml:"private-http-listen" default:"127.0.0.1:9101"`
	// Lang 响应消息语言 en | zh_cn
	Lang string `yaml:"lang" default:"en"`
	// AuthToken 本地 API 令牌，为空时不校验
	AuthToken string `yaml:"auth-token"`
	// RateLimit 本地 API 每秒请求数，0 表示不限流
	RateLimit float64 `yaml:"rate-limit" default:"50"`
	// Burst 本地 API 令牌桶容量
	Burst int64 `yaml:"burst" default:"100"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Type 数据库类型 sqlite | mysql | postgres
	Type string `yaml:"type" default:"sqlite"`
	// Path SQLite 数据库文件路径
	Path string `yaml:"path" default:"storage/database/offline.sqlite3"`
	// UserName 用户名
	UserName string `yaml:"username"`
	// Password 密码
	Password string `yaml:"password"`
	// Host 主机
	Host string `yaml:"host"`
	// Port 端口，0 使用驱动默认端口
	Port int `yaml:"port"`
	// Name 数据库名
	Name string `yaml:"name"`
	// TablePrefix 表前缀
	TablePrefix string `yaml:"table-prefix"`
	// Charset 字符集
	Charset string `yaml:"charset"`
	// MaxIdleConns 最大闲置连接数
	MaxIdleConns int `yaml:"max-idle-conns" default:"2"`
	// MaxOpenConns 最大打开连接数
	MaxOpenConns int `yaml:"max-open-conns" default:"10"`
	// ConnMaxLifetime 连接最大生命周期，支持格式：30m（分钟）、1h（小时）
	ConnMaxLifetime string `yaml:"conn-max-lifetime" default:"30m"`
	// ConnMaxIdleTime 空闲连接最大生命周期
	ConnMaxIdleTime string `yaml:"conn-max-idle-time" default:"10m"`
}

// RemoteConfig 远端存储配置
type RemoteConfig struct {
	// Type http | db
	Type string `yaml:"type" default:"http"`
	// UserID 当前登录账号，为空时只能使用演示模式
	UserID string `yaml:"user-id"`
	// BaseURL REST 接口地址
	BaseURL string `yaml:"base-url"`
	// Token REST 鉴权令牌
	Token string `yaml:"token"`
	// Timeout 单次请求超时
	Timeout string `yaml:"timeout" default:"15s"`
	// RateLimit 每秒请求数，0 表示不限速
	RateLimit float64 `yaml:"rate-limit" default:"20"`
	// Burst 令牌桶容量
	Burst int64 `yaml:"burst" default:"40"`
	// Database type=db 时直连的远端数据库
	Database DatabaseConfig `yaml:"database"`
	// PingInterval 连通性探测间隔
	PingInterval string `yaml:"ping-interval" default:"10s"`
}

// SyncConfig 同步配置
type SyncConfig struct {
	// Interval 周期同步间隔，0 表示关闭
	Interval string `yaml:"interval" default:"30s"`
	// ReconnectDelay 网络恢复后等待多久再同步
	ReconnectDelay string `yaml:"reconnect-delay" default:"1s"`
	// StartupDelay 启动（登录）后首次同步前的等待
	StartupDelay string `yaml:"startup-delay" default:"2s"`
	// RetryAttempts 每次远端调用的总尝试次数
	RetryAttempts int `yaml:"retry-attempts" default:"3"`
	// RetryInitialDelay 第二次尝试前的等待
	RetryInitialDelay string `yaml:"retry-initial-delay" default:"1s"`
	// RetryMultiplier 退避倍数
	RetryMultiplier float64 `yaml:"retry-multiplier" default:"2"`
	// Retention 回收站保留时间，0 表示不清理
	Retention string `yaml:"retention" default:"30d"`
	// PurgeSchedule 回收站清理的 cron 表达式
	PurgeSchedule string `yaml:"purge-schedule" default:"@every 10m"`
	// ReplayInterval 冲突解决意图重放间隔
	ReplayInterval string `yaml:"replay-interval" default:"5m"`
	// PendingInterval 待推送数量指标刷新间隔
	PendingInterval string `yaml:"pending-interval" default:"1m"`
}

// RealtimeConfig 实时变更通知配置
type RealtimeConfig struct {
	// URL websocket 地址，为空表示关闭
	URL string `yaml:"url"`
	// ReconnectMin 断线重连的初始等待
	ReconnectMin string `yaml:"reconnect-min" default:"1s"`
	// ReconnectMax 断线重连的最长等待
	ReconnectMax string `yaml:"reconnect-max" default:"1m"`
	// PingInterval 心跳间隔
	PingInterval string `yaml:"ping-interval" default:"30s"`
}

// DemoConfig 演示模式配置
type DemoConfig struct {
	// BufferPath 登录前演示数据的保存位置
	BufferPath string `yaml:"buffer-path" default:"storage/demo/demo.json"`
}

// AppSettings 应用设置
type AppSettings struct {
	// DefaultContextTimeout 本地 API 请求超时（秒）
	DefaultContextTimeout int `yaml:"default-context-timeout" default:"60"`

	// Worker Pool 配置
	WorkerPoolMaxWorkers int `yaml:"worker-pool-max-workers" default:"4"`
	WorkerPoolQueueSize  int `yaml:"worker-pool-queue-size" default:"64"`

	// Write Queue 配置
	WriteQueueCapacity int    `yaml:"write-queue-capacity" default:"100"`
	WriteQueueTimeout  string `yaml:"write-queue-timeout" default:"30s"`
	WriteQueueIdleTime string `yaml:"write-queue-idle-time" default:"10m"`
}

// TracerConfig 请求追踪配置
type TracerConfig struct {
	// Enabled 是否启用追踪
	Enabled bool `yaml:"enabled" default:"true"`
	// Header 追踪 ID 请求头名称，默认 X-Trace-ID
	Header string `yaml:"header" default:"X-Trace-ID"`
}

// LoadConfig 从文件加载配置
// 返回配置实例和配置文件的绝对路径
func LoadConfig(f string) (*AppConfig, string, error) {
	realpath, err := filepath.Abs(f)
	if err != nil {
		return nil, "", err
	}
	realpath = filepath.Clean(realpath)

	file, err := os.ReadFile(realpath)
	if err != nil {
		return nil, realpath, errors.Wrap(err, "read config file failed")
	}

	c, err := ParseConfig(file)
	if err != nil {
		return nil, realpath, err
	}
	c.File = realpath
	return c, realpath, nil
}

// ParseConfig 解析 YAML 配置并填充默认值
func ParseConfig(data []byte) (*AppConfig, error) {
	c := new(AppConfig)

	// 设置默认值
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "set default config failed")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "parse config file failed")
	}

	// 再次设置默认值，以填充 YAML 中存在但值为空的字段
	// defaults.Set 只有在字段为该类型的零值时才会填充
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "re-set default config failed")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate 检查配置取值
func (c *AppConfig) Validate() error {
	switch strings.ToLower(c.Remote.Type) {
	case RemoteTypeHTTP, RemoteTypeDB:
	default:
		return errors.Errorf("remote.type must be %q or %q, got %q", RemoteTypeHTTP, RemoteTypeDB, c.Remote.Type)
	}
	if strings.EqualFold(c.Remote.Type, RemoteTypeDB) && strings.EqualFold(c.Remote.Database.Type, "sqlite") &&
		filepath.Clean(c.Remote.Database.Path) == filepath.Clean(c.Database.Path) {
		return errors.New("remote.database must not point at the local store")
	}
	durations := map[string]string{
		"remote.timeout":             c.Remote.Timeout,
		"remote.ping-interval":       c.Remote.PingInterval,
		"sync.interval":              c.Sync.Interval,
		"sync.reconnect-delay":       c.Sync.ReconnectDelay,
		"sync.startup-delay":         c.Sync.StartupDelay,
		"sync.retry-initial-delay":   c.Sync.RetryInitialDelay,
		"sync.retention":             c.Sync.Retention,
		"sync.replay-interval":       c.Sync.ReplayInterval,
		"sync.pending-interval":      c.Sync.PendingInterval,
		"realtime.reconnect-min":     c.Realtime.ReconnectMin,
		"realtime.reconnect-max":     c.Realtime.ReconnectMax,
		"realtime.ping-interval":     c.Realtime.PingInterval,
		"database.conn-max-lifetime": c.Database.ConnMaxLifetime,
	}
	for key, v := range durations {
		if v == "" || v == "0" {
			continue
		}
		if _, err := util.ParseDuration(v); err != nil {
			return errors.Wrapf(err, "invalid duration for %s", key)
		}
	}
	if c.Sync.RetryAttempts < 1 {
		return errors.Errorf("sync.retry-attempts must be >= 1, got %d", c.Sync.RetryAttempts)
	}
	if c.Sync.PurgeSchedule != "" {
		if _, err := task.ParseSchedule(c.Sync.PurgeSchedule); err != nil {
			return err
		}
	}
	return nil
}

// Save 保存配置到文件
func (c *AppConfig) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config failed")
	}

	err = os.WriteFile(c.File, data, 0644)
	if err != nil {
		return errors.Wrap(err, "write config file failed")
	}

	return nil
}

// duration 解析时长，"0" 或空串返回 0
func duration(s string) time.Duration {
	if s == "" || s == "0" {
		return 0
	}
	return util.ParseDurationOr(s, 0)
}

// GetLoggerConfig 获取日志配置
func (c *AppConfig) GetLoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		File:       c.Log.File,
		Production: c.Log.Production,
	}
}

// toDao 转换为 dao.DatabaseConfig
func (d DatabaseConfig) toDao(debug bool) dao.DatabaseConfig {
	return dao.DatabaseConfig{
		Type:            d.Type,
		Path:            d.Path,
		UserName:        d.UserName,
		Password:        d.Password,
		Host:            d.Host,
		Port:            d.Port,
		Name:            d.Name,
		Charset:         d.Charset,
		TablePrefix:     d.TablePrefix,
		MaxIdleConns:    d.MaxIdleConns,
		MaxOpenConns:    d.MaxOpenConns,
		ConnMaxLifetime: duration(d.ConnMaxLifetime),
		ConnMaxIdleTime: duration(d.ConnMaxIdleTime),
		Debug:           debug,
	}
}

// GetDatabaseConfig 本地存储的数据库配置
func (c *AppConfig) GetDatabaseConfig() dao.DatabaseConfig {
	return c.Database.toDao(c.Server.RunMode == "debug")
}

// GetRemoteDatabaseConfig type=db 时远端数据库配置
func (c *AppConfig) GetRemoteDatabaseConfig() dao.DatabaseConfig {
	return c.Remote.Database.toDao(c.Server.RunMode == "debug")
}

// GetHTTPRemoteConfig REST 远端配置
func (c *AppConfig) GetHTTPRemoteConfig(deviceID string) httpremote.Config {
	return httpremote.Config{
		BaseURL:   c.Remote.BaseURL,
		Token:     c.Remote.Token,
		DeviceID:  deviceID,
		Timeout:   duration(c.Remote.Timeout),
		RateLimit: c.Remote.RateLimit,
		Burst:     c.Remote.Burst,
	}
}

// GetSyncServiceConfig 同步引擎配置
func (c *AppConfig) GetSyncServiceConfig() service.SyncServiceConfig {
	return service.SyncServiceConfig{
		RetryAttempts:     c.Sync.RetryAttempts,
		RetryInitialDelay: duration(c.Sync.RetryInitialDelay),
		RetryMultiplier:   c.Sync.RetryMultiplier,
		Retention:         duration(c.Sync.Retention),
	}
}

// GetTaskConfig 后台任务配置
func (c *AppConfig) GetTaskConfig() task.Config {
	return task.Config{
		SyncInterval:    duration(c.Sync.Interval),
		StartupDelay:    duration(c.Sync.StartupDelay),
		ReplayInterval:  duration(c.Sync.ReplayInterval),
		PurgeSchedule:   c.Sync.PurgeSchedule,
		PendingInterval: duration(c.Sync.PendingInterval),
	}
}

// GetNetstatusConfig 连通性探测配置
func (c *AppConfig) GetNetstatusConfig() netstatus.Config {
	return netstatus.Config{
		Interval:    duration(c.Remote.PingInterval),
		SettleDelay: duration(c.Sync.ReconnectDelay),
		Timeout:     duration(c.Remote.Timeout),
	}
}

// GetRealtimeConfig 实时通道配置，令牌沿用远端令牌
func (c *AppConfig) GetRealtimeConfig() realtime.Config {
	return realtime.Config{
		URL:          c.Realtime.URL,
		Token:        c.Remote.Token,
		ReconnectMin: duration(c.Realtime.ReconnectMin),
		ReconnectMax: duration(c.Realtime.ReconnectMax),
		PingInterval: duration(c.Realtime.PingInterval),
	}
}

// GetWorkerPoolConfig 获取 Worker Pool 配置
func (c *AppConfig) GetWorkerPoolConfig() workerpool.Config {
	cfg := workerpool.DefaultConfig()

	if c.App.WorkerPoolMaxWorkers > 0 {
		cfg.MaxWorkers = c.App.WorkerPoolMaxWorkers
	}
	if c.App.WorkerPoolQueueSize > 0 {
		cfg.QueueSize = c.App.WorkerPoolQueueSize
	}

	return cfg
}

// GetWriteQueueConfig 获取 Write Queue 配置
func (c *AppConfig) GetWriteQueueConfig() writequeue.Config {
	cfg := writequeue.DefaultConfig()

	if c.App.WriteQueueCapacity > 0 {
		cfg.QueueCapacity = c.App.WriteQueueCapacity
	}
	if d := duration(c.App.WriteQueueTimeout); d > 0 {
		cfg.WriteTimeout = d
	}
	if d := duration(c.App.WriteQueueIdleTime); d > 0 {
		cfg.IdleTimeout = d
	}

	return cfg
}
