// Package dao 实现本地存储（gorm）
package dao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/haierkeys/fast-note-offline/internal/model"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/haierkeys/fast-note-offline/pkg/util"
	"github.com/haierkeys/fast-note-offline/pkg/writequeue"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// DatabaseConfig 数据库连接配置
type DatabaseConfig struct {
	// Type sqlite | mysql | postgres
	Type     string
	Path     string
	UserName string
	Password string
	Host     string
	Port     int
	Name     string
	Charset  string
	// TablePrefix 表前缀
	TablePrefix     string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Debug           bool
}

// Dialector 根据配置返回 gorm 方言
func Dialector(c DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(c.Type) {
	case "", "sqlite":
		if c.Path == "" {
			return nil, errors.New("sqlite path is empty")
		}
		if err := util.EnsureParentDir(c.Path); err != nil {
			return nil, errors.Wrap(err, "create database dir")
		}
		dsn := c.Path
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(0)"
		}
		return sqlite.Open(dsn), nil
	case "mysql":
		charset := c.Charset
		if charset == "" {
			charset = "utf8mb4"
		}
		port := c.Port
		if port == 0 {
			port = 3306
		}
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=Local",
			c.UserName, c.Password, c.Host, port, c.Name, charset)), nil
	case "postgres", "postgresql":
		port := c.Port
		if port == 0 {
			port = 5432
		}
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			c.Host, c.UserName, c.Password, c.Name, port)), nil
	}
	return nil, errors.Errorf("unsupported database type %q", c.Type)
}

// NewDBEngine 打开数据库连接
func NewDBEngine(c DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(c)
	if err != nil {
		return nil, err
	}

	logMode := logger.Silent
	if c.Debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   c.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	if c.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	}
	return db, nil
}

// Dao 本地存储访问入口
// 写操作按用户经写队列串行执行；事务通过 ctx 传递
type Dao struct {
	db     *gorm.DB
	wq     *writequeue.Manager
	clock  timex.Clock
	logger *zap.Logger
}

// Option Dao 可选项
type Option func(*Dao)

// WithWriteQueue 使用写队列串行化写操作
func WithWriteQueue(wq *writequeue.Manager) Option {
	return func(d *Dao) { d.wq = wq }
}

// WithClock 替换时钟
func WithClock(c timex.Clock) Option {
	return func(d *Dao) { d.clock = c }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(d *Dao) { d.logger = l }
}

// New 创建 Dao
func New(db *gorm.DB, opts ...Option) *Dao {
	d := &Dao{db: db, clock: timex.System, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Migrate 创建或更新本地表
func (d *Dao) Migrate() error {
	return model.AutoMigrate(d.db)
}

// Close 关闭底层连接
func (d *Dao) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type txKey struct{}

func txFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}

// DB 返回 ctx 中的事务，没有事务时返回带 ctx 的连接
func (d *Dao) DB(ctx context.Context) *gorm.DB {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return d.db.WithContext(ctx)
}

// ExecuteWrite 执行写操作
// 已在事务中时直接执行，否则进入该用户的写队列
func (d *Dao) ExecuteWrite(ctx context.Context, uid string, fn func(db *gorm.DB) error) error {
	if tx, ok := txFrom(ctx); ok {
		return fn(tx)
	}
	if d.wq == nil {
		return fn(d.db.WithContext(ctx))
	}
	return d.wq.Execute(ctx, uid, func() error {
		return fn(d.db.WithContext(ctx))
	})
}

// Transaction 在一个事务中执行 fn，嵌套调用加入外层事务
func (d *Dao) Transaction(ctx context.Context, uid string, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	return d.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			return fn(context.WithValue(ctx, txKey{}, tx))
		})
	})
}

func (d *Dao) nowMilli() int64 {
	return timex.NowMilli(d.clock)
}

// isNotFound gorm 未找到记录
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
