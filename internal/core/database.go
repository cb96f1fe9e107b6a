package core

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"timetrack-go/pkg/utils"

	_ "modernc.org/sqlite"
)

// DatabaseFileName 默认数据库文件名
const DatabaseFileName = "timetrack.db"

// DatabaseManager SQLite 连接管理器
type DatabaseManager struct {
	dbPath string
	db     *sql.DB
	log    utils.Logger
}

// NewDatabaseManager 打开（必要时创建）数据库文件并完成 Schema 自愈
func NewDatabaseManager(dbPath string, log utils.Logger) (*DatabaseManager, error) {
	if log == nil {
		log = utils.NopLogger{}
	}
	mgr := &DatabaseManager{
		dbPath: dbPath,
		log:    log,
	}
	if err := mgr.init(); err != nil {
		return nil, err
	}
	return mgr, nil
}

// Path 数据库文件路径
func (m *DatabaseManager) Path() string {
	return m.dbPath
}

func (m *DatabaseManager) init() error {
	// 确保目录存在
	dir := filepath.Dir(m.dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", m.dbPath)
	if err != nil {
		return err
	}

	// 单写者：池中只保留一个连接，PRAGMA 对其始终生效
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	}

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return err
		}
	}

	m.db = db

	if err := m.healSchema(); err != nil {
		db.Close()
		return fmt.Errorf("heal schema: %w", err)
	}

	return nil
}

func (m *DatabaseManager) healSchema() error {
	// 1. 核心表
	// events.task_id 故意不加外键：切换到不存在的任务只在解析当前任务时报错
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			enabled INTEGER NOT NULL DEFAULT 1,
			name TEXT NOT NULL CHECK (name <> '')
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_timestamp INTEGER NOT NULL,
			task_id INTEGER,
			system_event_name TEXT CHECK (system_event_name IN ('Startup', 'Shutdown', 'Ping')),
			CHECK ((task_id IS NULL) <> (system_event_name IS NULL))
		)`,
	}

	for _, s := range schemas {
		if _, err := m.db.Exec(s); err != nil {
			return err
		}
	}

	// 2. 索引
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(event_timestamp DESC, id DESC)",
		"CREATE INDEX IF NOT EXISTS idx_events_system ON events(system_event_name)",
	}
	for _, idx := range indexes {
		if _, err := m.db.Exec(idx); err != nil {
			return err
		}
	}

	// 3. 旧库迁移（ADD COLUMN，列已存在时报错属正常）
	migrations := []string{
		"ALTER TABLE tasks ADD COLUMN enabled INTEGER NOT NULL DEFAULT 1",
	}
	for _, mig := range migrations {
		if _, err := m.db.Exec(mig); err != nil {
			m.log.Debugf("migration skipped (%s): %v", mig, err)
		}
	}

	return nil
}

// Exec 执行写操作
func (m *DatabaseManager) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return m.db.ExecContext(ctx, query, args...)
}

// QueryRow 执行单行查询
func (m *DatabaseManager) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return m.db.QueryRowContext(ctx, query, args...)
}

// Query 执行多行查询
func (m *DatabaseManager) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return m.db.QueryContext(ctx, query, args...)
}

// Close 关闭连接
func (m *DatabaseManager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
