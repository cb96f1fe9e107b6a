package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore PostgreSQL 事件存储，表结构与 SQLite 版一致
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore 包装连接池
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// OpenPgStore 连接 DSN 并确保表存在
func OpenPgStore(ctx context.Context, dsn string) (*PgStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	// 单写者
	cfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := NewPgStore(pool)
	if err := s.EnsureTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

var _ EventStore = (*PgStore)(nil)

// EnsureTables 建表与索引
func (s *PgStore) EnsureTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id      BIGSERIAL PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			name    TEXT NOT NULL CHECK (name <> '')
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id                BIGSERIAL PRIMARY KEY,
			event_timestamp   BIGINT NOT NULL,
			task_id           BIGINT,
			system_event_name TEXT CHECK (system_event_name IN ('Startup', 'Shutdown', 'Ping')),
			CHECK ((task_id IS NULL) <> (system_event_name IS NULL))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(event_timestamp DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_system ON events(system_event_name) WHERE system_event_name IS NOT NULL`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return StorageErr("ensure tables", err)
		}
	}
	return nil
}

// CreateTask 新建任务
func (s *PgStore) CreateTask(ctx context.Context, name string) (TaskID, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `INSERT INTO tasks (enabled, name) VALUES (TRUE, $1) RETURNING id`, name).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return 0, StorageErr("create task", fmt.Errorf("constraint violation for name %q: %w", name, err))
		}
		return 0, StorageErr("create task", err)
	}
	return TaskID(id), nil
}

// GetTask 按编号读取任务
func (s *PgStore) GetTask(ctx context.Context, id TaskID) (Task, error) {
	var t Task
	err := s.pool.QueryRow(ctx, `SELECT id, enabled, name FROM tasks WHERE id = $1`, int64(id)).
		Scan(&t.ID, &t.Enabled, &t.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, taskNotFound("get task", id)
	}
	if err != nil {
		return Task{}, StorageErr("get task", err)
	}
	return t, nil
}

// ListTasks 按编号升序列出
func (s *PgStore) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, enabled, name FROM tasks ORDER BY id`)
	if err != nil {
		return nil, StorageErr("list tasks", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Enabled, &t.Name); err != nil {
			return nil, StorageErr("list tasks", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, StorageErr("list tasks", err)
	}
	return tasks, nil
}

// SetTaskEnabled 修改启用标记
func (s *PgStore) SetTaskEnabled(ctx context.Context, id TaskID, enabled bool) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE tasks SET enabled = $1 WHERE id = $2`, enabled, int64(id))
	if err != nil {
		return 0, StorageErr("set task enabled", err)
	}
	return tag.RowsAffected(), nil
}

// AppendEvent 追加事件
func (s *PgStore) AppendEvent(ctx context.Context, timestamp int64, kind EventKind) (EventID, error) {
	taskID, name, err := eventColumns(kind)
	if err != nil {
		return 0, StorageErr("append event", err)
	}
	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO events (event_timestamp, task_id, system_event_name) VALUES ($1, $2, $3) RETURNING id`,
		timestamp, taskID, name,
	).Scan(&id)
	if err != nil {
		return 0, StorageErr("append event", err)
	}
	return EventID(id), nil
}

// LastEvent 最新事件（含心跳）
func (s *PgStore) LastEvent(ctx context.Context) (*Event, error) {
	return s.queryOneEvent(ctx, "last event",
		`SELECT `+eventColumnList+` FROM events ORDER BY event_timestamp DESC, id DESC LIMIT 1`)
}

// LastActivityEvent 最新非心跳事件
func (s *PgStore) LastActivityEvent(ctx context.Context) (*Event, error) {
	return s.queryOneEvent(ctx, "last activity event",
		`SELECT `+eventColumnList+` FROM events WHERE system_event_name IS DISTINCT FROM $1 ORDER BY event_timestamp DESC, id DESC LIMIT 1`,
		string(Ping))
}

func (s *PgStore) queryOneEvent(ctx context.Context, op, query string, args ...any) (*Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, StorageErr(op, err)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, StorageErr(op, err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// DeleteSystemEvents 删除指定类型系统事件
func (s *PgStore) DeleteSystemEvents(ctx context.Context, kind SystemEventKind) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE system_event_name = $1`, string(kind))
	if err != nil {
		return 0, StorageErr("delete system events", err)
	}
	return tag.RowsAffected(), nil
}

// MoveSystemEvent 原地更新系统事件时间戳
func (s *PgStore) MoveSystemEvent(ctx context.Context, kind SystemEventKind, timestamp int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE events SET event_timestamp = $1 WHERE system_event_name = $2`, timestamp, string(kind))
	if err != nil {
		return 0, StorageErr("move system event", err)
	}
	return tag.RowsAffected(), nil
}

// CountSystemEvents 统计系统事件行数
func (s *PgStore) CountSystemEvents(ctx context.Context, kind SystemEventKind) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE system_event_name = $1`, string(kind)).Scan(&n); err != nil {
		return 0, StorageErr("count system events", err)
	}
	return n, nil
}

// FindSystemEvent 指定类型系统事件中编号最小的一行
func (s *PgStore) FindSystemEvent(ctx context.Context, kind SystemEventKind) (*Event, error) {
	return s.queryOneEvent(ctx, "find system event",
		`SELECT `+eventColumnList+` FROM events WHERE system_event_name = $1 ORDER BY id ASC LIMIT 1`,
		string(kind))
}

// Events 升序全量扫描
func (s *PgStore) Events(ctx context.Context) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumnList+` FROM events ORDER BY event_timestamp ASC, id ASC`)
	if err != nil {
		return nil, StorageErr("scan events", err)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, StorageErr("scan events", err)
	}
	return events, nil
}

// Close 关闭连接池
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()
	events := []Event{}
	for rows.Next() {
		var (
			id, ts int64
			taskID *int64
			name   *string
		)
		if err := rows.Scan(&id, &ts, &taskID, &name); err != nil {
			return nil, err
		}
		e, err := eventFromColumns(id, ts, nullInt64(taskID), nullString(name))
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
