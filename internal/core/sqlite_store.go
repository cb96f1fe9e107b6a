package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore 基于本地 SQLite 文件的事件存储
type SQLiteStore struct {
	dbManager *DatabaseManager
}

// NewSQLiteStore 包装一个已初始化的数据库管理器
func NewSQLiteStore(mgr *DatabaseManager) *SQLiteStore {
	return &SQLiteStore{dbManager: mgr}
}

var _ EventStore = (*SQLiteStore)(nil)

// ========== Tasks ==========

// CreateTask 新建任务，默认启用
func (s *SQLiteStore) CreateTask(ctx context.Context, name string) (TaskID, error) {
	res, err := s.dbManager.Exec(ctx, "INSERT INTO tasks (enabled, name) VALUES (1, ?)", name)
	if isConstraintViolation(err) {
		return 0, StorageErr("create task", fmt.Errorf("constraint violation for name %q: %w", name, err))
	}
	if err != nil {
		return 0, StorageErr("create task", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, StorageErr("create task", err)
	}
	return TaskID(id), nil
}

// GetTask 按编号读取任务
func (s *SQLiteStore) GetTask(ctx context.Context, id TaskID) (Task, error) {
	var (
		t       Task
		enabled int
	)
	err := s.dbManager.QueryRow(ctx, "SELECT id, enabled, name FROM tasks WHERE id = ?", int64(id)).
		Scan(&t.ID, &enabled, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, taskNotFound("get task", id)
	}
	if err != nil {
		return Task{}, StorageErr("get task", err)
	}
	t.Enabled = enabled != 0
	return t, nil
}

// ListTasks 按编号升序列出全部任务
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.dbManager.Query(ctx, "SELECT id, enabled, name FROM tasks ORDER BY id")
	if err != nil {
		return nil, StorageErr("list tasks", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		var (
			t       Task
			enabled int
		)
		if err := rows.Scan(&t.ID, &enabled, &t.Name); err != nil {
			return nil, StorageErr("list tasks", err)
		}
		t.Enabled = enabled != 0
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, StorageErr("list tasks", err)
	}
	return tasks, nil
}

// SetTaskEnabled 修改启用标记，返回受影响行数
func (s *SQLiteStore) SetTaskEnabled(ctx context.Context, id TaskID, enabled bool) (int64, error) {
	flag := 0
	if enabled {
		flag = 1
	}
	res, err := s.dbManager.Exec(ctx, "UPDATE tasks SET enabled = ? WHERE id = ?", flag, int64(id))
	if err != nil {
		return 0, StorageErr("set task enabled", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, StorageErr("set task enabled", err)
	}
	return n, nil
}

// ========== Events ==========

const eventColumnList = "id, event_timestamp, task_id, system_event_name"

// AppendEvent 追加一行事件
func (s *SQLiteStore) AppendEvent(ctx context.Context, timestamp int64, kind EventKind) (EventID, error) {
	taskID, name, err := eventColumns(kind)
	if err != nil {
		return 0, StorageErr("append event", err)
	}
	res, err := s.dbManager.Exec(ctx,
		"INSERT INTO events (event_timestamp, task_id, system_event_name) VALUES (?, ?, ?)",
		timestamp, taskID, name,
	)
	if err != nil {
		return 0, StorageErr("append event", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, StorageErr("append event", err)
	}
	return EventID(id), nil
}

// LastEvent 最新事件（含心跳）
func (s *SQLiteStore) LastEvent(ctx context.Context) (*Event, error) {
	return s.queryOneEvent(ctx, "last event",
		"SELECT "+eventColumnList+" FROM events ORDER BY event_timestamp DESC, id DESC LIMIT 1")
}

// LastActivityEvent 最新非心跳事件
func (s *SQLiteStore) LastActivityEvent(ctx context.Context) (*Event, error) {
	return s.queryOneEvent(ctx, "last activity event",
		"SELECT "+eventColumnList+" FROM events WHERE system_event_name IS NULL OR system_event_name <> ? ORDER BY event_timestamp DESC, id DESC LIMIT 1",
		string(Ping))
}

func (s *SQLiteStore) queryOneEvent(ctx context.Context, op, query string, args ...any) (*Event, error) {
	var (
		id, ts int64
		taskID sql.NullInt64
		name   sql.NullString
	)
	err := s.dbManager.QueryRow(ctx, query, args...).Scan(&id, &ts, &taskID, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, StorageErr(op, err)
	}
	e, err := eventFromColumns(id, ts, taskID, name)
	if err != nil {
		return nil, StorageErr(op, err)
	}
	return &e, nil
}

// DeleteSystemEvents 删除指定类型的全部系统事件
func (s *SQLiteStore) DeleteSystemEvents(ctx context.Context, kind SystemEventKind) (int64, error) {
	res, err := s.dbManager.Exec(ctx, "DELETE FROM events WHERE system_event_name = ?", string(kind))
	if err != nil {
		return 0, StorageErr("delete system events", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, StorageErr("delete system events", err)
	}
	return n, nil
}

// MoveSystemEvent 原地更新指定类型系统事件的时间戳
func (s *SQLiteStore) MoveSystemEvent(ctx context.Context, kind SystemEventKind, timestamp int64) (int64, error) {
	res, err := s.dbManager.Exec(ctx, "UPDATE events SET event_timestamp = ? WHERE system_event_name = ?", timestamp, string(kind))
	if err != nil {
		return 0, StorageErr("move system event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, StorageErr("move system event", err)
	}
	return n, nil
}

// CountSystemEvents 统计指定类型系统事件行数
func (s *SQLiteStore) CountSystemEvents(ctx context.Context, kind SystemEventKind) (int64, error) {
	var n int64
	if err := s.dbManager.QueryRow(ctx, "SELECT COUNT(*) FROM events WHERE system_event_name = ?", string(kind)).Scan(&n); err != nil {
		return 0, StorageErr("count system events", err)
	}
	return n, nil
}

// FindSystemEvent 指定类型系统事件中编号最小的一行
func (s *SQLiteStore) FindSystemEvent(ctx context.Context, kind SystemEventKind) (*Event, error) {
	return s.queryOneEvent(ctx, "find system event",
		"SELECT "+eventColumnList+" FROM events WHERE system_event_name = ? ORDER BY id ASC LIMIT 1",
		string(kind))
}

// Events 按时间升序全量扫描，同一时间戳按插入顺序
func (s *SQLiteStore) Events(ctx context.Context) ([]Event, error) {
	rows, err := s.dbManager.Query(ctx, "SELECT "+eventColumnList+" FROM events ORDER BY event_timestamp ASC, id ASC")
	if err != nil {
		return nil, StorageErr("scan events", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			id, ts int64
			taskID sql.NullInt64
			name   sql.NullString
		)
		if err := rows.Scan(&id, &ts, &taskID, &name); err != nil {
			return nil, StorageErr("scan events", err)
		}
		e, err := eventFromColumns(id, ts, taskID, name)
		if err != nil {
			return nil, StorageErr("scan events", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, StorageErr("scan events", err)
	}
	return events, nil
}

// Close 关闭底层数据库
func (s *SQLiteStore) Close() error {
	return s.dbManager.Close()
}

// isConstraintViolation 识别 SQLite 约束错误（含扩展码），用于给出更可读的提示
func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
