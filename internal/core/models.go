package core

import (
	"database/sql"
	"fmt"
)

// TaskID 任务编号
type TaskID int64

// EventID 事件编号，按插入单调递增
type EventID int64

// Task 任务登记项，只会被启用/禁用，不会被删除
type Task struct {
	ID      TaskID `json:"id"`
	Enabled bool   `json:"enabled"`
	Name    string `json:"name"`
}

// SystemEventKind 系统事件类型
type SystemEventKind string

const (
	Startup  SystemEventKind = "Startup"
	Shutdown SystemEventKind = "Shutdown"
	Ping     SystemEventKind = "Ping"
)

// ParseSystemEventKind 解析存储中的系统事件名
func ParseSystemEventKind(s string) (SystemEventKind, error) {
	switch SystemEventKind(s) {
	case Startup, Shutdown, Ping:
		return SystemEventKind(s), nil
	}
	return "", fmt.Errorf("unknown system event %q", s)
}

// EventKind 事件的两种形态：TaskSwitch 或 SystemEvent
type EventKind interface {
	isEventKind()
}

// TaskSwitch 切换到某个任务
type TaskSwitch struct {
	TaskID TaskID
}

// SystemEvent 启动/关闭/心跳
type SystemEvent struct {
	Kind SystemEventKind
}

func (TaskSwitch) isEventKind()  {}
func (SystemEvent) isEventKind() {}

// Event 事件日志中的一行
type Event struct {
	ID        EventID
	Timestamp int64
	Kind      EventKind
}

// IsSystem 是否为指定类型的系统事件
func (e Event) IsSystem(kind SystemEventKind) bool {
	se, ok := e.Kind.(SystemEvent)
	return ok && se.Kind == kind
}

// IsPing 心跳行不参与当前任务与工时统计
func (e Event) IsPing() bool {
	return e.IsSystem(Ping)
}

// SwitchTarget 若为 TaskSwitch 返回目标任务
func (e Event) SwitchTarget() (TaskID, bool) {
	ts, ok := e.Kind.(TaskSwitch)
	return ts.TaskID, ok
}

func (e Event) String() string {
	switch k := e.Kind.(type) {
	case TaskSwitch:
		return fmt.Sprintf("#%d TaskSwitch(%d)@%d", e.ID, k.TaskID, e.Timestamp)
	case SystemEvent:
		return fmt.Sprintf("#%d %s@%d", e.ID, k.Kind, e.Timestamp)
	}
	return fmt.Sprintf("#%d ?@%d", e.ID, e.Timestamp)
}

// eventColumns 将事件形态映射为两个可空列
func eventColumns(kind EventKind) (sql.NullInt64, sql.NullString, error) {
	switch k := kind.(type) {
	case TaskSwitch:
		return sql.NullInt64{Int64: int64(k.TaskID), Valid: true}, sql.NullString{}, nil
	case SystemEvent:
		if _, err := ParseSystemEventKind(string(k.Kind)); err != nil {
			return sql.NullInt64{}, sql.NullString{}, err
		}
		return sql.NullInt64{}, sql.NullString{String: string(k.Kind), Valid: true}, nil
	}
	return sql.NullInt64{}, sql.NullString{}, fmt.Errorf("unsupported event kind %T", kind)
}

// eventFromColumns 由存储行还原事件；两列同时为空或同时有值均视为损坏
func eventFromColumns(id, ts int64, taskID sql.NullInt64, name sql.NullString) (Event, error) {
	e := Event{ID: EventID(id), Timestamp: ts}
	switch {
	case taskID.Valid && !name.Valid:
		e.Kind = TaskSwitch{TaskID: TaskID(taskID.Int64)}
	case !taskID.Valid && name.Valid:
		kind, err := ParseSystemEventKind(name.String)
		if err != nil {
			return e, fmt.Errorf("%w: event %d: %v", ErrCorruptEvent, id, err)
		}
		e.Kind = SystemEvent{Kind: kind}
	default:
		return e, fmt.Errorf("%w: event %d has task_id=%v system_event_name=%v", ErrCorruptEvent, id, taskID.Valid, name.Valid)
	}
	return e, nil
}

// ExportedState 只读快照，按需计算，不落盘
type ExportedState struct {
	CurrentTask *Task  `json:"current_task"`
	AllTasks    []Task `json:"all_tasks"`
}

// Recovery 启动恢复结果
type Recovery struct {
	SessionID           string
	SynthesizedShutdown bool
	ShutdownAt          int64
	PurgedPings         int64
	StartupID           EventID
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
