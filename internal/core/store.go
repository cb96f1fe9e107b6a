package core

import "context"

// EventStore 事件日志与任务登记的持久化契约。
// 单写者：每个方法只执行一条语句，不跨语句开事务。
type EventStore interface {
	CreateTask(ctx context.Context, name string) (TaskID, error)
	GetTask(ctx context.Context, id TaskID) (Task, error)
	ListTasks(ctx context.Context) ([]Task, error)
	SetTaskEnabled(ctx context.Context, id TaskID, enabled bool) (int64, error)

	AppendEvent(ctx context.Context, timestamp int64, kind EventKind) (EventID, error)
	// LastEvent 按 (timestamp desc, id desc) 取最新一行，包含心跳；空日志返回 nil
	LastEvent(ctx context.Context) (*Event, error)
	// LastActivityEvent 同上但跳过心跳行
	LastActivityEvent(ctx context.Context) (*Event, error)
	DeleteSystemEvents(ctx context.Context, kind SystemEventKind) (int64, error)
	MoveSystemEvent(ctx context.Context, kind SystemEventKind, timestamp int64) (int64, error)
	CountSystemEvents(ctx context.Context, kind SystemEventKind) (int64, error)
	// FindSystemEvent 返回指定类型中编号最小的一行；不存在时返回 nil
	FindSystemEvent(ctx context.Context, kind SystemEventKind) (*Event, error)
	// Events 按 (timestamp asc, id asc) 全量扫描
	Events(ctx context.Context) ([]Event, error)

	Close() error
}
