package core

import (
	"context"
	"strings"
	"time"

	"timetrack-go/pkg/utils"
)

// StateEngine 任务生命周期、事件日志不变量与当前任务解析。
// 持有唯一的存储句柄，所有调用都显式经过它。
type StateEngine struct {
	store EventStore
	now   func() time.Time
	log   utils.Logger
}

// Option 配置 StateEngine
type Option func(*StateEngine)

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(e *StateEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger 设置日志器
func WithLogger(l utils.Logger) Option {
	return func(e *StateEngine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewStateEngine 创建状态引擎
func NewStateEngine(store EventStore, opts ...Option) *StateEngine {
	e := &StateEngine{
		store: store,
		now:   time.Now,
		log:   utils.NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store 底层存储
func (e *StateEngine) Store() EventStore {
	return e.store
}

func (e *StateEngine) unixNow() int64 {
	return e.now().Unix()
}

// NewTask 新建启用状态的任务；名称不要求唯一
func (e *StateEngine) NewTask(ctx context.Context, name string) (TaskID, error) {
	if strings.TrimSpace(name) == "" {
		return 0, invalidArgument("new task", "task name must not be empty")
	}
	id, err := e.store.CreateTask(ctx, name)
	if err != nil {
		return 0, err
	}
	e.log.Infof("created task %d %q", id, name)
	return id, nil
}

// SwitchTask 以当前时间追加任务切换事件。
// 不校验任务是否存在：无效编号在解析当前任务时才会暴露。
func (e *StateEngine) SwitchTask(ctx context.Context, id TaskID) (EventID, error) {
	evID, err := e.store.AppendEvent(ctx, e.unixNow(), TaskSwitch{TaskID: id})
	if err != nil {
		return 0, err
	}
	e.log.Debugf("switched to task %d (event %d)", id, evID)
	return evID, nil
}

// ChangeTaskEnabledFlag 修改启用标记，不影响历史与当前任务解析
func (e *StateEngine) ChangeTaskEnabledFlag(ctx context.Context, id TaskID, enabled bool) error {
	n, err := e.store.SetTaskEnabled(ctx, id, enabled)
	if err != nil {
		return err
	}
	if n == 0 {
		return taskNotFound("change task enabled flag", id)
	}
	e.log.Infof("task %d enabled=%v", id, enabled)
	return nil
}

// SystemEvent 以当前时间追加系统事件。
// Ping 只在不存在时创建，保证心跳行至多一行；已存在时原地推进并返回该行编号。
func (e *StateEngine) SystemEvent(ctx context.Context, kind SystemEventKind) (EventID, error) {
	if kind == Ping {
		existing, err := e.store.FindSystemEvent(ctx, Ping)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			if _, err := e.store.MoveSystemEvent(ctx, Ping, e.unixNow()); err != nil {
				return 0, err
			}
			return existing.ID, nil
		}
	}
	id, err := e.store.AppendEvent(ctx, e.unixNow(), SystemEvent{Kind: kind})
	if err != nil {
		return 0, err
	}
	e.log.Debugf("system event %s (event %d)", kind, id)
	return id, nil
}

// Ping 将心跳行的时间戳推进到当前时间，从不新建行
func (e *StateEngine) Ping(ctx context.Context) error {
	n, err := e.store.MoveSystemEvent(ctx, Ping, e.unixNow())
	if err != nil {
		return err
	}
	if n == 0 {
		e.log.Debugf("ping: no heartbeat row to advance")
	}
	return nil
}

// CurrentTask 最近一条非心跳事件若为任务切换则返回对应任务，否则为 nil
func (e *StateEngine) CurrentTask(ctx context.Context) (*Task, error) {
	last, err := e.store.LastActivityEvent(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, nil
	}
	id, ok := last.SwitchTarget()
	if !ok {
		return nil, nil
	}
	t, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, ResolutionErr("current task", err)
	}
	return &t, nil
}

// ListTasks 按编号升序列出任务
func (e *StateEngine) ListTasks(ctx context.Context) ([]Task, error) {
	return e.store.ListTasks(ctx)
}

// State 当前任务与全部任务的快照
func (e *StateEngine) State(ctx context.Context) (ExportedState, error) {
	current, err := e.CurrentTask(ctx)
	if err != nil {
		return ExportedState{}, err
	}
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return ExportedState{}, err
	}
	return ExportedState{CurrentTask: current, AllTasks: tasks}, nil
}

// History 按时间升序返回事件日志，已剔除心跳行
func (e *StateEngine) History(ctx context.Context) ([]Event, error) {
	all, err := e.store.Events(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, ev := range all {
		if !ev.IsPing() {
			out = append(out, ev)
		}
	}
	return out, nil
}

// RetroSwitchTask 在过去的 timestamp 插入任务切换，把此后到下一事件之间的时间改记到 id。
// keepPrevious 为真时，调用前的当前任务在调用时刻被重新切回；
// 与 timestamp 相同时按插入顺序，重新切回的任务生效。
func (e *StateEngine) RetroSwitchTask(ctx context.Context, id TaskID, timestamp int64, keepPrevious bool) (EventID, error) {
	now := e.unixNow()
	if timestamp <= 0 {
		return 0, invalidArgument("retro switch task", "timestamp %d must be positive", timestamp)
	}
	if timestamp > now {
		return 0, invalidArgument("retro switch task", "timestamp %d is in the future (now %d)", timestamp, now)
	}

	var (
		previous    TaskID
		hasPrevious bool
	)
	if keepPrevious {
		last, err := e.store.LastActivityEvent(ctx)
		if err != nil {
			return 0, err
		}
		if last != nil {
			previous, hasPrevious = last.SwitchTarget()
		}
	}

	evID, err := e.store.AppendEvent(ctx, timestamp, TaskSwitch{TaskID: id})
	if err != nil {
		return 0, err
	}
	e.log.Infof("retro switch to task %d at %d (event %d)", id, timestamp, evID)

	if hasPrevious && previous != id {
		resumeID, err := e.store.AppendEvent(ctx, now, TaskSwitch{TaskID: previous})
		if err != nil {
			return evID, err
		}
		e.log.Infof("resumed task %d at %d (event %d)", previous, now, resumeID)
	}
	return evID, nil
}
