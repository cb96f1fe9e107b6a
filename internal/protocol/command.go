package protocol

import (
	"fmt"

	"timetrack-go/internal/core"
)

// 命令名（线上 cmd 字段）
const (
	CmdExit                = "EXIT"
	CmdPushTask            = "PUSH_TASK"
	CmdDisableTask         = "DISABLE_TASK"
	CmdSwitchTask          = "SWITCH_TASK"
	CmdCurrentTask         = "CURRENT_TASK"
	CmdListTasks           = "LIST_TASKS"
	CmdJsonPushTask        = "JSON_PUSH_TASK"
	CmdJsonDisableTask     = "JSON_DISABLE_TASK"
	CmdJsonSwitchTask      = "JSON_SWITCH_TASK"
	CmdJsonRetroSwitchTask = "JSON_RETRO_SWITCH_TASK"
	CmdJsonState           = "JSON_STATE"
	CmdTimesheet           = "TIMESHEET"
)

// Command 封闭的命令集合，每个命令对应一个引擎或统计操作
type Command interface {
	// Name 线上命令名
	Name() string
	// Mutating 成功后是否需要广播新状态
	Mutating() bool
}

type (
	// Exit 终止服务
	Exit struct{}
	// PushTask 新建任务
	PushTask struct{ TaskName string }
	// DisableTask 禁用任务
	DisableTask struct{ TaskID core.TaskID }
	// SwitchTask 切换任务
	SwitchTask struct{ TaskID core.TaskID }
	// CurrentTask 读取当前任务
	CurrentTask struct{}
	// ListTasks 列出全部任务
	ListTasks struct{}
	// JsonPushTask 新建任务（JSON 回复）
	JsonPushTask struct{ TaskName string }
	// JsonDisableTask 禁用任务（JSON 回复）
	JsonDisableTask struct{ TaskID core.TaskID }
	// JsonSwitchTask 切换任务（JSON 回复）
	JsonSwitchTask struct{ TaskID core.TaskID }
	// JsonRetroSwitchTask 补录切换，可选回到原任务（JSON 回复）
	JsonRetroSwitchTask struct {
		TaskID           core.TaskID
		Timestamp        int64
		KeepPreviousTask bool
	}
	// JsonState 读取状态快照（JSON 回复）
	JsonState struct{}
	// Timesheet 完整工时表（CSV 回复）
	Timesheet struct{}
)

func (Exit) Name() string                { return CmdExit }
func (PushTask) Name() string            { return CmdPushTask }
func (DisableTask) Name() string         { return CmdDisableTask }
func (SwitchTask) Name() string          { return CmdSwitchTask }
func (CurrentTask) Name() string         { return CmdCurrentTask }
func (ListTasks) Name() string           { return CmdListTasks }
func (JsonPushTask) Name() string        { return CmdJsonPushTask }
func (JsonDisableTask) Name() string     { return CmdJsonDisableTask }
func (JsonSwitchTask) Name() string      { return CmdJsonSwitchTask }
func (JsonRetroSwitchTask) Name() string { return CmdJsonRetroSwitchTask }
func (JsonState) Name() string           { return CmdJsonState }
func (Timesheet) Name() string           { return CmdTimesheet }

func (Exit) Mutating() bool                { return false }
func (PushTask) Mutating() bool            { return true }
func (DisableTask) Mutating() bool         { return true }
func (SwitchTask) Mutating() bool          { return true }
func (CurrentTask) Mutating() bool         { return false }
func (ListTasks) Mutating() bool           { return false }
func (JsonPushTask) Mutating() bool        { return true }
func (JsonDisableTask) Mutating() bool     { return true }
func (JsonSwitchTask) Mutating() bool      { return true }
func (JsonRetroSwitchTask) Mutating() bool { return true }
func (JsonState) Mutating() bool           { return false }
func (Timesheet) Mutating() bool           { return false }

// wireCommand 线上格式：{"cmd":"JSON_RETRO_SWITCH_TASK","taskId":1,"timestamp":1700000000,"keepPreviousTask":true}
type wireCommand struct {
	Cmd              string  `json:"cmd"`
	Name             *string `json:"name,omitempty"`
	TaskID           *int64  `json:"taskId,omitempty"`
	Timestamp        *int64  `json:"timestamp,omitempty"`
	KeepPreviousTask *bool   `json:"keepPreviousTask,omitempty"`
}

// DecodeCommand 解析请求负载；任何格式问题都归为协议错误
func DecodeCommand(codec Codec, payload []byte) (Command, error) {
	var w wireCommand
	if err := codec.Decode(payload, &w); err != nil {
		return nil, core.ProtocolErr("decode command", err)
	}

	name := func() (string, error) {
		if w.Name == nil {
			return "", core.ProtocolErr("decode command", fmt.Errorf("%s: missing field name", w.Cmd))
		}
		return *w.Name, nil
	}
	taskID := func() (core.TaskID, error) {
		if w.TaskID == nil {
			return 0, core.ProtocolErr("decode command", fmt.Errorf("%s: missing field taskId", w.Cmd))
		}
		if *w.TaskID < 0 {
			return 0, core.ProtocolErr("decode command", fmt.Errorf("%s: taskId must not be negative", w.Cmd))
		}
		return core.TaskID(*w.TaskID), nil
	}

	switch w.Cmd {
	case CmdExit:
		return Exit{}, nil
	case CmdCurrentTask:
		return CurrentTask{}, nil
	case CmdListTasks:
		return ListTasks{}, nil
	case CmdJsonState:
		return JsonState{}, nil
	case CmdTimesheet:
		return Timesheet{}, nil
	case CmdPushTask, CmdJsonPushTask:
		n, err := name()
		if err != nil {
			return nil, err
		}
		if w.Cmd == CmdPushTask {
			return PushTask{TaskName: n}, nil
		}
		return JsonPushTask{TaskName: n}, nil
	case CmdDisableTask, CmdJsonDisableTask, CmdSwitchTask, CmdJsonSwitchTask:
		id, err := taskID()
		if err != nil {
			return nil, err
		}
		switch w.Cmd {
		case CmdDisableTask:
			return DisableTask{TaskID: id}, nil
		case CmdJsonDisableTask:
			return JsonDisableTask{TaskID: id}, nil
		case CmdSwitchTask:
			return SwitchTask{TaskID: id}, nil
		default:
			return JsonSwitchTask{TaskID: id}, nil
		}
	case CmdJsonRetroSwitchTask:
		id, err := taskID()
		if err != nil {
			return nil, err
		}
		if w.Timestamp == nil {
			return nil, core.ProtocolErr("decode command", fmt.Errorf("%s: missing field timestamp", w.Cmd))
		}
		if w.KeepPreviousTask == nil {
			return nil, core.ProtocolErr("decode command", fmt.Errorf("%s: missing field keepPreviousTask", w.Cmd))
		}
		return JsonRetroSwitchTask{TaskID: id, Timestamp: *w.Timestamp, KeepPreviousTask: *w.KeepPreviousTask}, nil
	case "":
		return nil, core.ProtocolErr("decode command", fmt.Errorf("missing field cmd"))
	}
	return nil, core.ProtocolErr("decode command", fmt.Errorf("unknown command %q", w.Cmd))
}

// EncodeCommand 序列化为线上格式
func EncodeCommand(codec Codec, cmd Command) ([]byte, error) {
	w := wireCommand{Cmd: cmd.Name()}
	switch c := cmd.(type) {
	case PushTask:
		w.Name = &c.TaskName
	case JsonPushTask:
		w.Name = &c.TaskName
	case DisableTask:
		w.TaskID = ptr(int64(c.TaskID))
	case JsonDisableTask:
		w.TaskID = ptr(int64(c.TaskID))
	case SwitchTask:
		w.TaskID = ptr(int64(c.TaskID))
	case JsonSwitchTask:
		w.TaskID = ptr(int64(c.TaskID))
	case JsonRetroSwitchTask:
		w.TaskID = ptr(int64(c.TaskID))
		w.Timestamp = &c.Timestamp
		w.KeepPreviousTask = &c.KeepPreviousTask
	}
	b, err := codec.Encode(w)
	if err != nil {
		return nil, core.SerializationErr("encode command", err)
	}
	return b, nil
}

func ptr[T any](v T) *T { return &v }
