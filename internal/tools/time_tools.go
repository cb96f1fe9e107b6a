package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"timetrack-go/internal/core"
	"timetrack-go/internal/protocol"
)

// PushTaskArgs 新建任务参数
type PushTaskArgs struct {
	Name string `json:"name" jsonschema:"required,description=任务名称（可重复）"`
}

// TaskIDArgs 按编号操作任务
type TaskIDArgs struct {
	TaskID int64 `json:"task_id" jsonschema:"required,description=任务编号"`
}

// RetroSwitchArgs 补录切换参数，timestamp 与 at 二选一
type RetroSwitchArgs struct {
	TaskID           int64  `json:"task_id" jsonschema:"required,description=任务编号"`
	Timestamp        int64  `json:"timestamp" jsonschema:"description=切换发生时刻（Unix 秒）"`
	At               string `json:"at" jsonschema:"description=切换发生时刻（RFC3339，例如 2024-05-01T09:30:00+02:00）"`
	KeepPreviousTask bool   `json:"keep_previous_task" jsonschema:"description=补录后是否立即切回调用前的当前任务"`
}

// RegisterTimeTools 注册工时相关工具
func RegisterTimeTools(s *server.MCPServer, sm *SessionManager) {
	s.AddTool(mcp.NewTool("push_task",
		mcp.WithDescription(`push_task - 新建任务

用途：
  登记一个新任务，默认启用。任务名不要求唯一。

参数：
  name (必填)
    任务名称。

返回：
  新任务编号。`),
		mcp.WithInputSchema[PushTaskArgs](),
	), wrapPushTask(sm))

	s.AddTool(mcp.NewTool("disable_task",
		mcp.WithDescription(`disable_task - 禁用任务

用途：
  把任务标记为禁用。历史记录与当前任务不受影响。

参数：
  task_id (必填)`),
		mcp.WithInputSchema[TaskIDArgs](),
	), wrapDisableTask(sm))

	s.AddTool(mcp.NewTool("switch_task",
		mcp.WithDescription(`switch_task - 切换当前任务

用途：
  从现在起把时间记到指定任务上。

参数：
  task_id (必填)`),
		mcp.WithInputSchema[TaskIDArgs](),
	), wrapSwitchTask(sm))

	s.AddTool(mcp.NewTool("retro_switch_task",
		mcp.WithDescription(`retro_switch_task - 补录过去的任务切换

用途：
  忘记切换任务时使用：从指定时刻起到下一次事件之间的时间改记到 task_id。

参数：
  task_id (必填)
  timestamp / at (二选一)
    切换发生的时刻，不能晚于现在。
  keep_previous_task (可选)
    为 true 时，调用前的当前任务会在现在重新生效。

示例：
  retro_switch_task(task_id=2, at="2024-05-01T09:30:00Z", keep_previous_task=true)`),
		mcp.WithInputSchema[RetroSwitchArgs](),
	), wrapRetroSwitchTask(sm))

	s.AddTool(mcp.NewTool("current_task",
		mcp.WithDescription(`current_task - 查看当前任务`),
	), wrapCurrentTask(sm))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription(`list_tasks - 列出全部任务（含已禁用）`),
	), wrapListTasks(sm))

	s.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription(`get_state - 当前任务与任务列表的快照`),
	), wrapGetState(sm))

	s.AddTool(mcp.NewTool("timesheet",
		mcp.WithDescription(`timesheet - 工时表

用途：
  按天汇总每个任务花费的时间（HH:MM:SS）。跨越午夜的区间按本地自然日拆分。`),
	), wrapTimesheet(sm))
}

func daemonError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("守护进程请求失败： %v", err))
}

func wrapPushTask(sm *SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args PushTaskArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("参数格式错误： %v", err)), nil
		}
		if strings.TrimSpace(args.Name) == "" {
			return mcp.NewToolResultError("name 不能为空"), nil
		}

		id, err := sm.Client.Do(ctx, protocol.PushTask{TaskName: args.Name})
		if err != nil {
			return daemonError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("已创建任务 #%s %q", id, args.Name)), nil
	}
}

func wrapDisableTask(sm *SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args TaskIDArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("参数格式错误： %v", err)), nil
		}
		if args.TaskID <= 0 {
			return mcp.NewToolResultError("task_id 必须为正整数"), nil
		}

		if _, err := sm.Client.Do(ctx, protocol.DisableTask{TaskID: core.TaskID(args.TaskID)}); err != nil {
			return daemonError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("已禁用任务 #%d", args.TaskID)), nil
	}
}

func wrapSwitchTask(sm *SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args TaskIDArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("参数格式错误： %v", err)), nil
		}
		if args.TaskID <= 0 {
			return mcp.NewToolResultError("task_id 必须为正整数"), nil
		}

		data, err := sm.Client.Do(ctx, protocol.JsonSwitchTask{TaskID: core.TaskID(args.TaskID)})
		if err != nil {
			return daemonError(err), nil
		}
		state, err := protocol.DecodeState(sm.getCodec(), []byte(data))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(renderState("已切换任务", state)), nil
	}
}

func wrapRetroSwitchTask(sm *SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args RetroSwitchArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("参数格式错误： %v", err)), nil
		}
		if args.TaskID <= 0 {
			return mcp.NewToolResultError("task_id 必须为正整数"), nil
		}

		ts := args.Timestamp
		if args.At != "" {
			at, err := time.Parse(time.RFC3339, args.At)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("at 不是合法的 RFC3339 时间： %v", err)), nil
			}
			ts = at.Unix()
		}
		if ts <= 0 {
			return mcp.NewToolResultError("必须提供 timestamp 或 at"), nil
		}

		data, err := sm.Client.Do(ctx, protocol.JsonRetroSwitchTask{
			TaskID:           core.TaskID(args.TaskID),
			Timestamp:        ts,
			KeepPreviousTask: args.KeepPreviousTask,
		})
		if err != nil {
			return daemonError(err), nil
		}
		state, err := protocol.DecodeState(sm.getCodec(), []byte(data))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		header := fmt.Sprintf("已从 %s 起补录任务 #%d", time.Unix(ts, 0).Format(time.RFC3339), args.TaskID)
		return mcp.NewToolResultText(renderState(header, state)), nil
	}
}

func wrapCurrentTask(sm *SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := sm.Client.Do(ctx, protocol.CurrentTask{})
		if err != nil {
			return daemonError(err), nil
		}
		if name == protocol.NoCurrentTask {
			return mcp.NewToolResultText("当前没有进行中的任务"), nil
		}
		return mcp.NewToolResultText("当前任务： " + name), nil
	}
}

func wrapListTasks(sm *SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := sm.Client.Do(ctx, protocol.ListTasks{})
		if err != nil {
			return daemonError(err), nil
		}
		return csvResult("## 任务列表", data), nil
	}
}

func wrapGetState(sm *SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := sm.Client.Do(ctx, protocol.JsonState{})
		if err != nil {
			return daemonError(err), nil
		}
		state, err := protocol.DecodeState(sm.getCodec(), []byte(data))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(renderState("## 状态", state)), nil
	}
}

func wrapTimesheet(sm *SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := sm.Client.Do(ctx, protocol.Timesheet{})
		if err != nil {
			return daemonError(err), nil
		}
		return csvResult("## 工时表", data), nil
	}
}

func csvResult(title, data string) *mcp.CallToolResult {
	header, rows, err := protocol.ParseCSV(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText(title + "\n\n（空）")
	}
	return mcp.NewToolResultText(title + "\n\n" + markdownTable(header, rows))
}
