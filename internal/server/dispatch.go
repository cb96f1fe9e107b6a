package server

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"timetrack-go/internal/core"
	"timetrack-go/internal/protocol"
	"timetrack-go/internal/services"
	"timetrack-go/pkg/utils"
)

// Dispatcher 把命令映射到引擎与工时统计，并在成功变更后广播新状态
type Dispatcher struct {
	engine      *core.StateEngine
	sheets      *services.Aggregator
	codec       protocol.Codec
	pub         Publisher
	sendTimeout time.Duration
	log         utils.Logger
}

// NewDispatcher pub 可为空，此时不广播
func NewDispatcher(engine *core.StateEngine, sheets *services.Aggregator, pub Publisher, sendTimeout time.Duration, log utils.Logger) *Dispatcher {
	return &Dispatcher{
		engine:      engine,
		sheets:      sheets,
		codec:       protocol.NewSonicCodec(),
		pub:         pub,
		sendTimeout: sendTimeout,
		log:         utils.Tagged(log, "Dispatch"),
	}
}

// Handle 解码并执行一次请求。exit 为真表示调度循环应当终止。
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) (reply protocol.Reply, exit bool) {
	cmd, err := protocol.DecodeCommand(d.codec, payload)
	if err != nil {
		d.log.Warnf("invalid message: %v", err)
		return protocol.Err(protocol.InvalidMessage), false
	}
	return d.Execute(ctx, cmd)
}

// Execute 执行已解码的命令
func (d *Dispatcher) Execute(ctx context.Context, cmd protocol.Command) (protocol.Reply, bool) {
	if _, ok := cmd.(protocol.Exit); ok {
		d.log.Infof("exit requested")
		return protocol.OK(protocol.ByeMessage), true
	}

	data, mutated, err := d.execute(ctx, cmd)
	if err != nil {
		d.log.Warnf("%s failed: %v", cmd.Name(), err)
		return protocol.Err(err.Error()), false
	}
	if mutated {
		d.broadcast(ctx)
	}
	return protocol.OK(data), false
}

// execute 返回回复内容，以及事件日志或任务表是否确实发生了变更
func (d *Dispatcher) execute(ctx context.Context, cmd protocol.Command) (string, bool, error) {
	switch c := cmd.(type) {
	case protocol.PushTask:
		id, err := d.engine.NewTask(ctx, c.TaskName)
		if err != nil {
			return "", false, err
		}
		return strconv.FormatInt(int64(id), 10), true, nil

	case protocol.DisableTask:
		if err := d.engine.ChangeTaskEnabledFlag(ctx, c.TaskID, false); err != nil {
			return "", false, err
		}
		return strconv.FormatInt(int64(c.TaskID), 10), true, nil

	case protocol.SwitchTask:
		evID, err := d.engine.SwitchTask(ctx, c.TaskID)
		if err != nil {
			return "", false, err
		}
		return strconv.FormatInt(int64(evID), 10), true, nil

	case protocol.CurrentTask:
		t, err := d.engine.CurrentTask(ctx)
		if err != nil {
			return "", false, err
		}
		if t == nil {
			return protocol.NoCurrentTask, false, nil
		}
		return t.Name, false, nil

	case protocol.ListTasks:
		tasks, err := d.engine.ListTasks(ctx)
		if err != nil {
			return "", false, err
		}
		out, err := protocol.TasksCSV(tasks)
		return out, false, err

	case protocol.JsonPushTask:
		if _, err := d.engine.NewTask(ctx, c.TaskName); err != nil {
			return "", false, err
		}
		return d.stateJSON(ctx, true)

	case protocol.JsonDisableTask:
		// 变更失败只记日志，仍返回（未变化的）最新状态
		mutated := true
		if err := d.engine.ChangeTaskEnabledFlag(ctx, c.TaskID, false); err != nil {
			d.log.Warnf("disable task %d: %v", c.TaskID, err)
			mutated = false
		}
		return d.stateJSON(ctx, mutated)

	case protocol.JsonSwitchTask:
		if _, err := d.engine.SwitchTask(ctx, c.TaskID); err != nil {
			return "", false, err
		}
		return d.stateJSON(ctx, true)

	case protocol.JsonRetroSwitchTask:
		if _, err := d.engine.RetroSwitchTask(ctx, c.TaskID, c.Timestamp, c.KeepPreviousTask); err != nil {
			return "", false, err
		}
		return d.stateJSON(ctx, true)

	case protocol.JsonState:
		return d.stateJSON(ctx, false)

	case protocol.Timesheet:
		ts, err := d.sheets.Build(ctx)
		if err != nil {
			return "", false, err
		}
		out, err := protocol.TimesheetCSV(ts)
		return out, false, err
	}
	return "", false, core.ProtocolErr("dispatch", fmt.Errorf("unsupported command %s", cmd.Name()))
}

// stateJSON 读取最新状态并编码为 JSON
func (d *Dispatcher) stateJSON(ctx context.Context, mutated bool) (string, bool, error) {
	state, err := d.engine.State(ctx)
	if err != nil {
		return "", mutated, err
	}
	b, err := protocol.EncodeState(d.codec, state)
	if err != nil {
		return "", mutated, err
	}
	return string(b), mutated, nil
}

// broadcast 尽力而为：失败只记日志
func (d *Dispatcher) broadcast(ctx context.Context) {
	if d.pub == nil {
		return
	}
	state, err := d.engine.State(ctx)
	if err != nil {
		d.log.Warnf("broadcast skipped: %v", err)
		return
	}
	b, err := protocol.EncodeState(d.codec, state)
	if err != nil {
		d.log.Warnf("broadcast skipped: %v", err)
		return
	}
	pctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.pub.Publish(pctx, b); err != nil {
		d.log.Warnf("broadcast failed: %v", err)
	}
}
