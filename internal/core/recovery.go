package core

import (
	"context"

	"github.com/google/uuid"
)

// Recover 启动时、开始服务前执行一次。
//
// 若最新事件（含心跳）不是 Shutdown，视为上次异常退出，补写一条时间戳取该事件自身时间的 Shutdown，
// 宕机期间的空档不会记到最后一个任务上。随后清除全部心跳行，再写入新的 Startup 与心跳行。
func (e *StateEngine) Recover(ctx context.Context) (Recovery, error) {
	rec := Recovery{SessionID: newSessionID()}

	last, err := e.store.LastEvent(ctx)
	if err != nil {
		return rec, err
	}
	if last != nil && !last.IsSystem(Shutdown) {
		if _, err := e.store.AppendEvent(ctx, last.Timestamp, SystemEvent{Kind: Shutdown}); err != nil {
			return rec, err
		}
		rec.SynthesizedShutdown = true
		rec.ShutdownAt = last.Timestamp
		e.log.Warnf("unclean shutdown detected after %s; synthesized Shutdown at %d", last, last.Timestamp)
	}

	purged, err := e.store.DeleteSystemEvents(ctx, Ping)
	if err != nil {
		return rec, err
	}
	rec.PurgedPings = purged

	startupID, err := e.SystemEvent(ctx, Startup)
	if err != nil {
		return rec, err
	}
	rec.StartupID = startupID

	if _, err := e.SystemEvent(ctx, Ping); err != nil {
		return rec, err
	}

	e.log.Infof("session %s started (startup event %d, purged %d ping rows)", rec.SessionID, startupID, purged)
	return rec, nil
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
