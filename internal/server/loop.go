package server

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"timetrack-go/internal/core"
	"timetrack-go/pkg/utils"
)

// Loop 单线程调度循环：命令处理、心跳与停机都在同一个协程里执行
type Loop struct {
	engine     *core.StateEngine
	dispatcher *Dispatcher
	inbox      <-chan request
	heartbeat  time.Duration
	poll       time.Duration
	closers    []io.Closer
	stop       atomic.Bool
	log        utils.Logger
}

// NewLoop closers 在循环结束、最终 Shutdown 写入之后按顺序关闭
func NewLoop(engine *core.StateEngine, dispatcher *Dispatcher, inbox <-chan request, heartbeat, poll time.Duration, log utils.Logger, closers ...io.Closer) *Loop {
	return &Loop{
		engine:     engine,
		dispatcher: dispatcher,
		inbox:      inbox,
		heartbeat:  heartbeat,
		poll:       poll,
		closers:    closers,
		log:        utils.Tagged(log, "Loop"),
	}
}

// Stop 只翻转停止标志，可在信号处理等任意协程中调用
func (l *Loop) Stop() {
	l.stop.Store(true)
}

// Stopped 停止标志是否已置位
func (l *Loop) Stopped() bool {
	return l.stop.Load()
}

// Run 阻塞直到 EXIT、Stop 或 ctx 取消
func (l *Loop) Run(ctx context.Context) {
	heartbeat := time.NewTicker(l.heartbeat)
	defer heartbeat.Stop()
	poll := time.NewTicker(l.poll)
	defer poll.Stop()

	defer l.shutdown()

	for {
		if l.stop.Load() {
			l.log.Infof("stop flag observed")
			return
		}

		select {
		case <-ctx.Done():
			l.log.Infof("context cancelled")
			return

		case req := <-l.inbox:
			reply, exit := l.dispatcher.Handle(ctx, req.payload)
			l.log.Debugf("request %s -> %s", req.id, truncate(reply.String(), 80))
			req.reply <- reply.Bytes()
			if exit {
				l.Stop()
			}

		case <-heartbeat.C:
			if err := l.engine.Ping(ctx); err != nil {
				l.log.Warnf("heartbeat: %v", err)
			}

		case <-poll.C:
		}
	}
}

// shutdown 尽力写入最终 Shutdown，失败不重试
func (l *Loop) shutdown() {
	if _, err := l.engine.SystemEvent(context.Background(), core.Shutdown); err != nil {
		l.log.Errorf("final shutdown event: %v", err)
	} else {
		l.log.Infof("shutdown recorded")
	}
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			l.log.Warnf("close: %v", err)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
