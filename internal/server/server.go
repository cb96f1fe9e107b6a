package server

import (
	"context"
	"fmt"
	"io"
	"time"

	"timetrack-go/internal/core"
	"timetrack-go/internal/services"
	"timetrack-go/pkg/utils"
)

// Options 套接字路径与调度节奏
type Options struct {
	SocketPath        string
	PubSocketPath     string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	RecvTimeout       time.Duration
	SendTimeout       time.Duration
}

// Server 守护进程：绑定通道、启动恢复、驱动调度循环
type Server struct {
	opts   Options
	engine *core.StateEngine
	sheets *services.Aggregator
	extra  []Publisher
	log    utils.Logger

	requests *RequestListener
	pubs     *PubListener
	hub      *Hub
	loop     *Loop
	recovery core.Recovery
}

// New extra 为额外的广播出口（如 Redis），随服务一起关闭
func New(opts Options, engine *core.StateEngine, sheets *services.Aggregator, log utils.Logger, extra ...Publisher) *Server {
	if log == nil {
		log = utils.NopLogger{}
	}
	return &Server{
		opts:   opts,
		engine: engine,
		sheets: sheets,
		extra:  extra,
		log:    utils.Tagged(log, "Server"),
	}
}

// Start 先绑定套接字再执行启动恢复，另一个实例在运行时不会改写日志
func (s *Server) Start(ctx context.Context) error {
	requests, err := ListenRequests(s.opts.SocketPath, s.opts.RecvTimeout, s.opts.SendTimeout, s.log)
	if err != nil {
		return err
	}

	hub := NewHub(utils.Tagged(s.log, "Hub"))
	pubs, err := ListenPublish(s.opts.PubSocketPath, hub, s.opts.SendTimeout, s.log)
	if err != nil {
		_ = requests.Close()
		return err
	}

	rec, err := s.engine.Recover(ctx)
	if err != nil {
		_ = pubs.Close()
		_ = requests.Close()
		return fmt.Errorf("recovery: %w", err)
	}
	s.recovery = rec

	var pub Publisher = hub
	if len(s.extra) > 0 {
		pub = append(MultiPublisher{hub}, s.extra...)
	}

	dispatcher := NewDispatcher(s.engine, s.sheets, pub, s.opts.SendTimeout, s.log)
	closers := []io.Closer{requests, pubs}
	for _, p := range s.extra {
		closers = append(closers, p)
	}
	s.requests = requests
	s.pubs = pubs
	s.hub = hub
	s.loop = NewLoop(s.engine, dispatcher, requests.requests(), s.opts.HeartbeatInterval, s.opts.PollInterval, s.log, closers...)

	s.log.Infof("listening on %s (publish %s)", requests.Addr(), pubs.Addr())
	return nil
}

// Run 阻塞执行调度循环；需先调用 Start
func (s *Server) Run(ctx context.Context) error {
	if s.loop == nil {
		return fmt.Errorf("server not started")
	}
	s.loop.Run(ctx)
	return nil
}

// Stop 请求停止，循环在下一轮观察到标志后退出
func (s *Server) Stop() {
	if s.loop != nil {
		s.loop.Stop()
	}
}

// Subscribers 当前连接的订阅者数量
func (s *Server) Subscribers() int {
	if s.hub == nil {
		return 0
	}
	return s.hub.Len()
}

// Recovery 本次启动恢复的结果
func (s *Server) Recovery() core.Recovery {
	return s.recovery
}
