package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"timetrack-go/internal/protocol"
	"timetrack-go/pkg/utils"
)

// Daemon 网关依赖的守护进程能力，由 client.Client 实现
type Daemon interface {
	Do(ctx context.Context, cmd protocol.Command) (string, error)
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

// Server HTTP 网关：把 REST 请求翻译成守护进程命令
type Server struct {
	daemon Daemon
	router *gin.Engine
	codec  protocol.Codec
	log    utils.Logger
}

// NewServer 创建网关并注册路由
func NewServer(d Daemon, log utils.Logger) *Server {
	if log == nil {
		log = utils.NopLogger{}
	}
	router := gin.New()

	s := &Server{
		daemon: d,
		router: router,
		codec:  protocol.NewSonicCodec(),
		log:    utils.Tagged(log, "Web"),
	}

	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.GET("/state", s.handleState)
		api.GET("/current", s.handleCurrent)
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handlePushTask)
		api.POST("/tasks/:id/disable", s.handleDisableTask)
		api.POST("/switch", s.handleSwitch)
		api.POST("/retro-switch", s.handleRetroSwitch)
		api.GET("/timesheet", s.handleTimesheet)
		api.GET("/events", s.handleEvents)
	}

	return s
}

// Handler 供 httptest 或自定义 http.Server 使用
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 监听 addr，ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger 为每个请求分配编号并记录耗时
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()
		s.log.Debugf("%s %s %s -> %d (%s)", id, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
