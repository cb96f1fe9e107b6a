package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"timetrack-go/internal/client"
	"timetrack-go/internal/core"
	"timetrack-go/internal/protocol"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

type pushTaskRequest struct {
	Name string `json:"name" binding:"required"`
}

type switchRequest struct {
	TaskID int64 `json:"taskId" binding:"required,gt=0"`
}

type retroSwitchRequest struct {
	TaskID           int64 `json:"taskId" binding:"required,gt=0"`
	Timestamp        int64 `json:"timestamp" binding:"required,gt=0"`
	KeepPreviousTask bool  `json:"keepPreviousTask"`
}

// fail 守护进程拒绝的请求为 422，无法连接为 502
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, client.ErrRemote) {
		status = http.StatusUnprocessableEntity
	}
	s.log.Warnf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	if _, err := s.daemon.Do(c.Request.Context(), protocol.CurrentTask{}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleState(c *gin.Context) {
	s.forwardJSON(c, http.StatusOK, protocol.JsonState{})
}

// handleCurrent 以状态快照判定当前任务，任务名本身可以是任意文本
func (s *Server) handleCurrent(c *gin.Context) {
	data, err := s.daemon.Do(c.Request.Context(), protocol.JsonState{})
	if err != nil {
		s.fail(c, err)
		return
	}
	state, err := protocol.DecodeState(s.codec, []byte(data))
	if err != nil {
		s.fail(c, err)
		return
	}
	if state.CurrentTask == nil {
		c.JSON(http.StatusOK, gin.H{"name": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": state.CurrentTask.Name})
}

func (s *Server) handleListTasks(c *gin.Context) {
	s.forwardCSV(c, protocol.ListTasks{})
}

func (s *Server) handleTimesheet(c *gin.Context) {
	s.forwardCSV(c, protocol.Timesheet{})
}

func (s *Server) handlePushTask(c *gin.Context) {
	var req pushTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.forwardJSON(c, http.StatusCreated, protocol.JsonPushTask{TaskName: req.Name})
}

func (s *Server) handleDisableTask(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	// 严格版本：不存在的任务返回错误，而不是静默返回状态
	if _, err := s.daemon.Do(c.Request.Context(), protocol.DisableTask{TaskID: core.TaskID(id)}); err != nil {
		s.fail(c, err)
		return
	}
	s.forwardJSON(c, http.StatusOK, protocol.JsonState{})
}

func (s *Server) handleSwitch(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.forwardJSON(c, http.StatusOK, protocol.JsonSwitchTask{TaskID: core.TaskID(req.TaskID)})
}

func (s *Server) handleRetroSwitch(c *gin.Context) {
	var req retroSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.forwardJSON(c, http.StatusOK, protocol.JsonRetroSwitchTask{
		TaskID:           core.TaskID(req.TaskID),
		Timestamp:        req.Timestamp,
		KeepPreviousTask: req.KeepPreviousTask,
	})
}

// handleEvents 以 Server-Sent Events 推送状态广播，直到客户端断开或守护进程关闭发布通道
func (s *Server) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	sub, err := s.daemon.Subscribe(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case msg, ok := <-sub:
			if !ok {
				return
			}
			c.SSEvent("state", string(msg))
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) forwardJSON(c *gin.Context, status int, cmd protocol.Command) {
	data, err := s.daemon.Do(c.Request.Context(), cmd)
	if err != nil {
		s.fail(c, err)
		return
	}
	// 确认是合法的状态快照再转发
	if _, err := protocol.DecodeState(s.codec, []byte(data)); err != nil {
		s.fail(c, err)
		return
	}
	c.Data(status, contentTypeJSON, []byte(data))
}

func (s *Server) forwardCSV(c *gin.Context, cmd protocol.Command) {
	data, err := s.daemon.Do(c.Request.Context(), cmd)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypeCSV, []byte(data))
}
