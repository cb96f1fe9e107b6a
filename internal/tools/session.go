package tools

import (
	"context"

	"timetrack-go/internal/protocol"
)

// Requester 向守护进程发送命令，由 client.Client 实现
type Requester interface {
	Do(ctx context.Context, cmd protocol.Command) (string, error)
}

// SessionManager MCP 会话上下文：所有工具都经由守护进程执行
type SessionManager struct {
	Client Requester
	codec  protocol.Codec
}

// NewSessionManager 创建会话上下文
func NewSessionManager(c Requester) *SessionManager {
	return &SessionManager{Client: c, codec: protocol.NewSonicCodec()}
}

func (sm *SessionManager) getCodec() protocol.Codec {
	if sm.codec == nil {
		sm.codec = protocol.NewSonicCodec()
	}
	return sm.codec
}
