package protocol

import (
	"bytes"
	"fmt"

	"timetrack-go/internal/core"
)

// 回复前缀
const (
	Sep       = "#"
	StatusOK  = "OK"
	StatusErr = "ERR"
)

// 固定回复文本
const (
	// InvalidMessage 无法解析的请求统一返回的错误文本
	InvalidMessage = "Invalid message"
	// ByeMessage EXIT 的回复内容
	ByeMessage = "bye bye..."
	// NoCurrentTask CURRENT_TASK 在无当前任务时的回复内容
	NoCurrentTask = "None"
)

// Reply 带状态前缀的回复：OK#<data> 或 ERR#<message>
type Reply struct {
	OK   bool
	Data string
}

// OK 成功回复
func OK(data string) Reply { return Reply{OK: true, Data: data} }

// Err 失败回复
func Err(msg string) Reply { return Reply{OK: false, Data: msg} }

// Bytes 线上格式
func (r Reply) Bytes() []byte {
	status := StatusErr
	if r.OK {
		status = StatusOK
	}
	return []byte(status + Sep + r.Data)
}

func (r Reply) String() string { return string(r.Bytes()) }

var (
	okPrefix  = []byte(StatusOK + Sep)
	errPrefix = []byte(StatusErr + Sep)
)

// ParseReply 解析回复，未知前缀为协议错误
func ParseReply(b []byte) (Reply, error) {
	switch {
	case bytes.HasPrefix(b, okPrefix):
		return OK(string(b[len(okPrefix):])), nil
	case bytes.HasPrefix(b, errPrefix):
		return Err(string(b[len(errPrefix):])), nil
	}
	preview := b
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return Reply{}, core.ProtocolErr("parse reply", fmt.Errorf("unrecognized reply %q", preview))
}
