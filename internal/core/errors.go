package core

import (
	"errors"
	"fmt"
)

// 错误分类，用 errors.Is 匹配
var (
	ErrStorage       = errors.New("storage error")
	ErrResolution    = errors.New("resolution error")
	ErrProtocol      = errors.New("protocol error")
	ErrSerialization = errors.New("serialization error")
)

// 具体原因
var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrCorruptEvent    = errors.New("corrupt event row")
)

// Error 带分类与操作名的错误
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// StorageErr 包装存储层错误；已分类的错误原样返回
func StorageErr(op string, err error) error {
	return wrapKind(ErrStorage, op, err)
}

// ResolutionErr 包装解析错误
func ResolutionErr(op string, err error) error {
	return wrapKind(ErrResolution, op, err)
}

// ProtocolErr 包装协议错误
func ProtocolErr(op string, err error) error {
	return wrapKind(ErrProtocol, op, err)
}

// SerializationErr 包装序列化错误
func SerializationErr(op string, err error) error {
	return wrapKind(ErrSerialization, op, err)
}

func wrapKind(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func taskNotFound(op string, id TaskID) error {
	return ResolutionErr(op, fmt.Errorf("%w: %d", ErrTaskNotFound, id))
}

func invalidArgument(op, format string, args ...any) error {
	return StorageErr(op, fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...)))
}
