package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Logger 组件日志接口，实现需足够轻量
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Level 日志级别
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel 解析配置中的级别字符串，未知值按 info 处理
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// FmtLogger 带级别与组件标签前缀的日志实现，形如 "[Loop][WARN] ..."
type FmtLogger struct {
	tag   string
	level Level
	out   io.Writer
	mu    *sync.Mutex
}

// NewFmtLogger 创建写入 stderr 的日志器
func NewFmtLogger(level Level) *FmtLogger {
	return &FmtLogger{level: level, out: os.Stderr, mu: &sync.Mutex{}}
}

// NewFmtLoggerTo 创建写入指定 writer 的日志器
func NewFmtLoggerTo(w io.Writer, level Level) *FmtLogger {
	return &FmtLogger{level: level, out: w, mu: &sync.Mutex{}}
}

// With 返回带组件标签的子日志器，共享输出与级别
func (l *FmtLogger) With(tag string) *FmtLogger {
	return &FmtLogger{tag: tag, level: l.level, out: l.out, mu: l.mu}
}

func (l *FmtLogger) logf(level Level, name, format string, args ...any) {
	if level < l.level {
		return
	}
	prefix := "[" + name + "] "
	if l.tag != "" {
		prefix = "[" + l.tag + "][" + name + "] "
	}
	l.mu.Lock()
	fmt.Fprintf(l.out, prefix+format+"\n", args...)
	l.mu.Unlock()
}

func (l *FmtLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, "DEBUG", format, args...) }
func (l *FmtLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, "INFO", format, args...) }
func (l *FmtLogger) Warnf(format string, args ...any)  { l.logf(LevelWarn, "WARN", format, args...) }
func (l *FmtLogger) Errorf(format string, args ...any) { l.logf(LevelError, "ERROR", format, args...) }

// NopLogger 丢弃所有输出，测试用
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// Tagged 若 l 为 *FmtLogger 则返回带标签的子日志器，否则原样返回
func Tagged(l Logger, tag string) Logger {
	if l == nil {
		return NopLogger{}
	}
	if fl, ok := l.(*FmtLogger); ok {
		return fl.With(tag)
	}
	return l
}
