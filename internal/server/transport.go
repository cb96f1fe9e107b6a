package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"timetrack-go/internal/core"
	"timetrack-go/internal/protocol"
	"timetrack-go/pkg/utils"
)

// request 连接协程交给调度循环的一次请求；reply 带一个缓冲，循环写入从不阻塞
type request struct {
	id      string
	payload []byte
	reply   chan []byte
}

// listenUnix 监听 unix 套接字；残留的套接字文件若无人应答则清理
func listenUnix(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		conn, dialErr := net.DialTimeout("unix", path, 200*time.Millisecond)
		if dialErr == nil {
			conn.Close()
			return nil, fmt.Errorf("%s is already served by another process", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	return net.Listen("unix", path)
}

// RequestListener 请求/回复通道：每个连接一次请求一次回复
type RequestListener struct {
	ln          net.Listener
	inbox       chan request
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	recvTimeout time.Duration
	sendTimeout time.Duration
	log         utils.Logger
}

// ListenRequests 绑定请求套接字并开始接受连接
func ListenRequests(path string, recvTimeout, sendTimeout time.Duration, log utils.Logger) (*RequestListener, error) {
	ln, err := listenUnix(path)
	if err != nil {
		return nil, fmt.Errorf("bind request socket: %w", err)
	}
	l := &RequestListener{
		ln:          ln,
		inbox:       make(chan request),
		done:        make(chan struct{}),
		recvTimeout: recvTimeout,
		sendTimeout: sendTimeout,
		log:         utils.Tagged(log, "Transport"),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

// Addr 监听地址
func (l *RequestListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *RequestListener) requests() <-chan request {
	return l.inbox
}

func (l *RequestListener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-l.done:
				return
			default:
			}
			l.log.Warnf("accept: %v", err)
			continue
		}
		l.wg.Add(1)
		go l.handle(conn)
	}
}

func (l *RequestListener) handle(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(l.recvTimeout))
	payload, err := protocol.ReadFrame(conn)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrProtocol):
			l.log.Warnf("rejecting frame: %v", err)
			l.write(conn, protocol.Err(protocol.InvalidMessage).Bytes())
		case errors.Is(err, io.EOF):
		default:
			l.log.Debugf("read request: %v", err)
		}
		return
	}

	req := request{id: uuid.NewString(), payload: payload, reply: make(chan []byte, 1)}
	select {
	case l.inbox <- req:
	case <-l.done:
		l.write(conn, protocol.Err("server is shutting down").Bytes())
		return
	}

	select {
	case reply := <-req.reply:
		l.write(conn, reply)
	case <-l.done:
		select {
		case reply := <-req.reply:
			l.write(conn, reply)
		default:
		}
	}
}

func (l *RequestListener) write(conn net.Conn, reply []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(l.sendTimeout))
	if err := protocol.WriteFrame(conn, reply); err != nil {
		l.log.Debugf("write reply: %v", err)
	}
}

// Close 停止接受连接并等待在途连接结束；套接字文件随监听关闭删除
func (l *RequestListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.ln.Close()
		l.wg.Wait()
	})
	return err
}

// PubListener 发布通道：订阅者连接后持续收到每次广播的一帧
type PubListener struct {
	ln          net.Listener
	hub         *Hub
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	sendTimeout time.Duration
	log         utils.Logger
}

// ListenPublish 绑定发布套接字，订阅者挂到 hub 上
func ListenPublish(path string, hub *Hub, sendTimeout time.Duration, log utils.Logger) (*PubListener, error) {
	ln, err := listenUnix(path)
	if err != nil {
		return nil, fmt.Errorf("bind publish socket: %w", err)
	}
	l := &PubListener{
		ln:          ln,
		hub:         hub,
		done:        make(chan struct{}),
		sendTimeout: sendTimeout,
		log:         utils.Tagged(log, "Publish"),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

// Addr 监听地址
func (l *PubListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *PubListener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-l.done:
				return
			default:
			}
			l.log.Warnf("accept: %v", err)
			continue
		}
		ch := l.hub.Subscribe()
		l.log.Debugf("subscriber connected (%d total)", l.hub.Len())
		l.wg.Add(1)
		go l.pump(conn, ch)
	}
}

// pump 把订阅通道中的消息逐帧写给连接；写失败即注销
func (l *PubListener) pump(conn net.Conn, ch chan []byte) {
	defer l.wg.Done()
	defer conn.Close()
	for payload := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(l.sendTimeout))
		if err := protocol.WriteFrame(conn, payload); err != nil {
			l.log.Debugf("dropping subscriber: %v", err)
			l.hub.Unsubscribe(ch)
			return
		}
	}
}

// Close 停止接受订阅并断开全部订阅者
func (l *PubListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.ln.Close()
		_ = l.hub.Close()
		l.wg.Wait()
	})
	return err
}
