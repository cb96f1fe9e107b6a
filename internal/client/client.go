package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"timetrack-go/internal/core"
	"timetrack-go/internal/protocol"
)

// ErrRemote 守护进程返回 ERR# 回复
var ErrRemote = errors.New("daemon error")

// DefaultTimeout 单次请求的整体超时
const DefaultTimeout = 10 * time.Second

// Client 守护进程客户端：每次请求一个连接
type Client struct {
	socket    string
	pubSocket string
	timeout   time.Duration
	codec     protocol.Codec
}

// Option 配置 Client
type Option func(*Client)

// WithTimeout 覆盖请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New socket 为请求套接字，pubSocket 为发布套接字
func New(socket, pubSocket string, opts ...Option) *Client {
	c := &Client{
		socket:    socket,
		pubSocket: pubSocket,
		timeout:   DefaultTimeout,
		codec:     protocol.NewSonicCodec(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send 发送命令并返回原始回复
func (c *Client) Send(ctx context.Context, cmd protocol.Command) (protocol.Reply, error) {
	payload, err := protocol.EncodeCommand(c.codec, cmd)
	if err != nil {
		return protocol.Reply{}, err
	}
	raw, err := c.roundTrip(ctx, payload)
	if err != nil {
		return protocol.Reply{}, err
	}
	return protocol.ParseReply(raw)
}

// SendRaw 发送任意负载，用于调试与协议测试
func (c *Client) SendRaw(ctx context.Context, payload []byte) (protocol.Reply, error) {
	raw, err := c.roundTrip(ctx, payload)
	if err != nil {
		return protocol.Reply{}, err
	}
	return protocol.ParseReply(raw)
}

// Do 发送命令；ERR# 回复转换为包装 ErrRemote 的错误
func (c *Client) Do(ctx context.Context, cmd protocol.Command) (string, error) {
	reply, err := c.Send(ctx, cmd)
	if err != nil {
		return "", err
	}
	if !reply.OK {
		return "", fmt.Errorf("%w: %s", ErrRemote, reply.Data)
	}
	return reply.Data, nil
}

// State 读取状态快照
func (c *Client) State(ctx context.Context) (core.ExportedState, error) {
	data, err := c.Do(ctx, protocol.JsonState{})
	if err != nil {
		return core.ExportedState{}, err
	}
	return protocol.DecodeState(c.codec, []byte(data))
}

func (c *Client) roundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	conn, err := c.dial(ctx, c.socket)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if err := protocol.WriteFrame(conn, payload); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	raw, err := protocol.ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return raw, nil
}

func (c *Client) dial(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", path, err)
	}
	return conn, nil
}

// Subscribe 订阅状态广播，通道在 ctx 取消或守护进程断开时关闭
func (c *Client) Subscribe(ctx context.Context) (<-chan []byte, error) {
	conn, err := c.dial(ctx, c.pubSocket)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte)
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-finished:
		}
		conn.Close()
	}()
	go func() {
		defer close(out)
		defer close(finished)
		for {
			payload, err := protocol.ReadFrame(conn)
			if err != nil {
				return
			}
			select {
			case out <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SubscribeStates 与 Subscribe 相同，但解码为状态快照；无法解码的消息被跳过
func (c *Client) SubscribeStates(ctx context.Context) (<-chan core.ExportedState, error) {
	raw, err := c.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan core.ExportedState)
	go func() {
		defer close(out)
		for payload := range raw {
			state, err := protocol.DecodeState(c.codec, payload)
			if err != nil {
				continue
			}
			select {
			case out <- state:
			case <-ctx.Done():
				// 排空，使读协程能退出
				for range raw {
				}
				return
			}
		}
	}()
	return out, nil
}
