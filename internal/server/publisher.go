package server

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"timetrack-go/pkg/utils"
)

// Publisher 状态广播出口，发送即忘
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

// subscriberBuffer 每个订阅者最多积压的消息数，满了就丢弃该条
const subscriberBuffer = 16

// Hub 进程内扇出：每个订阅者一个带缓冲通道，发布从不阻塞
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan []byte]struct{}
	closed bool
	log    utils.Logger
}

// NewHub 创建扇出中心
func NewHub(log utils.Logger) *Hub {
	if log == nil {
		log = utils.NopLogger{}
	}
	return &Hub{subs: make(map[chan []byte]struct{}), log: log}
}

// Publish 投递给全部订阅者；积压已满的订阅者错过本条
func (h *Hub) Publish(_ context.Context, payload []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
			h.log.Debugf("subscriber is behind, dropping broadcast")
		}
	}
	return nil
}

// Subscribe 注册订阅者；Hub 已关闭时返回已关闭的通道
func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe 注销并关闭通道，可重复调用
func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Len 当前订阅者数量
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close 关闭全部订阅通道
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
	return nil
}

// RedisPublisher 将广播 PUBLISH 到 Redis 频道
type RedisPublisher struct {
	rdb     redis.UniversalClient
	channel string
}

// NewRedisPublisher 包装已有客户端
func NewRedisPublisher(rdb redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// DialRedisPublisher 按地址建立客户端并 PING 一次
func DialRedisPublisher(ctx context.Context, addr string, db int, channel string) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewRedisPublisher(rdb, channel), nil
}

func (p *RedisPublisher) Publish(ctx context.Context, payload []byte) error {
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// MultiPublisher 依次投递给多个出口，单个失败不影响其余
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, payload []byte) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
