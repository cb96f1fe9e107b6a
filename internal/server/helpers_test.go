package server

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"timetrack-go/internal/core"
	"timetrack-go/internal/services"
)

type fixedClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.now, 0)
}

func (c *fixedClock) Advance(secs int64) {
	c.mu.Lock()
	c.now += secs
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	msgs   [][]byte
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, payload)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func (p *recordingPublisher) last() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return nil
	}
	return p.msgs[len(p.msgs)-1]
}

func newStore(t *testing.T) *core.SQLiteStore {
	t.Helper()
	mgr, err := core.NewDatabaseManager(filepath.Join(t.TempDir(), core.DatabaseFileName), nil)
	require.NoError(t, err)
	store := core.NewSQLiteStore(mgr)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// newDispatcher 固定时钟 + UTC 的调度器
func newDispatcher(t *testing.T) (*Dispatcher, *core.StateEngine, *recordingPublisher, *fixedClock) {
	t.Helper()
	clock := &fixedClock{now: 1000}
	engine := core.NewStateEngine(newStore(t), core.WithClock(clock.Now))
	sheets := services.NewAggregator(engine, time.UTC, nil)
	pub := &recordingPublisher{}
	return NewDispatcher(engine, sheets, pub, time.Second, nil), engine, pub, clock
}

// socketDir unix 套接字路径有长度上限，不使用 t.TempDir 的长路径
func socketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tt")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}
