package core

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	now int64
}

func (c *testClock) Now() time.Time { return time.Unix(c.now, 0) }

func (c *testClock) Set(ts int64) { c.now = ts }

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	mgr, err := NewDatabaseManager(filepath.Join(t.TempDir(), DatabaseFileName), nil)
	require.NoError(t, err)
	store := NewSQLiteStore(mgr)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestEngine(t *testing.T) (*StateEngine, *SQLiteStore, *testClock) {
	t.Helper()
	store := newTestStore(t)
	clock := &testClock{now: 1000}
	return NewStateEngine(store, WithClock(clock.Now)), store, clock
}

// describe 把事件日志压缩成便于断言的字符串序列
func describe(t *testing.T, store EventStore) []string {
	t.Helper()
	events, err := store.Events(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		switch k := e.Kind.(type) {
		case TaskSwitch:
			out = append(out, "Switch("+itoa(int64(k.TaskID))+")@"+itoa(e.Timestamp))
		case SystemEvent:
			out = append(out, string(k.Kind)+"@"+itoa(e.Timestamp))
		}
	}
	return out
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
