package client

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack-go/internal/core"
	"timetrack-go/internal/protocol"
)

// fakeDaemon 对每个连接读取一帧，记录负载后回复固定内容
type fakeDaemon struct {
	ln       net.Listener
	reply    protocol.Reply
	received chan []byte
}

func startFakeDaemon(t *testing.T, reply protocol.Reply) (*fakeDaemon, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "ttc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "d.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	d := &fakeDaemon{ln: ln, reply: reply, received: make(chan []byte, 8)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			payload, err := protocol.ReadFrame(conn)
			if err == nil {
				d.received <- payload
				_ = protocol.WriteFrame(conn, d.reply.Bytes())
			}
			conn.Close()
		}
	}()
	return d, path
}

func TestDoReturnsData(t *testing.T) {
	d, sock := startFakeDaemon(t, protocol.OK("1,true,Roboadvisor\n"))
	c := New(sock, "", WithTimeout(2*time.Second))

	data, err := c.Do(context.Background(), protocol.PushTask{TaskName: "Roboadvisor"})
	require.NoError(t, err)
	assert.Equal(t, "1,true,Roboadvisor\n", data)

	payload := <-d.received
	cmd, err := protocol.DecodeCommand(protocol.NewSonicCodec(), payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.PushTask{TaskName: "Roboadvisor"}, cmd)
}

func TestDoWrapsRemoteError(t *testing.T) {
	_, sock := startFakeDaemon(t, protocol.Err("task not found"))
	c := New(sock, "")

	_, err := c.Do(context.Background(), protocol.DisableTask{TaskID: 9})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "task not found")
}

func TestSendKeepsErrReply(t *testing.T) {
	_, sock := startFakeDaemon(t, protocol.Err(protocol.InvalidMessage))
	c := New(sock, "")

	reply, err := c.SendRaw(context.Background(), []byte("garbage"))
	require.NoError(t, err)
	assert.False(t, reply.OK)
	assert.Equal(t, protocol.InvalidMessage, reply.Data)
}

func TestStateDecodesSnapshot(t *testing.T) {
	codec := protocol.NewSonicCodec()
	task := core.Task{ID: 1, Enabled: true, Name: "Roboadvisor"}
	raw, err := protocol.EncodeState(codec, core.ExportedState{CurrentTask: &task, AllTasks: []core.Task{task}})
	require.NoError(t, err)

	_, sock := startFakeDaemon(t, protocol.OK(string(raw)))
	state, err := New(sock, "").State(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state.CurrentTask)
	assert.Equal(t, task, *state.CurrentTask)
	assert.Equal(t, []core.Task{task}, state.AllTasks)
}

func TestDialFailure(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "missing.sock"), "")
	_, err := c.Do(context.Background(), protocol.CurrentTask{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "connect to daemon")
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	dir, err := os.MkdirTemp("", "ttc")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "p.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = protocol.WriteFrame(conn, []byte(`{"current_task":null,"all_tasks":[]}`))
		// 保持连接，直到客户端关闭
		buf := make([]byte, 1)
		_, _ = conn.Read(buf)
		conn.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	states, err := New("", path).SubscribeStates(ctx)
	require.NoError(t, err)

	select {
	case s := <-states:
		assert.Nil(t, s.CurrentTask)
		assert.Empty(t, s.AllTasks)
	case <-time.After(2 * time.Second):
		t.Fatal("no state received")
	}

	cancel()
	select {
	case _, ok := <-states:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
