package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack-go/internal/core"
	"timetrack-go/internal/protocol"
)

func handle(t *testing.T, d *Dispatcher, payload string) (protocol.Reply, bool) {
	t.Helper()
	return d.Handle(context.Background(), []byte(payload))
}

func TestDispatcher_PushSwitchCurrent(t *testing.T) {
	d, _, pub, _ := newDispatcher(t)

	reply, exit := handle(t, d, `{"cmd":"CURRENT_TASK"}`)
	assert.False(t, exit)
	assert.Equal(t, "OK#None", reply.String())

	reply, _ = handle(t, d, `{"cmd":"PUSH_TASK","name":"Roboadvisor"}`)
	assert.Equal(t, "OK#1", reply.String())
	assert.Equal(t, 1, pub.count())

	reply, _ = handle(t, d, `{"cmd":"SWITCH_TASK","taskId":1}`)
	require.True(t, reply.OK)
	assert.Equal(t, 2, pub.count())
	assert.JSONEq(t,
		`{"current_task":{"id":1,"enabled":true,"name":"Roboadvisor"},"all_tasks":[{"id":1,"enabled":true,"name":"Roboadvisor"}]}`,
		string(pub.last()))

	reply, _ = handle(t, d, `{"cmd":"CURRENT_TASK"}`)
	assert.Equal(t, "OK#Roboadvisor", reply.String())
	assert.Equal(t, 2, pub.count(), "queries do not broadcast")
}

func TestDispatcher_InvalidMessage(t *testing.T) {
	d, _, pub, _ := newDispatcher(t)

	for _, payload := range []string{`garbage`, `{"cmd":"DANCE"}`, `{"cmd":"SWITCH_TASK"}`} {
		reply, exit := handle(t, d, payload)
		assert.False(t, exit)
		assert.Equal(t, "ERR#"+protocol.InvalidMessage, reply.String())
	}
	assert.Zero(t, pub.count())
}

func TestDispatcher_Exit(t *testing.T) {
	d, _, pub, _ := newDispatcher(t)

	reply, exit := handle(t, d, `{"cmd":"EXIT"}`)
	assert.True(t, exit)
	assert.Equal(t, "OK#"+protocol.ByeMessage, reply.String())
	assert.Zero(t, pub.count())
}

func TestDispatcher_DisableTask(t *testing.T) {
	d, engine, pub, _ := newDispatcher(t)
	ctx := context.Background()

	_, err := engine.NewTask(ctx, "alpha")
	require.NoError(t, err)

	reply, _ := handle(t, d, `{"cmd":"DISABLE_TASK","taskId":1}`)
	assert.Equal(t, "OK#1", reply.String())
	assert.Equal(t, 1, pub.count())

	reply, _ = handle(t, d, `{"cmd":"DISABLE_TASK","taskId":42}`)
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Data, "task not found")
	assert.Equal(t, 1, pub.count(), "failed mutations do not broadcast")
}

func TestDispatcher_JsonDisableTask_FailureStillReturnsState(t *testing.T) {
	d, engine, pub, _ := newDispatcher(t)
	_, err := engine.NewTask(context.Background(), "alpha")
	require.NoError(t, err)

	reply, _ := handle(t, d, `{"cmd":"JSON_DISABLE_TASK","taskId":42}`)
	require.True(t, reply.OK)
	assert.JSONEq(t, `{"current_task":null,"all_tasks":[{"id":1,"enabled":true,"name":"alpha"}]}`, reply.Data)
	assert.Zero(t, pub.count())

	reply, _ = handle(t, d, `{"cmd":"JSON_DISABLE_TASK","taskId":1}`)
	require.True(t, reply.OK)
	assert.JSONEq(t, `{"current_task":null,"all_tasks":[{"id":1,"enabled":false,"name":"alpha"}]}`, reply.Data)
	assert.Equal(t, 1, pub.count())
}

func TestDispatcher_JsonMutationsReturnFreshState(t *testing.T) {
	d, _, pub, clock := newDispatcher(t)

	reply, _ := handle(t, d, `{"cmd":"JSON_PUSH_TASK","name":"alpha"}`)
	require.True(t, reply.OK)
	assert.JSONEq(t, `{"current_task":null,"all_tasks":[{"id":1,"enabled":true,"name":"alpha"}]}`, reply.Data)

	reply, _ = handle(t, d, `{"cmd":"JSON_PUSH_TASK","name":"beta"}`)
	require.True(t, reply.OK)

	reply, _ = handle(t, d, `{"cmd":"JSON_SWITCH_TASK","taskId":2}`)
	require.True(t, reply.OK)
	assert.Contains(t, reply.Data, `"current_task":{"id":2,"enabled":true,"name":"beta"}`)

	clock.Advance(600)
	reply, _ = handle(t, d, `{"cmd":"JSON_RETRO_SWITCH_TASK","taskId":1,"timestamp":1300,"keepPreviousTask":true}`)
	require.True(t, reply.OK)
	assert.Contains(t, reply.Data, `"current_task":{"id":2,"enabled":true,"name":"beta"}`)

	reply, _ = handle(t, d, `{"cmd":"JSON_STATE"}`)
	require.True(t, reply.OK)
	assert.Equal(t, 4, pub.count())
}

func TestDispatcher_JsonMutationErrorShortCircuits(t *testing.T) {
	d, _, pub, _ := newDispatcher(t)

	reply, _ := handle(t, d, `{"cmd":"JSON_PUSH_TASK","name":""}`)
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Data, "invalid argument")

	reply, _ = handle(t, d, `{"cmd":"JSON_RETRO_SWITCH_TASK","taskId":1,"timestamp":999999,"keepPreviousTask":false}`)
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Data, "future")
	assert.Zero(t, pub.count())
}

func TestDispatcher_SwitchToUnknownTask(t *testing.T) {
	d, _, _, _ := newDispatcher(t)

	reply, _ := handle(t, d, `{"cmd":"SWITCH_TASK","taskId":9}`)
	require.True(t, reply.OK, "switching is not validated")

	reply, _ = handle(t, d, `{"cmd":"CURRENT_TASK"}`)
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Data, "task not found")
}

func TestDispatcher_ListTasksAndTimesheet(t *testing.T) {
	d, engine, _, clock := newDispatcher(t)
	ctx := context.Background()

	_, err := engine.SystemEvent(ctx, core.Startup)
	require.NoError(t, err)
	_, err = engine.NewTask(ctx, "alpha")
	require.NoError(t, err)
	_, err = engine.SwitchTask(ctx, 1)
	require.NoError(t, err)
	clock.Advance(3600)
	_, err = engine.SystemEvent(ctx, core.Shutdown)
	require.NoError(t, err)

	reply, _ := handle(t, d, `{"cmd":"LIST_TASKS"}`)
	assert.Equal(t, "OK#id,enabled,name\n1,true,alpha\n", reply.String())

	reply, _ = handle(t, d, `{"cmd":"TIMESHEET"}`)
	assert.Equal(t, "OK#day,alpha\n1970-01-01,01:00:00\n", reply.String())
}

func TestDispatcher_BroadcastFailureIsSwallowed(t *testing.T) {
	d, _, pub, _ := newDispatcher(t)
	pub.err = errors.New("subscriber gone")

	reply, _ := handle(t, d, `{"cmd":"PUSH_TASK","name":"alpha"}`)
	assert.Equal(t, "OK#1", reply.String())
	assert.Equal(t, 1, pub.count())
}
