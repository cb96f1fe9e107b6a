package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack-go/internal/core"
	"timetrack-go/internal/services"
)

func TestDecodeCommand_AllCommands(t *testing.T) {
	codec := NewSonicCodec()
	cases := []struct {
		payload string
		want    Command
	}{
		{`{"cmd":"EXIT"}`, Exit{}},
		{`{"cmd":"PUSH_TASK","name":"Roboadvisor"}`, PushTask{TaskName: "Roboadvisor"}},
		{`{"cmd":"DISABLE_TASK","taskId":3}`, DisableTask{TaskID: 3}},
		{`{"cmd":"SWITCH_TASK","taskId":1}`, SwitchTask{TaskID: 1}},
		{`{"cmd":"CURRENT_TASK"}`, CurrentTask{}},
		{`{"cmd":"LIST_TASKS"}`, ListTasks{}},
		{`{"cmd":"JSON_PUSH_TASK","name":"Review"}`, JsonPushTask{TaskName: "Review"}},
		{`{"cmd":"JSON_DISABLE_TASK","taskId":2}`, JsonDisableTask{TaskID: 2}},
		{`{"cmd":"JSON_SWITCH_TASK","taskId":2}`, JsonSwitchTask{TaskID: 2}},
		{`{"cmd":"JSON_RETRO_SWITCH_TASK","taskId":1,"timestamp":1700000000,"keepPreviousTask":true}`,
			JsonRetroSwitchTask{TaskID: 1, Timestamp: 1700000000, KeepPreviousTask: true}},
		{`{"cmd":"JSON_STATE"}`, JsonState{}},
		{`{"cmd":"TIMESHEET"}`, Timesheet{}},
	}
	for _, tc := range cases {
		t.Run(tc.payload, func(t *testing.T) {
			got, err := DecodeCommand(codec, []byte(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeCommand_Invalid(t *testing.T) {
	codec := NewSonicCodec()
	cases := []string{
		``,
		`not json`,
		`{}`,
		`{"cmd":"DANCE"}`,
		`{"cmd":"PUSH_TASK"}`,
		`{"cmd":"SWITCH_TASK"}`,
		`{"cmd":"SWITCH_TASK","taskId":-1}`,
		`{"cmd":"SWITCH_TASK","taskId":"one"}`,
		`{"cmd":"JSON_RETRO_SWITCH_TASK","taskId":1,"keepPreviousTask":false}`,
		`{"cmd":"JSON_RETRO_SWITCH_TASK","taskId":1,"timestamp":5}`,
	}
	for _, payload := range cases {
		t.Run(payload, func(t *testing.T) {
			_, err := DecodeCommand(codec, []byte(payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrProtocol)
		})
	}
}

func TestEncodeCommand_RoundTripsThroughDecode(t *testing.T) {
	codec := NewSonicCodec()
	cmds := []Command{
		Exit{},
		PushTask{TaskName: "a,b \"quoted\""},
		JsonRetroSwitchTask{TaskID: 7, Timestamp: 123, KeepPreviousTask: false},
		JsonDisableTask{TaskID: 0},
	}
	for _, cmd := range cmds {
		b, err := EncodeCommand(codec, cmd)
		require.NoError(t, err)
		got, err := DecodeCommand(codec, b)
		require.NoError(t, err)
		assert.Equal(t, cmd, got)
	}
}

func TestEncodeCommand_WireFormat(t *testing.T) {
	b, err := EncodeCommand(NewSonicCodec(), SwitchTask{TaskID: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cmd":"SWITCH_TASK","taskId":4}`, string(b))
}

func TestCommand_Mutating(t *testing.T) {
	assert.True(t, PushTask{}.Mutating())
	assert.True(t, JsonRetroSwitchTask{}.Mutating())
	assert.False(t, CurrentTask{}.Mutating())
	assert.False(t, Timesheet{}.Mutating())
	assert.False(t, Exit{}.Mutating())
}

func TestReply_FormatAndParse(t *testing.T) {
	assert.Equal(t, "OK#1", OK("1").String())
	assert.Equal(t, "ERR#"+InvalidMessage, Err(InvalidMessage).String())
	assert.Equal(t, "OK#", OK("").String())

	r, err := ParseReply([]byte("OK#a#b"))
	require.NoError(t, err)
	assert.Equal(t, OK("a#b"), r)

	r, err = ParseReply([]byte("ERR#boom"))
	require.NoError(t, err)
	assert.False(t, r.OK)
	assert.Equal(t, "boom", r.Data)

	_, err = ParseReply([]byte("MAYBE#x"))
	assert.ErrorIs(t, err, core.ErrProtocol)
}

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	require.NoError(t, WriteFrame(&buf, nil))
	assert.Equal(t, []byte{0, 0, 0, 5}, buf.Bytes()[:4])

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	got, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrame_TooLarge(t *testing.T) {
	err := WriteFrame(io.Discard, make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, core.ErrProtocol)

	header := []byte{0xff, 0xff, 0xff, 0xff}
	_, err = ReadFrame(bytes.NewReader(header))
	assert.ErrorIs(t, err, core.ErrProtocol)
}

func TestFrame_Truncated(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 9, 'a'}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestTasksCSV(t *testing.T) {
	out, err := TasksCSV([]core.Task{
		{ID: 1, Enabled: true, Name: "Roboadvisor"},
		{ID: 2, Enabled: false, Name: "Review, docs"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id,enabled,name\n1,true,Roboadvisor\n2,false,\"Review, docs\"\n", out)

	out, err = TasksCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "id,enabled,name\n", out)
}

func TestTimesheetCSV(t *testing.T) {
	ts := services.Timesheet{
		Tasks:   []string{"alpha", "beta"},
		TaskIDs: []core.TaskID{1, 2},
		Days: []services.DayRow{
			{Day: "2023-11-14", Entries: []int64{3600, 45296}},
			{Day: "2023-11-15", Entries: []int64{0, 61}},
		},
	}
	out, err := TimesheetCSV(ts)
	require.NoError(t, err)
	assert.Equal(t, "day,alpha,beta\n2023-11-14,01:00:00,12:34:56\n2023-11-15,00:00:00,00:01:01\n", out)

	header, rows, err := ParseCSV(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"day", "alpha", "beta"}, header)
	assert.Len(t, rows, 2)
}

func TestState_EncodeDecode(t *testing.T) {
	codec := NewSonicCodec()

	b, err := EncodeState(codec, core.ExportedState{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"current_task":null,"all_tasks":[]}`, string(b))

	task := core.Task{ID: 1, Enabled: true, Name: "Roboadvisor"}
	b, err = EncodeState(codec, core.ExportedState{CurrentTask: &task, AllTasks: []core.Task{task}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"current_task":{"id":1,"enabled":true,"name":"Roboadvisor"},"all_tasks":[{"id":1,"enabled":true,"name":"Roboadvisor"}]}`, string(b))

	state, err := DecodeState(codec, b)
	require.NoError(t, err)
	require.NotNil(t, state.CurrentTask)
	assert.Equal(t, "Roboadvisor", state.CurrentTask.Name)

	_, err = DecodeState(codec, []byte("{"))
	assert.ErrorIs(t, err, core.ErrProtocol)
}
