package protocol

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"timetrack-go/internal/core"
	"timetrack-go/internal/services"
)

// TasksCSV 任务列表渲染为 id,enabled,name
func TasksCSV(tasks []core.Task) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "enabled", "name"}); err != nil {
		return "", core.SerializationErr("tasks csv", err)
	}
	for _, t := range tasks {
		row := []string{strconv.FormatInt(int64(t.ID), 10), strconv.FormatBool(t.Enabled), t.Name}
		if err := w.Write(row); err != nil {
			return "", core.SerializationErr("tasks csv", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", core.SerializationErr("tasks csv", err)
	}
	return buf.String(), nil
}

// TimesheetCSV 表头为 day 加任务名，每天一行，单元格为 HH:MM:SS
func TimesheetCSV(ts services.Timesheet) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append([]string{"day"}, ts.Tasks...)
	if err := w.Write(header); err != nil {
		return "", core.SerializationErr("timesheet csv", err)
	}
	for _, d := range ts.Days {
		row := make([]string, 0, len(d.Entries)+1)
		row = append(row, d.Day)
		for _, secs := range d.Entries {
			row = append(row, services.FormatDuration(secs))
		}
		if err := w.Write(row); err != nil {
			return "", core.SerializationErr("timesheet csv", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", core.SerializationErr("timesheet csv", err)
	}
	return buf.String(), nil
}

// ParseCSV 将 CSV 回复拆成表头与数据行，供终端表格渲染
func ParseCSV(data string) (header []string, rows [][]string, err error) {
	r := csv.NewReader(strings.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, core.ProtocolErr("parse csv", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

// EncodeState 状态快照序列化为 JSON
func EncodeState(codec Codec, state core.ExportedState) ([]byte, error) {
	if state.AllTasks == nil {
		state.AllTasks = []core.Task{}
	}
	b, err := codec.Encode(state)
	if err != nil {
		return nil, core.SerializationErr("encode state", err)
	}
	return b, nil
}

// DecodeState 解析广播或 JSON 回复中的状态快照
func DecodeState(codec Codec, data []byte) (core.ExportedState, error) {
	var state core.ExportedState
	if err := codec.Decode(data, &state); err != nil {
		return state, core.ProtocolErr("decode state", err)
	}
	return state, nil
}
