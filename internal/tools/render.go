package tools

import (
	"fmt"
	"strings"

	"timetrack-go/internal/core"
)

// markdownTable 渲染为 GitHub 风格表格，单元格中的 | 被转义
func markdownTable(header []string, rows [][]string) string {
	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i := range header {
			cell := ""
			if i < len(cells) {
				cell = strings.ReplaceAll(cells[i], "|", `\|`)
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}

	writeRow(header)
	sb.WriteString("|")
	for range header {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, r := range rows {
		writeRow(r)
	}
	return sb.String()
}

func renderState(title string, state core.ExportedState) string {
	var sb strings.Builder
	sb.WriteString(title + "\n\n")
	if state.CurrentTask != nil {
		fmt.Fprintf(&sb, "当前任务： #%d %s\n\n", state.CurrentTask.ID, state.CurrentTask.Name)
	} else {
		sb.WriteString("当前任务： 无\n\n")
	}

	if len(state.AllTasks) == 0 {
		sb.WriteString("（尚无任务）\n")
		return sb.String()
	}
	rows := make([][]string, 0, len(state.AllTasks))
	for _, t := range state.AllTasks {
		status := "启用"
		if !t.Enabled {
			status = "禁用"
		}
		rows = append(rows, []string{fmt.Sprint(t.ID), status, t.Name})
	}
	sb.WriteString(markdownTable([]string{"id", "状态", "名称"}, rows))
	return sb.String()
}
