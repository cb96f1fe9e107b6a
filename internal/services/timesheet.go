package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"timetrack-go/internal/core"
	"timetrack-go/pkg/utils"
)

// DayLayout 日期列格式
const DayLayout = "2006-01-02"

// HistorySource 工时统计所需的只读数据源，由 core.StateEngine 实现
type HistorySource interface {
	History(ctx context.Context) ([]core.Event, error)
	ListTasks(ctx context.Context) ([]core.Task, error)
}

// DayRow 某一天各任务的累计秒数，与 Timesheet.Tasks 按下标对齐
type DayRow struct {
	Day     string
	Entries []int64
}

// Timesheet 天 × 任务 的工时矩阵
type Timesheet struct {
	Tasks   []string
	TaskIDs []core.TaskID
	Days    []DayRow
}

// Total 全部单元格之和
func (t Timesheet) Total() int64 {
	var sum int64
	for _, d := range t.Days {
		for _, v := range d.Entries {
			sum += v
		}
	}
	return sum
}

// Aggregator 将事件日志折算为工时矩阵
type Aggregator struct {
	src HistorySource
	loc *time.Location
	log utils.Logger
}

// NewAggregator loc 为空时使用 time.Local
func NewAggregator(src HistorySource, loc *time.Location, log utils.Logger) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = utils.NopLogger{}
	}
	return &Aggregator{src: src, loc: loc, log: log}
}

// Build 读取全量日志并聚合
func (a *Aggregator) Build(ctx context.Context) (Timesheet, error) {
	tasks, err := a.src.ListTasks(ctx)
	if err != nil {
		return Timesheet{}, err
	}
	events, err := a.src.History(ctx)
	if err != nil {
		return Timesheet{}, err
	}
	ts, unknown := Aggregate(events, tasks, a.loc)
	if len(unknown) > 0 {
		a.log.Warnf("timesheet: time switched to unknown tasks %v was not counted", unknown)
	}
	return ts, nil
}

// Aggregate 按时间升序遍历事件（同一时间戳按插入顺序），
// 会话内且有当前任务时，把相邻两事件之间的区间按本地自然日拆分累加。
// 上一会话最后切换到的任务在下一次 Startup 后继续计时。
// 返回矩阵以及引用了未登记任务的编号。
func Aggregate(events []core.Event, tasks []core.Task, loc *time.Location) (Timesheet, []core.TaskID) {
	if loc == nil {
		loc = time.Local
	}

	sorted := make([]core.Event, 0, len(events))
	for _, e := range events {
		if !e.IsPing() {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp != sorted[j].Timestamp {
			return sorted[i].Timestamp < sorted[j].Timestamp
		}
		return sorted[i].ID < sorted[j].ID
	})

	column := make(map[core.TaskID]int, len(tasks))
	ts := Timesheet{
		Tasks:   make([]string, 0, len(tasks)),
		TaskIDs: make([]core.TaskID, 0, len(tasks)),
	}
	for i, t := range tasks {
		column[t.ID] = i
		ts.Tasks = append(ts.Tasks, t.Name)
		ts.TaskIDs = append(ts.TaskIDs, t.ID)
	}

	cells := map[string][]int64{}
	unknownSet := map[core.TaskID]struct{}{}

	var (
		sessionActive bool
		current       *core.TaskID
	)
	for i, e := range sorted {
		switch k := e.Kind.(type) {
		case core.SystemEvent:
			// 会话边界只改变是否计时，当前任务跨会话保留
			switch k.Kind {
			case core.Startup:
				sessionActive = true
			case core.Shutdown:
				sessionActive = false
			}
		case core.TaskSwitch:
			id := k.TaskID
			current = &id
		}

		if i+1 >= len(sorted) || !sessionActive || current == nil {
			continue
		}
		col, ok := column[*current]
		if !ok {
			unknownSet[*current] = struct{}{}
			continue
		}
		for _, span := range SplitByDay(e.Timestamp, sorted[i+1].Timestamp, loc) {
			row, ok := cells[span.Day]
			if !ok {
				row = make([]int64, len(tasks))
				cells[span.Day] = row
			}
			row[col] += span.Seconds
		}
	}

	days := make([]string, 0, len(cells))
	for d := range cells {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		ts.Days = append(ts.Days, DayRow{Day: d, Entries: cells[d]})
	}

	unknown := make([]core.TaskID, 0, len(unknownSet))
	for id := range unknownSet {
		unknown = append(unknown, id)
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return ts, unknown
}

// DaySpan 区间落在某一自然日内的秒数
type DaySpan struct {
	Day     string
	Seconds int64
}

// SplitByDay 将 [start, end) 在 loc 的每个午夜处切开，各段秒数之和恰为 end-start
func SplitByDay(start, end int64, loc *time.Location) []DaySpan {
	if end <= start {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	var spans []DaySpan
	for cursor := start; cursor < end; {
		t := time.Unix(cursor, 0).In(loc)
		y, m, d := t.Date()
		next := time.Date(y, m, d+1, 0, 0, 0, 0, loc).Unix()
		if next <= cursor {
			// 时区数据异常时至少前进一秒
			next = cursor + 1
		}
		stop := min(next, end)
		spans = append(spans, DaySpan{Day: t.Format(DayLayout), Seconds: stop - cursor})
		cursor = stop
	}
	return spans
}

// FormatDuration 秒数渲染为 HH:MM:SS，小时数可超过 99
func FormatDuration(secs int64) string {
	sign := ""
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, secs/3600, (secs%3600)/60, secs%60)
}
