package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseManager_ReopenHealsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DatabaseFileName)

	mgr, err := NewDatabaseManager(path, nil)
	require.NoError(t, err)
	store := NewSQLiteStore(mgr)
	_, err = store.CreateTask(context.Background(), "kept")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	mgr, err = NewDatabaseManager(path, nil)
	require.NoError(t, err)
	store = NewSQLiteStore(mgr)
	defer store.Close()

	assert.Equal(t, path, mgr.Path())
	tasks, err := store.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "kept", tasks[0].Name)
}

func TestSQLiteStore_EventOrderingTieBreak(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AppendEvent(ctx, 50, TaskSwitch{TaskID: 2})
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, 10, SystemEvent{Kind: Startup})
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, 50, TaskSwitch{TaskID: 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"Startup@10", "Switch(2)@50", "Switch(3)@50"}, describe(t, store))

	last, err := store.LastEvent(ctx)
	require.NoError(t, err)
	id, ok := last.SwitchTarget()
	require.True(t, ok)
	assert.Equal(t, TaskID(3), id)
}

func TestSQLiteStore_LastEventEmpty(t *testing.T) {
	store := newTestStore(t)

	last, err := store.LastEvent(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)

	last, err = store.LastActivityEvent(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestSQLiteStore_SystemEventMaintenance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AppendEvent(ctx, 1, SystemEvent{Kind: Ping})
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, 2, SystemEvent{Kind: Ping})
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, 3, TaskSwitch{TaskID: 1})
	require.NoError(t, err)

	moved, err := store.MoveSystemEvent(ctx, Ping, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	last, err := store.LastActivityEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last.Timestamp)

	deleted, err := store.DeleteSystemEvents(ctx, Ping)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	n, err := store.CountSystemEvents(ctx, Ping)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStore_GetTaskNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTask(context.Background(), 99)
	assert.ErrorIs(t, err, ErrResolution)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestSQLiteStore_ConstraintsRejectIllegalRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateTask(ctx, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)

	// 两列同时为空或同时有值都被表约束拒绝
	_, err = store.dbManager.Exec(ctx, "INSERT INTO events (event_timestamp, task_id, system_event_name) VALUES (1, NULL, NULL)")
	assert.Error(t, err)
	_, err = store.dbManager.Exec(ctx, "INSERT INTO events (event_timestamp, task_id, system_event_name) VALUES (1, 1, 'Ping')")
	assert.Error(t, err)
	_, err = store.dbManager.Exec(ctx, "INSERT INTO events (event_timestamp, task_id, system_event_name) VALUES (1, NULL, 'Lunch')")
	assert.Error(t, err)
}

func TestEventFromColumns(t *testing.T) {
	e, err := eventFromColumns(1, 10, sql.NullInt64{Int64: 4, Valid: true}, sql.NullString{})
	require.NoError(t, err)
	assert.Equal(t, TaskSwitch{TaskID: 4}, e.Kind)

	e, err = eventFromColumns(2, 10, sql.NullInt64{}, sql.NullString{String: "Shutdown", Valid: true})
	require.NoError(t, err)
	assert.True(t, e.IsSystem(Shutdown))

	_, err = eventFromColumns(3, 10, sql.NullInt64{}, sql.NullString{})
	assert.ErrorIs(t, err, ErrCorruptEvent)

	_, err = eventFromColumns(4, 10, sql.NullInt64{Int64: 1, Valid: true}, sql.NullString{String: "Ping", Valid: true})
	assert.ErrorIs(t, err, ErrCorruptEvent)

	_, err = eventFromColumns(5, 10, sql.NullInt64{}, sql.NullString{String: "Nap", Valid: true})
	assert.ErrorIs(t, err, ErrCorruptEvent)
}

func TestErrorWrapping(t *testing.T) {
	base := StorageErr("op", sql.ErrConnDone)
	assert.ErrorIs(t, base, ErrStorage)
	assert.ErrorIs(t, base, sql.ErrConnDone)
	assert.Equal(t, "op: "+sql.ErrConnDone.Error(), base.Error())

	// 已分类的错误保持原分类
	again := ResolutionErr("outer", base)
	assert.ErrorIs(t, again, ErrStorage)
	assert.NotErrorIs(t, again, ErrResolution)

	assert.Nil(t, StorageErr("op", nil))
}

func TestIsConstraintViolation(t *testing.T) {
	mgr, err := NewDatabaseManager(filepath.Join(t.TempDir(), DatabaseFileName), nil)
	require.NoError(t, err)
	defer mgr.Close()
	ctx := context.Background()

	_, err = mgr.Exec(ctx, "INSERT INTO tasks (enabled, name) VALUES (1, '')")
	require.Error(t, err)
	assert.True(t, isConstraintViolation(err))
	assert.True(t, isConstraintViolation(fmt.Errorf("wrapped: %w", err)))

	_, err = mgr.Exec(ctx, "INSERT INTO events (event_timestamp, task_id, system_event_name) VALUES (1, 1, 'Ping')")
	require.Error(t, err)
	assert.True(t, isConstraintViolation(err))

	_, err = mgr.Exec(ctx, "SELECT * FROM no_such_table")
	require.Error(t, err)
	assert.False(t, isConstraintViolation(err))

	assert.False(t, isConstraintViolation(errors.New("constraint failed")))
	assert.False(t, isConstraintViolation(nil))
}

func TestSQLiteStore_CreateTaskEmptyNameIsConstraint(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateTask(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "constraint violation")
}
