package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tallybridge/internal/model"
)

func pendingTask(data string) model.Task {
	return model.Task{VoucherData: data, DataType: model.DataTypeJSON, Status: model.TaskPending}
}

func TestRecordUpload_CreatesClientAndTask(t *testing.T) {
	s := createTestStore(t, WithTokenGenerator(NewFixedTokenGenerator("tok")))
	ctx := context.Background()

	task, err := s.RecordUpload(ctx, "c1", "Acme", pendingTask(`{"a":1}`))
	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	assert.Equal(t, "c1", task.ClientID)
	assert.False(t, task.CreatedAt.IsZero())

	c, err := s.Client(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.CompanyName)
	assert.Equal(t, "tok", c.Token)

	stored, err := s.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, stored)
}

func TestRecordUpload_StatusMissingFieldsMismatchIsFault(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	bad := model.Task{VoucherData: "{}", DataType: model.DataTypeJSON, Status: model.TaskRejected}
	_, err := s.RecordUpload(ctx, "c1", "Acme", bad)
	require.Error(t, err)
	assert.True(t, IsFault(err))

	// Atomic: the client upsert rolled back with the task insert.
	_, err = s.Client(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.CountTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecordUpload_RejectedTask(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rejected := model.Task{
		VoucherData:   `{"date":"2025-01-01"}`,
		DataType:      model.DataTypeJSON,
		Status:        model.TaskRejected,
		MissingFields: "amount,party,vchtype",
	}
	task, err := s.RecordUpload(ctx, "c1", "", rejected)
	require.NoError(t, err)

	pending, err := s.PendingTasks(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := s.RejectedTasks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, task.ID, all[0].ID)
	assert.Equal(t, "amount,party,vchtype", all[0].MissingFields)
}

func TestPendingTasks_OrderedAndScopedToClient(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	t1, err := s.RecordUpload(ctx, "c1", "", pendingTask("first"))
	require.NoError(t, err)
	_, err = s.RecordUpload(ctx, "c2", "", pendingTask("other client"))
	require.NoError(t, err)
	t3, err := s.RecordUpload(ctx, "c1", "", pendingTask("second"))
	require.NoError(t, err)

	tasks, err := s.PendingTasks(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, t1.ID, tasks[0].ID)
	assert.Equal(t, t3.ID, tasks[1].ID)
	assert.True(t, tasks[0].CreatedAt.Before(tasks[1].CreatedAt))
}

func TestPendingTasks_UnknownClientEmpty(t *testing.T) {
	s := createTestStore(t)

	tasks, err := s.PendingTasks(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestTask_UnknownID(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Task(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordUpload_InvalidDataTypeIsFault(t *testing.T) {
	s := createTestStore(t)

	task := model.Task{VoucherData: "x", DataType: "csv", Status: model.TaskPending}
	_, err := s.RecordUpload(context.Background(), "c1", "", task)
	assert.True(t, IsFault(err))
}
