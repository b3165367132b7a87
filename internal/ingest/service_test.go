package ingest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tallybridge/internal/model"
	"github.com/roach88/tallybridge/internal/store"
	"github.com/roach88/tallybridge/internal/testutil"
)

type fixture struct {
	svc   *Service
	store *store.Store
	clock *testutil.DeterministicClock
}

func newFixture(t *testing.T, tokens ...string) fixture {
	t.Helper()
	clock := testutil.NewDeterministicClock(time.Time{}, time.Second)
	st, err := store.Open(filepath.Join(t.TempDir(), "backend.db"),
		store.WithClock(clock.Now),
		store.WithTokenGenerator(store.NewFixedTokenGenerator(tokens...)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := NewService(st, mustSchema(t),
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return fixture{svc: svc, store: st, clock: clock}
}

func (f fixture) register(t *testing.T, clientID string) model.Client {
	t.Helper()
	c, err := f.svc.Register(context.Background(), clientID, "")
	require.NoError(t, err)
	return c
}

func (f fixture) taskCount(t *testing.T) int {
	t.Helper()
	n, err := f.store.CountTasks(context.Background())
	require.NoError(t, err)
	return n
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t, "tok-c1")
	ctx := context.Background()
	f.register(t, "c1")

	c, err := f.svc.Authenticate(ctx, "tok-c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ClientID)

	_, err = f.svc.Authenticate(ctx, "")
	assert.True(t, IsAuth(err))
	assert.False(t, IsForbidden(err))

	_, err = f.svc.Authenticate(ctx, "wrong")
	assert.True(t, IsAuth(err))
}

func TestUpload_Pending(t *testing.T) {
	f := newFixture(t, "tok")
	ctx := context.Background()
	caller := f.register(t, "c1")

	res, err := f.svc.Upload(ctx, caller, UploadRequest{
		ClientID:    "c1",
		CompanyName: "ABC Enterprises",
		Payload:     `{"vchtype":"Sales","date":"2025-07-01","party":"ABC Enterprises","amount":1000}`,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, res.Status)
	assert.Empty(t, res.MissingFields)

	task, err := f.store.Task(ctx, res.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.DataTypeJSON, task.DataType, "empty data_type defaults to json")

	c, err := f.store.Client(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "ABC Enterprises", c.CompanyName)
}

func TestUpload_RejectedMissingAmount(t *testing.T) {
	f := newFixture(t, "tok")
	caller := f.register(t, "c1")

	res, err := f.svc.Upload(context.Background(), caller, UploadRequest{
		ClientID: "c1",
		DataType: model.DataTypeJSON,
		Payload:  `{"vchtype":"Sales","date":"2025-07-01","party":"ABC Enterprises"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskRejected, res.Status)
	assert.Equal(t, "amount", res.MissingFields)
	assert.Equal(t, 1, f.taskCount(t), "rejected uploads are still recorded")
}

func TestUpload_ClientMismatchIsForbiddenAndPersistsNothing(t *testing.T) {
	f := newFixture(t, "tok-a", "tok-b")
	caller := f.register(t, "a")
	f.register(t, "b")

	_, err := f.svc.Upload(context.Background(), caller, UploadRequest{
		ClientID: "b",
		Payload:  `{"vchtype":"x","date":"d","party":"p","amount":1}`,
	})
	require.Error(t, err)
	assert.True(t, IsForbidden(err))
	assert.Equal(t, 0, f.taskCount(t))
}

func TestUpload_MalformedJSONPersistsNothing(t *testing.T) {
	f := newFixture(t, "tok")
	caller := f.register(t, "c1")

	_, err := f.svc.Upload(context.Background(), caller, UploadRequest{
		ClientID:    "c1",
		CompanyName: "Renamed",
		Payload:     `{"vchtype":`,
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, f.taskCount(t))

	c, err := f.store.Client(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, c.CompanyName, "company must not change on a rejected request")
}

func TestUpload_XMLAlwaysPending(t *testing.T) {
	f := newFixture(t, "tok")
	caller := f.register(t, "c1")

	res, err := f.svc.Upload(context.Background(), caller, UploadRequest{
		ClientID: "c1",
		DataType: model.DataTypeXML,
		Payload:  "<ENVELOPE><BODY/></ENVELOPE>",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, res.Status)
}

func TestUpload_NormalizesCompanyName(t *testing.T) {
	f := newFixture(t, "tok")
	caller := f.register(t, "c1")

	_, err := f.svc.Upload(context.Background(), caller, UploadRequest{
		ClientID:    "c1",
		DataType:    model.DataTypeXML,
		CompanyName: "  Café Ltd ",
		Payload:     "<A/>",
	})
	require.NoError(t, err)

	c, err := f.store.Client(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Café Ltd", c.CompanyName)
}

func TestPendingTasks_OnlyCallerPending(t *testing.T) {
	f := newFixture(t, "tok-a", "tok-b")
	ctx := context.Background()
	a := f.register(t, "a")
	b := f.register(t, "b")

	good := `{"vchtype":"x","date":"d","party":"p","amount":1}`
	first, err := f.svc.Upload(ctx, a, UploadRequest{ClientID: "a", Payload: good})
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, a, UploadRequest{ClientID: "a", Payload: `{}`})
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, b, UploadRequest{ClientID: "b", Payload: good})
	require.NoError(t, err)
	second, err := f.svc.Upload(ctx, a, UploadRequest{ClientID: "a", DataType: model.DataTypeXML, Payload: "<A/>"})
	require.NoError(t, err)

	tasks, err := f.svc.PendingTasks(ctx, a)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first.TaskID, tasks[0].ID)
	assert.Equal(t, second.TaskID, tasks[1].ID)
}

func TestReportSync(t *testing.T) {
	f := newFixture(t, "tok")
	ctx := context.Background()
	caller := f.register(t, "c1")

	err := f.svc.ReportSync(ctx, caller, SyncReport{LastSync: "2025-07-01T10:00:00Z", TallyAccessOK: true})
	require.NoError(t, err)

	c, err := f.store.Client(ctx, "c1")
	require.NoError(t, err)
	want := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	assert.True(t, want.Equal(*c.LastSync))
	assert.True(t, want.Equal(*c.LastTallyAccess))

	// Naive isoformat timestamps are read as UTC; a failed access keeps the old value.
	err = f.svc.ReportSync(ctx, caller, SyncReport{ClientID: "c1", LastSync: "2025-07-02T08:30:00.123456"})
	require.NoError(t, err)

	c, err = f.store.Client(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 7, 2, 8, 30, 0, 123456000, time.UTC).Equal(*c.LastSync))
	assert.True(t, want.Equal(*c.LastTallyAccess))
}

func TestReportSync_DefaultsToNow(t *testing.T) {
	f := newFixture(t, "tok")
	ctx := context.Background()
	caller := f.register(t, "c1")

	expected := f.clock.Current()
	require.NoError(t, f.svc.ReportSync(ctx, caller, SyncReport{}))

	c, err := f.store.Client(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, c.LastSync)
	assert.True(t, expected.Equal(*c.LastSync))
	assert.Nil(t, c.LastTallyAccess)
}

func TestReportSync_Errors(t *testing.T) {
	f := newFixture(t, "tok")
	caller := f.register(t, "c1")

	err := f.svc.ReportSync(context.Background(), caller, SyncReport{ClientID: "other"})
	assert.True(t, IsForbidden(err))

	err = f.svc.ReportSync(context.Background(), caller, SyncReport{LastSync: "yesterday"})
	assert.True(t, IsValidation(err))
}

func TestRegister(t *testing.T) {
	f := newFixture(t, "tok-1", "tok-2")
	ctx := context.Background()

	c, err := f.svc.Register(ctx, "c1", "Acme")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", c.Token)

	again, err := f.svc.Register(ctx, "c1", "")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", again.Token)
	assert.Equal(t, "Acme", again.CompanyName)

	_, err = f.svc.Register(ctx, "  ", "x")
	assert.True(t, IsValidation(err))
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, "tok-a", "tok-b")
	ctx := context.Background()
	a := f.register(t, "a")
	f.register(t, "b")

	_, err := f.svc.Upload(ctx, a, UploadRequest{ClientID: "a", Payload: `{"date":"d","party":"p"}`})
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, a, UploadRequest{ClientID: "a", Payload: `{"vchtype":"x","date":"d","party":"p"}`})
	require.NoError(t, err)

	d, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Len(t, d.Clients, 2)
	assert.Equal(t, "a", d.Clients[0].ClientID)
	assert.Equal(t, []string{"amount,vchtype", "amount"}, d.Clients[0].Rejected)
	assert.Equal(t, "b", d.Clients[1].ClientID)
	assert.Equal(t, []string{}, d.Clients[1].Rejected)
}
