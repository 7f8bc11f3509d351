package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/staysync/internal/fixtures"
	"github.com/mmeshcher/staysync/internal/model"
	"github.com/mmeshcher/staysync/internal/remote"
	"github.com/mmeshcher/staysync/internal/repository"
)

type stubRemote struct {
	mu        sync.Mutex
	data      map[model.Collection]map[string]json.RawMessage
	scanErr   error
	upsertErr error
	block     bool
	upserts   int
}

func newStubRemote() *stubRemote {
	return &stubRemote{data: make(map[model.Collection]map[string]json.RawMessage)}
}

func (s *stubRemote) Scan(ctx context.Context, c model.Collection) ([]model.Document, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanErr != nil {
		return nil, s.scanErr
	}

	ids := make([]string, 0, len(s.data[c]))
	for id := range s.data[c] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]model.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, model.Document{ID: id, Body: s.data[c][id]})
	}
	return docs, nil
}

func (s *stubRemote) Upsert(_ context.Context, c model.Collection, docs []model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if s.data[c] == nil {
		s.data[c] = make(map[string]json.RawMessage)
	}
	for _, d := range docs {
		s.data[c][d.ID] = d.Body
	}
	return nil
}

func (s *stubRemote) Ping(context.Context) error { return nil }
func (s *stubRemote) Close() error              { return nil }

func dialStub(r remote.Store) Dialer {
	return func(context.Context, model.RemoteParams) (remote.Store, error) {
		return r, nil
	}
}

func newLocal(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "staysync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func demoSet(t *testing.T) fixtures.Set {
	t.Helper()
	set, err := fixtures.Demo()
	require.NoError(t, err)
	return set
}

func doc(id, body string) model.Document {
	return model.Document{ID: id, Body: json.RawMessage(body)}
}

func ids(docs []model.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestLoad_LocalSeedsOnce(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	demo := demoSet(t)
	m := New(ctx, local, model.DefaultSettings(), Options{Fixtures: demo})

	first, report, err := m.Load(ctx, model.CollectionRooms)
	require.NoError(t, err)
	assert.True(t, report.Seeded)
	assert.Equal(t, model.DataSourceLocal, report.Source)
	assert.Equal(t, ids(demo.Documents(model.CollectionRooms)), ids(first))

	second, report, err := m.Load(ctx, model.CollectionRooms)
	require.NoError(t, err)
	assert.False(t, report.Seeded)
	assert.Equal(t, ids(first), ids(second))

	n, err := local.Count(ctx, model.CollectionRooms)
	require.NoError(t, err)
	assert.Equal(t, int64(len(first)), n)
}

func TestLoad_LocalWithoutDemoIsEmpty(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceLocal}, Options{Fixtures: demoSet(t)})

	docs, report, err := m.Load(ctx, model.CollectionGuests)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NotNil(t, docs)
	assert.False(t, report.Seeded)
	assert.False(t, report.Degraded())
}

func TestLoad_UnknownCollection(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, newLocal(t), model.DefaultSettings(), Options{})

	_, _, err := m.Load(ctx, model.Collection("invoices"))
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestLoad_CloudSeedsRemoteOnly(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	rs := newStubRemote()
	settings := model.Settings{DataSource: model.DataSourceCloud, DemoMode: true}
	m := New(ctx, local, settings, Options{Fixtures: demoSet(t), Dialer: dialStub(rs)})

	docs, report, err := m.Load(ctx, model.CollectionStaff)
	require.NoError(t, err)
	assert.Equal(t, model.DataSourceCloud, report.Source)
	assert.True(t, report.Seeded)
	assert.Len(t, rs.data[model.CollectionStaff], len(docs))

	n, err := local.Count(ctx, model.CollectionStaff)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoad_CloudReturnsRemoteData(t *testing.T) {
	ctx := context.Background()
	rs := newStubRemote()
	require.NoError(t, rs.Upsert(ctx, model.CollectionRooms, []model.Document{doc("r9", `{"id":"r9","number":"901"}`)}))

	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceCloud, DemoMode: true},
		Options{Fixtures: demoSet(t), Dialer: dialStub(rs)})

	docs, report, err := m.Load(ctx, model.CollectionRooms)
	require.NoError(t, err)
	assert.False(t, report.Seeded)
	assert.Equal(t, []string{"r9"}, ids(docs))
}

func TestLoad_CloudFailureFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	require.NoError(t, local.BulkInsert(ctx, model.CollectionRooms, []model.Document{doc("r1", `{"id":"r1"}`)}))

	rs := newStubRemote()
	rs.scanErr = errors.New("network unreachable")
	m := New(ctx, local, model.Settings{DataSource: model.DataSourceCloud}, Options{Dialer: dialStub(rs)})

	docs, report, err := m.Load(ctx, model.CollectionRooms)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids(docs))
	assert.Equal(t, model.DataSourceLocal, report.Source)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, WarningCloudReadFallback, report.Warnings[0].Kind)
	assert.Equal(t, model.CollectionRooms, report.Warnings[0].Collection)
}

func TestLoad_CloudNotConfiguredFallsBack(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceCloud, DemoMode: true},
		Options{Fixtures: demoSet(t)})

	docs, report, err := m.Load(ctx, model.CollectionMaintenance)
	require.NoError(t, err)
	assert.NotEmpty(t, docs)
	assert.True(t, report.Seeded)
	require.Len(t, report.Warnings, 1)
	assert.ErrorIs(t, &report.Warnings[0], remote.ErrNotConfigured)
}

func TestLoad_CloudTimeout(t *testing.T) {
	ctx := context.Background()
	rs := newStubRemote()
	rs.block = true
	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceCloud},
		Options{Dialer: dialStub(rs), RemoteTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, report, err := m.Load(ctx, model.CollectionGuests)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, report.Warnings, 1)
	assert.ErrorIs(t, &report.Warnings[0], context.DeadlineExceeded)
}

func TestSave_LocalReplacesCollection(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceLocal}, Options{})

	_, err := m.Save(ctx, model.CollectionGuests, []model.Document{doc("g1", `{"id":"g1"}`), doc("g2", `{"id":"g2"}`)})
	require.NoError(t, err)

	report, err := m.Save(ctx, model.CollectionGuests, []model.Document{doc("g3", `{"id":"g3"}`)})
	require.NoError(t, err)
	assert.False(t, report.Degraded())

	docs, _, err := m.Load(ctx, model.CollectionGuests)
	require.NoError(t, err)
	assert.Equal(t, []string{"g3"}, ids(docs))
}

func TestSave_DuplicateKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceLocal}, Options{})

	_, err := m.Save(ctx, model.CollectionGuests, []model.Document{doc("g1", `{"id":"g1"}`)})
	require.NoError(t, err)

	_, err = m.Save(ctx, model.CollectionGuests, []model.Document{doc("g2", `{"id":"g2"}`), doc("g2", `{"id":"g2"}`)})
	require.ErrorIs(t, err, repository.ErrDuplicateKey)

	docs, _, err := m.Load(ctx, model.CollectionGuests)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, ids(docs))
}

func TestSave_CloudFailureWarnsOnce(t *testing.T) {
	ctx := context.Background()
	rs := newStubRemote()
	rs.upsertErr = errors.New("connection reset by peer")
	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceCloud}, Options{Dialer: dialStub(rs)})

	docs := []model.Document{doc("t1", `{"id":"t1"}`), doc("t2", `{"id":"t2"}`), doc("t3", `{"id":"t3"}`)}
	report, err := m.Save(ctx, model.CollectionTransactions, docs)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, WarningCloudWriteFailed, report.Warnings[0].Kind)

	rs.scanErr = errors.New("still offline")
	loaded, _, err := m.Load(ctx, model.CollectionTransactions)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, ids(loaded))
}

func TestSave_CloudMirrorsWrites(t *testing.T) {
	ctx := context.Background()
	rs := newStubRemote()
	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceCloud}, Options{Dialer: dialStub(rs)})

	report, err := m.Save(ctx, model.CollectionHistory, []model.Document{doc("h1", `{"id":"h1"}`)})
	require.NoError(t, err)
	assert.Equal(t, model.DataSourceCloud, report.Source)
	assert.False(t, report.Degraded())
	assert.JSONEq(t, `{"id":"h1"}`, string(rs.data[model.CollectionHistory]["h1"]))
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	now := func() time.Time { return time.Date(2023, 10, 28, 12, 0, 0, 0, time.UTC) }
	src := New(ctx, newLocal(t), model.DefaultSettings(), Options{Fixtures: demoSet(t), Now: now})

	for _, c := range model.Collections {
		_, _, err := src.Load(ctx, c)
		require.NoError(t, err)
	}

	snap, err := src.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SnapshotVersion, snap.Version)
	assert.Equal(t, "2023-10-28T12:00:00.000Z", snap.Timestamp)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded model.Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))

	dst := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceLocal}, Options{})
	restored, err := dst.ImportAll(ctx, &decoded)
	require.NoError(t, err)
	assert.Equal(t, model.Collections, restored)

	for _, c := range model.Collections {
		want, _, err := src.Load(ctx, c)
		require.NoError(t, err)
		got, _, err := dst.Load(ctx, c)
		require.NoError(t, err)

		require.Equal(t, ids(want), ids(got), c)
		for i := range want {
			assert.JSONEq(t, string(want[i].Body), string(got[i].Body))
		}
	}
}

func TestImport_InvalidLeavesDataUntouched(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceLocal}, Options{})
	_, err := m.Save(ctx, model.CollectionRooms, []model.Document{doc("r1", `{"id":"r1"}`)})
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
	}{
		{name: "no data", body: `{"version":"1.0"}`},
		{name: "not an array", body: `{"data":{"staysync_rooms":{"id":"x"}}}`},
		{name: "missing id", body: `{"data":{"staysync_guests":[{"name":"A"}],"staysync_rooms":[]}}`},
		{name: "price of wrong type", body: `{"data":{"staysync_rooms":[{"id":"r2","number":"101","price":"abc"}]}}`},
		{name: "bad entity in later collection", body: `{"data":{"staysync_rooms":[{"id":"r2"}],"staysync_staff":[{"id":"s1","pin":1234}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var snap model.Snapshot
			require.NoError(t, json.Unmarshal([]byte(tt.body), &snap))

			_, err := m.ImportAll(ctx, &snap)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)

			docs, _, err := m.Load(ctx, model.CollectionRooms)
			require.NoError(t, err)
			assert.Equal(t, []string{"r1"}, ids(docs))

			rooms, _, err := LoadAs[model.Room](ctx, m, model.CollectionRooms)
			require.NoError(t, err)
			assert.Len(t, rooms, 1)
		})
	}
}

func TestImport_AbsentCollectionsUntouched(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceLocal}, Options{})
	_, err := m.Save(ctx, model.CollectionStaff, []model.Document{doc("s1", `{"id":"s1"}`)})
	require.NoError(t, err)
	_, err = m.Save(ctx, model.CollectionRooms, []model.Document{doc("r1", `{"id":"r1"}`)})
	require.NoError(t, err)

	snap := model.Snapshot{Data: map[string]json.RawMessage{
		"staysync_rooms": json.RawMessage(`[{"id":"r2"}]`),
	}}
	restored, err := m.ImportAll(ctx, &snap)
	require.NoError(t, err)
	assert.Equal(t, []model.Collection{model.CollectionRooms}, restored)

	rooms, _, err := m.Load(ctx, model.CollectionRooms)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, ids(rooms))

	staff, _, err := m.Load(ctx, model.CollectionStaff)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids(staff))
}

func TestWipeAll(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	rs := newStubRemote()
	m := New(ctx, local, model.Settings{DataSource: model.DataSourceCloud}, Options{Dialer: dialStub(rs)})

	_, err := m.Save(ctx, model.CollectionRooms, []model.Document{doc("r1", `{"id":"r1"}`)})
	require.NoError(t, err)

	require.NoError(t, m.WipeAll(ctx))

	for _, c := range model.Collections {
		n, err := local.Count(ctx, c)
		require.NoError(t, err)
		assert.Zero(t, n, c)
	}
	assert.Len(t, rs.data[model.CollectionRooms], 1)
}

func TestReconfigure_SwitchesToRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	local := newLocal(t)
	m := New(ctx, local, model.Settings{DataSource: model.DataSourceLocal}, Options{Fixtures: demoSet(t)})
	t.Cleanup(func() { _ = m.Close() })

	settings := model.Settings{
		DataSource: model.DataSourceCloud,
		DemoMode:   true,
		Remote:     model.RemoteParams{Driver: remote.DriverRedis, URI: mr.Addr()},
	}
	reports, err := m.Reconfigure(ctx, settings)
	require.NoError(t, err)
	require.Len(t, reports, len(model.Collections))

	for _, c := range model.Collections {
		assert.Equal(t, model.DataSourceCloud, reports[c].Source, c)
		assert.True(t, reports[c].Seeded, c)
		assert.True(t, mr.Exists("staysync:"+string(c)), c)
	}

	stored, found, err := local.LoadSettings(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, settings, stored)
	assert.Equal(t, settings, m.Settings())
}

func TestReconfigure_UnreachableRemoteWarns(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceLocal}, Options{
		Dialer: func(context.Context, model.RemoteParams) (remote.Store, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	})

	reports, err := m.Reconfigure(ctx, model.Settings{DataSource: model.DataSourceCloud})
	require.NoError(t, err)
	for _, c := range model.Collections {
		assert.Equal(t, model.DataSourceLocal, reports[c].Source)
		require.Len(t, reports[c].Warnings, 1)
		assert.Equal(t, WarningCloudReadFallback, reports[c].Warnings[0].Kind)
	}
}

func TestReconfigure_RejectsUnknownSource(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, newLocal(t), model.DefaultSettings(), Options{})

	_, err := m.Reconfigure(ctx, model.Settings{DataSource: "Floppy"})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestLoadSettings_FirstRunStoresFallback(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)

	got, err := LoadSettings(ctx, local, model.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), got)

	custom := model.Settings{DataSource: model.DataSourceCloud, Remote: model.RemoteParams{Driver: "http", URI: "localhost:9"}}
	require.NoError(t, local.SaveSettings(ctx, custom))

	got, err = LoadSettings(ctx, local, model.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, custom, got)
}

func TestTypedHelpers(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, newLocal(t), model.Settings{DataSource: model.DataSourceLocal}, Options{})

	rooms := []model.Room{
		{ID: "r1", Number: "101", Type: model.RoomTypeSingle, Status: model.RoomStatusAvailable, Price: 90},
		{ID: "r2", Number: "102", Type: model.RoomTypeDouble, Status: model.RoomStatusDirty, Price: 120},
	}
	_, err := SaveAs(ctx, m, model.CollectionRooms, rooms)
	require.NoError(t, err)

	got, _, err := LoadAs[model.Room](ctx, m, model.CollectionRooms)
	require.NoError(t, err)
	assert.Equal(t, rooms, got)
}
