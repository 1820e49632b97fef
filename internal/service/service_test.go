package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/haierkeys/fast-note-offline/internal/dao"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/dto"
	"github.com/haierkeys/fast-note-offline/internal/remote/dbremote"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/haierkeys/fast-note-offline/pkg/writequeue"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testUID = "user-1"

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

var errOffline = errors.New("network error: remote unreachable")

// faultyRemote 在数据库远端之上注入故障
// 直接调用嵌入的 Store 方法可模拟其他设备的写入
type faultyRemote struct {
	*dbremote.Store

	mu      sync.Mutex
	offline bool
	fail    map[string]error
	failID  map[string]error
	hook    func(method string)
	calls   map[string]int
}

// check 记录调用并返回注入的故障，ids 为本次写入涉及的记录
func (f *faultyRemote) check(method string, ids ...string) error {
	f.mu.Lock()
	f.calls[method]++
	hook := f.hook
	var err error
	if f.offline {
		err = errOffline
	} else if e, ok := f.fail[method]; ok {
		err = e
	}
	for _, id := range ids {
		if e, ok := f.failID[id]; ok && err == nil {
			err = e
		}
	}
	f.mu.Unlock()

	if hook != nil {
		hook(method)
	}
	return err
}

func (f *faultyRemote) setOffline(v bool) {
	f.mu.Lock()
	f.offline = v
	f.mu.Unlock()
}

func (f *faultyRemote) failWith(method string, err error) {
	f.mu.Lock()
	f.fail[method] = err
	f.mu.Unlock()
}

// failRecord 只让涉及 id 的写操作失败
func (f *faultyRemote) failRecord(id string, err error) {
	f.mu.Lock()
	f.failID[id] = err
	f.mu.Unlock()
}

func (f *faultyRemote) heal() {
	f.mu.Lock()
	f.offline = false
	f.fail = map[string]error{}
	f.failID = map[string]error{}
	f.mu.Unlock()
}

func (f *faultyRemote) setHook(h func(method string)) {
	f.mu.Lock()
	f.hook = h
	f.mu.Unlock()
}

func (f *faultyRemote) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *faultyRemote) Ping(ctx context.Context) error {
	if err := f.check("Ping"); err != nil {
		return err
	}
	return f.Store.Ping(ctx)
}

func (f *faultyRemote) ListNotes(ctx context.Context, uid string, since *time.Time) ([]*domain.RemoteNote, error) {
	if err := f.check("ListNotes"); err != nil {
		return nil, err
	}
	return f.Store.ListNotes(ctx, uid, since)
}

func (f *faultyRemote) UpsertNote(ctx context.Context, uid string, note *domain.RemoteNote) (*domain.RemoteNote, error) {
	if err := f.check("UpsertNote", note.ID); err != nil {
		return nil, err
	}
	return f.Store.UpsertNote(ctx, uid, note)
}

func (f *faultyRemote) DeleteNote(ctx context.Context, uid, id string) error {
	if err := f.check("DeleteNote", id); err != nil {
		return err
	}
	return f.Store.DeleteNote(ctx, uid, id)
}

func (f *faultyRemote) ListTags(ctx context.Context, uid string, since *time.Time) ([]*domain.RemoteTag, error) {
	if err := f.check("ListTags"); err != nil {
		return nil, err
	}
	return f.Store.ListTags(ctx, uid, since)
}

func (f *faultyRemote) UpsertTag(ctx context.Context, uid string, tag *domain.RemoteTag) (*domain.RemoteTag, error) {
	if err := f.check("UpsertTag", tag.ID); err != nil {
		return nil, err
	}
	return f.Store.UpsertTag(ctx, uid, tag)
}

func (f *faultyRemote) DeleteTag(ctx context.Context, uid, id string) error {
	if err := f.check("DeleteTag", id); err != nil {
		return err
	}
	return f.Store.DeleteTag(ctx, uid, id)
}

func (f *faultyRemote) ListNoteTags(ctx context.Context, uid string) ([]*domain.RemoteNoteTag, error) {
	if err := f.check("ListNoteTags"); err != nil {
		return nil, err
	}
	return f.Store.ListNoteTags(ctx, uid)
}

func (f *faultyRemote) AddNoteTag(ctx context.Context, uid, noteID, tagID string) error {
	if err := f.check("AddNoteTag", noteID, tagID); err != nil {
		return err
	}
	return f.Store.AddNoteTag(ctx, uid, noteID, tagID)
}

func (f *faultyRemote) RemoveNoteTag(ctx context.Context, uid, noteID, tagID string) error {
	if err := f.check("RemoveNoteTag", noteID, tagID); err != nil {
		return err
	}
	return f.Store.RemoveNoteTag(ctx, uid, noteID, tagID)
}

type fixture struct {
	store     *dao.Store
	remote    *faultyRemote
	clock     *timex.ManualClock
	gate      *SyncGate
	cfg       SyncServiceConfig
	buffer    *dao.FileDemoBuffer
	notes     NoteService
	tags      TagService
	sync      SyncService
	conflicts ConflictService
	migration MigrationService
	retention RetentionService
}

func newFixture(t *testing.T, opts ...SyncOption) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := zaptest.NewLogger(t)
	clock := timex.NewManualClock(epoch)

	db, err := dao.NewDBEngine(dao.DatabaseConfig{Type: "sqlite", Path: filepath.Join(dir, "local.db")})
	require.NoError(t, err)
	wq := writequeue.New(nil, nil)
	d := dao.New(db, dao.WithWriteQueue(wq), dao.WithClock(clock))
	require.NoError(t, d.Migrate())

	rdb, err := gorm.Open(sqlite.Open(filepath.Join(dir, "remote.db")+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	rs := dbremote.New(rdb, clock)
	require.NoError(t, rs.Migrate())

	t.Cleanup(func() {
		_ = wq.Shutdown(context.Background())
		_ = d.Close()
		if sqlDB, err := rdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := SyncServiceConfig{
		RetryAttempts:     2,
		RetryInitialDelay: time.Millisecond,
		RetryMultiplier:   2,
		Retention:         30 * 24 * time.Hour,
	}
	f := &fixture{
		store:  dao.NewStore(d),
		remote: &faultyRemote{Store: rs, fail: map[string]error{}, failID: map[string]error{}, calls: map[string]int{}},
		clock:  clock,
		gate:   NewSyncGate(),
		cfg:    cfg,
		buffer: dao.NewFileDemoBuffer(filepath.Join(dir, "demo.json")),
	}
	f.notes = NewNoteService(f.store, clock, log)
	f.tags = NewTagService(f.store, clock, log)
	f.sync = NewSyncService(f.store, f.remote, f.gate, cfg, clock, log, opts...)
	f.conflicts = NewConflictService(f.store, f.remote, f.gate, cfg, clock, log)
	f.migration = NewMigrationService(f.store, f.remote, f.buffer, nil, cfg, clock, log)
	f.retention = NewRetentionService(f.store, f.remote, cfg, clock, log)
	return f
}

func (f *fixture) createNote(t *testing.T, title, content string, tagIDs ...string) *domain.Note {
	t.Helper()
	n, err := f.notes.Create(context.Background(), testUID, &dto.NoteCreateRequest{Title: title, Content: content, TagIDs: tagIDs})
	require.NoError(t, err)
	return n
}

func (f *fixture) createTag(t *testing.T, name string) *domain.Tag {
	t.Helper()
	tag, err := f.tags.Create(context.Background(), testUID, &dto.TagCreateRequest{Name: name})
	require.NoError(t, err)
	return tag
}

func (f *fixture) mustSync(t *testing.T) *domain.SyncResult {
	t.Helper()
	res, err := f.sync.FullSync(context.Background(), testUID, domain.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func (f *fixture) note(t *testing.T, id string) *domain.Note {
	t.Helper()
	n, err := f.store.Notes().GetByID(context.Background(), testUID, id)
	require.NoError(t, err)
	return n
}

func (f *fixture) remoteNote(t *testing.T, id string) *domain.RemoteNote {
	t.Helper()
	all, err := f.remote.Store.ListNotes(context.Background(), testUID, nil)
	require.NoError(t, err)
	for _, n := range all {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// editRemotely 模拟其他设备修改笔记标题
func (f *fixture) editRemotely(t *testing.T, id, title string) *domain.RemoteNote {
	t.Helper()
	cur := f.remoteNote(t, id)
	require.NotNil(t, cur)
	f.clock.Advance(time.Second)
	cur.Title = title
	saved, err := f.remote.Store.UpsertNote(context.Background(), testUID, cur)
	require.NoError(t, err)
	return saved
}

// conflictOn 本地修改推送失败，同时远端被修改，产生一条冲突
func (f *fixture) conflictOn(t *testing.T, localTitle, serverTitle string) *domain.Note {
	t.Helper()
	ctx := context.Background()
	n := f.createNote(t, "Original", "<p>body</p>")
	f.mustSync(t)

	f.clock.Advance(time.Second)
	_, err := f.notes.Update(ctx, testUID, &dto.NoteUpdateRequest{ID: n.ID, Title: &localTitle})
	require.NoError(t, err)
	f.editRemotely(t, n.ID, serverTitle)

	f.remote.failWith("UpsertNote", errors.New("503 service unavailable"))
	res, err := f.sync.FullSync(ctx, testUID, domain.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 1, res.Conflicted)
	f.remote.heal()
	return n
}
