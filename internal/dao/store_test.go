package dao

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/haierkeys/fast-note-offline/pkg/writequeue"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUID = "user-1"

var epoch = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *timex.ManualClock) {
	t.Helper()
	db, err := NewDBEngine(DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "local.db"),
	})
	require.NoError(t, err)

	wq := writequeue.New(nil, nil)
	clock := timex.NewManualClock(epoch)
	d := New(db, WithWriteQueue(wq), WithClock(clock))
	require.NoError(t, d.Migrate())

	t.Cleanup(func() {
		_ = wq.Shutdown(context.Background())
		_ = d.Close()
	})
	return NewStore(d), clock
}

func newNote(id, title, content string) *domain.Note {
	return &domain.Note{ID: id, UserID: testUID, Title: title, Content: content}
}

func TestNoteUpsertPendingBumpsVersion(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	n, err := s.Notes().UpsertPending(ctx, newNote("n1", "a", "body"), domain.PendingOpUpsert)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusPending, n.Sync.Status)
	assert.Equal(t, int64(1), n.Sync.LocalVersion)
	assert.True(t, n.Sync.NeverSynced())

	clock.Advance(time.Second)
	n.Title = "b"
	_, err = s.Notes().UpsertPending(ctx, n, domain.PendingOpUpsert)
	require.NoError(t, err)

	got, err := s.Notes().GetByID(ctx, testUID, "n1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Title)
	assert.Equal(t, int64(2), got.Sync.LocalVersion)
	assert.Equal(t, domain.PendingOpUpsert, got.Sync.Op)
	assert.Equal(t, epoch.Add(time.Second).UnixMilli(), got.Sync.LocalUpdatedAt.UnixMilli())
	assert.Equal(t, epoch.UnixMilli(), got.CreatedAt.UnixMilli())

	_, err = s.Notes().GetByID(ctx, testUID, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNoteMarkSyncedOnlyWhenVersionMatches(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	n, err := s.Notes().UpsertPending(ctx, newNote("n1", "a", ""), domain.PendingOpUpsert)
	require.NoError(t, err)
	pushed := n.Sync.LocalVersion

	// 推送期间又有新的本地修改
	n.Title = "edited during push"
	_, err = s.Notes().UpsertPending(ctx, n, domain.PendingOpUpsert)
	require.NoError(t, err)

	server := epoch.Add(5 * time.Second)
	require.NoError(t, s.Notes().MarkSynced(ctx, testUID, "n1", pushed, server))

	got, err := s.Notes().GetByID(ctx, testUID, "n1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusPending, got.Sync.Status)
	assert.Equal(t, "edited during push", got.Title)
	require.NotNil(t, got.Sync.ServerUpdatedAt)
	assert.Equal(t, server.UnixMilli(), got.Sync.ServerUpdatedAt.UnixMilli())

	clock.Advance(time.Minute)
	require.NoError(t, s.Notes().MarkSynced(ctx, testUID, "n1", got.Sync.LocalVersion, server.Add(time.Minute)))
	got, err = s.Notes().GetByID(ctx, testUID, "n1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSynced, got.Sync.Status)
	assert.Equal(t, domain.PendingOpNone, got.Sync.Op)
	assert.False(t, got.Sync.LocalUpdatedAt.After(*got.Sync.ServerUpdatedAt))
	require.NotNil(t, got.Sync.LastSyncedAt)
}

func TestNoteSearchOrdering(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	for _, n := range []*domain.Note{
		newNote("n1", "Groceries", "milk"),
		newNote("n2", "Meeting", "discuss MILK prices"),
		newNote("n3", "Travel", "pack bags"),
	} {
		clock.Advance(time.Second)
		_, err := s.Notes().UpsertPending(ctx, n, domain.PendingOpUpsert)
		require.NoError(t, err)
	}
	pinned := newNote("n4", "pinned milk list", "")
	pinned.Pinned = true
	clock.Advance(-10 * time.Second)
	_, err := s.Notes().UpsertPending(ctx, pinned, domain.PendingOpUpsert)
	require.NoError(t, err)

	got, err := s.Notes().Search(ctx, testUID, "Milk")
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, n := range got {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"n4", "n2", "n1"}, ids)

	all, err := s.Notes().Search(ctx, testUID, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestNoteListDeletedOrder(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n := newNote(fmt.Sprintf("n%d", i), "t", "")
		at := clock.Advance(time.Minute)
		n.DeletedAt = &at
		_, err := s.Notes().UpsertPending(ctx, n, domain.PendingOpUpsert)
		require.NoError(t, err)
	}
	_, err := s.Notes().UpsertPending(ctx, newNote("live", "t", ""), domain.PendingOpUpsert)
	require.NoError(t, err)

	deleted, err := s.Notes().ListDeleted(ctx, testUID)
	require.NoError(t, err)
	require.Len(t, deleted, 3)
	assert.Equal(t, "n3", deleted[0].ID)
	assert.Equal(t, "n1", deleted[2].ID)

	count, err := s.Notes().CountDeleted(ctx, testUID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	old, err := s.Notes().ListDeletedBefore(ctx, testUID, epoch.Add(2*time.Minute+time.Second))
	require.NoError(t, err)
	assert.Len(t, old, 2)
}

func TestTagNamesAreCaseInsensitiveUnique(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Tags().UpsertPending(ctx, &domain.Tag{ID: "t1", UserID: testUID, Name: "Work", Color: domain.TagColorBlue}, domain.PendingOpUpsert)
	require.NoError(t, err)

	_, err = s.Tags().UpsertPending(ctx, &domain.Tag{ID: "t2", UserID: testUID, Name: "  work "}, domain.PendingOpUpsert)
	assert.ErrorIs(t, err, domain.ErrDuplicateTagName)

	got, err := s.Tags().GetByName(ctx, testUID, "WORK")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, domain.TagColorBlue, got.Color)

	// 改名为自身的大小写变体是允许的
	got.Name = "WORK"
	_, err = s.Tags().UpsertPending(ctx, got, domain.PendingOpUpsert)
	require.NoError(t, err)
}

func TestNoteTagLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Notes().UpsertPending(ctx, newNote("n1", "a", ""), domain.PendingOpUpsert)
	require.NoError(t, err)
	_, err = s.Tags().UpsertPending(ctx, &domain.Tag{ID: "t1", UserID: testUID, Name: "x"}, domain.PendingOpUpsert)
	require.NoError(t, err)

	assert.ErrorIs(t, s.NoteTags().AddPending(ctx, testUID, "n1", "missing"), domain.ErrNotFound)

	require.NoError(t, s.NoteTags().AddPending(ctx, testUID, "n1", "t1"))
	n, err := s.Notes().GetByID(ctx, testUID, "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, n.TagIDs())

	// 未同步过的关联直接删除
	require.NoError(t, s.NoteTags().RemovePending(ctx, testUID, "n1", "t1"))
	_, err = s.NoteTags().Get(ctx, testUID, "n1", "t1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.NoteTags().ApplyRemote(ctx, testUID, "n1", "t1", epoch))
	require.NoError(t, s.NoteTags().RemovePending(ctx, testUID, "n1", "t1"))
	l, err := s.NoteTags().Get(ctx, testUID, "n1", "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.PendingOpDelete, l.Sync.Op)

	n, err = s.Notes().GetByID(ctx, testUID, "n1")
	require.NoError(t, err)
	assert.Empty(t, n.Tags)

	// 撤销删除恢复为 synced
	require.NoError(t, s.NoteTags().AddPending(ctx, testUID, "n1", "t1"))
	l, err = s.NoteTags().Get(ctx, testUID, "n1", "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSynced, l.Sync.Status)
}

func TestReassignTag(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"n1", "n2"} {
		_, err := s.Notes().UpsertPending(ctx, newNote(id, id, ""), domain.PendingOpUpsert)
		require.NoError(t, err)
	}
	_, err := s.Tags().UpsertPending(ctx, &domain.Tag{ID: "local", UserID: testUID, Name: "a"}, domain.PendingOpUpsert)
	require.NoError(t, err)
	_, err = s.Tags().UpsertPending(ctx, &domain.Tag{ID: "remote", UserID: testUID, Name: "b"}, domain.PendingOpUpsert)
	require.NoError(t, err)
	require.NoError(t, s.NoteTags().AddPending(ctx, testUID, "n1", "local"))
	require.NoError(t, s.NoteTags().AddPending(ctx, testUID, "n2", "local"))
	require.NoError(t, s.NoteTags().AddPending(ctx, testUID, "n2", "remote"))

	require.NoError(t, s.NoteTags().ReassignTag(ctx, testUID, "local", "remote"))

	links, err := s.NoteTags().ListAll(ctx, testUID)
	require.NoError(t, err)
	keys := make([]string, 0, len(links))
	for _, l := range links {
		keys = append(keys, l.Key())
	}
	assert.ElementsMatch(t, []string{"n1:remote", "n2:remote"}, keys)
}

func TestConflictOverlayDoesNotTouchRow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	local, err := s.Notes().UpsertPending(ctx, newNote("n1", "Draft", ""), domain.PendingOpUpsert)
	require.NoError(t, err)

	c := &domain.Conflict{
		UserID:     testUID,
		EntityID:   "n1",
		DetectedAt: epoch,
		Payload: &domain.NoteConflict{
			Local:  local,
			Server: &domain.RemoteNote{ID: "n1", UserID: testUID, Title: "Final", UpdatedAt: epoch.Add(time.Hour)},
		},
	}
	require.NoError(t, s.Conflicts().Save(ctx, c))

	got, err := s.Notes().GetByID(ctx, testUID, "n1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusConflict, got.Sync.Status)
	assert.Equal(t, "Draft", got.Title)

	pending, err := s.Notes().ListPending(ctx, testUID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.SyncStatusPending, pending[0].Sync.Status)

	stored, err := s.Conflicts().Get(ctx, testUID, "n1")
	require.NoError(t, err)
	require.NotNil(t, stored.Note())
	assert.Equal(t, "Final", stored.Note().Server.Title)
	assert.Equal(t, "Draft", stored.Note().Local.Title)

	require.NoError(t, s.Conflicts().Delete(ctx, testUID, "n1"))
	_, err = s.Conflicts().Get(ctx, testUID, "n1")
	assert.ErrorIs(t, err, domain.ErrConflictNotFound)
}

func TestIntentRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	intent := &domain.ResolutionIntent{
		ID:         "i1",
		UserID:     testUID,
		EntityType: domain.EntityTag,
		EntityID:   "t1",
		Choice:     domain.ResolveBoth,
		CopyID:     "t1-copy",
		Conflict: &domain.Conflict{
			UserID:   testUID,
			EntityID: "t1",
			Payload: &domain.TagConflict{
				Local:  &domain.Tag{ID: "t1", Name: "mine"},
				Server: &domain.RemoteTag{ID: "t1", Name: "theirs"},
			},
		},
	}
	require.NoError(t, s.Intents().Create(ctx, intent))
	require.NoError(t, s.Intents().RecordFailure(ctx, testUID, "i1", errors.New("503 Service Unavailable")))

	list, err := s.Intents().List(ctx, testUID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Attempts)
	assert.Equal(t, "t1-copy", list[0].CopyID)
	require.NotNil(t, list[0].Conflict.Tag())
	assert.Equal(t, "theirs", list[0].Conflict.Tag().Server.Name)

	require.NoError(t, s.Intents().Delete(ctx, testUID, "i1"))
	list, err = s.Intents().List(ctx, testUID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTransactionRollsBack(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Transaction(ctx, testUID, func(ctx context.Context) error {
		if _, err := s.Notes().UpsertPending(ctx, newNote("n1", "a", ""), domain.PendingOpUpsert); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := s.Notes().Count(ctx, testUID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCheckpoint(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	cp, err := s.Checkpoints().Get(ctx, testUID)
	require.NoError(t, err)
	assert.Nil(t, cp.Pull.Tags)
	assert.Nil(t, cp.Pull.Notes)

	tagsAt := epoch.Add(time.Minute)
	require.NoError(t, s.Checkpoints().SavePullCursor(ctx, testUID, domain.PullCursor{Tags: &tagsAt, Notes: &epoch}))
	// nil 字段不覆盖已保存的游标
	notesAt := epoch.Add(time.Hour)
	require.NoError(t, s.Checkpoints().SavePullCursor(ctx, testUID, domain.PullCursor{Notes: &notesAt}))
	require.NoError(t, s.Checkpoints().SaveResult(ctx, testUID, &domain.SyncResult{
		Trigger: domain.TriggerManual, Pushed: 2, StartedAt: epoch, FinishedAt: epoch.Add(time.Second),
	}))

	cp, err = s.Checkpoints().Get(ctx, testUID)
	require.NoError(t, err)
	require.NotNil(t, cp.Pull.Tags)
	require.NotNil(t, cp.Pull.Notes)
	assert.Equal(t, tagsAt.UnixMilli(), cp.Pull.Tags.UnixMilli())
	assert.Equal(t, notesAt.UnixMilli(), cp.Pull.Notes.UnixMilli())
	require.NotNil(t, cp.LastResult)
	assert.Equal(t, 2, cp.LastResult.Pushed)
	require.NotNil(t, cp.LastSyncAt)
}

func snapshotOf(notes, tags int) *domain.RemoteSnapshot {
	snap := &domain.RemoteSnapshot{FetchedAt: epoch.Add(time.Hour)}
	for i := 0; i < tags; i++ {
		snap.Tags = append(snap.Tags, &domain.RemoteTag{
			ID: fmt.Sprintf("t%d", i), Name: fmt.Sprintf("Tag %d", i), Color: "green",
			CreatedAt: epoch, UpdatedAt: epoch.Add(time.Duration(i) * time.Second),
		})
	}
	for i := 0; i < notes; i++ {
		snap.Notes = append(snap.Notes, &domain.RemoteNote{
			ID: fmt.Sprintf("n%d", i), Title: fmt.Sprintf("note %d", i), Pinned: i%3 == 0,
			CreatedAt: epoch, UpdatedAt: epoch.Add(time.Duration(i) * time.Minute),
		})
		if tags > 0 {
			snap.NoteTags = append(snap.NoteTags, &domain.RemoteNoteTag{
				NoteID: fmt.Sprintf("n%d", i), TagID: fmt.Sprintf("t%d", i%tags),
			})
		}
	}
	// 指向不存在笔记的关联被忽略
	snap.NoteTags = append(snap.NoteTags, &domain.RemoteNoteTag{NoteID: "ghost", TagID: "t0"})
	return snap
}

type observed struct {
	notes []*domain.Note
	tags  []*domain.Tag
	links []*domain.NoteTag
}

func observe(t *testing.T, s *Store) observed {
	ctx := context.Background()
	notes, err := s.Notes().ListActive(ctx, testUID)
	require.NoError(t, err)
	tags, err := s.Tags().List(ctx, testUID)
	require.NoError(t, err)
	links, err := s.NoteTags().ListAll(ctx, testUID)
	require.NoError(t, err)
	return observed{notes: notes, tags: tags, links: links}
}

func TestHydrateReplacesLocalState(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Notes().UpsertPending(ctx, newNote("stale", "x", ""), domain.PendingOpUpsert)
	require.NoError(t, err)

	snap := snapshotOf(4, 2)
	require.NoError(t, s.Hydrate(ctx, testUID, snap))

	o := observe(t, s)
	assert.Len(t, o.notes, 4)
	assert.Len(t, o.tags, 2)
	assert.Len(t, o.links, 4)
	for _, n := range o.notes {
		assert.Equal(t, domain.SyncStatusSynced, n.Sync.Status)
		assert.NotEqual(t, "stale", n.ID)
	}

	pending, err := s.PendingCount(ctx, testUID)
	require.NoError(t, err)
	assert.Zero(t, pending)

	cp, err := s.Checkpoints().Get(ctx, testUID)
	require.NoError(t, err)
	want := snap.Cursor()
	require.NotNil(t, cp.Pull.Tags)
	require.NotNil(t, cp.Pull.Notes)
	assert.Equal(t, want.Tags.UnixMilli(), cp.Pull.Tags.UnixMilli())
	assert.Equal(t, want.Notes.UnixMilli(), cp.Pull.Notes.UnixMilli())
	assert.True(t, cp.Pull.Tags.Before(*cp.Pull.Notes), "tag cursor does not follow the newer notes")
	require.NotNil(t, cp.HydratedAt)
}

// hydrating the same snapshot twice yields identical observable state
func TestHydrateIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15

	properties := gopter.NewProperties(parameters)

	properties.Property("hydrate(s); hydrate(s) observes the same as hydrate(s)", prop.ForAll(
		func(notes, tags int) bool {
			s, _ := newTestStore(t)
			ctx := context.Background()
			snap := snapshotOf(notes, tags)

			if err := s.Hydrate(ctx, testUID, snap); err != nil {
				return false
			}
			first := observe(t, s)
			if err := s.Hydrate(ctx, testUID, snap); err != nil {
				return false
			}
			second := observe(t, s)
			return assert.ObjectsAreEqual(first, second) && len(first.notes) == notes
		},
		gen.IntRange(0, 12),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}

func TestClearUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Hydrate(ctx, testUID, snapshotOf(3, 1)))
	_, err := s.Notes().UpsertPending(ctx, &domain.Note{ID: "other", UserID: "user-2"}, domain.PendingOpUpsert)
	require.NoError(t, err)

	require.NoError(t, s.ClearUser(ctx, testUID))
	count, err := s.Notes().Count(ctx, testUID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = s.Notes().Count(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
