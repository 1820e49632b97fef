package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/dto"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictScenarioResolvedWithServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var delivered []*domain.Conflict
	f.sync.SetConflictHandler(func(c *domain.Conflict) { delivered = append(delivered, c) })

	n := f.conflictOn(t, "Draft", "Final")
	require.Len(t, delivered, 1)
	nc := delivered[0].Note()
	require.NotNil(t, nc)
	assert.Equal(t, domain.EntityNote, delivered[0].EntityType())
	assert.Equal(t, "Draft", nc.Local.Title)
	assert.Equal(t, "Final", nc.Server.Title)

	local := f.note(t, n.ID)
	assert.Equal(t, "Draft", local.Title, "local copy is untouched until resolved")
	assert.Equal(t, domain.SyncStatusConflict, local.Sync.Status)

	list, err := f.conflicts.List(ctx, testUID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	preview, err := f.conflicts.Preview(ctx, testUID, n.ID)
	require.NoError(t, err)
	assert.True(t, preview.TitleChanged)

	require.NoError(t, f.conflicts.Resolve(ctx, testUID, n.ID, domain.ResolveServer))

	local = f.note(t, n.ID)
	assert.Equal(t, "Final", local.Title)
	assert.Equal(t, domain.SyncStatusSynced, local.Sync.Status)

	list, err = f.conflicts.List(ctx, testUID)
	require.NoError(t, err)
	assert.Empty(t, list)
	intents, err := f.store.Intents().List(ctx, testUID)
	require.NoError(t, err)
	assert.Empty(t, intents)

	assert.ErrorIs(t, f.conflicts.Resolve(ctx, testUID, n.ID, domain.ResolveServer), domain.ErrConflictNotFound)
}

func TestResolveWithLocalOverwritesRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.conflictOn(t, "Draft", "Final")
	require.NoError(t, f.conflicts.Resolve(ctx, testUID, n.ID, domain.ResolveLocal))

	assert.Equal(t, "Draft", f.remoteNote(t, n.ID).Title)
	local := f.note(t, n.ID)
	assert.Equal(t, "Draft", local.Title)
	assert.Equal(t, domain.SyncStatusSynced, local.Sync.Status)

	res := f.mustSync(t)
	assert.Zero(t, res.Conflicted)
	assert.Zero(t, res.Pushed)
}

func TestResolveWithBothKeepsTwoSyncedNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.conflictOn(t, "Draft", "Final")
	require.NoError(t, f.conflicts.Resolve(ctx, testUID, n.ID, domain.ResolveBoth))

	notes, err := f.notes.List(ctx, testUID, nil)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	var original, copied *domain.Note
	for _, x := range notes {
		if x.ID == n.ID {
			original = x
		} else {
			copied = x
		}
	}
	require.NotNil(t, original)
	require.NotNil(t, copied)

	assert.Equal(t, "Final", original.Title)
	assert.Equal(t, "Draft (copy)", copied.Title)
	assert.Equal(t, "<p>body</p>", copied.Content)
	assert.Equal(t, domain.SyncStatusSynced, original.Sync.Status)
	assert.Equal(t, domain.SyncStatusSynced, copied.Sync.Status)

	require.NotNil(t, f.remoteNote(t, copied.ID))
	assert.Equal(t, "Draft (copy)", f.remoteNote(t, copied.ID).Title)

	list, err := f.conflicts.List(ctx, testUID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestResolveRejectsUnknownChoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.conflictOn(t, "Draft", "Final")
	err := f.conflicts.Resolve(ctx, testUID, n.ID, domain.Resolution("merge"))
	assert.ErrorIs(t, err, domain.ErrInvalidChoice)

	list, err := f.conflicts.List(ctx, testUID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFailedResolutionIsReplayed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.conflictOn(t, "Draft", "Final")

	f.remote.setOffline(true)
	err := f.conflicts.Resolve(ctx, testUID, n.ID, domain.ResolveLocal)
	require.Error(t, err)

	intents, err := f.store.Intents().List(ctx, testUID)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, 1, intents[0].Attempts)
	assert.NotEmpty(t, intents[0].LastError)
	assert.Equal(t, domain.SyncStatusConflict, f.note(t, n.ID).Sync.Status)

	f.remote.setOffline(false)
	res := f.mustSync(t)
	assert.Equal(t, 1, res.Replayed)
	assert.Zero(t, res.Conflicted)

	assert.Equal(t, "Draft", f.remoteNote(t, n.ID).Title)
	assert.Equal(t, domain.SyncStatusSynced, f.note(t, n.ID).Sync.Status)
	intents, err = f.store.Intents().List(ctx, testUID)
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestBothReplayReusesCopyID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.conflictOn(t, "Draft", "Final")

	// 副本写入失败，意图保留；重放沿用同一副本 ID
	f.remote.failWith("UpsertNote", errors.New("400 bad request"))
	require.Error(t, f.conflicts.Resolve(ctx, testUID, n.ID, domain.ResolveBoth))
	f.remote.heal()

	replayed, err := f.conflicts.ReplayPending(ctx, testUID)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	replayed, err = f.conflicts.ReplayPending(ctx, testUID)
	require.NoError(t, err)
	assert.Zero(t, replayed)

	all, err := f.remote.Store.ListNotes(ctx, testUID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestConflictHandlerMayResolveInline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resolved := 0
	f.sync.SetConflictHandler(func(c *domain.Conflict) {
		if assert.NoError(t, f.conflicts.Resolve(ctx, testUID, c.EntityID, domain.ResolveServer)) {
			resolved++
		}
	})
	n := f.createNote(t, "Original", "")
	f.mustSync(t)

	title := "Draft"
	_, err := f.notes.Update(ctx, testUID, &dto.NoteUpdateRequest{ID: n.ID, Title: &title})
	require.NoError(t, err)
	f.editRemotely(t, n.ID, "Final")
	f.remote.failWith("UpsertNote", errors.New("500 internal server error"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.sync.FullSync(ctx, testUID, domain.TriggerManual)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("conflict handler deadlocked against the sync gate")
	}

	assert.Equal(t, 1, resolved)
	assert.Equal(t, "Final", f.note(t, n.ID).Title)
}

func TestPreviewTagConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tag := f.createTag(t, "Work")
	f.mustSync(t)

	name := "Job"
	_, err := f.tags.Update(ctx, testUID, &dto.TagUpdateRequest{ID: tag.ID, Name: &name})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.remote.Store.UpsertTag(ctx, testUID, &domain.RemoteTag{ID: tag.ID, Name: "Career", Color: "red"})
	require.NoError(t, err)

	f.remote.failWith("UpsertTag", errors.New("503 service unavailable"))
	res := f.mustSync(t)
	require.Equal(t, 1, res.Conflicted)
	f.remote.heal()

	preview, err := f.conflicts.Preview(ctx, testUID, tag.ID)
	require.NoError(t, err)
	assert.True(t, preview.TitleChanged)
	assert.Contains(t, preview.Diff, "Career")
	assert.Contains(t, preview.Diff, "Job")

	require.NoError(t, f.conflicts.Resolve(ctx, testUID, tag.ID, domain.ResolveBoth))
	tags, err := f.tags.List(ctx, testUID)
	require.NoError(t, err)
	names := make([]string, 0, len(tags))
	for _, x := range tags {
		names = append(names, x.Name)
		assert.Equal(t, domain.SyncStatusSynced, x.Sync.Status)
	}
	assert.ElementsMatch(t, []string{"Career", "Job (copy)"}, names)
}

func TestPropertyConflictDetectionLeavesLocalUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15
	parameters.Rng.Seed(1234)

	title := gen.AlphaString().Map(func(s string) string {
		if len(s) > 24 {
			s = s[:24]
		}
		return "t" + s
	})

	properties := gopter.NewProperties(parameters)
	properties.Property("one conflict per diverged entity, local copy unchanged", prop.ForAll(
		func(localTitle, serverTitle string) bool {
			n, err := f.notes.Create(ctx, testUID, &dto.NoteCreateRequest{Title: "seed"})
			if err != nil {
				return false
			}
			if _, err := f.sync.FullSync(ctx, testUID, domain.TriggerManual); err != nil {
				return false
			}
			f.clock.Advance(time.Second)
			edited, err := f.notes.Update(ctx, testUID, &dto.NoteUpdateRequest{ID: n.ID, Title: &localTitle})
			if err != nil {
				return false
			}
			f.clock.Advance(time.Second)
			if _, err := f.remote.Store.UpsertNote(ctx, testUID, &domain.RemoteNote{ID: n.ID, Title: serverTitle}); err != nil {
				return false
			}

			f.remote.failWith("UpsertNote", errors.New("503 service unavailable"))
			res, err := f.sync.FullSync(ctx, testUID, domain.TriggerManual)
			f.remote.heal()
			if err != nil || res.Conflicted != 1 {
				return false
			}

			after, err := f.store.Notes().GetByID(ctx, testUID, n.ID)
			if err != nil {
				return false
			}
			untouched := after.Title == strings.TrimSpace(localTitle) &&
				after.Sync.LocalVersion == edited.Sync.LocalVersion &&
				after.Sync.ServerUpdatedAt.Equal(*edited.Sync.ServerUpdatedAt)

			c, err := f.conflicts.Get(ctx, testUID, n.ID)
			if err != nil || c.Note() == nil || c.Note().Server.Title != serverTitle {
				return false
			}
			if err := f.conflicts.Resolve(ctx, testUID, n.ID, domain.ResolveServer); err != nil {
				return false
			}
			return untouched
		},
		title, title,
	))
	properties.TestingRun(t)
}
