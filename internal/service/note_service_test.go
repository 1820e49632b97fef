package service

import (
	"context"
	"testing"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	work := f.createTag(t, "Work")
	urgent := f.createTag(t, "Urgent")

	a := f.createNote(t, "  Quarterly plan ", "<p>Budget</p>", work.ID, urgent.ID)
	assert.Equal(t, "Quarterly plan", a.Title)
	assert.Equal(t, domain.SyncStatusPending, a.Sync.Status)
	assert.ElementsMatch(t, []string{work.ID, urgent.ID}, a.TagIDs())

	f.clock.Advance(time.Second)
	b := f.createNote(t, "Groceries", "<p>milk</p>", work.ID)

	pinned := true
	_, err := f.notes.Update(ctx, testUID, &dto.NoteUpdateRequest{ID: b.ID, Pinned: &pinned})
	require.NoError(t, err)

	all, err := f.notes.List(ctx, testUID, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "pinned notes come first")

	both, err := f.notes.List(ctx, testUID, &dto.NoteListRequest{TagIDs: []string{work.ID, urgent.ID}})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, a.ID, both[0].ID)

	found, err := f.notes.List(ctx, testUID, &dto.NoteListRequest{Query: "BUDGET"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].ID)

	_, err = f.notes.RemoveTag(ctx, testUID, &dto.NoteTagRequest{NoteID: a.ID, TagID: urgent.ID})
	require.NoError(t, err)
	got, err := f.notes.Get(ctx, testUID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{work.ID}, got.TagIDs())

	_, err = f.notes.AddTag(ctx, testUID, &dto.NoteTagRequest{NoteID: a.ID, TagID: urgent.ID})
	require.NoError(t, err)
	got, err = f.notes.Get(ctx, testUID, a.ID)
	require.NoError(t, err)
	assert.Len(t, got.Tags, 2)
}

func TestNoteRecycleBin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.createNote(t, "Old idea", "")
	deleted, err := f.notes.SoftDelete(ctx, testUID, n.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())

	active, err := f.notes.List(ctx, testUID, nil)
	require.NoError(t, err)
	assert.Empty(t, active)

	bin, err := f.notes.List(ctx, testUID, &dto.NoteListRequest{Deleted: true, Query: "idea"})
	require.NoError(t, err)
	require.Len(t, bin, 1)

	count, err := f.notes.CountDeleted(ctx, testUID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	restored, err := f.notes.Restore(ctx, testUID, n.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted())

	// 从未同步的笔记直接删除
	require.NoError(t, f.notes.DeletePermanently(ctx, testUID, n.ID))
	_, err = f.store.Notes().GetByID(ctx, testUID, n.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	pending, err := f.store.PendingCount(ctx, testUID)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestNoteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.notes.Update(ctx, testUID, &dto.NoteUpdateRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.notes.AddTag(ctx, testUID, &dto.NoteTagRequest{NoteID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.notes.Get(ctx, testUID, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTagService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tag, err := f.tags.Create(ctx, testUID, &dto.TagCreateRequest{Name: " Home ", Color: "orange"})
	require.NoError(t, err)
	assert.Equal(t, "Home", tag.Name)
	assert.Equal(t, domain.TagColorOrange, tag.Color)

	_, err = f.tags.Create(ctx, testUID, &dto.TagCreateRequest{Name: "HOME"})
	assert.ErrorIs(t, err, domain.ErrDuplicateTagName)

	_, err = f.tags.Create(ctx, testUID, &dto.TagCreateRequest{Name: "x", Color: "teal"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.tags.Create(ctx, testUID, &dto.TagCreateRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	color := "gray"
	updated, err := f.tags.Update(ctx, testUID, &dto.TagUpdateRequest{ID: tag.ID, Color: &color})
	require.NoError(t, err)
	assert.Equal(t, domain.TagColorGray, updated.Color)

	n := f.createNote(t, "Chores", "", tag.ID)
	require.NoError(t, f.tags.Delete(ctx, testUID, tag.ID))

	_, err = f.tags.Get(ctx, testUID, tag.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	got, err := f.notes.Get(ctx, testUID, n.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}
