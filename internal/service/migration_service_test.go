package service

import (
	"context"
	"testing"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoData() *domain.DemoData {
	return &domain.DemoData{
		Tags: []*domain.DemoTag{
			{LocalID: "d1", Name: "work", Color: "green"},
			{LocalID: "d2", Name: "WORK "},
			{LocalID: "d3", Name: "Ideas", Color: "purple"},
			{LocalID: "d4", Name: "  "},
		},
		Notes: []*domain.DemoNote{
			{LocalID: "n1", Title: "Standup", Content: "<p>notes</p><script>alert(1)</script>", TagIDs: []string{"d1", "d2", "d4"}},
			{LocalID: "n2", Title: "Someday", TagIDs: []string{"d3", "missing"}},
		},
	}
}

func TestMigrateDemoDeduplicatesTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.remote.Store.UpsertTag(ctx, testUID, &domain.RemoteTag{ID: "remote-work", Name: "Work", Color: "blue"})
	require.NoError(t, err)
	require.NoError(t, f.migration.SaveDemo(ctx, demoData()))

	has, err := f.migration.HasDemoData(ctx)
	require.NoError(t, err)
	require.True(t, has)

	res, err := f.migration.MigrateDemoToAccount(ctx, testUID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NoteCount)
	require.Len(t, res.ReusedTags, 1)
	assert.Equal(t, "remote-work", res.ReusedTags[0].ID)
	require.Len(t, res.NewTags, 1)
	assert.Equal(t, "Ideas", res.NewTags[0].Name)
	assert.Equal(t, domain.TagColorPurple, res.NewTags[0].Color)

	byTitle := map[string]*domain.Note{}
	for _, n := range res.MigratedNotes {
		byTitle[n.Title] = n
		assert.Equal(t, domain.SyncStatusPending, n.Sync.Status)
	}
	require.Contains(t, byTitle, "Standup")
	require.Len(t, byTitle["Standup"].Tags, 1)
	assert.Equal(t, "remote-work", byTitle["Standup"].Tags[0].ID)
	assert.NotContains(t, byTitle["Standup"].Content, "<script>")
	require.Len(t, byTitle["Someday"].Tags, 1)

	has, err = f.migration.HasDemoData(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	tags, err := f.tags.List(ctx, testUID)
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	res2 := f.mustSync(t)
	assert.Zero(t, res2.Failed)
	remoteTags, err := f.remote.Store.ListTags(ctx, testUID, nil)
	require.NoError(t, err)
	assert.Len(t, remoteTags, 2)
}

func TestMigrateDemoReusesLocalTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing := f.createTag(t, "Ideas")
	require.NoError(t, f.migration.SaveDemo(ctx, &domain.DemoData{
		Tags:  []*domain.DemoTag{{LocalID: "x", Name: "ideas"}},
		Notes: []*domain.DemoNote{{LocalID: "n", Title: "Note", TagIDs: []string{"x"}}},
	}))

	res, err := f.migration.MigrateDemoToAccount(ctx, testUID)
	require.NoError(t, err)
	require.Len(t, res.ReusedTags, 1)
	assert.Equal(t, existing.ID, res.ReusedTags[0].ID)
	assert.Empty(t, res.NewTags)
}

func TestMigrateDemoKeepsBufferOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.migration.SaveDemo(ctx, demoData()))
	f.remote.failWith("ListTags", errors.New("401 unauthorized"))

	_, err := f.migration.MigrateDemoToAccount(ctx, testUID)
	require.Error(t, err)

	has, err := f.migration.HasDemoData(ctx)
	require.NoError(t, err)
	assert.True(t, has, "buffer survives for a later retry")

	notes, err := f.notes.List(ctx, testUID, nil)
	require.NoError(t, err)
	assert.Empty(t, notes)

	f.remote.heal()
	res, err := f.migration.MigrateDemoToAccount(ctx, testUID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NoteCount)
}

func TestMigrateDemoOfflineUsesLocalTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.migration.SaveDemo(ctx, demoData()))
	f.remote.setOffline(true)

	res, err := f.migration.MigrateDemoToAccount(ctx, testUID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NoteCount)
	assert.Len(t, res.NewTags, 2)
	assert.Empty(t, res.ReusedTags)

	pending, err := f.store.PendingCount(ctx, testUID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pending)
}

func TestMigrateEmptyBuffer(t *testing.T) {
	f := newFixture(t)

	res, err := f.migration.MigrateDemoToAccount(context.Background(), testUID)
	require.NoError(t, err)
	assert.Zero(t, res.NoteCount)
	assert.Empty(t, res.MigratedNotes)
	assert.Zero(t, f.remote.callCount("ListTags"))
}
