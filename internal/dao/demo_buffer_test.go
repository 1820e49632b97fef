package dao

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDemoBuffer(t *testing.T) {
	ctx := context.Background()
	b := NewFileDemoBuffer(filepath.Join(t.TempDir(), "demo", "buffer.json"))

	ok, err := b.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	empty, err := b.Load(ctx)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	data := &domain.DemoData{
		Tags:  []*domain.DemoTag{{LocalID: "dt1", Name: "Ideas", Color: "yellow"}},
		Notes: []*domain.DemoNote{{LocalID: "dn1", Title: "hello", Content: "<p>hi</p>", TagIDs: []string{"dt1"}}},
	}
	require.NoError(t, b.Save(ctx, data))

	ok, err = b.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, b.Clear(ctx))
	require.NoError(t, b.Clear(ctx))
	ok, err = b.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDialector(t *testing.T) {
	_, err := Dialector(DatabaseConfig{Type: "oracle"})
	assert.Error(t, err)

	_, err = Dialector(DatabaseConfig{Type: "sqlite"})
	assert.Error(t, err)

	for _, typ := range []string{"mysql", "postgres"} {
		d, err := Dialector(DatabaseConfig{Type: typ, Host: "localhost", Name: "notes"})
		require.NoError(t, err)
		assert.Equal(t, typ, d.Name())
	}
}
