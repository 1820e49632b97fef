package util

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30d", 30 * 24 * time.Hour},
		{"30s", 30 * time.Second},
		{"10m", 10 * time.Minute},
		{"5", 5 * time.Second},
		{" 1d ", 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDuration("xd")
	assert.Error(t, err)
	assert.Equal(t, time.Minute, ParseDurationOr("bogus", time.Minute))
	assert.Equal(t, time.Minute, ParseDurationOr("", time.Minute))
}

func TestFold(t *testing.T) {
	assert.Equal(t, FoldName("Work"), FoldName("WORK"))
	assert.NotEqual(t, FoldName("work"), FoldName("home"))

	assert.True(t, ContainsFold("Meeting NOTES", "notes"))
	assert.True(t, ContainsFold("anything", ""))
	assert.False(t, ContainsFold("groceries", "meeting"))
}

func TestEnsureParentDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a", "b", "db.sqlite3")
	require.NoError(t, EnsureParentDir(file))
	assert.False(t, FileExists(file))
	assert.DirExists(t, filepath.Dir(file))
}
