package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLines(t *testing.T) {
	segs := Lines("a\nb\nc\n", "a\nB\nc\n")

	var inserted, deleted string
	for _, s := range segs {
		switch s.Op {
		case OpInsert:
			inserted += s.Text
		case OpDelete:
			deleted += s.Text
		}
	}
	assert.Equal(t, "B\n", inserted)
	assert.Equal(t, "b\n", deleted)
}

func TestLines_Identical(t *testing.T) {
	segs := Lines("same\n", "same\n")
	assert.Len(t, segs, 1)
	assert.Equal(t, OpEqual, segs[0].Op)
	assert.False(t, Changed("same", "same"))
}

func TestUnified(t *testing.T) {
	out := Unified("Draft", "Final")
	assert.Contains(t, out, "- Draft\n")
	assert.Contains(t, out, "+ Final\n")
}
