package code

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithData_DoesNotMutateShared(t *testing.T) {
	c := Success.WithData(map[string]int{"n": 1})

	assert.True(t, c.HaveData())
	assert.False(t, Success.HaveData())
	assert.Nil(t, Success.Data())
}

func TestLanguage(t *testing.T) {
	defer SetLanguage("en")

	SetLanguage("zh_cn")
	assert.Equal(t, "笔记不存在", ErrorNoteNotFound.Msg())
	SetLanguage("en")
	assert.Equal(t, "Note not found", ErrorNoteNotFound.Msg())
	assert.Equal(t, http.StatusNotFound, ErrorNoteNotFound.StatusCode())
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewError(1002, http.StatusBadRequest, lang{en: "dup"})
	})
}
