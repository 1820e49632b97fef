package timex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMilliRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 123_000_000, time.UTC)

	assert.Equal(t, now, FromMilli(ToMilli(now)))
	assert.Equal(t, int64(0), ToMilli(time.Time{}))
	assert.True(t, FromMilli(0).IsZero())

	assert.Nil(t, PtrFromMilli(nil))
	assert.Nil(t, PtrToMilli(nil))
	ms := ToMilli(now)
	assert.Equal(t, &ms, PtrToMilli(PtrFromMilli(&ms)))
}

func TestTime_MarshalJSON(t *testing.T) {
	tt := Time(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	b, err := tt.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"2024-01-01 12:00:00"`, string(b))

	b, _ = Time{}.MarshalJSON()
	assert.Equal(t, `""`, string(b))
}

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	assert.Equal(t, start, c.Now())
	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute).UnixMilli(), NowMilli(c))
}
