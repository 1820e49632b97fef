// Package timex 提供毫秒时间戳与可替换时钟
package timex

import (
	"sync"
	"time"
)

// Time wraps time.Time for JSON output as "2006-01-02 15:04:05".
// Time 包装 time.Time，JSON 输出为 "2006-01-02 15:04:05"
type Time time.Time

const layout = "2006-01-02 15:04:05"

// MarshalJSON 实现 json.Marshaler
func (t Time) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + time.Time(t).Format(layout) + `"`), nil
}

// String 返回格式化时间
func (t Time) String() string {
	return time.Time(t).Format(layout)
}

// UnixMilli 返回毫秒时间戳
func (t Time) UnixMilli() int64 {
	return time.Time(t).UnixMilli()
}

// Clock supplies the current time.
// Clock 提供当前时间
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System is the wall clock.
var System Clock = systemClock{}

// NowMilli 当前毫秒时间戳
func NowMilli(c Clock) int64 {
	if c == nil {
		c = System
	}
	return c.Now().UnixMilli()
}

// FromMilli 毫秒时间戳转 time.Time（UTC）
func FromMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// ToMilli time.Time 转毫秒时间戳，零值为 0
func ToMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// PtrFromMilli 可空毫秒时间戳转 *time.Time
func PtrFromMilli(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := FromMilli(*ms)
	return &t
}

// PtrToMilli *time.Time 转可空毫秒时间戳
func PtrToMilli(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// ManualClock is a Clock that only moves when told to.
// ManualClock 手动推进的时钟，用于测试
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock 创建手动时钟
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now 返回当前时间
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 推进时钟
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
