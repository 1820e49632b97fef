package domain

import (
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
)

// Resolution 冲突解决方式
type Resolution string

const (
	// ResolveLocal 以本地版本覆盖远端
	ResolveLocal Resolution = "local"
	// ResolveServer 以远端版本覆盖本地
	ResolveServer Resolution = "server"
	// ResolveBoth 保留两份：本地内容另存为副本，原记录采用远端版本
	ResolveBoth Resolution = "both"
)

// ParseResolution 解析解决方式
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case ResolveLocal, ResolveServer, ResolveBoth:
		return r, nil
	}
	return "", ErrInvalidChoice
}

// ConflictPayload is the kind-specific part of a conflict.
// Implemented by *NoteConflict and *TagConflict only.
type ConflictPayload interface {
	EntityType() EntityType
	isConflictPayload()
}

// NoteConflict 笔记冲突：本地待推送版本与远端新版本
type NoteConflict struct {
	Local  *Note       `json:"local"`
	Server *RemoteNote `json:"server"`
}

func (*NoteConflict) EntityType() EntityType { return EntityNote }
func (*NoteConflict) isConflictPayload()     {}

// TagConflict 标签冲突
type TagConflict struct {
	Local  *Tag       `json:"local"`
	Server *RemoteTag `json:"server"`
}

func (*TagConflict) EntityType() EntityType { return EntityTag }
func (*TagConflict) isConflictPayload()     {}

// Conflict 一条待解决的冲突，按 EntityID 唯一
type Conflict struct {
	UserID     string          `json:"userId"`
	EntityID   string          `json:"entityId"`
	DetectedAt time.Time       `json:"detectedAt"`
	Payload    ConflictPayload `json:"payload"`
}

// EntityType 冲突实体类型
func (c *Conflict) EntityType() EntityType {
	if c.Payload == nil {
		return ""
	}
	return c.Payload.EntityType()
}

// Note 返回笔记冲突载荷，非笔记冲突返回 nil
func (c *Conflict) Note() *NoteConflict {
	nc, _ := c.Payload.(*NoteConflict)
	return nc
}

// Tag 返回标签冲突载荷，非标签冲突返回 nil
func (c *Conflict) Tag() *TagConflict {
	tc, _ := c.Payload.(*TagConflict)
	return tc
}

// ConflictHandler 冲突回调，同一时刻只有一个处于注册状态
type ConflictHandler func(c *Conflict)

// ResolutionIntent 持久化的冲突解决意图
// 先写入意图，再执行远端写入，最后在同一本地事务中应用本地修改并删除意图与冲突
// 中途失败时意图保留，后续可按相同参数重放至完成
type ResolutionIntent struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Choice     Resolution `json:"choice"`
	// CopyID both 方式下副本的预分配 ID，保证重放幂等
	CopyID    string    `json:"copyId,omitempty"`
	Conflict  *Conflict `json:"conflict"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type conflictWire struct {
	UserID     string          `json:"userId"`
	EntityID   string          `json:"entityId"`
	EntityType EntityType      `json:"entityType"`
	DetectedAt time.Time       `json:"detectedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// MarshalJSON 带实体类型标记的编码
func (c *Conflict) MarshalJSON() ([]byte, error) {
	payload, err := sonic.Marshal(c.Payload)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(conflictWire{
		UserID:     c.UserID,
		EntityID:   c.EntityID,
		EntityType: c.EntityType(),
		DetectedAt: c.DetectedAt,
		Payload:    payload,
	})
}

// UnmarshalJSON 按实体类型还原载荷
func (c *Conflict) UnmarshalJSON(data []byte) error {
	var w conflictWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return err
	}
	payload, err := DecodeConflictPayload(w.EntityType, w.Payload)
	if err != nil {
		return err
	}
	*c = Conflict{
		UserID:     w.UserID,
		EntityID:   w.EntityID,
		DetectedAt: w.DetectedAt,
		Payload:    payload,
	}
	return nil
}

// DecodeConflictPayload 根据实体类型解码冲突载荷
func DecodeConflictPayload(kind EntityType, data []byte) (ConflictPayload, error) {
	switch kind {
	case EntityNote:
		p := new(NoteConflict)
		if err := sonic.Unmarshal(data, p); err != nil {
			return nil, err
		}
		return p, nil
	case EntityTag:
		p := new(TagConflict)
		if err := sonic.Unmarshal(data, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, ErrUnsupportedEntity
}
