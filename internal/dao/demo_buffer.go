package dao

import (
	"context"
	"os"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/util"
	"github.com/pkg/errors"
)

// FileDemoBuffer 以 JSON 文件保存登录前的演示数据
type FileDemoBuffer struct {
	path string
	mu   sync.Mutex
}

var _ domain.DemoBuffer = (*FileDemoBuffer)(nil)

// NewFileDemoBuffer 创建文件演示缓冲区
func NewFileDemoBuffer(path string) *FileDemoBuffer {
	return &FileDemoBuffer{path: path}
}

// Path 缓冲区文件路径
func (b *FileDemoBuffer) Path() string {
	return b.path
}

// Load 读取缓冲区，文件不存在时返回空数据
func (b *FileDemoBuffer) Load(ctx context.Context) (*domain.DemoData, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := &domain.DemoData{Notes: []*domain.DemoNote{}, Tags: []*domain.DemoTag{}}
	raw, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, errors.Wrap(err, "read demo buffer")
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := sonic.Unmarshal(raw, data); err != nil {
		return nil, errors.Wrap(err, "decode demo buffer")
	}
	return data, nil
}

// Save 覆盖写入缓冲区
func (b *FileDemoBuffer) Save(ctx context.Context, data *domain.DemoData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := sonic.ConfigStd.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode demo buffer")
	}
	if err := util.EnsureParentDir(b.path); err != nil {
		return err
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return errors.Wrap(err, "write demo buffer")
	}
	return errors.Wrap(os.Rename(tmp, b.path), "replace demo buffer")
}

// Clear 删除缓冲区
func (b *FileDemoBuffer) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove demo buffer")
	}
	return nil
}

// Exists 缓冲区是否存在
func (b *FileDemoBuffer) Exists(ctx context.Context) (bool, error) {
	return util.FileExists(b.path), nil
}
