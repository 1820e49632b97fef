// Package model 定义本地存储的 gorm 表结构
package model

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Tables 全部本地表
func Tables() []interface{} {
	return []interface{}{
		&Note{},
		&Tag{},
		&NoteTag{},
		&SyncCheckpoint{},
		&SyncConflict{},
		&ResolutionIntent{},
	}
}

// AutoMigrate 创建或更新全部本地表
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Tables()...); err != nil {
		return errors.Wrap(err, "auto migrate local store")
	}
	return nil
}
