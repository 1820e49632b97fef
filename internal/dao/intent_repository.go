package dao

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/model"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// intentRepository 实现 domain.IntentRepository 接口
type intentRepository struct {
	dao *Dao
}

// NewIntentRepository 创建 IntentRepository 实例
func NewIntentRepository(dao *Dao) domain.IntentRepository {
	return &intentRepository{dao: dao}
}

// Create 写入冲突解决意图
func (r *intentRepository) Create(ctx context.Context, intent *domain.ResolutionIntent) error {
	conflict, err := sonic.Marshal(intent.Conflict)
	if err != nil {
		return errors.Wrap(err, "encode intent conflict")
	}
	m := &model.ResolutionIntent{
		UserID:     intent.UserID,
		ID:         intent.ID,
		EntityType: string(intent.EntityType),
		EntityID:   intent.EntityID,
		Choice:     string(intent.Choice),
		CopyID:     intent.CopyID,
		Conflict:   string(conflict),
		Attempts:   intent.Attempts,
		LastError:  intent.LastError,
		CreatedAt:  timex.ToMilli(intent.CreatedAt),
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = r.dao.nowMilli()
	}
	return r.dao.ExecuteWrite(ctx, intent.UserID, func(db *gorm.DB) error {
		return db.Create(m).Error
	})
}

// List 按创建顺序列出未完成意图
func (r *intentRepository) List(ctx context.Context, uid string) ([]*domain.ResolutionIntent, error) {
	var ms []*model.ResolutionIntent
	err := r.dao.DB(ctx).Where("user_id = ?", uid).
		Order("created_at ASC").
		Order("id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ResolutionIntent, 0, len(ms))
	for _, m := range ms {
		c := new(domain.Conflict)
		if err := sonic.Unmarshal([]byte(m.Conflict), c); err != nil {
			return nil, errors.Wrapf(err, "decode intent %s", m.ID)
		}
		out = append(out, &domain.ResolutionIntent{
			ID:         m.ID,
			UserID:     m.UserID,
			EntityType: domain.EntityType(m.EntityType),
			EntityID:   m.EntityID,
			Choice:     domain.Resolution(m.Choice),
			CopyID:     m.CopyID,
			Conflict:   c,
			Attempts:   m.Attempts,
			LastError:  m.LastError,
			CreatedAt:  timex.FromMilli(m.CreatedAt),
		})
	}
	return out, nil
}

// RecordFailure 记录一次失败的执行
func (r *intentRepository) RecordFailure(ctx context.Context, uid, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return db.Model(&model.ResolutionIntent{}).
			Where("user_id = ? AND id = ?", uid, id).
			Updates(map[string]interface{}{
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": msg,
			}).Error
	})
}

// Delete 删除意图
func (r *intentRepository) Delete(ctx context.Context, uid, id string) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return db.Where("user_id = ? AND id = ?", uid, id).Delete(&model.ResolutionIntent{}).Error
	})
}
