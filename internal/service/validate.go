package service

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/pkg/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validateParams 使用与 gin 相同的 binding 标签校验参数
func validateParams(v interface{}) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.SetTagName("binding")
	})
	if err := validate.Struct(v); err != nil {
		return errors.Wrap(domain.ErrInvalidInput, err.Error())
	}
	return nil
}
