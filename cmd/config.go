package cmd

import (
	"os"

	"github.com/haierkeys/fast-note-offline/pkg/util"

	"go.uber.org/zap"
)

// resolveConfig 查找配置文件，均不存在时写入内置默认配置
func resolveConfig(path string) (string, error) {
	if len(path) > 0 {
		return path, nil
	}
	for _, p := range []string{"config/config-dev.yaml", "config.yaml", "config/config.yaml"} {
		if util.FileExists(p) {
			return p, nil
		}
	}

	bootstrapLogger.Warn("config file not found, creating default config")
	path = "config/config.yaml"

	if err := util.EnsureParentDir(path); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(configDefault), 0o644); err != nil {
		return "", err
	}
	bootstrapLogger.Info("config file auto create successfully", zap.String("path", path))
	return path, nil
}
