package util

import (
	"os"
	"path/filepath"

	"github.com/gookit/goutil/fsutil"
)

// EnsureParentDir 确保文件所在目录存在
func EnsureParentDir(file string) error {
	if file == "" {
		return nil
	}
	dir := filepath.Dir(file)
	if fsutil.PathExists(dir) {
		return nil
	}
	return os.MkdirAll(dir, 0754)
}

// FileExists 文件是否存在
func FileExists(file string) bool {
	return fsutil.FileExists(file)
}
