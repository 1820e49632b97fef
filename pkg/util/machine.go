package util

import (
	"sync"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

var (
	deviceID     string
	deviceIDOnce sync.Once
)

// DeviceID 返回当前设备的稳定标识
// 使用按应用名哈希后的 machine id，取不到时退化为进程内随机 UUID
func DeviceID(appID string) string {
	deviceIDOnce.Do(func() {
		id, err := machineid.ProtectedID(appID)
		if err != nil || id == "" {
			id = uuid.NewString()
		}
		deviceID = id
	})
	return deviceID
}
