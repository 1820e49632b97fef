package code

import "sync/atomic"

// lang type, used to store English and Chinese text
// lang 类型，用来存储英文和中文文本
type lang struct {
	en    string // English // 英文
	zh_cn string // Chinese // 中文
}

const FALLBACK_LNG = "en"

var lng atomic.Value

// SetLanguage 设置全局语言，支持 en / zh_cn
func SetLanguage(l string) {
	lng.Store(l)
}

// GetMessage 根据当前语言返回消息，缺失时回退英文
func (l lang) GetMessage() string {
	cur, _ := lng.Load().(string)
	if cur == "zh_cn" && l.zh_cn != "" {
		return l.zh_cn
	}
	return l.en
}
