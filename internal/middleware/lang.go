package middleware

import (
	"strings"

	"github.com/haierkeys/fast-note-offline/pkg/code"

	"github.com/gin-gonic/gin"
)

// Lang 按请求参数或请求头 lang 切换响应语言，缺省为 defaultLang
func Lang(defaultLang string) gin.HandlerFunc {
	defaultLang = normalizeLang(defaultLang)

	return func(c *gin.Context) {
		var lang string

		if s, exist := c.GetQuery("lang"); exist {
			lang = s
		} else if s = c.GetHeader("lang"); len(s) != 0 {
			lang = s
		}

		lang = normalizeLang(lang)
		if lang == "" {
			lang = defaultLang
		}
		c.Set("lang", lang)
		code.SetLanguage(lang)

		c.Next()
	}
}

func normalizeLang(l string) string {
	l = strings.ToLower(strings.ReplaceAll(l, "-", "_"))
	switch {
	case l == "":
		return ""
	case strings.HasPrefix(l, "zh"):
		return "zh_cn"
	default:
		return code.FALLBACK_LNG
	}
}
