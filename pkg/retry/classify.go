package retry

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// StatusCoder is implemented by transport errors that carry an HTTP-like status.
// StatusCoder 由携带 HTTP 状态码的传输层错误实现
type StatusCoder interface {
	StatusCode() int
}

var (
	clientStatusRe = regexp.MustCompile(`\b4\d{2}\b`)
	serverStatusRe = regexp.MustCompile(`\b5\d{2}\b`)

	networkHints = []string{"network", "fetch", "timeout", "connection"}
	clientHints  = []string{"bad request", "unauthorized", "forbidden", "not found"}
	serverHints  = []string{"internal server", "service unavailable"}
)

// IsRetryable classifies err. Network failures and 5xx are retryable, 4xx is terminal,
// anything unrecognised is retryable. Cancellation is always terminal.
// IsRetryable 判断错误是否可重试：网络错误与 5xx 可重试，4xx 不可重试，未知错误默认可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code < 500 {
			return false
		} else if code >= 500 {
			return true
		}
	}

	return isRetryableText(err.Error())
}

func isRetryableText(msg string) bool {
	msg = strings.ToLower(msg)

	if containsAny(msg, networkHints) {
		return true
	}
	if clientStatusRe.MatchString(msg) || containsAny(msg, clientHints) {
		return false
	}
	if serverStatusRe.MatchString(msg) || containsAny(msg, serverHints) {
		return true
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
