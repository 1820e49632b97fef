// Package code 定义本地 API 的响应码
package code

import (
	"fmt"
	"net/http"
)

// Code 响应码
// 预定义的 Code 为共享值，WithXxx 方法返回副本
type Code struct {
	// 状态码
	code int
	// 是否成功
	status bool
	// 多语言消息
	Lang lang
	// HTTP 状态码
	httpStatus int
	// 数据
	data     interface{}
	haveData bool
	// 错误详细信息
	details     []string
	haveDetails bool
}

var codes = map[int]string{}

// NewError 注册错误码，重复注册会 panic
func NewError(code int, httpStatus int, l lang) *Code {
	register(code, l)
	return &Code{code: code, status: false, Lang: l, httpStatus: httpStatus}
}

// NewSuss 注册成功码
func NewSuss(code int, l lang) *Code {
	register(code, l)
	return &Code{code: code, status: true, Lang: l, httpStatus: http.StatusOK}
}

func register(code int, l lang) {
	if _, ok := codes[code]; ok {
		panic(fmt.Sprintf("code %d already registered", code))
	}
	codes[code] = l.GetMessage()
}

// Clone 创建一个不带数据和详情的副本
func (e *Code) Clone() *Code {
	return &Code{
		code:       e.code,
		status:     e.status,
		Lang:       e.Lang,
		httpStatus: e.httpStatus,
	}
}

func (e *Code) Error() string {
	if e.haveDetails && len(e.details) > 0 {
		return fmt.Sprintf("%s: %v", e.Msg(), e.details)
	}
	return e.Msg()
}

func (e *Code) Code() int {
	return e.code
}

func (e *Code) Status() bool {
	return e.status
}

func (e *Code) Msg() string {
	return e.Lang.GetMessage()
}

func (e *Code) Details() []string {
	return e.details
}

func (e *Code) Data() interface{} {
	return e.data
}

func (e *Code) HaveDetails() bool {
	return e.haveDetails
}

func (e *Code) HaveData() bool {
	return e.haveData
}

// WithData 返回携带数据的副本
func (e *Code) WithData(data interface{}) *Code {
	c := e.Clone()
	c.details, c.haveDetails = e.details, e.haveDetails
	c.haveData = true
	c.data = data
	return c
}

// WithDetails 返回携带详情的副本
func (e *Code) WithDetails(details ...string) *Code {
	c := e.Clone()
	c.data, c.haveData = e.data, e.haveData
	c.haveDetails = true
	c.details = append([]string{}, details...)
	return c
}

// StatusCode HTTP 状态码
func (e *Code) StatusCode() int {
	if e.httpStatus == 0 {
		return http.StatusOK
	}
	return e.httpStatus
}
