// Package errors 定义 tuya-sensors 的错误分类（配置错误、参数错误、响应解析错误、设备 I/O 错误）
package errors

import (
	"errors"
	"fmt"
)

// 标准库错误判断函数
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code 错误分类码
type Code string

const (
	CodeConfig        Code = "config_error"
	CodeArgument      Code = "argument_error"
	CodeResponseParse Code = "response_parse_error"
	CodeDeviceIO      Code = "device_io_error"
)

// 分类哨兵错误，配合 errors.Is 使用
var (
	ErrConfig        = &Error{Code: CodeConfig}
	ErrArgument      = &Error{Code: CodeArgument}
	ErrResponseParse = &Error{Code: CodeResponseParse}
	ErrDeviceIO      = &Error{Code: CodeDeviceIO}
)

var codeMessages = map[Code]string{
	CodeConfig:        "config validation error",
	CodeArgument:      "argument error",
	CodeResponseParse: "response parse error",
	CodeDeviceIO:      "device i/o error",
}

// Error 带分类码和上下文（设备名、数据点）的错误
type Error struct {
	Code      Code
	Device    string
	DataPoint string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = codeMessages[e.Code]
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is 按分类码匹配，哨兵错误没有上下文字段
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Err == nil
}

// WithDevice 返回附带设备名的副本
func (e *Error) WithDevice(device string) *Error {
	c := *e
	c.Device = device
	return &c
}

// WithDataPoint 返回附带数据点的副本
func (e *Error) WithDataPoint(dp string) *Error {
	c := *e
	c.DataPoint = dp
	return &c
}

// CodeOf 返回错误链上第一个分类码，没有则返回空串
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Configf 创建配置错误
func Configf(format string, args ...any) *Error {
	return &Error{Code: CodeConfig, Message: fmt.Sprintf(format, args...)}
}

// Argumentf 创建参数错误
func Argumentf(format string, args ...any) *Error {
	return &Error{Code: CodeArgument, Message: fmt.Sprintf(format, args...)}
}

// ResponseParsef 创建响应解析错误
func ResponseParsef(format string, args ...any) *Error {
	return &Error{Code: CodeResponseParse, Message: fmt.Sprintf(format, args...)}
}

// DeviceIO 包装设备通信失败
func DeviceIO(device string, err error) *Error {
	return &Error{Code: CodeDeviceIO, Device: device, Message: fmt.Sprintf("device '%s' request failed", device), Err: err}
}

// WrapConfig 包装配置解析失败
func WrapConfig(msg string, err error) *Error {
	return &Error{Code: CodeConfig, Message: msg, Err: err}
}

// UnknownDevice 设备不存在
func UnknownDevice(device string) *Error {
	return Argumentf("Tuya device '%s' doesn't exist", device).WithDevice(device)
}
