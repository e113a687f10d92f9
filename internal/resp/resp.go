// Package resp 定义统一的 HTTP JSON 响应结构与业务码。
package resp

import (
	"encoding/json"
	"net/http"
)

// 业务码：0 表示成功，其余按类别划分
const (
	CodeOK                = 0
	CodeInvalidParam      = 1001
	CodeUnauthorized      = 1002
	CodeForbidden         = 1003
	CodeNotFound          = 1004
	CodeConflict          = 1005
	CodeInsufficientStock = 1006
	CodeTooManyRequests   = 1007
	CodeDuplicateRequest  = 1008
	CodeUpstream          = 1009
	CodeTimeout           = 1010
	CodeInternalError     = 1500
)

// Response 为统一响应体
type Response[T any] struct {
	Success       bool     `json:"success"`
	Code          int      `json:"code"`
	Message       string   `json:"message"`
	Error         string   `json:"error,omitempty"`
	Data          T        `json:"data,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
	Details       any      `json:"details,omitempty"`
	RequestID     string   `json:"request_id,omitempty"`
	TraceID       string   `json:"trace_id,omitempty"`
}

// ErrorBody 为失败响应的可选上下文
type ErrorBody struct {
	MissingFields []string
	Details       any
}

// HTTPStatusFromCode 将业务码映射为默认 HTTP 状态码
func HTTPStatusFromCode(code int) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam, CodeConflict, CodeInsufficientStock:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeDuplicateRequest:
		return http.StatusConflict
	case CodeUpstream:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON 写出任意响应
func WriteJSON(w http.ResponseWriter, status, code int, msg string, data any, reqID, traceID string) {
	body := Response[any]{
		Success:   code == CodeOK,
		Code:      code,
		Message:   msg,
		Data:      data,
		RequestID: reqID,
		TraceID:   traceID,
	}
	if code != CodeOK {
		body.Error = msg
	}
	write(w, status, body)
}

// OK 写出 200 成功响应
func OK(w http.ResponseWriter, data any, reqID, traceID string) {
	WriteJSON(w, http.StatusOK, CodeOK, "success", data, reqID, traceID)
}

// Created 写出 201 成功响应
func Created(w http.ResponseWriter, data any, reqID, traceID string) {
	WriteJSON(w, http.StatusCreated, CodeOK, "created", data, reqID, traceID)
}

// Error 写出失败响应
func Error(w http.ResponseWriter, status, code int, msg, reqID, traceID string) {
	ErrorWith(w, status, code, msg, ErrorBody{}, reqID, traceID)
}

// ErrorWith 写出携带缺失字段或其他上下文的失败响应
func ErrorWith(w http.ResponseWriter, status, code int, msg string, extra ErrorBody, reqID, traceID string) {
	write(w, status, Response[any]{
		Success:       false,
		Code:          code,
		Message:       msg,
		Error:         msg,
		MissingFields: extra.MissingFields,
		Details:       extra.Details,
		RequestID:     reqID,
		TraceID:       traceID,
	})
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
