package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError 表示调用方可修正的输入错误
type ValidationError struct {
	Message       string
	MissingFields []string
}

func (e *ValidationError) Error() string {
	if len(e.MissingFields) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.MissingFields, ", "))
	}
	return e.Message
}

// NewValidationError 创建校验错误
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MissingFieldsError 创建缺失字段错误
func MissingFieldsError(fields []string) *ValidationError {
	return &ValidationError{Message: "missing required fields", MissingFields: fields}
}

// NotFoundError 表示引用的实体不存在
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// StockError 表示库存不足，携带商品与需求/可用数量
type StockError struct {
	ProductID string
	Title     string
	Required  int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: required %d, available %d", e.Title, e.Required, e.Available)
}

// ConflictError 表示 SKU 重复
type ConflictError struct {
	Message string
	SKU     string
}

func (e *ConflictError) Error() string {
	if e.SKU != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.SKU)
	}
	return e.Message
}

// ErrInternal 为无法归类的内部错误，调用方只看到通用信息
var ErrInternal = errors.New("internal error")

// AsValidation 等为 errors.As 的便捷封装

func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	ok := errors.As(err, &v)
	return v, ok
}

func AsNotFound(err error) (*NotFoundError, bool) {
	var v *NotFoundError
	ok := errors.As(err, &v)
	return v, ok
}

func AsStock(err error) (*StockError, bool) {
	var v *StockError
	ok := errors.As(err, &v)
	return v, ok
}

func AsConflict(err error) (*ConflictError, bool) {
	var v *ConflictError
	ok := errors.As(err, &v)
	return v, ok
}
