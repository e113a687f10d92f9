package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AddressKind 标识地址的存储形态
type AddressKind uint8

const (
	AddressNone       AddressKind = iota
	AddressText                   // 旧数据中的自由文本
	AddressStructured             // street/city/state/zipCode
)

// Address 为地址的标签联合：自由文本或结构化字段二选一。
// JSON 既接受字符串也接受对象，并按原形态输出。
type Address struct {
	Kind    AddressKind
	Text    string
	Street  string
	City    string
	State   string
	ZipCode string
}

// TextAddress 构造自由文本地址
func TextAddress(s string) Address {
	return Address{Kind: AddressText, Text: s}
}

// StructuredAddress 构造结构化地址
func StructuredAddress(street, city, state, zip string) Address {
	return Address{Kind: AddressStructured, Street: street, City: city, State: state, ZipCode: zip}
}

// IsZero 判断是否未设置地址
func (a Address) IsZero() bool {
	return a.Kind == AddressNone
}

// Format 返回单行地址：文本原样输出，结构化地址按非空字段用 ", " 连接
func (a Address) Format() string {
	switch a.Kind {
	case AddressText:
		return a.Text
	case AddressStructured:
		parts := make([]string, 0, 4)
		for _, p := range []string{a.Street, a.City, a.State, a.ZipCode} {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

type structuredAddressJSON struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

// MarshalJSON 实现 json.Marshaler
func (a Address) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AddressText:
		return json.Marshal(a.Text)
	case AddressStructured:
		return json.Marshal(structuredAddressJSON{Street: a.Street, City: a.City, State: a.State, ZipCode: a.ZipCode})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON 实现 json.Unmarshaler
func (a *Address) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Address{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAddress(s)
	case '{':
		var s structuredAddressJSON
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = StructuredAddress(s.Street, s.City, s.State, s.ZipCode)
	default:
		return fmt.Errorf("address must be a string or an object")
	}
	return nil
}

// Customer 表示客户，按手机号唯一
type Customer struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email,omitempty"`
	Address     Address         `json:"address"`
	TotalOrders int             `json:"totalOrders"`
	TotalSpent  decimal.Decimal `json:"totalSpent"`
	LastOrder   *time.Time      `json:"lastOrder,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CustomerInput 为下单时携带的客户信息
type CustomerInput struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Email   string  `json:"email"`
	Address Address `json:"address"`
}

// CustomerListRequest 表示客户列表查询请求
type CustomerListRequest struct {
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Keyword  *string `json:"keyword"` // 姓名或手机号
}

// CustomerListResponse 表示客户列表查询响应
type CustomerListResponse struct {
	Customers []*Customer `json:"customers"`
	Total     int64       `json:"total"`
	Page      int         `json:"page"`
	PageSize  int         `json:"page_size"`
}
