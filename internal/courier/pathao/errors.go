package pathao

import "fmt"

// AuthenticationError 表示换取令牌失败，携带上游状态码与原始响应
type AuthenticationError struct {
	Status int
	Body   string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("pathao authentication failed: status %d: %s", e.Status, e.Body)
}

// UpstreamError 表示已认证请求返回非 2xx
type UpstreamError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("pathao %s %s failed: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}
