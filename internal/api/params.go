package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// queryInt 读取整数查询参数，缺失或非法时返回默认值
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// queryString 读取非空查询参数
func queryString(c *gin.Context, key string) *string {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil
	}
	return &v
}

// queryEnum 读取枚举类查询参数
func queryEnum[T ~string](c *gin.Context, key string) *T {
	v := queryString(c, key)
	if v == nil {
		return nil
	}
	t := T(*v)
	return &t
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}
