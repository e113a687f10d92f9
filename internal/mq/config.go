// Package mq 通过 RabbitMQ 发布订单领域事件
package mq

import (
	"fmt"
	"net/url"
	"time"
)

// Config RabbitMQ配置
type Config struct {
	// 连接配置
	Host     string
	Port     int
	Username string
	Password string
	VHost    string

	// Exchange 订单事件使用的 topic 交换机
	Exchange string

	// 连接与通道
	MaxChannels       int
	HeartbeatInterval time.Duration

	// 重连配置
	EnableReconnect      bool
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int

	// 发布配置
	ConfirmTimeout time.Duration
	PublishTimeout time.Duration
}

// DefaultExchange 订单事件交换机
const DefaultExchange = "orders"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5672,
		Username: "guest",
		Password: "guest",
		VHost:    "/",
		Exchange: DefaultExchange,

		MaxChannels:       16,
		HeartbeatInterval: 10 * time.Second,

		EnableReconnect:      true,
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 0,

		ConfirmTimeout: 5 * time.Second,
		PublishTimeout: 3 * time.Second,
	}
}

// URL 获取连接地址，用户名和密码做转义
func (c *Config) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.VHost,
	}
	return u.String()
}

// redactedURL 用于日志，隐藏密码
func (c *Config) redactedURL() string {
	return fmt.Sprintf("amqp://%s:***@%s:%d%s", c.Username, c.Host, c.Port, c.VHost)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.Exchange == "" {
		return fmt.Errorf("exchange is required")
	}
	if c.MaxChannels <= 0 {
		return fmt.Errorf("max_channels must be greater than 0")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be greater than 0")
	}
	if c.ConfirmTimeout <= 0 || c.PublishTimeout <= 0 {
		return fmt.Errorf("confirm_timeout and publish_timeout must be greater than 0")
	}
	return nil
}
