package mq

import (
	"fmt"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ChannelPool 复用处于确认模式的发布通道
type ChannelPool struct {
	maxSize  int
	channels chan *amqp.Channel
	connFn   func() *amqp.Connection

	mu     sync.RWMutex
	closed bool

	// 统计信息
	created   atomic.Int64
	reused    atomic.Int64
	discarded atomic.Int64
}

// NewChannelPool 创建通道池，connFn 返回当前连接
func NewChannelPool(maxSize int, connFn func() *amqp.Connection) *ChannelPool {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &ChannelPool{
		maxSize:  maxSize,
		channels: make(chan *amqp.Channel, maxSize),
		connFn:   connFn,
	}
}

// Get 获取通道，池中没有可用通道时新建并开启发布确认
func (cp *ChannelPool) Get() (*amqp.Channel, error) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	if cp.closed {
		return nil, fmt.Errorf("channel pool is closed")
	}

	for {
		select {
		case ch := <-cp.channels:
			if !ch.IsClosed() {
				cp.reused.Add(1)
				return ch, nil
			}
			cp.discarded.Add(1)
			continue
		default:
		}
		break
	}

	conn := cp.connFn()
	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("connection is not available")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to set confirm mode: %w", err)
	}
	cp.created.Add(1)
	return ch, nil
}

// Return 归还通道，池满或已关闭时直接关闭通道
func (cp *ChannelPool) Return(ch *amqp.Channel) {
	if ch == nil || ch.IsClosed() {
		cp.discarded.Add(1)
		return
	}

	cp.mu.RLock()
	defer cp.mu.RUnlock()
	if cp.closed {
		_ = ch.Close()
		return
	}
	select {
	case cp.channels <- ch:
	default:
		_ = ch.Close()
		cp.discarded.Add(1)
	}
}

// Close 关闭通道池
func (cp *ChannelPool) Close() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.closed {
		return
	}
	cp.closed = true

	close(cp.channels)
	for ch := range cp.channels {
		if !ch.IsClosed() {
			_ = ch.Close()
		}
	}
}

// ChannelPoolStats 通道池统计信息
type ChannelPoolStats struct {
	MaxSize   int   `json:"max_size"`
	Available int   `json:"available"`
	Created   int64 `json:"created"`
	Reused    int64 `json:"reused"`
	Discarded int64 `json:"discarded"`
}

// GetStats 获取通道池统计信息
func (cp *ChannelPool) GetStats() ChannelPoolStats {
	return ChannelPoolStats{
		MaxSize:   cp.maxSize,
		Available: len(cp.channels),
		Created:   cp.created.Load(),
		Reused:    cp.reused.Load(),
		Discarded: cp.discarded.Load(),
	}
}
