package mq

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ConnectionState 连接状态
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionManager 维护单条 AMQP 连接，断开后按配置重连
type ConnectionManager struct {
	config *Config
	logger *zap.Logger

	conn      *amqp.Connection
	connMutex sync.RWMutex
	state     atomic.Int32

	channelPool *ChannelPool

	stopCh         chan struct{}
	stopOnce       sync.Once
	reconnectCount atomic.Int32

	// onReconnected 在重连成功后调用，用于重新声明拓扑
	onReconnected func()
}

// NewConnectionManager 创建连接管理器
func NewConnectionManager(config *Config, logger *zap.Logger) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	cm := &ConnectionManager{
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	cm.channelPool = NewChannelPool(config.MaxChannels, cm.GetConnection)
	return cm
}

// Connect 建立连接
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	if !cm.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("connection is already in progress or connected")
	}

	cm.logger.Info("连接RabbitMQ", zap.String("url", cm.config.redactedURL()))
	if err := cm.dial(ctx); err != nil {
		cm.state.Store(int32(StateDisconnected))
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	cm.logger.Info("RabbitMQ连接成功")

	go cm.monitorConnection()
	return nil
}

// dial 建立底层连接并切换为已连接状态
func (cm *ConnectionManager) dial(ctx context.Context) error {
	dialer := amqp.DefaultDial(cm.config.HeartbeatInterval * 3)
	done := make(chan struct{})
	var (
		conn *amqp.Connection
		err  error
	)
	go func() {
		defer close(done)
		conn, err = amqp.DialConfig(cm.config.URL(), amqp.Config{
			Heartbeat: cm.config.HeartbeatInterval,
			Locale:    "en_US",
			Dial:      dialer,
		})
	}()

	select {
	case <-done:
	case <-ctx.Done():
		go func() {
			<-done
			if conn != nil {
				_ = conn.Close()
			}
		}()
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	cm.connMutex.Lock()
	cm.conn = conn
	cm.connMutex.Unlock()
	cm.state.Store(int32(StateConnected))
	return nil
}

// GetConnection 获取当前连接，未连接时为 nil
func (cm *ConnectionManager) GetConnection() *amqp.Connection {
	cm.connMutex.RLock()
	defer cm.connMutex.RUnlock()
	return cm.conn
}

// GetChannel 获取通道
func (cm *ConnectionManager) GetChannel() (*amqp.Channel, error) {
	return cm.channelPool.Get()
}

// ReturnChannel 归还通道
func (cm *ConnectionManager) ReturnChannel(ch *amqp.Channel) {
	cm.channelPool.Return(ch)
}

// IsConnected 检查是否已连接
func (cm *ConnectionManager) IsConnected() bool {
	return cm.GetState() == StateConnected
}

// GetState 获取连接状态
func (cm *ConnectionManager) GetState() ConnectionState {
	return ConnectionState(cm.state.Load())
}

// OnReconnected 设置重连回调
func (cm *ConnectionManager) OnReconnected(fn func()) {
	cm.onReconnected = fn
}

// Close 关闭连接，可重复调用
func (cm *ConnectionManager) Close() error {
	var err error
	cm.stopOnce.Do(func() {
		cm.state.Store(int32(StateClosed))
		cm.logger.Info("关闭RabbitMQ连接")
		close(cm.stopCh)
		cm.channelPool.Close()

		cm.connMutex.Lock()
		defer cm.connMutex.Unlock()
		if cm.conn != nil {
			err = cm.conn.Close()
			cm.conn = nil
		}
	})
	return err
}

// monitorConnection 监听连接关闭事件
func (cm *ConnectionManager) monitorConnection() {
	conn := cm.GetConnection()
	if conn == nil {
		return
	}

	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case err := <-closeCh:
		if err == nil {
			return // 主动关闭
		}
		cm.logger.Error("RabbitMQ连接意外关闭", zap.Error(err))
		if cm.state.CompareAndSwap(int32(StateConnected), int32(StateReconnecting)) && cm.config.EnableReconnect {
			go cm.reconnect()
		} else {
			cm.state.CompareAndSwap(int32(StateReconnecting), int32(StateDisconnected))
		}
	case <-cm.stopCh:
	}
}

// reconnect 按间隔重连，MaxReconnectAttempts 为 0 时不限次数
func (cm *ConnectionManager) reconnect() {
	maxAttempts := cm.config.MaxReconnectAttempts
	for attempt := 1; ; attempt++ {
		select {
		case <-cm.stopCh:
			return
		case <-time.After(cm.config.ReconnectInterval):
		}

		cm.reconnectCount.Add(1)
		ctx, cancel := context.WithTimeout(context.Background(), cm.config.HeartbeatInterval*3)
		err := cm.dial(ctx)
		cancel()

		if err == nil {
			cm.logger.Info("RabbitMQ重连成功", zap.Int("attempts", attempt))
			if cm.onReconnected != nil {
				cm.onReconnected()
			}
			go cm.monitorConnection()
			return
		}

		cm.logger.Warn("RabbitMQ重连失败", zap.Int("attempt", attempt), zap.Error(err))
		if maxAttempts > 0 && attempt >= maxAttempts {
			cm.logger.Error("RabbitMQ重连失败，达到最大重试次数", zap.Int("max_attempts", maxAttempts))
			cm.state.Store(int32(StateDisconnected))
			return
		}
	}
}

// ConnectionStats 连接统计信息
type ConnectionStats struct {
	State            string           `json:"state"`
	ReconnectCount   int32            `json:"reconnect_count"`
	ChannelPoolStats ChannelPoolStats `json:"channel_pool_stats"`
}

// GetStats 获取连接统计信息
func (cm *ConnectionManager) GetStats() ConnectionStats {
	return ConnectionStats{
		State:            cm.GetState().String(),
		ReconnectCount:   cm.reconnectCount.Load(),
		ChannelPoolStats: cm.channelPool.GetStats(),
	}
}
