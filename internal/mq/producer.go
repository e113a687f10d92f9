package mq

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Producer 带发布确认的生产者
type Producer struct {
	cm     *ConnectionManager
	config *Config
	logger *zap.Logger

	// 统计信息
	publishedCount atomic.Int64
	failedCount    atomic.Int64
}

// NewProducer 创建生产者
func NewProducer(cm *ConnectionManager, config *Config, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{cm: cm, config: config, logger: logger}
}

// DeclareExchange 声明持久化的 topic 交换机
func (p *Producer) DeclareExchange(name string) error {
	ch, err := p.cm.GetChannel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}
	defer p.cm.ReturnChannel(ch)

	if err := ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}
	return nil
}

// Publish 发布持久化的 JSON 消息并等待 broker 确认
func (p *Producer) Publish(ctx context.Context, exchange, routingKey, messageID string, body []byte) error {
	ch, err := p.cm.GetChannel()
	if err != nil {
		p.failedCount.Add(1)
		return fmt.Errorf("failed to get channel: %w", err)
	}
	defer p.cm.ReturnChannel(ch)

	publishCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(publishCtx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.failedCount.Add(1)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	confirmCtx, cancelConfirm := context.WithTimeout(ctx, p.config.ConfirmTimeout)
	defer cancelConfirm()
	acked, err := confirm.WaitContext(confirmCtx)
	if err != nil {
		p.failedCount.Add(1)
		return fmt.Errorf("publish confirmation: %w", err)
	}
	if !acked {
		p.failedCount.Add(1)
		return fmt.Errorf("message was nacked by broker")
	}

	p.publishedCount.Add(1)
	return nil
}

// ProducerStats 生产者统计信息
type ProducerStats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
}

// GetStats 获取统计信息
func (p *Producer) GetStats() ProducerStats {
	return ProducerStats{Published: p.publishedCount.Load(), Failed: p.failedCount.Load()}
}
