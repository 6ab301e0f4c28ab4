// Package mq 提供 Kafka producer/consumer 通用实现
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bitvex/marketcenter/pkg/logger"
)

// Config Kafka 配置
type Config struct {
	Brokers        []string
	GroupID        string
	SessionTimeout int
}

// Producer Kafka 生产者
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg Config) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
	logger.Info(context.Background(), "Kafka producer created", "brokers", cfg.Brokers)
	return &Producer{writer: writer}
}

// Send 序列化并发送单条消息
func (p *Producer) Send(ctx context.Context, topic, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", topic, err)
	}
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Handler 消息处理函数；返回错误时仅记录日志，不会中断消费循环
type Handler func(ctx context.Context, msg kafka.Message) error

// Consumer Kafka 消费者，按 topic 建立独立的 reader
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer 创建指定主题的消费者
func NewConsumer(cfg Config, topic string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		SessionTimeout: time.Duration(cfg.SessionTimeout) * time.Second,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
		MaxBytes:       10e6,
	})
	logger.Info(context.Background(), "Kafka consumer created", "topic", topic, "group_id", cfg.GroupID)
	return &Consumer{reader: reader, topic: topic}
}

// Start 启动消费循环，直到 ctx 取消。单条消息的处理失败只记录日志，
// 消息照常提交，避免坏消息阻塞整个分区。
func (c *Consumer) Start(ctx context.Context, handler Handler) {
	go func() {
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				logger.Error(ctx, "failed to read kafka message", "topic", c.topic, "error", err)
				continue
			}
			if err := handler(ctx, msg); err != nil {
				logger.Error(ctx, "failed to handle kafka message",
					"topic", c.topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
			}
		}
	}()
}

// Close 关闭消费者
func (c *Consumer) Close() error {
	return c.reader.Close()
}
