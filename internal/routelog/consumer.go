package routelog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// Consumer 消费 KafkaSink 发出去的路由日志，再转交给另外一个 Sink
type Consumer struct {
	sink   Sink
	Logger *slog.Logger
}

func NewConsumer(sink Sink) *Consumer {
	return &Consumer{sink: sink, Logger: slog.Default()}
}

func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	c.Logger.Info("启动路由日志消费者", slog.String("member_id", session.MemberID()))
	return nil
}

func (c *Consumer) Cleanup(session sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := c.consume(msg); err != nil {
			c.Logger.Error("消费路由日志失败", slog.Any("err", err))
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

func (c *Consumer) consume(msg *sarama.ConsumerMessage) error {
	entry, err := Decode(msg.Value)
	if err != nil {
		return fmt.Errorf("解析路由日志失败 %w, offset = %d", err, msg.Offset)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()
	return c.sink.Record(ctx, entry)
}
