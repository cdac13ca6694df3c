package routelog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

// Sink 接收路由日志。Record 返回的错误只会被记录，不会影响语句执行
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// SlogSink 直接打印日志
type SlogSink struct {
	Logger *slog.Logger
}

func NewSlogSink() *SlogSink {
	return &SlogSink{Logger: slog.Default()}
}

func (s *SlogSink) Record(ctx context.Context, entry Entry) error {
	s.Logger.InfoContext(ctx, "Logic SQL", slog.String("sql", entry.LogicSQL),
		slog.Int("units", len(entry.Units)))
	for _, u := range entry.Units {
		s.Logger.InfoContext(ctx, "Actual SQL", slog.String("data_source", u.DataSource),
			slog.String("sql", u.SQL), slog.Any("args", u.Args))
	}
	return nil
}

// KafkaSink 把路由日志发到 Kafka，交给审计之类的下游处理
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	Logger   *slog.Logger
}

func NewKafkaSink(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic, Logger: slog.Default()}
}

func (k *KafkaSink) Record(ctx context.Context, entry Entry) error {
	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Value: sarama.ByteEncoder(entry.Encode()),
	})
	if err != nil {
		return fmt.Errorf("发送路由日志失败 %w, topic %s", err, k.topic)
	}
	k.Logger.DebugContext(ctx, "发送路由日志", slog.String("topic", k.topic),
		slog.Int("partition", int(partition)), slog.Int64("offset", offset))
	return nil
}

// MultiSink 依次交给多个 Sink，返回第一个错误
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, entry Entry) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
