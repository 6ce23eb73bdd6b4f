package feed

import (
	"context"

	"github.com/segmentio/kafka-go"

	"secdash/internal/config"
)

// StartKafka consumes alert and traffic records published by the detection
// collaborator. One reader per configured topic; records failing validation
// are logged and skipped.
func StartKafka(ctx context.Context, cfg *config.Manager, sinks Sinks) {
	feedCfg := cfg.Get().Feed
	current := feedCfg.Kafka
	if !current.Enabled {
		if sinks.Logger != nil {
			sinks.Logger.Info("kafka feed disabled")
		}
		return
	}
	if sinks.Logger != nil {
		sinks.Logger.Info("kafka feed enabled",
			"brokers", current.Brokers,
			"alerts_topic", current.AlertsTopic,
			"traffic_topic", current.TrafficTopic,
			"group_id", current.GroupID,
		)
	}
	if current.AlertsTopic != "" {
		go consume(ctx, feedCfg, current.AlertsTopic, sinks, func(ctx context.Context, value []byte) error {
			alert, err := DecodeAlert(value)
			if err != nil {
				return err
			}
			sinks.acceptAlert(ctx, alert)
			return nil
		})
	}
	if current.TrafficTopic != "" {
		go consume(ctx, feedCfg, current.TrafficTopic, sinks, func(ctx context.Context, value []byte) error {
			record, err := DecodeTraffic(value)
			if err != nil {
				return err
			}
			sinks.acceptTraffic(ctx, record)
			return nil
		})
	}
}

func consume(ctx context.Context, cfg config.FeedConfig, topic string, sinks Sinks, handle func(context.Context, []byte) error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         topic,
		GroupID:       cfg.Kafka.GroupID,
		MinBytes:      1e3,
		MaxBytes:      10e6,
		QueueCapacity: cfg.ChannelBuffer,
	})
	defer reader.Close()
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if sinks.Logger != nil {
				sinks.Logger.Warn("kafka read error", "topic", topic, "err", err)
			}
			continue
		}
		if err := handle(ctx, m.Value); err != nil {
			if sinks.Logger != nil {
				sinks.Logger.Warn("record rejected", "topic", topic, "err", err)
			}
		}
	}
}
