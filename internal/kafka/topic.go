package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EnsureTopic creates the OrderPlaced topic when it is missing and waits
// until its partitions are visible in the metadata. Calling it for an
// existing topic is a no-op.
func EnsureTopic(ctx context.Context, brokers []string, topic string, numPartitions, replicationFactor int, log *zap.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if strings.TrimSpace(topic) == "" {
		return errors.New("empty topic")
	}
	numPartitions = max(numPartitions, 1)
	replicationFactor = max(replicationFactor, 1)

	dialer := &kafkago.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	if parts, err := conn.ReadPartitions(topic); err == nil && len(parts) > 0 {
		log.Info("kafka topic exists", zap.String("topic", topic), zap.Int("partitions", len(parts)))
		return nil
	}

	log.Info("creating kafka topic",
		zap.String("topic", topic),
		zap.Int("partitions", numPartitions),
		zap.Int("replication", replicationFactor),
	)
	if err := createOnController(ctx, dialer, conn, kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}); err != nil {
		return err
	}
	if err := waitForPartitions(ctx, conn, topic, numPartitions, 10*time.Second); err != nil {
		return err
	}
	log.Info("kafka topic is ready", zap.String("topic", topic))
	return nil
}

// createOnController sends CreateTopics to the controller broker, the only
// one allowed to create topics. A concurrent creator winning the race is fine.
func createOnController(ctx context.Context, dialer *kafkago.Dialer, conn *kafkago.Conn, cfg kafkago.TopicConfig) error {
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get controller: %w", err)
	}
	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))

	ctrlConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", addr, err)
	}
	defer ctrlConn.Close()

	err = ctrlConn.CreateTopics(cfg)
	if err != nil && !errors.Is(err, kafkago.TopicAlreadyExists) {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

func waitForPartitions(ctx context.Context, conn *kafkago.Conn, topic string, want int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		parts, err := conn.ReadPartitions(topic)
		if err == nil && len(parts) >= want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("topic %s not visible after creation", topic)
		}
		sleepWithContext(ctx, 500*time.Millisecond)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
