package publish

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/banshee-data/motion.report/internal/motion"
)

const (
	// DefaultStateKey holds the latest state as JSON.
	DefaultStateKey = "motion:state"
	// DefaultStream receives one entry per published state.
	DefaultStream = "motion:states"
	// DefaultStreamMaxLen trims the stream to roughly the last hour at 1Hz.
	DefaultStreamMaxLen = 3600
)

// RedisOptions configures a RedisSink. Zero values take the defaults.
type RedisOptions struct {
	Key          string
	Stream       string
	StreamMaxLen int64
}

// RedisSink writes the latest state to a key and appends it to a stream.
type RedisSink struct {
	client   *redis.Client
	deviceID string
	key      string
	stream   string
	maxLen   int64
}

func NewRedisSink(client *redis.Client, deviceID string, opts RedisOptions) *RedisSink {
	if opts.Key == "" {
		opts.Key = DefaultStateKey
	}
	if opts.Stream == "" {
		opts.Stream = DefaultStream
	}
	if opts.StreamMaxLen <= 0 {
		opts.StreamMaxLen = DefaultStreamMaxLen
	}
	return &RedisSink{
		client:   client,
		deviceID: deviceID,
		key:      opts.Key,
		stream:   opts.Stream,
		maxLen:   opts.StreamMaxLen,
	}
}

// NewRedisClient creates a client for addr and checks it with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Publish(ctx context.Context, st motion.MovementState) error {
	payload, err := Encode(s.deviceID, st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key, payload, 0)
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Values: map[string]interface{}{
				"device_id":  s.deviceID,
				"type":       string(st.Type),
				"confidence": fmt.Sprintf("%.4f", st.Confidence),
				"data":       string(payload),
			},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write state to redis: %w", err)
	}
	return nil
}
