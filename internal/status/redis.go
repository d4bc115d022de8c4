package status

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// RedisSink mirrors the latest cycle result into a redis hash and
// notifies subscribers, so local consumers (dashboards, other services)
// can follow the tracker without touching its log files.
type RedisSink struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedisSink creates a sink against the given redis URL.
func NewRedisSink(redisURL string, logger *log.Logger) (*RedisSink, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %v", err)
	}
	return &RedisSink{client: redis.NewClient(opt), logger: logger}, nil
}

// Ping checks if the redis server is reachable.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Publish writes the update to the "tracker" hash and publishes the
// field that changed. Errors are logged and swallowed; the sink is not
// on the critical path.
func (s *RedisSink) Publish(u Update) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	data := map[string]interface{}{
		"has-fix":   fmt.Sprintf("%t", u.HasFix),
		"outcome":   u.Outcome,
		"timestamp": u.Timestamp,
	}
	if u.HasFix {
		data["latitude"] = fmt.Sprintf("%.6f", u.Latitude)
		data["longitude"] = fmt.Sprintf("%.6f", u.Longitude)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, "tracker", data)
	pipe.Publish(ctx, "tracker", "timestamp")
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Printf("Unable to publish tracker state to redis: %v", err)
	}
}

// Close closes the redis client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
