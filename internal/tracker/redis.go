package tracker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ai-junction/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "junction:perf:"

	fieldTotal      = "total_executions"
	fieldSuccessful = "successful_executions"
)

// RedisTracker keeps counters in a hash and recent times in a capped list.
type RedisTracker struct {
	client *redis.Client
	prefix string
}

func NewRedisTracker(client *redis.Client, prefix string) *RedisTracker {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisTracker{client: client, prefix: prefix}
}

func (t *RedisTracker) countsKey(id string) string { return t.prefix + id }
func (t *RedisTracker) timesKey(id string) string  { return t.prefix + id + ":times" }

func (t *RedisTracker) Track(ctx context.Context, id string, elapsed time.Duration, success bool) error {
	var successInc int64
	if success {
		successInc = 1
	}

	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, t.countsKey(id), fieldTotal, 1)
		pipe.HIncrBy(ctx, t.countsKey(id), fieldSuccessful, successInc)
		pipe.RPush(ctx, t.timesKey(id), strconv.FormatFloat(elapsed.Seconds(), 'f', -1, 64))
		pipe.LTrim(ctx, t.timesKey(id), -HistorySize, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("track %s: %w", id, err)
	}
	return nil
}

func (t *RedisTracker) Metrics(ctx context.Context, id string) (models.PerformanceMetrics, bool, error) {
	var counts *redis.MapStringStringCmd
	var times *redis.StringSliceCmd
	_, err := t.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		counts = pipe.HGetAll(ctx, t.countsKey(id))
		times = pipe.LRange(ctx, t.timesKey(id), 0, -1)
		return nil
	})
	if err != nil {
		return models.PerformanceMetrics{}, false, fmt.Errorf("metrics %s: %w", id, err)
	}

	fields := counts.Val()
	if len(fields) == 0 {
		return models.PerformanceMetrics{}, false, nil
	}

	total, err := strconv.ParseInt(fields[fieldTotal], 10, 64)
	if err != nil {
		return models.PerformanceMetrics{}, false, fmt.Errorf("metrics %s: bad total: %w", id, err)
	}
	successful, _ := strconv.ParseInt(fields[fieldSuccessful], 10, 64)

	samples := make([]float64, 0, len(times.Val()))
	for _, raw := range times.Val() {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		samples = append(samples, v)
	}

	return summarize(total, successful, samples), true, nil
}
