package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"auv-monitor/ingestion/internal/config"
	"auv-monitor/ingestion/internal/domain"
)

// RedisStore backs alert deduplication, the latest-state cache for
// live dashboards, and cross-instance pub/sub of stream events.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// Claim implements rules.DedupIndex with a single atomic SET NX PX.
// The key lives exactly one dedupe window, giving lazy expiry for
// free.
func (r *RedisStore) Claim(ctx context.Context, ruleID, auvID string, now time.Time, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	key := fmt.Sprintf("alert:dedupe:%s:%s", ruleID, auvID)
	ok, err := r.client.SetNX(ctx, key, now.Format(time.RFC3339Nano), window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim failed: %w", err)
	}
	return ok, nil
}

// UpdateState refreshes the latest-position cache for one vehicle and
// publishes the record on its telemetry channel.
func (r *RedisStore) UpdateState(ctx context.Context, rec *domain.TelemetryRecord) error {
	stateData := map[string]interface{}{
		"auv_id":      rec.AUVID,
		"lat":         rec.Position.Lat,
		"lng":         rec.Position.Lng,
		"depth_m":     rec.Position.DepthM,
		"speed":       rec.Position.Speed,
		"heading":     rec.Position.Heading,
		"timestamp":   rec.Timestamp.Unix(),
		"received_at": rec.ReceivedAt.Unix(),
	}
	if rec.Battery != nil {
		stateData["battery_pct"] = rec.Battery.LevelPct
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	stateKey := fmt.Sprintf("auv:%s:state", rec.AUVID)
	geoKey := "auv:geo"
	pubChannel := fmt.Sprintf("auv:%s:telemetry", rec.AUVID)

	pipe := r.client.Pipeline()

	pipe.HSet(ctx, stateKey, stateData)
	pipe.Expire(ctx, stateKey, 60*time.Second)
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      rec.AUVID,
		Longitude: rec.Position.Lng,
		Latitude:  rec.Position.Lat,
	})
	pipe.Publish(ctx, pubChannel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}

	return nil
}

// PublishAlert broadcasts an alert event for other instances'
// stream hubs.
func (r *RedisStore) PublishAlert(ctx context.Context, auvID string, payload []byte) error {
	channel := fmt.Sprintf("auv:%s:alerts", auvID)
	return r.client.Publish(ctx, channel, payload).Err()
}

// GetAPIKey resolves an API key to its AUV id, empty when unknown.
func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("auv:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}
