package persistence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eduxora/stageflow/pkg/api"
)

// RedisSnapshotStore is a SnapshotStore backed by Redis.
// Each request is a single hash:
//
//	<prefix>snap:<id>  => HASH {request, request_at, current, current_at}
//
// When ttl is positive the hash expires ttl after the last write, which
// bounds how stale a fallback view can get.
type RedisSnapshotStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ SnapshotStore = (*RedisSnapshotStore)(nil)

const (
	fieldRequest   = "request"
	fieldRequestAt = "request_at"
	fieldCurrent   = "current"
	fieldCurrentAt = "current_at"
)

// NewRedisSnapshotStore creates a RedisSnapshotStore.
// prefix is optional but recommended (e.g. "stageflow:").
func NewRedisSnapshotStore(client *redis.Client, prefix string, ttl time.Duration) *RedisSnapshotStore {
	if prefix == "" {
		prefix = "stageflow:"
	}
	return &RedisSnapshotStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisSnapshotStore) keySnapshot(id string) string {
	return r.prefix + "snap:" + id
}

func (r *RedisSnapshotStore) SaveRequest(ctx context.Context, req *api.WorkflowRequest, at time.Time) error {
	data, err := encodeValue(req)
	if err != nil {
		return err
	}
	return r.save(ctx, req.ID, fieldRequest, data, fieldRequestAt, at)
}

func (r *RedisSnapshotStore) SaveCurrentStage(ctx context.Context, requestID string, cur *api.CurrentStage, at time.Time) error {
	data, err := encodeValue(cur)
	if err != nil {
		return err
	}
	return r.save(ctx, requestID, fieldCurrent, data, fieldCurrentAt, at)
}

func (r *RedisSnapshotStore) save(ctx context.Context, id, field string, data []byte, atField string, at time.Time) error {
	key := r.keySnapshot(id)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, field, data, atField, unixNanos(at))
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisSnapshotStore) GetSnapshot(ctx context.Context, requestID string) (*api.Snapshot, error) {
	fields, err := r.client.HGetAll(ctx, r.keySnapshot(requestID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrSnapshotNotFound
	}

	requestAt, err := parseNanos(fields[fieldRequestAt])
	if err != nil {
		return nil, err
	}
	currentAt, err := parseNanos(fields[fieldCurrentAt])
	if err != nil {
		return nil, err
	}

	return buildSnapshot(requestID,
		[]byte(fields[fieldRequest]), requestAt,
		[]byte(fields[fieldCurrent]), currentAt,
	)
}

func (r *RedisSnapshotStore) Invalidate(ctx context.Context, requestID string) error {
	return r.client.Del(ctx, r.keySnapshot(requestID)).Err()
}

func parseNanos(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return fromUnixNanos(n), nil
}
