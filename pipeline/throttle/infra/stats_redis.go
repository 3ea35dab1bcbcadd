package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"upload-throttle/pipeline/throttle/domain"

	"github.com/redis/go-redis/v9"
)

type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por sessão.
	// total e stage são cumulativos e não expiram.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackSessions bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackSessions(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackSessions = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "throttle:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record grava contadores em hashes:
//
//	<prefix>:total            <kind>
//	<prefix>:stage:<stage>    <kind>, wait_us
//	<prefix>:minute:<ts>      <stage>:<kind>
//	<prefix>:session:<id>     <stage>:<kind>
func (s *RedisStatsStore) Record(ctx context.Context, ev domain.GateEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := string(ev.Kind)
	stageField := string(ev.Stage) + ":" + field

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	stageKey := s.prefix + ":stage:" + string(ev.Stage)
	pipe.HIncrBy(ctx, stageKey, field, 1)
	if ev.Waited > 0 {
		pipe.HIncrBy(ctx, stageKey, "wait_us", ev.Waited.Microseconds())
	}

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, stageField, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if s.trackSessions {
		id := strings.TrimSpace(ev.Session)
		if id != "" {
			sessionKey := s.prefix + ":session:" + id
			pipe.HIncrBy(ctx, sessionKey, stageField, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, sessionKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
