package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fluxionlabs/fluxion/util"
	rd "github.com/go-redis/redis/v9"
	"github.com/google/uuid"
)

type Config struct {
	Addrs     []string
	Namespace string
}

// RedisProvenance persists provenance records in redis: canonical events as
// keyed values, execution and commit records as per-session lists.
type RedisProvenance struct {
	client       rd.UniversalClient
	namespace    string
	eventEncDec  util.EncoderDecoder[CanonicalEvent]
	execEncDec   util.EncoderDecoder[ExecutionRecord]
	commitEncDec util.EncoderDecoder[CommitRecord]
}

func NewRedisProvenance(conf Config) *RedisProvenance {
	client := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs: conf.Addrs,
	})
	return &RedisProvenance{
		client:       client,
		namespace:    conf.Namespace,
		eventEncDec:  util.NewJsonEncoderDecoder[CanonicalEvent](),
		execEncDec:   util.NewJsonEncoderDecoder[ExecutionRecord](),
		commitEncDec: util.NewJsonEncoderDecoder[CommitRecord](),
	}
}

func (r *RedisProvenance) key(args ...string) string {
	return fmt.Sprintf("%s:%s", r.namespace, strings.Join(args, ":"))
}

func (r *RedisProvenance) UpsertCanonicalEvent(ctx context.Context, ev CanonicalEvent) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := r.eventEncDec.Encode(ev)
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, r.key("event", ev.ID), data, 0).Err(); err != nil {
		return "", fmt.Errorf("upserting event %s: %w", ev.ID, err)
	}
	return ev.ID, nil
}

func (r *RedisProvenance) GetCanonicalEvent(ctx context.Context, id string) (*CanonicalEvent, error) {
	val, err := r.client.Get(ctx, r.key("event", id)).Result()
	if err != nil {
		return nil, err
	}
	return r.eventEncDec.Decode([]byte(val))
}

func (r *RedisProvenance) RecordExecution(ctx context.Context, rec ExecutionRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	data, err := r.execEncDec.Encode(rec)
	if err != nil {
		return err
	}
	return r.client.LPush(ctx, r.key("executions", rec.SessionID), data).Err()
}

func (r *RedisProvenance) RecordCommit(ctx context.Context, rec CommitRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	data, err := r.commitEncDec.Encode(rec)
	if err != nil {
		return err
	}
	return r.client.LPush(ctx, r.key("commits", rec.SessionID), data).Err()
}

var _ Provenance = (*RedisProvenance)(nil)
