package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/relkit/go-release/journal"
)

type RedisOptions struct {
	journal.Options

	// KeyPrefix namespaces all journal keys.
	KeyPrefix string
}

type RedisStoreOption func(*RedisOptions)

func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(o *RedisOptions) {
		o.KeyPrefix = prefix
	}
}

func WithStoreOptions(opts ...journal.Option) RedisStoreOption {
	return func(o *RedisOptions) {
		for _, opt := range opts {
			opt(&o.Options)
		}
	}
}

var _ journal.Store = (*redisStore)(nil)

func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) (*redisStore, error) {
	options := &RedisOptions{
		Options:   journal.ApplyOptions(),
		KeyPrefix: "go-release:",
	}

	for _, opt := range opts {
		opt(options)
	}

	return &redisStore{
		rdb:     client,
		options: options,
	}, nil
}

type redisStore struct {
	rdb     redis.UniversalClient
	options *RedisOptions
}

func (s *redisStore) CreateRun(ctx context.Context, run *journal.Run) error {
	b, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, runKey(s.options.KeyPrefix, run.ID), string(b), 0).Result()
	if err != nil {
		return fmt.Errorf("storing run: %w", err)
	}
	if !ok {
		return journal.ErrRunAlreadyExists
	}

	if err := s.rdb.ZAdd(ctx, runsByCreation(s.options.KeyPrefix), redis.Z{
		Score:  float64(run.CreatedAt.UnixMilli()),
		Member: run.ID,
	}).Err(); err != nil {
		return fmt.Errorf("indexing run: %w", err)
	}

	s.options.Logger.Debug("Journaled run start")

	return nil
}

func (s *redisStore) CompleteRun(ctx context.Context, run *journal.Run) error {
	key := runKey(s.options.KeyPrefix, run.ID)

	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("checking run: %w", err)
	}
	if exists == 0 {
		return journal.ErrRunNotFound
	}

	b, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	if err := s.rdb.Set(ctx, key, string(b), 0).Err(); err != nil {
		return fmt.Errorf("storing run: %w", err)
	}

	return nil
}

func (s *redisStore) RecordTasks(ctx context.Context, runID string, records []*journal.TaskRecord) error {
	if len(records) == 0 {
		return nil
	}

	p := s.rdb.TxPipeline()

	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshaling task record: %w", err)
		}

		p.RPush(ctx, taskRecordsKey(s.options.KeyPrefix, runID), string(b))
	}

	if _, err := p.Exec(ctx); err != nil {
		return fmt.Errorf("storing task records: %w", err)
	}

	return nil
}

func (s *redisStore) GetRun(ctx context.Context, runID string) (*journal.Run, error) {
	b, err := s.rdb.Get(ctx, runKey(s.options.KeyPrefix, runID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, journal.ErrRunNotFound
		}

		return nil, fmt.Errorf("reading run: %w", err)
	}

	var run journal.Run
	if err := json.Unmarshal([]byte(b), &run); err != nil {
		return nil, fmt.Errorf("unmarshaling run: %w", err)
	}

	return &run, nil
}

func (s *redisStore) GetTaskRecords(ctx context.Context, runID string) ([]*journal.TaskRecord, error) {
	msgs, err := s.rdb.LRange(ctx, taskRecordsKey(s.options.KeyPrefix, runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading task records: %w", err)
	}

	records := make([]*journal.TaskRecord, 0, len(msgs))
	for _, msg := range msgs {
		var r journal.TaskRecord
		if err := json.Unmarshal([]byte(msg), &r); err != nil {
			return nil, fmt.Errorf("unmarshaling task record: %w", err)
		}

		records = append(records, &r)
	}

	return records, nil
}
