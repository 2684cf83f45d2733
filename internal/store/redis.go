package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/planweave/config"
	"github.com/mohammad-safakhou/planweave/internal/workflow"
)

// The slot key must not live under the workflow prefix: a workflow whose
// derived id is "current" would otherwise overwrite the slot.
const (
	workflowKeyPrefix = "workflow:"
	workflowIndexKey  = "workflows"
	currentKey        = "current_workflow"
)

// RedisStore keeps workflows as JSON documents in Redis, with a set of ids
// as the listing index.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and pings it.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*workflow.Workflow, error) {
	val, err := s.client.Get(ctx, workflowKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrWorkflowNotFound
		}
		return nil, err
	}
	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(val), &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (s *RedisStore) Upsert(ctx context.Context, wf *workflow.Workflow) error {
	now := time.Now().UTC()
	wf.UpdatedAt = now
	if existing, err := s.Get(ctx, wf.ID); err == nil {
		wf.CreatedAt = existing.CreatedAt
	} else if errors.Is(err, ErrWorkflowNotFound) {
		wf.CreatedAt = now
	} else {
		return err
	}

	data, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, workflowKeyPrefix+wf.ID, data, 0)
	pipe.SAdd(ctx, workflowIndexKey, wf.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, workflowKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrWorkflowNotFound
	}
	return s.client.SRem(ctx, workflowIndexKey, id).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]workflow.Workflow, error) {
	ids, err := s.client.SMembers(ctx, workflowIndexKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	var out []workflow.Workflow
	for _, id := range ids {
		wf, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrWorkflowNotFound) {
				// index entry without a document, drop it
				_ = s.client.SRem(ctx, workflowIndexKey, id).Err()
				continue
			}
			return nil, err
		}
		out = append(out, *wf)
	}
	return out, nil
}

func (s *RedisStore) SetCurrent(ctx context.Context, wf *workflow.Workflow) error {
	wf.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, currentKey, data, 0).Err()
}

func (s *RedisStore) GetCurrent(ctx context.Context) (*workflow.Workflow, error) {
	val, err := s.client.Get(ctx, currentKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoCurrent
		}
		return nil, err
	}
	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(val), &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}
