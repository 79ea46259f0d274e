package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/estate-copilot/server/internal/copilot/model"
	errx "github.com/estate-copilot/server/internal/core/error"
	logx "github.com/estate-copilot/server/pkg/logger"
)

// RedisThreadRepository stores thread checkpoints and their sub-records in
// Redis. One hash-free layout: the checkpoint and every sub-record live under
// their own key prefixed by the thread id, so a candidate, analysis,
// decoration or decision is retrievable independently. The thread id is the
// sole partition key; writes across threads never touch the same keys.
type RedisThreadRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisThreadRepository(rdb redis.Cmdable, ttl time.Duration) *RedisThreadRepository {
	return &RedisThreadRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisThreadRepository) threadKey(threadID string) string {
	return fmt.Sprintf("thread:%s:state", threadID)
}

func (r *RedisThreadRepository) candidateKey(threadID, candidateID string) string {
	return fmt.Sprintf("thread:%s:candidate:%s", threadID, candidateID)
}

func (r *RedisThreadRepository) decisionKey(threadID string) string {
	return fmt.Sprintf("thread:%s:decision", threadID)
}

func (r *RedisThreadRepository) analysisKey(threadID, candidateID string) string {
	return fmt.Sprintf("thread:%s:analysis:%s", threadID, candidateID)
}

func (r *RedisThreadRepository) decorationKey(threadID, candidateID string) string {
	return fmt.Sprintf("thread:%s:decoration:%s", threadID, candidateID)
}

func (r *RedisThreadRepository) setJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to marshal record")
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to write record to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisThreadRepository) getJSON(ctx context.Context, key string, v any) error {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return redis.Nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to read record from redis")
		return errx.WrapRedis(err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to unmarshal record")
		return fmt.Errorf("unmarshal record: %w", err)
	}
	return nil
}

func (r *RedisThreadRepository) SaveThread(ctx context.Context, state *model.ThreadState) error {
	state.UpdatedAt = time.Now().UTC()
	return r.setJSON(ctx, r.threadKey(state.ThreadID), state)
}

func (r *RedisThreadRepository) GetThread(ctx context.Context, threadID string) (*model.ThreadState, error) {
	var state model.ThreadState
	if err := r.getJSON(ctx, r.threadKey(threadID), &state); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.UnknownThread(threadID)
		}
		return nil, err
	}
	return &state, nil
}

func (r *RedisThreadRepository) PutCandidate(ctx context.Context, threadID string, c *model.Candidate) error {
	return r.setJSON(ctx, r.candidateKey(threadID, c.ID), c)
}

func (r *RedisThreadRepository) GetCandidate(ctx context.Context, threadID, candidateID string) (*model.Candidate, error) {
	var c model.Candidate
	if err := r.getJSON(ctx, r.candidateKey(threadID, candidateID), &c); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.WrapRedis(err)
		}
		return nil, err
	}
	return &c, nil
}

func (r *RedisThreadRepository) PutDecision(ctx context.Context, d *model.ApprovalDecision) error {
	return r.setJSON(ctx, r.decisionKey(d.ThreadID), d)
}

func (r *RedisThreadRepository) GetDecision(ctx context.Context, threadID string) (*model.ApprovalDecision, error) {
	var d model.ApprovalDecision
	if err := r.getJSON(ctx, r.decisionKey(threadID), &d); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *RedisThreadRepository) PutAnalysis(ctx context.Context, threadID string, a *model.LocationAnalysis) error {
	return r.setJSON(ctx, r.analysisKey(threadID, a.CandidateID), a)
}

func (r *RedisThreadRepository) GetAnalysis(ctx context.Context, threadID, candidateID string) (*model.LocationAnalysis, error) {
	var a model.LocationAnalysis
	if err := r.getJSON(ctx, r.analysisKey(threadID, candidateID), &a); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.WrapRedis(err)
		}
		return nil, err
	}
	return &a, nil
}

func (r *RedisThreadRepository) PutDecoration(ctx context.Context, threadID string, d *model.DecoratedImage) error {
	return r.setJSON(ctx, r.decorationKey(threadID, d.CandidateID), d)
}

func (r *RedisThreadRepository) GetDecoration(ctx context.Context, threadID, candidateID string) (*model.DecoratedImage, error) {
	var d model.DecoratedImage
	if err := r.getJSON(ctx, r.decorationKey(threadID, candidateID), &d); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.WrapRedis(err)
		}
		return nil, err
	}
	return &d, nil
}

func (r *RedisThreadRepository) ClearThread(ctx context.Context, threadID string) error {
	state, err := r.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	keys := []string{r.threadKey(threadID), r.decisionKey(threadID)}
	for _, id := range state.CandidateIDs {
		keys = append(keys,
			r.candidateKey(threadID, id),
			r.analysisKey(threadID, id),
			r.decorationKey(threadID, id),
		)
	}
	// RejectedIDs may reference candidates from earlier rounds no longer in
	// CandidateIDs.
	for _, id := range state.RejectedIDs {
		keys = append(keys, r.candidateKey(threadID, id))
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to clear thread keys")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.ThreadRepository = (*RedisThreadRepository)(nil)
