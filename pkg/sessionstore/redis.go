package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatmrpt-be/pkg/store"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists WorkflowState in Redis so that every worker process
// sees the same record. Put runs under WATCH: if another worker commits
// between read and write the transaction aborts and ErrConflict is returned.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Store = &RedisStore{}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: SessionTTL}
}

func sessionKey(sessionID string) string {
	return "chatmrpt:workflow:" + sessionID
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*store.WorkflowState, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sessionstore: get %s: %w", sessionID, err)
	}
	var st store.WorkflowState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("sessionstore: decode %s: %w", sessionID, err)
	}
	return &st, nil
}

func (s *RedisStore) Put(ctx context.Context, st *store.WorkflowState) error {
	key := sessionKey(st.SessionID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		currentVersion := int64(0)
		if err == nil {
			var stored store.WorkflowState
			if err := json.Unmarshal(raw, &stored); err != nil {
				return fmt.Errorf("sessionstore: decode %s: %w", st.SessionID, err)
			}
			currentVersion = stored.Version
		} else if err != redis.Nil {
			return err
		}

		if st.Version != currentVersion {
			return ErrConflict
		}

		next := st.Clone()
		next.Version = currentVersion + 1
		next.UpdatedAt = time.Now()
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("sessionstore: encode %s: %w", st.SessionID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err == nil {
			st.Version = next.Version
			st.UpdatedAt = next.UpdatedAt
		}
		return err
	}

	err := s.rdb.Watch(ctx, txf, key)
	if err == redis.TxFailedErr {
		// Key changed under WATCH: same lost-update condition as a version
		// mismatch, surface it the same way.
		return ErrConflict
	}
	return err
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, sessionKey(sessionID)).Err()
}
