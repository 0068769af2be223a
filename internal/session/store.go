package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/ridebot/internal/kv"
)

// Session is the conversation record of one user.
type Session struct {
	UserID int64
	State  State
	// Data is scratch space between steps, e.g. the raw pickup text.
	Data map[string]string
}

// Store persists sessions. Writes are last-write-wins.
type Store interface {
	// Get returns the session, or an Idle session when none is stored.
	Get(ctx context.Context, userID int64) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}

type record struct {
	UserID int64             `json:"user_id"`
	State  stateDoc          `json:"state"`
	Data   map[string]string `json:"data,omitempty"`
}

func encode(s *Session) ([]byte, error) {
	st := s.State
	if st == nil {
		st = Idle{}
	}
	rec := record{UserID: s.UserID, State: stateDoc{Kind: st.Kind()}, Data: s.Data}
	rec.State.TripID, _ = TripOf(st)
	return json.Marshal(rec)
}

func decode(userID int64, data []byte) (*Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("session: decode %d: %w", userID, err)
	}
	st, err := fromDoc(rec.State)
	if err != nil {
		return nil, err
	}
	return &Session{UserID: userID, State: st, Data: rec.Data}, nil
}

func idle(userID int64) *Session {
	return &Session{UserID: userID, State: Idle{}}
}

// KVStore keeps sessions next to the user's trips and profile.
type KVStore struct {
	kv kv.Store
}

// NewKVStore returns a Store over s.
func NewKVStore(s kv.Store) *KVStore { return &KVStore{kv: s} }

func kvKey(userID int64) kv.Key {
	return kv.Key{PK: "USER#" + strconv.FormatInt(userID, 10), SK: "SESSION"}
}

func (s *KVStore) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := s.kv.Get(ctx, kvKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return idle(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get %d: %w", userID, err)
	}
	return decode(userID, data)
}

func (s *KVStore) Put(ctx context.Context, sess *Session) error {
	data, err := encode(sess)
	if err != nil {
		return fmt.Errorf("session: encode %d: %w", sess.UserID, err)
	}
	if err := s.kv.Put(ctx, kvKey(sess.UserID), data); err != nil {
		return fmt.Errorf("session: put %d: %w", sess.UserID, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, userID int64) error {
	if err := s.kv.Delete(ctx, kvKey(userID)); err != nil {
		return fmt.Errorf("session: delete %d: %w", userID, err)
	}
	return nil
}

// RedisClient is the subset of *redis.Client used by RedisStore.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps sessions in redis with an idle expiry.
type RedisStore struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedisStore returns a Store over client; ttl <= 0 keeps sessions forever.
func NewRedisStore(client RedisClient, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(userID int64) string {
	return "ridebot:session:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := s.client.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return idle(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get %d: %w", userID, err)
	}
	return decode(userID, data)
}

func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	data, err := encode(sess)
	if err != nil {
		return fmt.Errorf("session: encode %d: %w", sess.UserID, err)
	}
	if err := s.client.Set(ctx, redisKey(sess.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set %d: %w", sess.UserID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("session: redis del %d: %w", userID, err)
	}
	return nil
}
