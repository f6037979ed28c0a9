package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPrefix = "authservice:settings"

// RedisStore persists settings in Redis as integer seconds so that every
// instance shares them, and fans changes out over pub/sub. Reads are served
// from a local cache kept current by Run.
type RedisStore struct {
	rdb     redis.UniversalClient
	prefix  string
	channel string
	vals    *values
	log     logrus.FieldLogger
}

type changeMessage struct {
	Key     Key   `json:"key"`
	Seconds int64 `json:"seconds"`
}

func NewRedisStore(rdb redis.UniversalClient, d Defaults, log logrus.FieldLogger) *RedisStore {
	return &RedisStore{
		rdb:     rdb,
		prefix:  defaultPrefix,
		channel: defaultPrefix + ":changed",
		vals:    newValues(d),
		log:     log.WithField("component", "settings"),
	}
}

func (s *RedisStore) key(k Key) string {
	return s.prefix + ":" + string(k)
}

// Channel is the pub/sub channel change messages are published on.
func (s *RedisStore) Channel() string {
	return s.channel
}

func (s *RedisStore) AccessTokenLifetime() time.Duration {
	return s.vals.get(AccessTokenLifetime)
}

func (s *RedisStore) RefreshTokenLifetime() time.Duration {
	return s.vals.get(RefreshTokenLifetime)
}

func (s *RedisStore) Subscribe(fn Listener) func() {
	return s.vals.subscribe(fn)
}

// Load writes defaults for keys nobody has set yet and fills the cache
// from Redis without notifying listeners.
func (s *RedisStore) Load(ctx context.Context) error {
	for _, k := range Keys {
		def := int64(s.vals.get(k) / time.Second)
		if err := s.rdb.SetNX(ctx, s.key(k), def, 0).Err(); err != nil {
			return fmt.Errorf("seed %s: %w", k, err)
		}

		raw, err := s.rdb.Get(ctx, s.key(k)).Result()
		if err != nil {
			return fmt.Errorf("read %s: %w", k, err)
		}
		value, err := parseSeconds(raw)
		if err != nil {
			return fmt.Errorf("read %s: %w", k, err)
		}
		s.vals.seed(k, value)
	}
	return nil
}

// Set persists value, applies it locally and tells the other instances.
func (s *RedisStore) Set(ctx context.Context, key Key, value time.Duration) error {
	if err := Validate(key, value); err != nil {
		return err
	}

	seconds := int64(value / time.Second)
	payload, err := json.Marshal(changeMessage{Key: key, Seconds: seconds})
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(key), seconds, 0)
		p.Publish(ctx, s.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}

	s.vals.apply(key, value)
	return nil
}

// Run listens for changes published by any instance until ctx is done.
func (s *RedisStore) Run(ctx context.Context) error {
	pubsub := s.rdb.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	// Anything set between Load and the subscription is picked up here.
	if err := s.refresh(ctx); err != nil {
		s.log.WithError(err).Warn("settings refresh after subscribe failed")
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(msg.Payload)
		}
	}
}

func (s *RedisStore) refresh(ctx context.Context) error {
	for _, k := range Keys {
		raw, err := s.rdb.Get(ctx, s.key(k)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return err
		}
		value, err := parseSeconds(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		s.vals.apply(k, value)
	}
	return nil
}

func (s *RedisStore) handle(payload string) {
	var msg changeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		s.log.WithError(err).Warn("dropping malformed settings message")
		return
	}
	value := time.Duration(msg.Seconds) * time.Second
	if err := Validate(msg.Key, value); err != nil {
		s.log.WithError(err).Warn("dropping invalid settings message")
		return
	}

	s.log.WithFields(logrus.Fields{"key": msg.Key, "seconds": msg.Seconds}).Info("setting changed")
	s.vals.apply(msg.Key, value)
}

func parseSeconds(raw string) (time.Duration, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, raw)
	}
	return time.Duration(n) * time.Second, nil
}
