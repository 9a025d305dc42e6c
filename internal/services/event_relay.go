package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lingualab/oralis/internal/exam"
)

// RedisEventSink publishes engine events to a per-session Redis channel. The
// websocket handler subscribes to the same channel, so events reach the
// candidate regardless of which instance hosts the socket.
type RedisEventSink struct {
	rdb *redis.Client
	log *logrus.Logger
}

func NewRedisEventSink(rdb *redis.Client, log *logrus.Logger) *RedisEventSink {
	if log == nil {
		log = logrus.New()
	}
	return &RedisEventSink{rdb: rdb, log: log}
}

func eventChannel(sessionID string) string {
	return "session:" + sessionID + ":events"
}

func (s *RedisEventSink) Emit(ctx context.Context, sessionID string, ev exam.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.WithError(err).Error("marshal event")
		return
	}
	if err := s.rdb.Publish(ctx, eventChannel(sessionID), payload).Err(); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("publish event failed")
	}
}

// Subscribe opens the event stream for one session. The caller owns the
// returned PubSub and must Close it.
func (s *RedisEventSink) Subscribe(ctx context.Context, sessionID string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, eventChannel(sessionID))
}
