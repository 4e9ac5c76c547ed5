package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"messenger-service/internal/events"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

const (
	redisChannel = "messenger:presence"
	keyTTL       = 90 * time.Second
)

// Tracker maintains online flags. Every change lands in the profiles table
// and on the broker; with redis configured it is also mirrored into a TTL'd
// key and a pub/sub channel so sibling instances converge.
type Tracker struct {
	profiles repositories.ProfileRepository
	broker   *events.Broker
	redis    *redis.Client
}

// NewTracker constructs a Tracker. redisClient may be nil.
func NewTracker(profiles repositories.ProfileRepository, broker *events.Broker, redisClient *redis.Client) *Tracker {
	return &Tracker{profiles: profiles, broker: broker, redis: redisClient}
}

// SetOnline marks a user online.
func (t *Tracker) SetOnline(ctx context.Context, userID int) error {
	return t.set(ctx, userID, true)
}

// SetOffline marks a user offline. Callers treat this as best-effort on
// disconnect paths.
func (t *Tracker) SetOffline(ctx context.Context, userID int) error {
	return t.set(ctx, userID, false)
}

func (t *Tracker) set(ctx context.Context, userID int, online bool) error {
	if err := t.profiles.SetOnline(ctx, userID, online); err != nil {
		return fmt.Errorf("set online flag: %w", err)
	}

	event := models.PresenceEvent{UserID: userID, Online: online}
	t.broker.Publish(events.TopicPresence(userID), event)

	if t.redis != nil {
		key := "messenger:online:" + strconv.Itoa(userID)
		if online {
			if err := t.redis.Set(ctx, key, "1", keyTTL).Err(); err != nil {
				log.Warn().Err(err).Int("user_id", userID).Msg("redis presence set failed")
			}
		} else {
			if err := t.redis.Del(ctx, key).Err(); err != nil {
				log.Warn().Err(err).Int("user_id", userID).Msg("redis presence del failed")
			}
		}
		payload, _ := json.Marshal(event)
		if err := t.redis.Publish(ctx, redisChannel, payload).Err(); err != nil {
			log.Warn().Err(err).Msg("redis presence publish failed")
		}
	}
	return nil
}

// Heartbeat refreshes the TTL of a user's online key. Called from the ws
// read loop on ping.
func (t *Tracker) Heartbeat(ctx context.Context, userID int) {
	if t.redis == nil {
		return
	}
	key := "messenger:online:" + strconv.Itoa(userID)
	if err := t.redis.Expire(ctx, key, keyTTL).Err(); err != nil {
		log.Warn().Err(err).Int("user_id", userID).Msg("redis presence heartbeat failed")
	}
}

// Relay subscribes to the redis presence channel and republishes events from
// sibling instances onto the local broker. Locally originated events echo
// back through here too; presence updates are idempotent so that is harmless.
// Blocks until ctx is cancelled.
func (t *Tracker) Relay(ctx context.Context) {
	if t.redis == nil {
		return
	}
	pubsub := t.redis.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event models.PresenceEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Msg("bad presence payload from redis")
				continue
			}
			t.broker.Publish(events.TopicPresence(event.UserID), event)
		}
	}
}
