// Package broker abstracts the message broker the event publisher delivers
// to. The Redis implementation uses one list per topic: producers RPUSH,
// consumers BLPOP, so delivery order within a topic is FIFO per partition.
package broker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Broker hands raw envelope bytes to a topic. Publish must respect the
// context deadline; a hung broker surfaces as a context error, not a stall.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Consumer is the read side, used by downstream workers.
type Consumer interface {
	Consume(ctx context.Context, topic string, timeout time.Duration) ([]byte, error)
}

// ErrNoMessage is returned by Consume when the poll timeout elapses with an
// empty topic.
var ErrNoMessage = redis.Nil

type RedisBroker struct {
	rdb *redis.Client
}

// NewRedisBroker connects to Redis at addr ("host:port").
func NewRedisBroker(addr string) *RedisBroker {
	return &RedisBroker{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.rdb.RPush(ctx, topic, payload).Err()
}

func (b *RedisBroker) Consume(ctx context.Context, topic string, timeout time.Duration) ([]byte, error) {
	res, err := b.rdb.BLPop(ctx, timeout, topic).Result()
	if err != nil {
		return nil, err
	}
	// BLPop returns [key, value].
	return []byte(res[1]), nil
}

func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
