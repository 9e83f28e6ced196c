package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache keeps advisory per-train availability counters with a short TTL.
// It only speeds up the availability endpoint; booking decisions never
// read it, and the engine drops a train's entry after every commit.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{Client: client, TTL: ttl}
}

func availabilityKey(trainNumber string) string {
	return "avail:" + trainNumber
}

// GetAvailability returns (count, true) on a hit and (0, false) on a miss.
func (c *Cache) GetAvailability(ctx context.Context, trainNumber string) (int, bool, error) {
	val, err := c.Client.Get(ctx, availabilityKey(trainNumber)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, nil
	}
	return count, true, nil
}

func (c *Cache) SetAvailability(ctx context.Context, trainNumber string, available int) error {
	return c.Client.Set(ctx, availabilityKey(trainNumber), strconv.Itoa(available), c.TTL).Err()
}

func (c *Cache) Invalidate(ctx context.Context, trainNumber string) error {
	return c.Client.Del(ctx, availabilityKey(trainNumber)).Err()
}
