package serial

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MemoryCounters is a process-local CounterStore.
type MemoryCounters struct {
	mu     sync.Mutex
	values map[string]int
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{values: make(map[string]int)}
}

func (m *MemoryCounters) Next(_ context.Context, subteamID string, floor int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.values[subteamID]
	if floor > v {
		v = floor
	}
	v++
	m.values[subteamID] = v
	return v, nil
}

var nextScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if floor > cur then
  redis.call('SET', KEYS[1], floor)
end
return redis.call('INCR', KEYS[1])
`)

// RedisCounters keeps counters under "serial:<subteam>".
type RedisCounters struct {
	client *redis.Client
}

func NewRedisCounters(client *redis.Client) *RedisCounters {
	return &RedisCounters{client: client}
}

func (r *RedisCounters) Next(ctx context.Context, subteamID string, floor int) (int, error) {
	n, err := nextScript.Run(ctx, r.client, []string{"serial:" + subteamID}, floor).Int64()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// MongoCounters stores one {_id: subteam, seq} record per sub-team in the
// counters collection.
type MongoCounters struct {
	col *mongo.Collection
}

func NewMongoCounters(col *mongo.Collection) *MongoCounters {
	return &MongoCounters{col: col}
}

func (m *MongoCounters) Next(ctx context.Context, subteamID string, floor int) (int, error) {
	filter := bson.M{"_id": subteamID}
	// $max and $inc cannot target the same field in one update.
	if _, err := m.col.UpdateOne(ctx, filter, bson.M{"$max": bson.M{"seq": floor}}, options.Update().SetUpsert(true)); err != nil {
		return 0, err
	}
	var out struct {
		Seq int `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	if err := m.col.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&out); err != nil {
		return 0, err
	}
	return out.Seq, nil
}
