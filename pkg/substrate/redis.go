package substrate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// RedisSubstrate stores each node as a JSON document under a
// "graphmem:node:{scope}:{id}" key and tracks per-scope membership in a
// "graphmem:scope:{scope}" set so Scan does not need KEYS.
type RedisSubstrate struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed substrate and verifies connectivity.
func NewRedis(ctx context.Context, opts *redis.Options) (*RedisSubstrate, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSubstrate{client: client}, nil
}

// redisDoc is the stored envelope. Version rides alongside the payload so
// compare-and-swap never decodes node data.
type redisDoc struct {
	Version int    `json:"version"`
	Data    []byte `json:"data"`
}

func nodeKey(key Key) string { return "graphmem:node:" + key.Scope + ":" + key.ID }
func scopeKey(s string) string { return "graphmem:scope:" + s }

// knownScopes mirrors the scope enum in pkg/memory, which this package cannot
// import (the store is built on top of the substrate).
var knownScopes = []string{"local", "identity", "environment", "community"}

// Get returns the record for key, ErrNotFound if absent.
func (r *RedisSubstrate) Get(ctx context.Context, key Key) (Record, error) {
	raw, err := r.client.Get(ctx, nodeKey(key)).Result()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("redis get %s: %w", nodeKey(key), err)
	}
	return decodeDoc(key, []byte(raw))
}

// Put creates a record atomically via SETNX, then registers the key in its
// scope set.
func (r *RedisSubstrate) Put(ctx context.Context, rec Record) error {
	doc, err := encodeDoc(rec)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, nodeKey(rec.Key), doc, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx %s: %w", nodeKey(rec.Key), err)
	}
	if !ok {
		return ErrExists
	}
	log.Debugf("created node %s", nodeKey(rec.Key))
	return r.client.SAdd(ctx, scopeKey(rec.Key.Scope), rec.Key.ID).Err()
}

// CompareAndSwap replaces the record under an optimistic WATCH transaction.
// The stored version is re-read inside the transaction; a concurrent write
// aborts it and surfaces as ErrVersionMismatch.
func (r *RedisSubstrate) CompareAndSwap(ctx context.Context, rec Record, expected int) error {
	key := nodeKey(rec.Key)
	doc, err := encodeDoc(rec)
	if err != nil {
		return err
	}

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		cur, err := decodeDoc(rec.Key, []byte(raw))
		if err != nil {
			return err
		}
		if cur.Version != expected {
			return ErrVersionMismatch
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			return nil
		})
		return err
	}

	err = r.client.Watch(ctx, txn, key)
	if err == redis.TxFailedErr {
		// Another writer got there between read and swap.
		return ErrVersionMismatch
	}
	if err != nil {
		return err
	}
	log.Debugf("updated node %s", key)
	return nil
}

// Scan walks scope membership sets and fetches each document.
func (r *RedisSubstrate) Scan(ctx context.Context, scope string, fn func(Record) error) error {
	scopes := []string{scope}
	if scope == "" {
		scopes = knownScopes
	}
	for _, s := range scopes {
		ids, err := r.client.SMembers(ctx, scopeKey(s)).Result()
		if err != nil {
			return fmt.Errorf("redis smembers %s: %w", scopeKey(s), err)
		}
		for _, id := range ids {
			rec, err := r.Get(ctx, Key{Scope: s, ID: id})
			if err == ErrNotFound {
				// Membership set can briefly lag deletes; skip.
				continue
			}
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close shuts down the client connection pool.
func (r *RedisSubstrate) Close() error { return r.client.Close() }

func encodeDoc(rec Record) ([]byte, error) {
	return json.Marshal(redisDoc{Version: rec.Version, Data: rec.Data})
}

func decodeDoc(key Key, raw []byte) (Record, error) {
	var doc redisDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Record{}, fmt.Errorf("decode record %s/%s: %w", key.Scope, key.ID, err)
	}
	return Record{Key: key, Version: doc.Version, Data: doc.Data}, nil
}

// Ensure RedisSubstrate implements Substrate.
var _ Substrate = (*RedisSubstrate)(nil)
