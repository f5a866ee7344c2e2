// Package redisdocs wraps the Redis JSON document store behind the narrow
// contract the registries need: whole/partial document reads and writes,
// pipelined multi-key batches, optimistic watch transactions, array
// append/trim, numeric increment, key expiry, and an expired-key feed.
package redisdocs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound indicates the requested document key does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrTxConflict indicates an optimistic transaction kept losing to
	// concurrent writers after exhausting its retries.
	ErrTxConflict = errors.New("optimistic transaction conflict")
)

// watchRetries bounds RunWatch. Contention on a single match document is a
// handful of participants, so a few attempts are plenty.
const watchRetries = 5

// Config holds the Redis connection settings.
type Config struct {
	URL          string        `yaml:"url"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Store is the shared state store adapter. All registries share one Store.
type Store struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := parseRedisURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// NewWithClient wraps an existing client. Used by tests and the expiry feed.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Client exposes the underlying client for batch pipelines.
func (s *Store) Client() *redis.Client { return s.rdb }

// Close releases the client connection pool.
func (s *Store) Close() error { return s.rdb.Close() }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported redis scheme: %s", u.Scheme)
	}
	pass, _ := u.User.Password()
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if db, err = strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("invalid redis db %q: %w", p, err)
		}
	}
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

// RunWatch runs fn inside an optimistic transaction watching keys, retrying a
// bounded number of times when a concurrent writer invalidates the watch.
func (s *Store) RunWatch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < watchRetries; i++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrTxConflict
}

// TryWatch runs fn inside an optimistic transaction watching keys, exactly
// once. It reports whether the transaction committed; a lost race is not an
// error, because the winning writer has already produced the new state.
func (s *Store) TryWatch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) (bool, error) {
	err := s.rdb.Watch(ctx, fn, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetDoc reads a whole document into T.
func GetDoc[T any](ctx context.Context, c redis.Cmdable, key string) (*T, error) {
	raw, err := c.JSONGet(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("json get %s: %w", key, err)
	}
	out := new(T)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return out, nil
}

// GetDocs reads many documents in one pipelined round trip. Keys that no
// longer exist are skipped; the session registry tolerates expiry races.
func GetDocs[T any](ctx context.Context, c redis.Cmdable, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.JSONCmd, len(keys))
	if _, err := c.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.JSONGet(ctx, k)
		}
		return nil
	}); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("batch json get: %w", err)
	}
	return collectDocs[T](cmds)
}

// SetDoc writes a whole document.
func SetDoc(ctx context.Context, c redis.Cmdable, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := c.JSONSet(ctx, key, "$", string(b)).Err(); err != nil {
		return fmt.Errorf("json set %s: %w", key, err)
	}
	return nil
}

// SetPath writes a single path inside a document.
func SetPath(ctx context.Context, c redis.Cmdable, key, path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", key, path, err)
	}
	if err := c.JSONSet(ctx, key, path, string(b)).Err(); err != nil {
		return fmt.Errorf("json set %s %s: %w", key, path, err)
	}
	return nil
}

// ArrAppend appends values to an array path.
func ArrAppend(ctx context.Context, c redis.Cmdable, key, path string, vals ...any) error {
	enc, err := encodeAll(vals)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", key, path, err)
	}
	if err := c.JSONArrAppend(ctx, key, path, enc...).Err(); err != nil {
		return fmt.Errorf("json arrappend %s %s: %w", key, path, err)
	}
	return nil
}

// ArrTrimKeep trims an array path down to its first keep elements.
func ArrTrimKeep(ctx context.Context, c redis.Cmdable, key, path string, keep int) error {
	start, stop := 0, keep-1
	if keep <= 0 {
		// start > stop empties the array.
		start, stop = 1, 0
	}
	args := &redis.JSONArrTrimArgs{Start: start, Stop: &stop}
	if err := c.JSONArrTrimWithArgs(ctx, key, path, args).Err(); err != nil {
		return fmt.Errorf("json arrtrim %s %s: %w", key, path, err)
	}
	return nil
}

// ArrPopLast removes the last element of an array path.
func ArrPopLast(ctx context.Context, c redis.Cmdable, key, path string) error {
	if err := c.JSONArrPop(ctx, key, path, -1).Err(); err != nil {
		return fmt.Errorf("json arrpop %s %s: %w", key, path, err)
	}
	return nil
}

// ArrLen reports the length of an array path.
func ArrLen(ctx context.Context, c redis.Cmdable, key, path string) (int, error) {
	ns, err := c.JSONArrLen(ctx, key, path).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("json arrlen %s %s: %w", key, path, err)
	}
	if len(ns) == 0 {
		return 0, ErrNotFound
	}
	return int(ns[0]), nil
}

// NumIncrBy increments a numeric path.
func NumIncrBy(ctx context.Context, c redis.Cmdable, key, path string, by int) error {
	if err := c.JSONNumIncrBy(ctx, key, path, float64(by)).Err(); err != nil {
		return fmt.Errorf("json numincrby %s %s: %w", key, path, err)
	}
	return nil
}

// SetPathAndGetDocs writes one path and batch-reads docKeys in the same
// round trip, so the returned snapshot reflects the writer's own change plus
// a consistent view of everyone else at that instant.
func SetPathAndGetDocs[T any](ctx context.Context, c redis.Cmdable, key, path string, v any, docKeys []string) ([]*T, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s %s: %w", key, path, err)
	}
	cmds := make([]*redis.JSONCmd, len(docKeys))
	if _, err := c.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.JSONSet(ctx, key, path, string(b))
		for i, k := range docKeys {
			cmds[i] = p.JSONGet(ctx, k)
		}
		return nil
	}); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("set-and-get batch %s: %w", key, err)
	}
	return collectDocs[T](cmds)
}

// ArrAppendAndGetDocs appends to one array path and batch-reads docKeys in
// the same round trip. Same snapshot discipline as SetPathAndGetDocs.
func ArrAppendAndGetDocs[T any](ctx context.Context, c redis.Cmdable, key, path string, vals []any, docKeys []string) ([]*T, error) {
	enc, err := encodeAll(vals)
	if err != nil {
		return nil, fmt.Errorf("marshal %s %s: %w", key, path, err)
	}
	cmds := make([]*redis.JSONCmd, len(docKeys))
	if _, err := c.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.JSONArrAppend(ctx, key, path, enc...)
		for i, k := range docKeys {
			cmds[i] = p.JSONGet(ctx, k)
		}
		return nil
	}); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("append-and-get batch %s: %w", key, err)
	}
	return collectDocs[T](cmds)
}

// CollectDocs unmarshals the results of pipelined JSON.GET commands,
// skipping keys that vanished between pipelining and execution.
func CollectDocs[T any](cmds []*redis.JSONCmd) ([]*T, error) {
	return collectDocs[T](cmds)
}

func collectDocs[T any](cmds []*redis.JSONCmd) ([]*T, error) {
	out := make([]*T, 0, len(cmds))
	for _, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("batch json get: %w", err)
		}
		doc := new(T)
		if err := json.Unmarshal([]byte(raw), doc); err != nil {
			return nil, fmt.Errorf("unmarshal batch doc: %w", err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func encodeAll(vals []any) ([]any, error) {
	enc := make([]any, len(vals))
	for i, v := range vals {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		enc[i] = string(b)
	}
	return enc, nil
}
