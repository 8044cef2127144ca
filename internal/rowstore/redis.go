package rowstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/onnwee/homelayout/internal/tracing"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis. Each row is a hash at
// "<prefix><table>:<key>" and every table keeps a set of its keys at
// "<prefix><table>:keys". Compound values are stored as JSON text.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// OpenRedis parses a redis:// URL and returns a store bound to it.
func OpenRedis(ctx context.Context, url, prefix string, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisStore(client, prefix, logger), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Client exposes the connection for other per-instance state, such as the
// shared rate limit counters.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) rowKey(table string, keyValue any) string {
	return s.prefix + table + ":" + keyString(keyValue)
}

func (s *RedisStore) indexKey(table string) string {
	return s.prefix + table + ":keys"
}

// Load reads every hash listed in the table's key set.
func (s *RedisStore) Load(ctx context.Context, table string) (_ []Row, err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemRedis, table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	keys, err := s.client.SMembers(ctx, s.indexKey(table)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s keys: %w", table, err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.HGetAll(ctx, s.rowKey(table, k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s rows: %w", table, err)
	}

	rows := make([]Row, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		row := make(Row, len(fields))
		for k, v := range fields {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Insert writes a new hash and registers its key.
func (s *RedisStore) Insert(ctx context.Context, table, keyColumn string, row Row) (err error) {
	keyValue, ok := row[keyColumn]
	if !ok {
		return fmt.Errorf("insert into %s: missing key column %s", table, keyColumn)
	}
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemRedis, table, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	added, err := s.client.SAdd(ctx, s.indexKey(table), keyString(keyValue)).Result()
	if err != nil {
		return fmt.Errorf("failed to index %s row: %w", table, err)
	}
	if added == 0 {
		return ErrRowExists
	}

	if err := s.writeFields(ctx, table, keyValue, row); err != nil {
		// Unregister the key so a retry can insert again.
		if rmErr := s.client.SRem(ctx, s.indexKey(table), keyString(keyValue)).Err(); rmErr != nil {
			s.logger.Error("failed to unindex row after insert failure",
				slog.String("table", table),
				slog.String("error", rmErr.Error()))
		}
		return err
	}
	return nil
}

// Update writes fields into an existing hash.
func (s *RedisStore) Update(ctx context.Context, table, keyColumn string, keyValue any, fields Row) (err error) {
	if len(fields) == 0 {
		return ErrEmptyFields
	}
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemRedis, table, tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	exists, err := s.client.SIsMember(ctx, s.indexKey(table), keyString(keyValue)).Result()
	if err != nil {
		return fmt.Errorf("failed to check %s row: %w", table, err)
	}
	if !exists {
		return ErrRowNotFound
	}
	return s.writeFields(ctx, table, keyValue, fields)
}

// Delete removes the hash and its index entry atomically.
func (s *RedisStore) Delete(ctx context.Context, table, keyColumn string, keyValue any) (err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemRedis, table, tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	var removed *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		removed = p.SRem(ctx, s.indexKey(table), keyString(keyValue))
		p.Del(ctx, s.rowKey(table, keyValue))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s row: %w", table, err)
	}
	if removed.Val() == 0 {
		return ErrRowNotFound
	}
	return nil
}

// Ping sends a PING command.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// writeFields sets non-nil fields and clears nil ones in a single transaction.
func (s *RedisStore) writeFields(ctx context.Context, table string, keyValue any, fields Row) error {
	encoded, err := encodeRow(fields)
	if err != nil {
		return err
	}

	values := make([]any, 0, len(encoded)*2)
	var cleared []string
	for _, col := range sortedColumns(encoded) {
		if encoded[col] == nil {
			cleared = append(cleared, col)
			continue
		}
		values = append(values, col, encoded[col])
	}

	key := s.rowKey(table, keyValue)
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(values) > 0 {
			p.HSet(ctx, key, values...)
		}
		if len(cleared) > 0 {
			p.HDel(ctx, key, cleared...)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to write row",
			slog.String("table", table),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to write %s row: %w", table, err)
	}
	return nil
}
