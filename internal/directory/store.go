package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSnapshot is returned by a Store that has nothing saved yet.
var ErrNoSnapshot = errors.New("directory: no snapshot stored")

// Store persists the last scraped directory between process restarts.
type Store interface {
	Load(ctx context.Context) ([]Retailer, error)
	Save(ctx context.Context, rs []Retailer) error
}

// FileStore keeps the snapshot as an indented JSON array on disk.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

func (s *FileStore) Load(context.Context) ([]Retailer, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	var rs []Retailer
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("directory: decode %s: %w", s.Path, err)
	}
	return rs, nil
}

// Save writes to a temporary file first so readers never see a partial snapshot.
func (s *FileStore) Save(_ context.Context, rs []Retailer) error {
	raw, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".retailers-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

// RedisStore keeps the snapshot under a single key so every API replica
// shares one scrape.
type RedisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisStore returns a store at key. A zero ttl keeps the snapshot forever.
func NewRedisStore(rdb *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = "stock-finder:directory"
	}
	return &RedisStore{rdb: rdb, key: key, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context) ([]Retailer, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("directory: redis get: %w", err)
	}
	var rs []Retailer
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("directory: decode snapshot: %w", err)
	}
	return rs, nil
}

func (s *RedisStore) Save(ctx context.Context, rs []Retailer) error {
	raw, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("directory: redis set: %w", err)
	}
	return nil
}
