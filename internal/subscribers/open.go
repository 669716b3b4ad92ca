package subscribers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/icewatch/ticketwatch/internal/crypto"
)

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a registry backend
type Options struct {
	Backend       string
	DataDir       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	EncryptionKey string
}

// Open creates the configured registry. The returned close function releases
// backend connections and is never nil.
func Open(ctx context.Context, opts Options) (Registry, func() error, error) {
	noop := func() error { return nil }

	enc, err := crypto.NewEncryptor(opts.EncryptionKey)
	if err != nil {
		return nil, noop, err
	}

	switch opts.Backend {
	case "", BackendFile:
		r, err := NewFileRegistry(filepath.Join(opts.DataDir, FileName), enc)
		if err != nil {
			return nil, noop, err
		}
		return r, noop, nil

	case BackendSQLite:
		r, err := OpenSQLite(filepath.Join(opts.DataDir, "subscribers.db"), enc)
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil

	case BackendRedis:
		client, err := NewRedisClient(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return NewRedisRegistry(client, opts.RedisKey, enc), client.Close, nil

	case BackendMemory:
		return NewMemoryRegistry(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown subscriber backend %q", opts.Backend)
	}
}
