package auth

import (
	"context"
	"fmt"
)

// OpenStore builds the token store for driver. The returned close func is
// never nil.
func OpenStore(ctx context.Context, driver, dsn string) (TokenStore, func(), error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), func() {}, nil
	case "postgres":
		s, pool, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, func() {}, err
		}
		return s, pool.Close, nil
	case "redis":
		s, err := NewRedisStore(ctx, dsn)
		if err != nil {
			return nil, func() {}, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown token store driver %q", driver)
	}
}
