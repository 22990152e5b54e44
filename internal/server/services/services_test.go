package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/webshelf/internal/cryptox"
	"github.com/dmitrijs2005/webshelf/internal/server/config"
	"github.com/dmitrijs2005/webshelf/internal/server/lock"
	"github.com/dmitrijs2005/webshelf/internal/server/repositories/repomanager"
	"github.com/redis/go-redis/v9"
)

// cheap parameters keep tests fast; production uses cryptox.DefaultParams.
var testHasher = cryptox.NewHasher(cryptox.Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})

var testSecret = "0123456789abcdef0123456789abcdef"

func testConfig() *config.Config {
	return &config.Config{SecretKey: testSecret, TokenTTL: time.Hour}
}

type fixture struct {
	rm    *repomanager.MemoryRepositoryManager
	users *UserService
	auth  *AuthService
}

func newFixture(t *testing.T, locker Locker) *fixture {
	t.Helper()
	rm := repomanager.NewMemoryRepositoryManager()
	return &fixture{
		rm:    rm,
		users: NewUserService(nil, rm, testHasher, locker, nil),
		auth:  NewAuthService(nil, rm, testHasher, testConfig(), nil, nil),
	}
}

func newRedisLocker(t *testing.T, attempts int) (*lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	opts := lock.Options{TTL: 10 * time.Second, MaxAttempts: attempts, RetryDelay: 5 * time.Millisecond}
	return lock.NewLocker(lock.NewRedisStore(client), opts, nil), mr
}

// brokenStore fails every call, as an unreachable Redis would.
type brokenStore struct{}

func (brokenStore) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenStore) Del(context.Context, string) error {
	return errors.New("connection refused")
}
