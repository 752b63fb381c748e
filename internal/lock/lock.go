// Package lock serializes access to a physical terminal across processes
// with a single-instance Redis lock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const keyPrefix = "afs:terminal:"

const (
	unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	extendScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
)

// ErrBusy is returned when another holder owns the terminal.
var ErrBusy = errors.New("terminal is busy")

// TerminalLock hands out leases on terminals keyed by TID.
type TerminalLock struct {
	client   redis.UniversalClient
	ttl      time.Duration
	newValue func() string
}

func NewTerminalLock(client redis.UniversalClient, ttl time.Duration) *TerminalLock {
	return &TerminalLock{
		client:   client,
		ttl:      ttl,
		newValue: uuid.NewString,
	}
}

// NewRedisClient connects to a single Redis instance given a redis:// URL or
// a bare host:port address.
func NewRedisClient(ctx context.Context, dns string) (redis.UniversalClient, error) {
	var opts *redis.Options
	if strings.Contains(dns, "://") {
		parsed, err := redis.ParseURL(dns)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: dns}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Lease is a held terminal lock.
type Lease struct {
	client redis.UniversalClient
	key    string
	value  string
	ttl    time.Duration
}

// Acquire takes the lock for tid or returns ErrBusy.
func (t *TerminalLock) Acquire(ctx context.Context, tid string) (*Lease, error) {
	lease := &Lease{client: t.client, key: keyPrefix + tid, value: t.newValue(), ttl: t.ttl}

	ok, err := t.client.SetNX(ctx, lease.key, lease.value, t.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: lock for key %s is already held", ErrBusy, lease.key)
	}
	return lease, nil
}

// Release frees the lease if it is still ours.
func (l *Lease) Release(ctx context.Context) error {
	result, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("unlock failed, either lock expired or you're not the lock holder for key %s", l.key)
	}
	return nil
}

// Extend pushes the lease expiry out by d.
func (l *Lease) Extend(ctx context.Context, d time.Duration) error {
	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.value, fmt.Sprintf("%d", d.Milliseconds())).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("lock extension failed for key %s, either lock expired or you're not the holder", l.key)
	}
	return nil
}

// KeepAlive extends the lease by its ttl every ttl/3 until stop is called or
// ctx is done. A failed extension is logged and ends the loop.
func (l *Lease) KeepAlive(ctx context.Context) (stop func()) {
	if l.ttl < 3*time.Millisecond {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := l.Extend(ctx, l.ttl); err != nil {
					if ctx.Err() == nil {
						log.WithFields(log.Fields{"key": l.key, "error": err}).Warn("Failed to extend terminal lock")
					}
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
