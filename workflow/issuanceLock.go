package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/construction_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// IssuanceLocker serializes issuance requests for the same source document across instances.
// It is an optimization: correctness comes from the issuing transaction.
type IssuanceLocker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

type RedisIssuanceLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	logger *logrus.Logger
}

func NewRedisIssuanceLocker(client *redislock.Client, logger *logrus.Logger) *RedisIssuanceLocker {
	return &RedisIssuanceLocker{
		client: client,
		ttl:    30 * time.Second,
		wait:   3 * time.Second,
		logger: logger,
	}
}

// Lock waits briefly for key. A held lock is a ConflictError; redis being down only logs.
func (l *RedisIssuanceLocker) Lock(ctx context.Context, key string) (func(), error) {
	noop := func() {}
	if l == nil || l.client == nil {
		return noop, nil
	}
	retry := redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), int(l.wait/(100*time.Millisecond)))
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, utils.NewConflictError("another issuance for %s is in progress", key)
	}
	if err != nil {
		l.logger.WithField("lock_key", key).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		return noop, nil
	}
	return func() {
		// release with a fresh context so a cancelled request still frees the key
		if releaseErr := lock.Release(context.Background()); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			l.logger.WithField("lock_key", key).Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}, nil
}
