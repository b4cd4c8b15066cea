package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultMaxAttempts bounds how many times a conflicting transaction is
// executed in total before the conflict is surfaced to the caller.
const DefaultMaxAttempts = 5

var errMissingRunnerDatabase = errors.New("database handle is required")

// SerializableRunner executes units of work inside serializable-isolation
// transactions. On a serialization conflict the whole unit of work is
// re-executed from scratch; the attempt counter persists across retries so
// the configured maximum holds.
type SerializableRunner struct {
	db          *gorm.DB
	maxAttempts int
	logger      *zap.Logger
}

// RunnerConfig configures a SerializableRunner.
type RunnerConfig struct {
	Database    *gorm.DB
	MaxAttempts int
	Logger      *zap.Logger
}

// NewSerializableRunner constructs a runner with sane defaults.
func NewSerializableRunner(cfg RunnerConfig) (*SerializableRunner, error) {
	if cfg.Database == nil {
		return nil, errMissingRunnerDatabase
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SerializableRunner{db: cfg.Database, maxAttempts: maxAttempts, logger: logger}, nil
}

// Run executes fn inside a serializable transaction, retrying the whole
// function on serialization conflicts. fn must be safe to re-execute from
// scratch: any state it populates has to be reset at its top. After the final
// attempt the last conflict error is returned to the caller.
func (r *SerializableRunner) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := r.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err == nil {
			return nil
		}
		if IsSerializationConflict(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, delay time.Duration) {
		r.logger.Warn("serializable transaction conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	return backoff.RetryNotify(operation, r.newRetryPolicy(ctx), notify)
}

func (r *SerializableRunner) newRetryPolicy(ctx context.Context) backoff.BackOffContext {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.maxAttempts-1)), ctx)
}

// IsSerializationConflict reports whether the error is a transient conflict
// worth retrying. SQLite signals contention as SQLITE_BUSY / locked database;
// server-grade stores use SQLSTATE 40001.
func IsSerializationConflict(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database table is locked") ||
		strings.Contains(message, "sqlite_busy") ||
		strings.Contains(message, "40001") ||
		strings.Contains(message, "serialization failure") ||
		strings.Contains(message, "could not serialize access")
}
