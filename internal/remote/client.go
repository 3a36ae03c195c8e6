// Package remote adapts the task and category CRUD contracts onto a
// hosted relational table service, reached through gorm's query builder.
// Field-name translation between the camelCase app model and the
// snake_case columns lives in the model gorm tags.
//
// Every operation is gated twice before network I/O happens: the service
// must be configured with an authenticated user, and the circuit breaker
// must not be open. Either gate failing reports the service unavailable.
package remote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"todo-sync/internal/apperrors"
)

type Client struct {
	db      *gorm.DB
	breaker *Breaker
	logger  zerolog.Logger

	mu     sync.RWMutex
	userID string
}

// Dial connects to the remote table service. The DSN is assembled by the
// config layer from the endpoint URL and API key; callers that have no
// remote configuration skip Dial entirely and run Local-Only.
func Dial(dsn string, logger zerolog.Logger) (*Client, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewClient(db, logger), nil
}

// NewClient wraps an existing gorm connection. Tests use this with an
// in-memory sqlite database standing in for the hosted service.
func NewClient(db *gorm.DB, logger zerolog.Logger) *Client {
	return &Client{
		db:      db,
		breaker: NewBreaker(nil),
		logger:  logger,
	}
}

// SetUser scopes all subsequent operations to the given user. An empty id
// clears the scope and makes the client unavailable.
func (c *Client) SetUser(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Available reports whether operations may be attempted at all: the
// service is configured and a user id is present.
func (c *Client) Available() bool {
	return c != nil && c.db != nil && c.UserID() != ""
}

// Ping checks service reachability; the connectivity monitor drives
// online/offline transitions from it.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.db == nil {
		return apperrors.RemoteUnavailable("not configured")
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// run executes a remote operation behind the availability gate and the
// circuit breaker. Validation and not-found results coming out of fn are
// business outcomes, not service failures: they bypass the breaker
// accounting and are returned untranslated so callers never fall back on
// them.
func (c *Client) run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	if !c.Available() {
		return apperrors.RemoteUnavailable("not configured or no user")
	}

	var bizErr error
	err := c.breaker.Execute(func() error {
		err := fn(c.db.WithContext(ctx))
		if err == nil || apperrors.IsValidation(err) || apperrors.IsNotFound(err) {
			bizErr = err
			return nil
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrBreakerOpen) {
			return apperrors.RemoteUnavailable("circuit breaker open")
		}
		c.logger.Warn().Err(err).Str("op", op).Msg("remote operation failed")
		return apperrors.RemoteOperation(op, err)
	}
	return bizErr
}

func nowUTC() time.Time { return time.Now().UTC() }
