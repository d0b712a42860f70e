package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/incoming-qc/internal/core/domain"
	"github.com/rl1809/incoming-qc/internal/port"
)

var (
	ErrDuplicateRequest    = errors.New("duplicate request")
	ErrFeatureNotPermitted = errors.New("feature not permitted for tier")
	ErrConcurrentUpdate    = errors.New("entity was modified concurrently")
)

type Option func(*base)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(b *base) { b.newID = newID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.log = logger
		}
	}
}

// WithCache enables request-id idempotency. Without it request ids are ignored.
func WithCache(cache port.CacheRepository) Option {
	return func(b *base) { b.cache = cache }
}

type base struct {
	now   func() time.Time
	newID func() string
	log   *slog.Logger
	cache port.CacheRepository
}

func newBase(opts []Option) base {
	b := base{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func requireFeature(p domain.Principal, feature domain.Feature) error {
	ok, err := domain.Permits(p.Tier, feature)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s requires a higher tier than %s", ErrFeatureNotPermitted, feature, p.Tier)
	}
	return nil
}

// owned hides entities of other accounts behind a not-found error.
func owned(p domain.Principal, accountID, entity, id string) error {
	if p.AccountID != "" && accountID != p.AccountID {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// claim reserves a request id. The returned release undoes the reservation
// when the guarded operation fails, so the client can retry it.
func (b *base) claim(ctx context.Context, scope, requestID string) (func(), error) {
	noop := func() {}
	if b.cache == nil || requestID == "" {
		return noop, nil
	}

	key := fmt.Sprintf("idempotency:%s:%s", scope, requestID)
	ok, err := b.cache.SetIdempotency(ctx, key)
	if err != nil {
		return noop, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return noop, ErrDuplicateRequest
	}

	return func() {
		if err := b.cache.ReleaseIdempotency(ctx, key); err != nil {
			b.log.Error("release idempotency key", "key", key, "error", err)
		}
	}, nil
}

func conflict(err error) error {
	if errors.Is(err, port.ErrConflict) {
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	}
	return err
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
