package funnel

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"upsell-tracker/internal/commerce"
	"upsell-tracker/internal/database"
	"upsell-tracker/internal/models"
)

// SessionChurnTest cycles checkout sessions through create, get, update,
// list and delete. It runs on any SessionStore backend. DataIntegrity holds
// when exactly the sessions whose cycle was interrupted remain.
type SessionChurnTest struct {
	// ListLimit is the page size used by the list step.
	ListLimit int

	store     commerce.SessionStore
	leftovers atomic.Int64
}

// NewSessionStore picks the SessionStore backend for db.
func NewSessionStore(ctx context.Context, db database.DatabaseDriver) (commerce.SessionStore, error) {
	switch d := db.(type) {
	case *database.MongoDriver:
		store := commerce.NewMongoSessionStore(d)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case database.SQLDriver:
		return commerce.NewSQLSessionStore(d), nil
	}
	return nil, fmt.Errorf("no session store for %s", db.Name())
}

func (t *SessionChurnTest) Setup(ctx context.Context, db database.DatabaseDriver, logger *zap.Logger) error {
	logger = nopIfNil(logger)
	logger.Info("setting up session churn", zap.String("db", db.Name()))
	if sqlDB, ok := db.(database.SQLDriver); ok {
		if err := commerce.Migrate(ctx, sqlDB, logger); err != nil {
			return err
		}
	}
	store, err := NewSessionStore(ctx, db)
	if err != nil {
		return err
	}
	t.store = store
	t.leftovers.Store(0)
	return nil
}

func (t *SessionChurnTest) Run(ctx context.Context, db database.DatabaseDriver, concurrency int, duration time.Duration, logger *zap.Logger) (*database.Result, error) {
	logger = nopIfNil(logger)
	if t.store == nil {
		return nil, fmt.Errorf("session_churn: Setup has not run")
	}

	before, err := t.store.List(ctx, commerce.MaxListLimit, 0)
	if err != nil {
		return nil, err
	}

	result := drive(ctx, concurrency, duration, logger, func(ctx context.Context, _, _ int) error {
		return t.cycle(ctx)
	})

	after, err := t.store.List(ctx, commerce.MaxListLimit, 0)
	if err != nil {
		return nil, err
	}
	expected := int64(len(before)) + t.leftovers.Load()
	result.DataIntegrity = expected > commerce.MaxListLimit || int64(len(after)) == expected
	if !result.DataIntegrity {
		logger.Error("unexpected sessions left behind", zap.Int("remaining", len(after)), zap.Int64("expected", expected))
	}
	return result, nil
}

func (t *SessionChurnTest) cycle(ctx context.Context) error {
	shopID := "churn-" + uuid.NewString()
	if _, err := t.store.Create(ctx, models.CheckoutSession{ShopSessionID: shopID}); err != nil {
		return err
	}
	if err := t.exercise(ctx, shopID); err != nil {
		t.leftovers.Add(1)
		return err
	}
	if err := t.store.Delete(ctx, shopID); err != nil {
		t.leftovers.Add(1)
		return err
	}
	return nil
}

func (t *SessionChurnTest) exercise(ctx context.Context, shopID string) error {
	got, err := t.store.Get(ctx, shopID)
	if err != nil {
		return err
	}
	updated, err := t.store.Update(ctx, models.CheckoutSession{ShopSessionID: shopID})
	if err != nil {
		return err
	}
	if updated.ID != got.ID || updated.CreatedTs != got.CreatedTs {
		return fmt.Errorf("session %s: update changed immutable fields", shopID)
	}
	_, err = t.store.List(ctx, t.ListLimit, 0)
	return err
}

func (t *SessionChurnTest) Teardown(ctx context.Context, db database.DatabaseDriver, logger *zap.Logger) error {
	nopIfNil(logger).Info("tearing down session churn", zap.String("db", db.Name()))
	t.store = nil
	return db.Reset(ctx)
}
