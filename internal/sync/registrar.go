package sync

import (
	"context"
	"fmt"

	"github.com/stacklok/recordsync/internal/logging"
	"github.com/stacklok/recordsync/internal/remote"
)

// SubscriptionID is the fixed subscription identifier for a record type in a
// scope. Saving under a fixed ID makes registration idempotent.
func SubscriptionID(scope remote.Scope, recordType string) string {
	return fmt.Sprintf("recordsync-%s-%s", scope, recordType)
}

// Registrar registers change-notification subscriptions for targets.
type Registrar struct {
	db remote.Database
}

// NewRegistrar creates a registrar for db.
func NewRegistrar(db remote.Database) *Registrar {
	return &Registrar{db: db}
}

// Subscription builds the subscription for target: every record of its type,
// on create, update and delete, delivered silently.
func (r *Registrar) Subscription(target Target) *remote.Subscription {
	return &remote.Subscription{
		ID:             SubscriptionID(r.db.Scope(), target.RecordType()),
		RecordType:     target.RecordType(),
		Predicate:      remote.MatchAll,
		Options:        remote.FiresOnRecordCreation | remote.FiresOnRecordUpdate | remote.FiresOnRecordDeletion,
		SilentDelivery: true,
	}
}

// RegisterSubscription saves target's subscription without waiting. Failures
// are logged and not retried.
func (r *Registrar) RegisterSubscription(ctx context.Context, target Target) {
	sub := r.Subscription(target)
	logger := logging.FromContext(ctx)
	r.db.SaveSubscription(ctx, sub, func(err error) {
		if err != nil {
			logger.Warn("Failed to register subscription",
				"subscription", sub.ID,
				"record_type", sub.RecordType,
				"error", err,
			)
			return
		}
		logger.Debug("Subscription registered", "subscription", sub.ID, "record_type", sub.RecordType)
	})
}

// RegisterSubscriptionSync saves target's subscription and waits for the result.
func (r *Registrar) RegisterSubscriptionSync(ctx context.Context, target Target) error {
	sub := r.Subscription(target)
	done := make(chan error, 1)
	r.db.SaveSubscription(ctx, sub, func(err error) {
		done <- err
	})

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to save subscription %s: %w", sub.ID, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
