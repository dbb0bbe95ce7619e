package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type txKey struct{}

// InTransaction runs fn with a context bound to one transaction. Sessions
// opened from that context, including repository calls, run inside it. It
// commits when fn returns nil and rolls back otherwise. A nested call joins
// the outer transaction.
func InTransaction(ctx context.Context, db Database, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err != nil {
		return fmt.Errorf("transaction: %w", err)
	}
	return nil
}

// HasTransaction reports whether ctx is bound to a transaction. Work under
// such a context shares one connection and must not run in parallel.
func HasTransaction(ctx context.Context) bool {
	_, ok := txFrom(ctx)
	return ok
}

func txFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}
