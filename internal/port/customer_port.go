package port

import (
	"context"

	"github.com/boddenberg/chimu-org-go/internal/domain"
)

// CustomerStore is the persistence contract for customer records.
// Emails passed in are already canonical (domain.NormalizeEmail).
type CustomerStore interface {
	// FindByEmail returns *domain.ErrNotFound when no record exists.
	FindByEmail(ctx context.Context, email string) (*domain.Customer, error)
	FindMany(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error)
	// Create returns *domain.ErrDuplicateKey when the email is taken.
	Create(ctx context.Context, c *domain.Customer) error
	// Save overwrites an existing record; *domain.ErrNotFound if it is gone.
	Save(ctx context.Context, c *domain.Customer) error
	DeleteByEmail(ctx context.Context, email string) (int64, error)
	Ping(ctx context.Context) error
}

// Transactor is implemented by stores that can run several writes atomically.
// fn must use the ctx it receives so the store can find the transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunInTx runs fn inside a transaction when store supports one and reports
// whether it did. Without transaction support fn runs directly.
func RunInTx(ctx context.Context, store CustomerStore, fn func(ctx context.Context) error) (bool, error) {
	if tx, ok := store.(Transactor); ok {
		return true, tx.RunInTx(ctx, fn)
	}
	return false, fn(ctx)
}
