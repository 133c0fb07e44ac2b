package db

import (
	"context"
	"time"

	"github.com/piratepartyau/donate/pkg/model"
)

type Version int

const (
	CurrentVersion = 1
)

type Storage interface {
	Close() error
	Version() (int, error)

	// InsertNonce saves a pending nonce. Inserting an ID that is already
	// present returns model.ErrAlreadyExists.
	InsertNonce(ctx context.Context, nonce *model.Nonce) error

	// FindAndDeleteNonce atomically looks up a nonce by ID and removes it.
	// With concurrent callers on the same ID at most one gets the record,
	// all others get model.ErrNotFound.
	FindAndDeleteNonce(ctx context.Context, id string) (*model.Nonce, error)

	// DeleteExpiredNonces removes nonces that expired before the given time
	// and were never consumed. Returns the number of records deleted.
	DeleteExpiredNonces(ctx context.Context, before time.Time) (int, error)

	// SaveReceipt persists a receipt keyed by its ID. Receipts are
	// write-once: saving a duplicate ID returns model.ErrAlreadyExists.
	SaveReceipt(ctx context.Context, receipt *model.Receipt) error

	// GetReceipt gets a receipt by ID
	GetReceipt(ctx context.Context, id string) (*model.Receipt, error)

	// WalkReceipts iterates over receipts saved to database
	WalkReceipts(ctx context.Context, cb func(receipt *model.Receipt) error) error
}
