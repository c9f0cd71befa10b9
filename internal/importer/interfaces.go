package importer

import (
	"context"
	"time"

	"github.com/Veraticus/gasto/internal/model"
)

// WindowSource supplies the existing transactions duplicate detection compares
// against. Implementations return rows for accountID dated within [from, to].
//
//go:generate mockgen -destination=mocks/mock_importer.go -package=mocks -source=interfaces.go
type WindowSource interface {
	GetTransactionWindow(ctx context.Context, accountID string, from, to time.Time) ([]model.Transaction, error)
}

// Sink persists reviewed import rows. SaveTransaction returns an error
// wrapping common.ErrDuplicateEntry when the fingerprint is already stored.
type Sink interface {
	SaveTransaction(ctx context.Context, item model.ImportedTransaction) error
}
