/*
store.go - Persistence interfaces for the broker ledger

PURPOSE:
  Defines the interface between the ledger algorithms and the database.
  Different implementations can use SQLite or in-memory storage; the
  validator and the pricing layer only ever see these interfaces.

KEY INTERFACES:
  TransactionStore: Transaction rows with the ordered reads and grouped
                    sums the validator and valuation paths need
  BrokerStore:      Broker records and tolerance flags
  AssetStore:       Asset records and their schedule configuration

ORDERING CONTRACT:
  Every read that returns multiple transactions returns them in
  (date, id) order. The validator's correctness depends on it.

CONSISTENCY CONTRACT:
  The validator assumes the transaction list it observes is stable for
  the duration of one replay. Callers serialize writes per broker when
  strict consistency is required; the store does not.

IMPLEMENTATIONS:
  - store/sqlite:    Production SQLite
  - ledger/store:    In-memory, for tests and development

SEE ALSO:
  - validator.go: The main consumer of these interfaces
*/
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/alfystar/librefolio/fincore"
)

// ErrNotFound is returned for lookups of unknown brokers, assets, or
// transactions.
var ErrNotFound = errors.New("not found")

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// BalanceSums are per-key aggregate sums of a broker's ledger, used to
// seed an incremental validation run.
type BalanceSums struct {
	Cash   map[Currency]decimal.Decimal
	Assets map[AssetID]decimal.Decimal
}

// TransactionStore persists transaction rows.
type TransactionStore interface {
	// InsertTransaction adds a row.
	InsertTransaction(ctx context.Context, tx Transaction) error

	// UpdateTransaction replaces the row with the same ID.
	UpdateTransaction(ctx context.Context, tx Transaction) error

	// DeleteTransaction removes a row.
	DeleteTransaction(ctx context.Context, id TransactionID) error

	// GetTransaction returns a row by ID, or ErrNotFound.
	GetTransaction(ctx context.Context, id TransactionID) (Transaction, error)

	// TransactionsByBroker returns a broker's rows in (date, id) order.
	// A non-nil from restricts to rows with date >= from.
	TransactionsByBroker(ctx context.Context, brokerID BrokerID, from *fincore.Date) ([]Transaction, error)

	// TransactionsByAsset returns an asset's rows in (date, id) order.
	// A non-nil upTo restricts to rows with date <= upTo.
	TransactionsByAsset(ctx context.Context, assetID AssetID, upTo *fincore.Date) ([]Transaction, error)

	// BalancesBefore returns per-currency cash sums and per-asset quantity
	// sums over all of a broker's rows strictly before the cutoff.
	BalancesBefore(ctx context.Context, brokerID BrokerID, cutoff fincore.Date) (BalanceSums, error)
}

// =============================================================================
// BROKER AND ASSET STORES
// =============================================================================

type BrokerStore interface {
	SaveBroker(ctx context.Context, b Broker) error
	GetBroker(ctx context.Context, id BrokerID) (Broker, error)
	ListBrokers(ctx context.Context) ([]Broker, error)
}

type AssetStore interface {
	SaveAsset(ctx context.Context, a Asset) error
	GetAsset(ctx context.Context, id AssetID) (Asset, error)
	ListAssets(ctx context.Context) ([]Asset, error)
}
