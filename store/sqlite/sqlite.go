/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (TransactionStore, BrokerStore,
  AssetStore) using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  ledger.TransactionStore: Transaction rows with ordered reads
  ledger.BrokerStore:      Broker records and tolerance flags
  ledger.AssetStore:       Asset records and schedule configuration

KEY TABLES:
  brokers:      Broker records with overdraft/shorting flags
  assets:       Instrument records with their schedule JSON blob
  transactions: The ledger rows everything else is derived from

ORDERING:
  Every multi-row transaction read is ORDER BY date, id - the replay
  order the validator and face-value derivation depend on. Dates are
  stored as ISO YYYY-MM-DD text, so lexicographic order is date order.

PRECISION:
  Quantities and amounts are stored as decimal TEXT and summed in Go,
  never with SQL SUM(), which would round through float.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/librefolio.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  validator := ledger.NewBalanceValidator(st, st)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go:        Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/alfystar/librefolio/fincore"
	"github.com/alfystar/librefolio/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ ledger.TransactionStore = (*Store)(nil)
	_ ledger.BrokerStore      = (*Store)(nil)
	_ ledger.AssetStore       = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Brokers
	CREATE TABLE IF NOT EXISTS brokers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_currency TEXT NOT NULL,
		allow_cash_overdraft BOOLEAN NOT NULL DEFAULT FALSE,
		allow_asset_shorting BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- Assets
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		provider TEXT NOT NULL,
		schedule_json TEXT NOT NULL DEFAULT ''
	);

	-- Transactions (the source of truth for every derived balance)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		broker_id TEXT NOT NULL,
		asset_id TEXT NOT NULL DEFAULT '',
		tx_type TEXT NOT NULL,
		date TEXT NOT NULL,
		quantity TEXT NOT NULL,
		price TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT ''
	);

	-- Replay path: broker history in (date, id) order (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_broker_date
		ON transactions(broker_id, date, id);

	-- Valuation path: one asset's history in (date, id) order
	CREATE INDEX IF NOT EXISTS idx_transactions_asset_date
		ON transactions(asset_id, date, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (ledger.TransactionStore interface)
// =============================================================================

const txColumns = "id, broker_id, asset_id, tx_type, date, quantity, price, amount, currency, note"

// InsertTransaction adds a ledger row.
func (s *Store) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO transactions (` + txColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		tx.ID, tx.BrokerID, tx.AssetID, tx.Type,
		tx.Date.String(),
		tx.Quantity.String(), tx.Price.String(), tx.Amount.String(),
		tx.Currency, tx.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// UpdateTransaction replaces the row with the same ID.
func (s *Store) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE transactions
		SET broker_id = ?, asset_id = ?, tx_type = ?, date = ?,
		    quantity = ?, price = ?, amount = ?, currency = ?, note = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		tx.BrokerID, tx.AssetID, tx.Type, tx.Date.String(),
		tx.Quantity.String(), tx.Price.String(), tx.Amount.String(),
		tx.Currency, tx.Note, tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return requireRow(res)
}

// DeleteTransaction removes a row.
func (s *Store) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return requireRow(res)
}

// GetTransaction returns a row by ID.
func (s *Store) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE id = ?", id)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return ledger.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

// TransactionsByBroker returns a broker's rows in (date, id) order.
func (s *Store) TransactionsByBroker(ctx context.Context, brokerID ledger.BrokerID, from *fincore.Date) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if from != nil {
		return s.queryTransactions(ctx, `
			SELECT `+txColumns+`
			FROM transactions
			WHERE broker_id = ? AND date >= ?
			ORDER BY date ASC, id ASC
		`, brokerID, from.String())
	}

	return s.queryTransactions(ctx, `
		SELECT `+txColumns+`
		FROM transactions
		WHERE broker_id = ?
		ORDER BY date ASC, id ASC
	`, brokerID)
}

// TransactionsByAsset returns an asset's rows in (date, id) order.
func (s *Store) TransactionsByAsset(ctx context.Context, assetID ledger.AssetID, upTo *fincore.Date) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if upTo != nil {
		return s.queryTransactions(ctx, `
			SELECT `+txColumns+`
			FROM transactions
			WHERE asset_id = ? AND date <= ?
			ORDER BY date ASC, id ASC
		`, assetID, upTo.String())
	}

	return s.queryTransactions(ctx, `
		SELECT `+txColumns+`
		FROM transactions
		WHERE asset_id = ?
		ORDER BY date ASC, id ASC
	`, assetID)
}

// BalancesBefore sums cash per currency and quantity per asset over all
// rows strictly before the cutoff. The sums run in Go over decimal
// strings; SQL SUM() would round through float.
func (s *Store) BalancesBefore(ctx context.Context, brokerID ledger.BrokerID, cutoff fincore.Date) (ledger.BalanceSums, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := ledger.BalanceSums{
		Cash:   make(map[ledger.Currency]decimal.Decimal),
		Assets: make(map[ledger.AssetID]decimal.Decimal),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT asset_id, quantity, amount, currency
		FROM transactions
		WHERE broker_id = ? AND date < ?
	`, brokerID, cutoff.String())
	if err != nil {
		return sums, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var assetID, quantity, amount, currency string
		if err := rows.Scan(&assetID, &quantity, &amount, &currency); err != nil {
			return sums, fmt.Errorf("failed to scan balance row: %w", err)
		}

		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return sums, fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		qty, err := decimal.NewFromString(quantity)
		if err != nil {
			return sums, fmt.Errorf("corrupt quantity %q: %w", quantity, err)
		}

		if !amt.IsZero() && currency != "" {
			cur := ledger.Currency(currency)
			sums.Cash[cur] = sums.Cash[cur].Add(amt)
		}
		if !qty.IsZero() && assetID != "" {
			id := ledger.AssetID(assetID)
			sums.Assets[id] = sums.Assets[id].Add(qty)
		}
	}
	return sums, rows.Err()
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (ledger.Transaction, error) {
	var (
		tx                      ledger.Transaction
		date                    string
		quantity, price, amount string
	)

	err := row.Scan(
		&tx.ID, &tx.BrokerID, &tx.AssetID, &tx.Type,
		&date, &quantity, &price, &amount, &tx.Currency, &tx.Note,
	)
	if err == sql.ErrNoRows {
		return tx, err
	}
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Date, err = fincore.ParseDate(date)
	if err != nil {
		return tx, fmt.Errorf("corrupt date %q: %w", date, err)
	}
	if tx.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return tx, fmt.Errorf("corrupt quantity %q: %w", quantity, err)
	}
	if tx.Price, err = decimal.NewFromString(price); err != nil {
		return tx, fmt.Errorf("corrupt price %q: %w", price, err)
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return tx, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	return tx, nil
}

// =============================================================================
// BROKER STORE
// =============================================================================

// SaveBroker inserts or updates a broker record.
func (s *Store) SaveBroker(ctx context.Context, b ledger.Broker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO brokers (id, name, base_currency, allow_cash_overdraft, allow_asset_shorting)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			base_currency = excluded.base_currency,
			allow_cash_overdraft = excluded.allow_cash_overdraft,
			allow_asset_shorting = excluded.allow_asset_shorting
	`

	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.Name, b.BaseCurrency, b.AllowCashOverdraft, b.AllowAssetShorting)
	if err != nil {
		return fmt.Errorf("failed to save broker: %w", err)
	}
	return nil
}

// GetBroker retrieves a broker by ID.
func (s *Store) GetBroker(ctx context.Context, id ledger.BrokerID) (ledger.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b ledger.Broker
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, base_currency, allow_cash_overdraft, allow_asset_shorting FROM brokers WHERE id = ?",
		id,
	).Scan(&b.ID, &b.Name, &b.BaseCurrency, &b.AllowCashOverdraft, &b.AllowAssetShorting)

	if err == sql.ErrNoRows {
		return ledger.Broker{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Broker{}, err
	}
	return b, nil
}

// ListBrokers returns all brokers.
func (s *Store) ListBrokers(ctx context.Context) ([]ledger.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, base_currency, allow_cash_overdraft, allow_asset_shorting FROM brokers ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brokers []ledger.Broker
	for rows.Next() {
		var b ledger.Broker
		if err := rows.Scan(&b.ID, &b.Name, &b.BaseCurrency, &b.AllowCashOverdraft, &b.AllowAssetShorting); err != nil {
			return nil, err
		}
		brokers = append(brokers, b)
	}
	return brokers, rows.Err()
}

// =============================================================================
// ASSET STORE
// =============================================================================

// SaveAsset inserts or updates an asset record.
func (s *Store) SaveAsset(ctx context.Context, a ledger.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO assets (id, name, currency, provider, schedule_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			provider = excluded.provider,
			schedule_json = excluded.schedule_json
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Name, a.Currency, a.Provider, a.ScheduleJSON)
	if err != nil {
		return fmt.Errorf("failed to save asset: %w", err)
	}
	return nil
}

// GetAsset retrieves an asset by ID.
func (s *Store) GetAsset(ctx context.Context, id ledger.AssetID) (ledger.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a ledger.Asset
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, currency, provider, schedule_json FROM assets WHERE id = ?",
		id,
	).Scan(&a.ID, &a.Name, &a.Currency, &a.Provider, &a.ScheduleJSON)

	if err == sql.ErrNoRows {
		return ledger.Asset{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Asset{}, err
	}
	return a, nil
}

// ListAssets returns all assets.
func (s *Store) ListAssets(ctx context.Context) ([]ledger.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, currency, provider, schedule_json FROM assets ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []ledger.Asset
	for rows.Next() {
		var a ledger.Asset
		if err := rows.Scan(&a.ID, &a.Name, &a.Currency, &a.Provider, &a.ScheduleJSON); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"transactions", "assets", "brokers"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// requireRow maps a zero-row write to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
