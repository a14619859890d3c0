// Package store provides ledger store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alfystar/librefolio/fincore"
	"github.com/alfystar/librefolio/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	brokers  map[ledger.BrokerID]ledger.Broker
	assets   map[ledger.AssetID]ledger.Asset
	byBroker map[ledger.BrokerID][]ledger.Transaction
	byID     map[ledger.TransactionID]ledger.Transaction
}

func NewMemory() *Memory {
	return &Memory{
		brokers:  make(map[ledger.BrokerID]ledger.Broker),
		assets:   make(map[ledger.AssetID]ledger.Asset),
		byBroker: make(map[ledger.BrokerID][]ledger.Transaction),
		byID:     make(map[ledger.TransactionID]ledger.Transaction),
	}
}

var (
	_ ledger.TransactionStore = (*Memory)(nil)
	_ ledger.BrokerStore      = (*Memory)(nil)
	_ ledger.AssetStore       = (*Memory)(nil)
)

// ===== TRANSACTIONS =====

func (m *Memory) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(tx)
	return nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.byID[tx.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	m.removeLocked(old)
	m.insertLocked(tx)
	return nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.byID[id]
	if !ok {
		return ledger.ErrNotFound
	}
	m.removeLocked(old)
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.byID[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrNotFound
	}
	return tx, nil
}

func (m *Memory) TransactionsByBroker(_ context.Context, brokerID ledger.BrokerID, from *fincore.Date) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Transaction
	for _, tx := range m.byBroker[brokerID] {
		if from != nil && tx.Date.Before(*from) {
			continue
		}
		result = append(result, tx)
	}
	return result, nil
}

func (m *Memory) TransactionsByAsset(_ context.Context, assetID ledger.AssetID, upTo *fincore.Date) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Transaction
	for _, txs := range m.byBroker {
		for _, tx := range txs {
			if tx.AssetID != assetID {
				continue
			}
			if upTo != nil && tx.Date.After(*upTo) {
				continue
			}
			result = append(result, tx)
		}
	}
	ledger.SortChronological(result)
	return result, nil
}

func (m *Memory) BalancesBefore(_ context.Context, brokerID ledger.BrokerID, cutoff fincore.Date) (ledger.BalanceSums, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sums := ledger.BalanceSums{
		Cash:   make(map[ledger.Currency]decimal.Decimal),
		Assets: make(map[ledger.AssetID]decimal.Decimal),
	}
	for _, tx := range m.byBroker[brokerID] {
		if !tx.Date.Before(cutoff) {
			break // per-broker slice is in (date, id) order
		}
		if !tx.Amount.IsZero() && tx.Currency != "" {
			sums.Cash[tx.Currency] = sums.Cash[tx.Currency].Add(tx.Amount)
		}
		if !tx.Quantity.IsZero() && tx.AssetID != "" {
			sums.Assets[tx.AssetID] = sums.Assets[tx.AssetID].Add(tx.Quantity)
		}
	}
	return sums, nil
}

// insertLocked keeps each per-broker slice sorted by (date, id).
func (m *Memory) insertLocked(tx ledger.Transaction) {
	txs := m.byBroker[tx.BrokerID]

	// Binary search for insertion point: O(log n) instead of O(n log n)
	i := sort.Search(len(txs), func(i int) bool {
		if !txs[i].Date.Equal(tx.Date) {
			return txs[i].Date.After(tx.Date)
		}
		return txs[i].ID > tx.ID
	})

	txs = append(txs, ledger.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.byBroker[tx.BrokerID] = txs
	m.byID[tx.ID] = tx
}

func (m *Memory) removeLocked(tx ledger.Transaction) {
	txs := m.byBroker[tx.BrokerID]
	for i := range txs {
		if txs[i].ID == tx.ID {
			m.byBroker[tx.BrokerID] = append(txs[:i], txs[i+1:]...)
			break
		}
	}
	delete(m.byID, tx.ID)
}

// ===== BROKERS =====

func (m *Memory) SaveBroker(_ context.Context, b ledger.Broker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brokers[b.ID] = b
	return nil
}

func (m *Memory) GetBroker(_ context.Context, id ledger.BrokerID) (ledger.Broker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.brokers[id]
	if !ok {
		return ledger.Broker{}, ledger.ErrNotFound
	}
	return b, nil
}

func (m *Memory) ListBrokers(_ context.Context) ([]ledger.Broker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Broker, 0, len(m.brokers))
	for _, b := range m.brokers {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ===== ASSETS =====

func (m *Memory) SaveAsset(_ context.Context, a ledger.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[a.ID] = a
	return nil
}

func (m *Memory) GetAsset(_ context.Context, id ledger.AssetID) (ledger.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[id]
	if !ok {
		return ledger.Asset{}, ledger.ErrNotFound
	}
	return a, nil
}

func (m *Memory) ListAssets(_ context.Context) ([]ledger.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Asset, 0, len(m.assets))
	for _, a := range m.assets {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
