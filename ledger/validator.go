/*
validator.go - Day-by-day balance replay

PURPOSE:
  Replays a broker's transaction history in (date, id) order,
  accumulating per-currency cash balances and per-asset quantity
  balances, and fails on the first day a disallowed negative balance
  appears. This is the business rule that keeps the ledger honest: you
  cannot spend cash you do not have or sell assets you do not hold,
  unless the broker's tolerance flags say otherwise.

REPLAY SHAPE:
  Init   Load the broker's tolerance flags. Both permissive -> trivially
         valid, skip the replay entirely.
  Seed   With a from date, start from the aggregate sums of everything
         strictly before it (one grouped-sum query per balance kind).
         Without one, start empty at the earliest transaction.
  Replay Fold each day's transactions into the running balances, then
         check every touched balance against the flags.
  Fail   Raise on the FIRST violating day with full detail; the rest of
         the history is not replayed.
  Pass   Silent success - no error is the success signal.

INCREMENTAL RE-VALIDATION:
  Validation after a mutation always runs from the earliest affected
  date forward, never the full history, because balances before that
  date are unchanged by construction. Correctness depends on the caller
  supplying the true earliest-affected date across all changed rows.

CONSISTENCY:
  The replay is read-only and assumes a stable snapshot: interleaved
  writes to the same broker during a replay make the outcome
  meaningless. Distinct brokers validate concurrently without issue.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alfystar/librefolio/fincore"
)

// ErrBalanceViolation is the sentinel for a disallowed negative balance.
// Use errors.Is to detect it; the concrete *BalanceViolationError carries
// the detail.
var ErrBalanceViolation = errors.New("balance violation")

// BalanceViolationError reports the first day a broker's ledger goes
// negative where the broker's flags forbid it. Key is a currency code for
// cash violations and an asset ID for shorting violations.
type BalanceViolationError struct {
	BrokerID BrokerID
	Date     fincore.Date
	Key      string
	Balance  decimal.Decimal
	Kind     ViolationKind
}

type ViolationKind string

const (
	ViolationCashOverdraft ViolationKind = "cash_overdraft"
	ViolationAssetShorting ViolationKind = "asset_shorting"
)

func (e *BalanceViolationError) Error() string {
	noun := "cash balance"
	if e.Kind == ViolationAssetShorting {
		noun = "asset balance"
	}
	return fmt.Sprintf("broker %s: %s for %s would be %s on %s",
		e.BrokerID, noun, e.Key, e.Balance, e.Date)
}

func (e *BalanceViolationError) Unwrap() error { return ErrBalanceViolation }

// =============================================================================
// BALANCE VALIDATOR
// =============================================================================

// BalanceValidator replays broker ledgers against overdraft/shorting
// rules. It holds no state across runs.
type BalanceValidator struct {
	Brokers      BrokerStore
	Transactions TransactionStore
}

func NewBalanceValidator(brokers BrokerStore, transactions TransactionStore) *BalanceValidator {
	return &BalanceValidator{Brokers: brokers, Transactions: transactions}
}

// ValidateBroker replays the broker's ledger from the given date forward
// (or from the beginning when from is nil) and returns a
// *BalanceViolationError on the first disallowed negative balance.
func (v *BalanceValidator) ValidateBroker(ctx context.Context, brokerID BrokerID, from *fincore.Date) error {
	broker, err := v.Brokers.GetBroker(ctx, brokerID)
	if err != nil {
		return fmt.Errorf("load broker %s: %w", brokerID, err)
	}

	// Fast path: nothing can violate when both flags are permissive.
	if broker.AllowCashOverdraft && broker.AllowAssetShorting {
		return nil
	}

	cash := make(map[Currency]decimal.Decimal)
	assets := make(map[AssetID]decimal.Decimal)

	if from != nil {
		seed, err := v.Transactions.BalancesBefore(ctx, brokerID, *from)
		if err != nil {
			return fmt.Errorf("seed balances for broker %s: %w", brokerID, err)
		}
		for cur, sum := range seed.Cash {
			cash[cur] = sum
		}
		for assetID, sum := range seed.Assets {
			assets[assetID] = sum
		}
	}

	txs, err := v.Transactions.TransactionsByBroker(ctx, brokerID, from)
	if err != nil {
		return fmt.Errorf("load transactions for broker %s: %w", brokerID, err)
	}

	return replay(broker, cash, assets, txs)
}

// replay folds transactions day by day into the running balances and
// checks the broker's rules after each day. txs must already be in
// (date, id) order.
func replay(broker Broker, cash map[Currency]decimal.Decimal, assets map[AssetID]decimal.Decimal, txs []Transaction) error {
	i := 0
	for i < len(txs) {
		day := txs[i].Date

		// Fold the whole day before checking: intra-day ordering is not
		// meaningful, only end-of-day balances are. Touched keys are
		// remembered in fold order so a multi-violation day reports
		// deterministically.
		var touchedCash []Currency
		var touchedAssets []AssetID
		for i < len(txs) && txs[i].Date.Equal(day) {
			tx := txs[i]
			if !tx.Amount.IsZero() && tx.Currency != "" {
				if !containsCurrency(touchedCash, tx.Currency) {
					touchedCash = append(touchedCash, tx.Currency)
				}
				cash[tx.Currency] = cash[tx.Currency].Add(tx.Amount)
			}
			if !tx.Quantity.IsZero() && tx.AssetID != "" {
				if !containsAsset(touchedAssets, tx.AssetID) {
					touchedAssets = append(touchedAssets, tx.AssetID)
				}
				assets[tx.AssetID] = assets[tx.AssetID].Add(tx.Quantity)
			}
			i++
		}

		if !broker.AllowCashOverdraft {
			for _, cur := range touchedCash {
				if cash[cur].IsNegative() {
					return &BalanceViolationError{
						BrokerID: broker.ID,
						Date:     day,
						Key:      string(cur),
						Balance:  cash[cur],
						Kind:     ViolationCashOverdraft,
					}
				}
			}
		}
		if !broker.AllowAssetShorting {
			for _, assetID := range touchedAssets {
				if assets[assetID].IsNegative() {
					return &BalanceViolationError{
						BrokerID: broker.ID,
						Date:     day,
						Key:      string(assetID),
						Balance:  assets[assetID],
						Kind:     ViolationAssetShorting,
					}
				}
			}
		}
	}
	return nil
}

func containsCurrency(list []Currency, c Currency) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

func containsAsset(list []AssetID, a AssetID) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
