/*
Package ledger provides the broker transaction ledger and its balance rules.

PURPOSE:
  Brokers, assets, and an ordered transaction history live here, together
  with the two algorithms that read that history: face-value derivation
  for scheduled-yield instruments and the balance-consistency validator
  that replays a broker's ledger day by day.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: One ledger row - a signed cash delta and/or an asset
    quantity delta dated to a trade day
  - Broker: The account holding cash and assets, with per-broker
    overdraft and shorting tolerance flags
  - Asset: An instrument; scheduled-yield assets carry a serialized rate
    schedule consumed by the pricing layer

DESIGN PRINCIPLES:
  1. Derived state: Balances and face values are always recomputed from
     the transaction history. Nothing here caches a balance.
  2. Precision: decimal.Decimal for quantities and amounts.
  3. Stable ordering: All replay and derivation folds happen in
     (date, id) order, so recomputation is deterministic.

SEE ALSO:
  - facevalue.go: Principal derivation from BUY/SELL/INTEREST rows
  - validator.go: Day-by-day balance replay
  - store.go:     Persistence interfaces
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alfystar/librefolio/fincore"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TransactionID string
type BrokerID string
type AssetID string
type Currency string

// =============================================================================
// TRANSACTION - One row of the broker ledger
// =============================================================================

type TxType string

const (
	TxBuy         TxType = "BUY"
	TxSell        TxType = "SELL"
	TxInterest    TxType = "INTEREST"
	TxDeposit     TxType = "DEPOSIT"
	TxWithdrawal  TxType = "WITHDRAWAL"
	TxDividend    TxType = "DIVIDEND"
	TxFee         TxType = "FEE"
	TxTransferIn  TxType = "TRANSFER_IN"
	TxTransferOut TxType = "TRANSFER_OUT"
)

// Transaction is immutable once read by the engines; corrections go
// through the transaction service, which re-validates affected dates.
type Transaction struct {
	ID       TransactionID
	BrokerID BrokerID
	AssetID  AssetID // empty for pure cash movements
	Type     TxType
	Date     fincore.Date
	Quantity decimal.Decimal // asset units moved, signed
	Price    decimal.Decimal // per-unit price; negative INTEREST price flags a principal repayment
	Amount   decimal.Decimal // signed cash delta in Currency
	Currency Currency
	Note     string
}

// SortChronological orders transactions by (date, id), the canonical
// replay order. Ties on the same day break by id so recomputation is
// deterministic.
func SortChronological(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

// =============================================================================
// BROKER AND ASSET
// =============================================================================

// Broker holds cash and asset positions. The two tolerance flags are the
// knobs of the balance validator: a permissive flag allows the matching
// balance kind to go negative.
type Broker struct {
	ID                 BrokerID
	Name               string
	BaseCurrency       Currency
	AllowCashOverdraft bool
	AllowAssetShorting bool
}

// Asset is an instrument tracked by a broker. Provider names the pricing
// strategy ("scheduled_investment" for synthetic valuation); ScheduleJSON
// is the serialized rate-schedule configuration for scheduled assets.
type Asset struct {
	ID           AssetID
	Name         string
	Currency     Currency
	Provider     string
	ScheduleJSON string
}
