/*
scheduled.go - Synthetic valuation of scheduled-yield instruments

PURPOSE:
  Values instruments that have no market price: private loans, term
  deposits, P2P notes. Their worth is their outstanding principal plus
  the interest their rate schedule says has accrued, so a "price" is
  computed, never fetched.

PIPELINE PER REQUEST:
  asset.ScheduleJSON --factory--> fincore.Schedule
  ledger rows        --fold-->    face value as of the target date
  schedule + face    --fincore--> accrued value

  Nothing along the way is cached: editing a transaction or the schedule
  changes every value computed afterwards, which is exactly the point.

OVERRIDES:
  An explicit transaction list can replace the store as the ledger
  source. Used by what-if valuation and by tests that do not want a
  store at all.
*/
package pricing

import (
	"context"
	"fmt"

	"github.com/alfystar/librefolio/factory"
	"github.com/alfystar/librefolio/fincore"
	"github.com/alfystar/librefolio/ledger"
)

// ProviderScheduledInvestment is the provider name scheduled-yield
// assets carry in their configuration.
const ProviderScheduledInvestment = "scheduled_investment"

// ScheduledInvestment values assets from their rate schedule and their
// transaction history.
type ScheduledInvestment struct {
	transactions ledger.TransactionStore
	schedules    *factory.ScheduleFactory

	// overrides, when non-nil, replaces the store as the transaction
	// source for every asset.
	overrides []ledger.Transaction
}

var _ Provider = (*ScheduledInvestment)(nil)

func NewScheduledInvestment(transactions ledger.TransactionStore) *ScheduledInvestment {
	return &ScheduledInvestment{
		transactions: transactions,
		schedules:    factory.NewScheduleFactory(),
	}
}

// WithOverrides returns a copy of the provider that values against the
// given transaction list instead of the store.
func (p *ScheduledInvestment) WithOverrides(txs []ledger.Transaction) *ScheduledInvestment {
	clone := *p
	clone.overrides = txs
	return &clone
}

func (p *ScheduledInvestment) Name() string { return ProviderScheduledInvestment }

// Value computes principal plus accrued interest as of the given date.
func (p *ScheduledInvestment) Value(ctx context.Context, asset ledger.Asset, asOf fincore.Date) (PointValue, error) {
	schedule, err := p.loadSchedule(asset)
	if err != nil {
		return PointValue{}, err
	}

	txs, err := p.transactionsFor(ctx, asset.ID, asOf)
	if err != nil {
		return PointValue{}, err
	}

	face := ledger.DeriveFaceValueAt(txs, asOf)
	value, err := fincore.ValueAt(*schedule, face, asOf)
	if err != nil {
		return PointValue{}, fmt.Errorf("value asset %s: %w", asset.ID, err)
	}

	return PointValue{
		Value:    value,
		Currency: asset.Currency,
		AsOf:     asOf,
		Source:   ProviderScheduledInvestment,
	}, nil
}

// History computes one close per day over [from, to], re-deriving the
// face value for each day so mid-series buys and repayments show up.
func (p *ScheduledInvestment) History(ctx context.Context, asset ledger.Asset, from, to fincore.Date) ([]HistoricalPoint, error) {
	if to.Before(from) {
		return nil, &fincore.RangeError{Start: from, End: to}
	}

	schedule, err := p.loadSchedule(asset)
	if err != nil {
		return nil, err
	}

	txs, err := p.transactionsFor(ctx, asset.ID, to)
	if err != nil {
		return nil, err
	}

	var series []HistoricalPoint
	for current := from; current.BeforeOrEqual(to); current = current.AddDays(1) {
		face := ledger.DeriveFaceValueAt(txs, current)
		value, err := fincore.ValueAt(*schedule, face, current)
		if err != nil {
			return nil, fmt.Errorf("value asset %s on %s: %w", asset.ID, current, err)
		}
		series = append(series, HistoricalPoint{
			Date:     current,
			Close:    value,
			Currency: asset.Currency,
		})
	}
	return series, nil
}

func (p *ScheduledInvestment) loadSchedule(asset ledger.Asset) (*fincore.Schedule, error) {
	if asset.ScheduleJSON == "" {
		return nil, fmt.Errorf("asset %s: %w", asset.ID, fincore.ErrMissingSchedule)
	}
	schedule, err := p.schedules.ParseSchedule(asset.ScheduleJSON)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", asset.ID, err)
	}
	return schedule, nil
}

func (p *ScheduledInvestment) transactionsFor(ctx context.Context, assetID ledger.AssetID, upTo fincore.Date) ([]ledger.Transaction, error) {
	if p.overrides != nil {
		var txs []ledger.Transaction
		for _, tx := range p.overrides {
			if tx.AssetID == assetID && tx.Date.BeforeOrEqual(upTo) {
				txs = append(txs, tx)
			}
		}
		return txs, nil
	}
	txs, err := p.transactions.TransactionsByAsset(ctx, assetID, &upTo)
	if err != nil {
		return nil, fmt.Errorf("load transactions for asset %s: %w", assetID, err)
	}
	return txs, nil
}
