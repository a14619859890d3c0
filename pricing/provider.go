/*
Package pricing values assets on behalf of the API layer.

PURPOSE:
  Defines the Provider interface - the one contract the serving layer
  talks to when it needs a value for an asset - and the static table
  mapping an asset's configured provider name to its implementation.

KEY CONCEPTS IN THIS FILE (provider.go):
  - PointValue:      A single valuation {value, currency, as-of, source}
  - HistoricalPoint: One day of a historical close series
  - Provider:        Point value + historical series for one strategy
  - Table:           Static provider lookup by name

DESIGN PRINCIPLES:
  1. Providers are registered explicitly at wiring time. There is no
     package-level registry and no auto-discovery; what the server
     constructs is what exists.
  2. Providers are stateless across calls; everything is derived from
     the ledger and the asset configuration per request.

SEE ALSO:
  - scheduled.go: The synthetic scheduled-investment provider
*/
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alfystar/librefolio/fincore"
	"github.com/alfystar/librefolio/ledger"
)

// ErrUnknownProvider is returned when an asset names a provider the
// table does not hold.
var ErrUnknownProvider = errors.New("unknown pricing provider")

// =============================================================================
// VALUATION RESULTS
// =============================================================================

// PointValue is a single asset valuation.
type PointValue struct {
	Value    decimal.Decimal `json:"value"`
	Currency ledger.Currency `json:"currency"`
	AsOf     fincore.Date    `json:"as_of_date"`
	Source   string          `json:"source"`
}

// HistoricalPoint is one day of a valuation series.
type HistoricalPoint struct {
	Date     fincore.Date    `json:"date"`
	Close    decimal.Decimal `json:"close"`
	Currency ledger.Currency `json:"currency"`
}

// =============================================================================
// PROVIDER
// =============================================================================

// Provider values assets under one pricing strategy.
type Provider interface {
	// Name is the identifier assets reference in their Provider field.
	Name() string

	// Value computes the asset's value as of the given date.
	Value(ctx context.Context, asset ledger.Asset, asOf fincore.Date) (PointValue, error)

	// History computes a day-by-day close series over [from, to].
	History(ctx context.Context, asset ledger.Asset, from, to fincore.Date) ([]HistoricalPoint, error)
}

// Table is a static name -> Provider lookup built at wiring time.
type Table map[string]Provider

func NewTable(providers ...Provider) Table {
	t := make(Table, len(providers))
	for _, p := range providers {
		t[p.Name()] = p
	}
	return t
}

// Lookup resolves an asset's configured provider name.
func (t Table) Lookup(name string) (Provider, error) {
	p, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}
