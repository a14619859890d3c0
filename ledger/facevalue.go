/*
facevalue.go - Principal derivation from the transaction history

PURPOSE:
  The principal ("face value") of a scheduled-yield instrument is never
  stored. It is re-derived from the complete transaction history every
  time a valuation is requested, so a valuation always reflects the
  ledger as of its target date.

FOLD RULES:
  Quantities are signed ledger deltas (negative on SELL), so buys and
  sells share one rule:
  BUY/SELL principal += quantity * price
  INTEREST with negative price: principal += price (a repayment - the
           price is already negative, so this reduces principal)
  INTEREST with non-negative price: pure income, principal untouched
  everything else: ignored
*/
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/alfystar/librefolio/fincore"
)

// DeriveFaceValue folds the given transactions in (date, id) order into
// the instrument's outstanding principal. The input slice is not mutated.
func DeriveFaceValue(txs []Transaction) decimal.Decimal {
	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	SortChronological(ordered)

	face := decimal.Zero
	for _, tx := range ordered {
		switch tx.Type {
		case TxBuy, TxSell:
			face = face.Add(tx.Quantity.Mul(tx.Price))
		case TxInterest:
			if tx.Price.IsNegative() {
				face = face.Add(tx.Price)
			}
		}
	}
	return face
}

// DeriveFaceValueAt folds only the transactions with trade date on or
// before the cutoff. Used by historical series, which re-derive the
// principal for every day.
func DeriveFaceValueAt(txs []Transaction, cutoff fincore.Date) decimal.Decimal {
	upTo := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.BeforeOrEqual(cutoff) {
			upTo = append(upTo, tx)
		}
	}
	return DeriveFaceValue(upTo)
}
