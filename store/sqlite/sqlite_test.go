package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfystar/librefolio/fincore"
	"github.com/alfystar/librefolio/ledger"
	"github.com/alfystar/librefolio/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func day(y int, m time.Month, d int) fincore.Date {
	return fincore.NewDate(y, m, d)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleTx(id string, date fincore.Date, amount string) ledger.Transaction {
	return ledger.Transaction{
		ID:       ledger.TransactionID(id),
		BrokerID: "broker-1",
		Type:     ledger.TxDeposit,
		Date:     date,
		Quantity: decimal.Zero,
		Price:    decimal.Zero,
		Amount:   dec(amount),
		Currency: "USD",
		Note:     "test row",
	}
}

func sampleBuy(id string, date fincore.Date, asset, qty, price string) ledger.Transaction {
	q := dec(qty)
	p := dec(price)
	return ledger.Transaction{
		ID:       ledger.TransactionID(id),
		BrokerID: "broker-1",
		AssetID:  ledger.AssetID(asset),
		Type:     ledger.TxBuy,
		Date:     date,
		Quantity: q,
		Price:    p,
		Amount:   q.Mul(p).Neg(),
		Currency: "USD",
	}
}

// =============================================================================
// TRANSACTION CRUD
// =============================================================================

func TestTransactionRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	original := sampleBuy("tx-1", day(2025, time.March, 15), "bond-a", "2.5", "1000.10")
	require.NoError(t, st.InsertTransaction(ctx, original))

	got, err := st.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)

	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, original.BrokerID, got.BrokerID)
	assert.Equal(t, original.AssetID, got.AssetID)
	assert.Equal(t, original.Type, got.Type)
	assert.True(t, original.Date.Equal(got.Date))
	assert.True(t, got.Quantity.Equal(dec("2.5")))
	assert.True(t, got.Price.Equal(dec("1000.10")))
	assert.True(t, got.Amount.Equal(dec("-2500.25")))
	assert.Equal(t, ledger.Currency("USD"), got.Currency)
}

func TestGetTransaction_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetTransaction(context.Background(), "missing")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestUpdateTransaction(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-1", day(2025, time.January, 1), "1000")))

	updated := sampleTx("tx-1", day(2025, time.January, 2), "1500")
	require.NoError(t, st.UpdateTransaction(ctx, updated))

	got, err := st.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("1500")))
	assert.True(t, day(2025, time.January, 2).Equal(got.Date))
}

func TestUpdateTransaction_NotFound(t *testing.T) {
	st := newTestStore(t)
	err := st.UpdateTransaction(context.Background(), sampleTx("missing", day(2025, time.January, 1), "1"))
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestDeleteTransaction(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-1", day(2025, time.January, 1), "1000")))
	require.NoError(t, st.DeleteTransaction(ctx, "tx-1"))

	_, err := st.GetTransaction(ctx, "tx-1")
	require.ErrorIs(t, err, ledger.ErrNotFound)

	require.ErrorIs(t, st.DeleteTransaction(ctx, "tx-1"), ledger.ErrNotFound)
}

// =============================================================================
// ORDERED READS
// =============================================================================

func TestTransactionsByBroker_Ordering(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Inserted out of order, same-day rows tie-broken by id
	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-b", day(2025, time.February, 1), "10")))
	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-c", day(2025, time.January, 1), "20")))
	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-a", day(2025, time.February, 1), "30")))

	txs, err := st.TransactionsByBroker(ctx, "broker-1", nil)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, ledger.TransactionID("tx-c"), txs[0].ID)
	assert.Equal(t, ledger.TransactionID("tx-a"), txs[1].ID)
	assert.Equal(t, ledger.TransactionID("tx-b"), txs[2].ID)
}

func TestTransactionsByBroker_FromFilter(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-1", day(2025, time.January, 1), "10")))
	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-2", day(2025, time.February, 1), "20")))
	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-3", day(2025, time.March, 1), "30")))

	from := day(2025, time.February, 1)
	txs, err := st.TransactionsByBroker(ctx, "broker-1", &from)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, ledger.TransactionID("tx-2"), txs[0].ID)
}

func TestTransactionsByAsset_UpToFilter(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertTransaction(ctx, sampleBuy("tx-1", day(2025, time.January, 1), "bond-a", "1", "100")))
	require.NoError(t, st.InsertTransaction(ctx, sampleBuy("tx-2", day(2025, time.March, 1), "bond-a", "1", "100")))
	require.NoError(t, st.InsertTransaction(ctx, sampleBuy("tx-3", day(2025, time.January, 15), "bond-b", "1", "100")))

	upTo := day(2025, time.January, 31)
	txs, err := st.TransactionsByAsset(ctx, "bond-a", &upTo)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.TransactionID("tx-1"), txs[0].ID)
}

// =============================================================================
// BALANCE SUMS
// =============================================================================

func TestBalancesBefore_StrictCutoff(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-1", day(2025, time.January, 1), "1000")))
	require.NoError(t, st.InsertTransaction(ctx, sampleBuy("tx-2", day(2025, time.January, 10), "bond-a", "3", "100")))
	// On the cutoff day itself: must be excluded
	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-3", day(2025, time.February, 1), "9999")))

	sums, err := st.BalancesBefore(ctx, "broker-1", day(2025, time.February, 1))
	require.NoError(t, err)

	assert.True(t, sums.Cash["USD"].Equal(dec("700")), "got %s", sums.Cash["USD"])
	assert.True(t, sums.Assets["bond-a"].Equal(dec("3")))
}

func TestBalancesBefore_EmptyHistory(t *testing.T) {
	st := newTestStore(t)

	sums, err := st.BalancesBefore(context.Background(), "broker-1", day(2025, time.January, 1))
	require.NoError(t, err)
	assert.Empty(t, sums.Cash)
	assert.Empty(t, sums.Assets)
}

// =============================================================================
// BROKERS AND ASSETS
// =============================================================================

func TestBrokerRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	b := ledger.Broker{
		ID:                 "broker-1",
		Name:               "Main",
		BaseCurrency:       "EUR",
		AllowCashOverdraft: true,
	}
	require.NoError(t, st.SaveBroker(ctx, b))

	got, err := st.GetBroker(ctx, "broker-1")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	// Upsert flips a flag
	b.AllowAssetShorting = true
	require.NoError(t, st.SaveBroker(ctx, b))
	got, err = st.GetBroker(ctx, "broker-1")
	require.NoError(t, err)
	assert.True(t, got.AllowAssetShorting)

	_, err = st.GetBroker(ctx, "missing")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestAssetRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := ledger.Asset{
		ID:           "loan-1",
		Name:         "Private loan",
		Currency:     "EUR",
		Provider:     "scheduled_investment",
		ScheduleJSON: `{"schedule":[]}`,
	}
	require.NoError(t, st.SaveAsset(ctx, a))

	got, err := st.GetAsset(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	list, err := st.ListAssets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = st.GetAsset(ctx, "missing")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestListBrokers_SortedByID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveBroker(ctx, ledger.Broker{ID: "broker-b", Name: "B", BaseCurrency: "USD"}))
	require.NoError(t, st.SaveBroker(ctx, ledger.Broker{ID: "broker-a", Name: "A", BaseCurrency: "USD"}))

	list, err := st.ListBrokers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ledger.BrokerID("broker-a"), list[0].ID)
}

// =============================================================================
// VALIDATOR OVER SQLITE
// =============================================================================

func TestValidatorAgainstSQLite(t *testing.T) {
	// GIVEN a strict broker whose ledger overdraws on day two
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveBroker(ctx, ledger.Broker{ID: "broker-1", Name: "Strict", BaseCurrency: "USD"}))
	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-1", day(2025, time.January, 1), "1000")))
	require.NoError(t, st.InsertTransaction(ctx, sampleBuy("tx-2", day(2025, time.January, 2), "bond-a", "1", "1500")))

	v := ledger.NewBalanceValidator(st, st)
	err := v.ValidateBroker(ctx, "broker-1", nil)

	var violation *ledger.BalanceViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "USD", violation.Key)
	assert.True(t, violation.Balance.Equal(dec("-500")))
}

func TestReset(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveBroker(ctx, ledger.Broker{ID: "broker-1", Name: "X", BaseCurrency: "USD"}))
	require.NoError(t, st.InsertTransaction(ctx, sampleTx("tx-1", day(2025, time.January, 1), "1000")))

	require.NoError(t, st.Reset(ctx))

	_, err := st.GetBroker(ctx, "broker-1")
	require.ErrorIs(t, err, ledger.ErrNotFound)
	txs, err := st.TransactionsByBroker(ctx, "broker-1", nil)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
