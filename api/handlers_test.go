package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfystar/librefolio/api"
	"github.com/alfystar/librefolio/factory"
	"github.com/alfystar/librefolio/fincore"
	"github.com/alfystar/librefolio/ledger"
	"github.com/alfystar/librefolio/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func setupAPI(t *testing.T) (http.Handler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	h := api.NewHandler(mem)
	return api.NewRouter(h, zerolog.Nop()), mem
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func createBroker(t *testing.T, router http.Handler, id string, allowOverdraft, allowShorting bool) {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/api/brokers", api.SaveBrokerRequest{
		ID:                 id,
		Name:               "Test Broker",
		BaseCurrency:       "USD",
		AllowCashOverdraft: allowOverdraft,
		AllowAssetShorting: allowShorting,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func depositRequest(broker, id, date, amount string) api.SaveTransactionRequest {
	return api.SaveTransactionRequest{
		ID:       id,
		BrokerID: broker,
		Type:     string(ledger.TxDeposit),
		Date:     date,
		Amount:   amount,
		Currency: "USD",
	}
}

func buyRequest(broker, id, date, asset, qty, price string) api.SaveTransactionRequest {
	q := decimal.RequireFromString(qty)
	p := decimal.RequireFromString(price)
	return api.SaveTransactionRequest{
		ID:       id,
		BrokerID: broker,
		AssetID:  asset,
		Type:     string(ledger.TxBuy),
		Date:     date,
		Quantity: qty,
		Price:    price,
		Amount:   q.Mul(p).Neg().String(),
		Currency: "USD",
	}
}

// =============================================================================
// BROKER ENDPOINTS
// =============================================================================

func TestCreateBroker(t *testing.T) {
	// GIVEN a fresh server
	router, _ := setupAPI(t)

	// WHEN creating a broker without an ID
	rec := doRequest(t, router, http.MethodPost, "/api/brokers", api.SaveBrokerRequest{
		Name:         "Degiro",
		BaseCurrency: "EUR",
	})

	// THEN the broker is created with a generated ID
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dto := decodeBody[api.BrokerDTO](t, rec)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "Degiro", dto.Name)
	assert.Equal(t, "EUR", dto.BaseCurrency)
}

func TestCreateBroker_MissingFields(t *testing.T) {
	router, _ := setupAPI(t)

	rec := doRequest(t, router, http.MethodPost, "/api/brokers", api.SaveBrokerRequest{Name: "No Currency"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBroker_NotFound(t *testing.T) {
	router, _ := setupAPI(t)

	rec := doRequest(t, router, http.MethodGet, "/api/brokers/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBrokers(t *testing.T) {
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-a", false, false)
	createBroker(t, router, "broker-b", true, true)

	rec := doRequest(t, router, http.MethodGet, "/api/brokers", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	dtos := decodeBody[[]api.BrokerDTO](t, rec)
	require.Len(t, dtos, 2)
	assert.Equal(t, "broker-a", dtos[0].ID)
	assert.Equal(t, "broker-b", dtos[1].ID)
}

func TestUpdateBroker_TighteningRejectedOnDirtyHistory(t *testing.T) {
	// GIVEN a permissive broker whose ledger is already overdrawn
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", true, false)

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		depositRequest("broker-1", "tx-1", "2025-01-01", "-500"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN switching off overdraft tolerance
	rec = doRequest(t, router, http.MethodPut, "/api/brokers/broker-1", api.SaveBrokerRequest{
		AllowCashOverdraft: false,
	})

	// THEN the update is rejected and the old flags survive
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decodeBody[api.ErrorResponse](t, rec)
	require.NotNil(t, resp.Violation)
	assert.Equal(t, "cash_overdraft", resp.Violation.Kind)

	rec = doRequest(t, router, http.MethodGet, "/api/brokers/broker-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeBody[api.BrokerDTO](t, rec)
	assert.True(t, dto.AllowCashOverdraft)
}

func TestUpdateBroker_TighteningAcceptedOnCleanHistory(t *testing.T) {
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", true, true)

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		depositRequest("broker-1", "tx-1", "2025-01-01", "1000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodPut, "/api/brokers/broker-1", api.SaveBrokerRequest{})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decodeBody[api.BrokerDTO](t, rec)
	assert.False(t, dto.AllowCashOverdraft)
	assert.False(t, dto.AllowAssetShorting)
}

func TestValidateBrokerEndpoint(t *testing.T) {
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", false, false)

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		depositRequest("broker-1", "tx-1", "2025-01-01", "1000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodPost, "/api/brokers/broker-1/validate", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeBody[api.ValidationResultDTO](t, rec)
	assert.True(t, result.Valid)
	assert.Equal(t, "broker-1", result.BrokerID)
}

func TestValidateBrokerEndpoint_BadFromDate(t *testing.T) {
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", false, false)

	rec := doRequest(t, router, http.MethodPost, "/api/brokers/broker-1/validate?from=nonsense", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

func TestCreateTransaction_OverdraftRejectedAndRolledBack(t *testing.T) {
	// GIVEN a strict broker with 1000 USD deposited
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", false, false)

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		depositRequest("broker-1", "tx-1", "2025-01-01", "1000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN buying beyond the cash balance
	rec = doRequest(t, router, http.MethodPost, "/api/transactions",
		buyRequest("broker-1", "tx-2", "2025-01-02", "bond-a", "15", "100"))

	// THEN the request fails with the violation detail
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decodeBody[api.ErrorResponse](t, rec)
	require.NotNil(t, resp.Violation)
	assert.Equal(t, "broker-1", resp.Violation.BrokerID)
	assert.Equal(t, "2025-01-02", resp.Violation.Date)
	assert.Equal(t, "USD", resp.Violation.Key)
	assert.Equal(t, "-500", resp.Violation.Balance)

	// AND the offending row was rolled back
	rec = doRequest(t, router, http.MethodGet, "/api/brokers/broker-1/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decodeBody[[]api.TransactionDTO](t, rec)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-1", txs[0].ID)
}

func TestCreateTransaction_UnknownBroker(t *testing.T) {
	router, _ := setupAPI(t)

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		depositRequest("missing", "tx-1", "2025-01-01", "1000"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTransaction_BadDate(t *testing.T) {
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", false, false)

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		depositRequest("broker-1", "tx-1", "01/02/2025", "1000"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTransaction_RolledBackWhenLaterRowsDependOnIt(t *testing.T) {
	// GIVEN a deposit funding a later purchase
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", false, false)

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		depositRequest("broker-1", "tx-1", "2025-01-01", "1000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodPost, "/api/transactions",
		buyRequest("broker-1", "tx-2", "2025-01-02", "bond-a", "5", "100"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN deleting the deposit
	rec = doRequest(t, router, http.MethodDelete, "/api/transactions/tx-1", nil)

	// THEN the delete is rejected and the deposit restored
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/api/brokers/broker-1/transactions", nil)
	txs := decodeBody[[]api.TransactionDTO](t, rec)
	assert.Len(t, txs, 2)
}

func TestDeleteTransaction_Unreferenced(t *testing.T) {
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", false, false)

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		depositRequest("broker-1", "tx-1", "2025-01-01", "1000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodDelete, "/api/transactions/tx-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/brokers/broker-1/transactions", nil)
	txs := decodeBody[[]api.TransactionDTO](t, rec)
	assert.Empty(t, txs)
}

func TestUpdateTransaction_RestoresOldRowOnViolation(t *testing.T) {
	// GIVEN a valid deposit-then-buy history
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", false, false)

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		depositRequest("broker-1", "tx-1", "2025-01-01", "1000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodPost, "/api/transactions",
		buyRequest("broker-1", "tx-2", "2025-01-02", "bond-a", "5", "100"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN shrinking the deposit below what the buy needs
	rec = doRequest(t, router, http.MethodPut, "/api/transactions/tx-1",
		depositRequest("broker-1", "tx-1", "2025-01-01", "100"))

	// THEN the update is rejected and the original amount survives
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/api/brokers/broker-1/transactions", nil)
	txs := decodeBody[[]api.TransactionDTO](t, rec)
	require.Len(t, txs, 2)
	assert.Equal(t, "1000", txs[0].Amount)
}

func TestUpdateTransaction_Accepted(t *testing.T) {
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", false, false)

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		depositRequest("broker-1", "tx-1", "2025-01-01", "1000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodPut, "/api/transactions/tx-1",
		depositRequest("broker-1", "tx-1", "2025-01-01", "2000"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decodeBody[api.TransactionDTO](t, rec)
	assert.Equal(t, "2000", dto.Amount)
}

func TestUpdateTransaction_NotFound(t *testing.T) {
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", false, false)

	rec := doRequest(t, router, http.MethodPut, "/api/transactions/missing",
		depositRequest("broker-1", "missing", "2025-01-01", "100"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ASSET AND VALUATION ENDPOINTS
// =============================================================================

func testSchedule() *factory.ScheduleJSON {
	return &factory.ScheduleJSON{
		Periods: []factory.PeriodJSON{
			{
				StartDate:   fincore.NewDate(2025, time.January, 1),
				EndDate:     fincore.NewDate(2025, time.December, 31),
				AnnualRate:  decimal.RequireFromString("0.05"),
				Compounding: "SIMPLE",
				DayCount:    "ACT/365",
			},
		},
	}
}

func createLoanAsset(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/api/assets", api.SaveAssetRequest{
		ID:       id,
		Name:     "Private Loan",
		Currency: "USD",
		Schedule: testSchedule(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateAsset_DefaultsToScheduledProvider(t *testing.T) {
	router, _ := setupAPI(t)

	createLoanAsset(t, router, "loan-1")

	rec := doRequest(t, router, http.MethodGet, "/api/assets/loan-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeBody[api.AssetDTO](t, rec)
	assert.Equal(t, "scheduled_investment", dto.Provider)
	require.NotNil(t, dto.Schedule)
	assert.Len(t, dto.Schedule.Periods, 1)
}

func TestCreateAsset_ScheduleRequired(t *testing.T) {
	router, _ := setupAPI(t)

	rec := doRequest(t, router, http.MethodPost, "/api/assets", api.SaveAssetRequest{
		ID:       "loan-1",
		Name:     "Private Loan",
		Currency: "USD",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAsset_UnknownProvider(t *testing.T) {
	router, _ := setupAPI(t)

	rec := doRequest(t, router, http.MethodPost, "/api/assets", api.SaveAssetRequest{
		ID:       "stock-1",
		Name:     "Some Stock",
		Currency: "USD",
		Provider: "yahoo_finance",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAssetValue(t *testing.T) {
	// GIVEN a 5% simple-interest loan bought for 10000 at accrual start
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", true, false)
	createLoanAsset(t, router, "loan-1")

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		buyRequest("broker-1", "tx-1", "2025-01-01", "loan-1", "1", "10000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN valuing 73 days in (73/365 = 0.2 years exactly)
	rec = doRequest(t, router, http.MethodGet, "/api/assets/loan-1/value?date=2025-03-15", nil)

	// THEN the value is principal plus accrued interest
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var point struct {
		Value    decimal.Decimal `json:"value"`
		Currency string          `json:"currency"`
		AsOf     string          `json:"as_of_date"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&point))
	assert.True(t, point.Value.Equal(decimal.RequireFromString("10100")),
		"value = %s", point.Value)
	assert.Equal(t, "USD", point.Currency)
	assert.Equal(t, "2025-03-15", point.AsOf)
}

func TestGetAssetValue_BadDate(t *testing.T) {
	router, _ := setupAPI(t)
	createLoanAsset(t, router, "loan-1")

	rec := doRequest(t, router, http.MethodGet, "/api/assets/loan-1/value?date=soon", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAssetValue_NotFound(t *testing.T) {
	router, _ := setupAPI(t)

	rec := doRequest(t, router, http.MethodGet, "/api/assets/missing/value?date=2025-03-15", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAssetHistory(t *testing.T) {
	router, _ := setupAPI(t)
	createBroker(t, router, "broker-1", true, false)
	createLoanAsset(t, router, "loan-1")

	rec := doRequest(t, router, http.MethodPost, "/api/transactions",
		buyRequest("broker-1", "tx-1", "2025-01-01", "loan-1", "1", "10000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet,
		"/api/assets/loan-1/history?from=2025-02-01&to=2025-02-10", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var series []struct {
		Date  string          `json:"date"`
		Close decimal.Decimal `json:"close"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&series))
	require.Len(t, series, 10)
	assert.Equal(t, "2025-02-01", series[0].Date)
	assert.Equal(t, "2025-02-10", series[9].Date)
	assert.True(t, series[9].Close.GreaterThan(series[0].Close))
}

func TestGetAssetHistory_ReversedRange(t *testing.T) {
	router, _ := setupAPI(t)
	createLoanAsset(t, router, "loan-1")

	rec := doRequest(t, router, http.MethodGet,
		"/api/assets/loan-1/history?from=2025-02-10&to=2025-02-01", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	router, _ := setupAPI(t)

	rec := doRequest(t, router, http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}
