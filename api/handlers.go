/*
handlers.go - HTTP API handlers for the portfolio ledger

PURPOSE:
  Exposes brokers, assets, transactions, and valuations via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  the ledger and pricing packages.

ENDPOINTS:
  Brokers:
    GET    /api/brokers                  List all brokers
    POST   /api/brokers                  Create broker
    GET    /api/brokers/{id}             Get broker details
    PUT    /api/brokers/{id}             Update broker (flags re-validated)
    POST   /api/brokers/{id}/validate    Replay the balance validator
    GET    /api/brokers/{id}/transactions Broker ledger rows

  Assets:
    GET    /api/assets                   List all assets
    POST   /api/assets                   Create asset (schedule validated)
    GET    /api/assets/{id}              Get asset details
    GET    /api/assets/{id}/value        Point valuation (?date=)
    GET    /api/assets/{id}/history      Close series (?from=&to=)

  Transactions:
    POST   /api/transactions             Create (validator-gated)
    PUT    /api/transactions/{id}        Update (validator-gated)
    DELETE /api/transactions/{id}        Delete (validator-gated)

MUTATION GATING:
  Every transaction write and every broker flag tightening replays the
  balance validator from the earliest affected date. A violation rolls
  the write back and the request fails with 422 carrying the violation
  detail, so the client can tell the user which balance went negative
  on which day.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 422: Balance violation (business-rule rejection)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alfystar/librefolio/factory"
	"github.com/alfystar/librefolio/fincore"
	"github.com/alfystar/librefolio/ledger"
	"github.com/alfystar/librefolio/pricing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Brokers      ledger.BrokerStore
	Assets       ledger.AssetStore
	Transactions ledger.TransactionStore

	Validator *ledger.BalanceValidator
	Providers pricing.Table

	scheduleFactory *factory.ScheduleFactory
}

// Stores bundles the persistence interfaces the handler needs. A
// sqlite.Store satisfies all three.
type Stores interface {
	ledger.BrokerStore
	ledger.AssetStore
	ledger.TransactionStore
}

// NewHandler wires the handler over one store implementation.
func NewHandler(st Stores) *Handler {
	return &Handler{
		Brokers:         st,
		Assets:          st,
		Transactions:    st,
		Validator:       ledger.NewBalanceValidator(st, st),
		Providers:       pricing.NewTable(pricing.NewScheduledInvestment(st)),
		scheduleFactory: factory.NewScheduleFactory(),
	}
}

// =============================================================================
// BROKER HANDLERS
// =============================================================================

// ListBrokers returns all brokers.
// GET /api/brokers
func (h *Handler) ListBrokers(w http.ResponseWriter, r *http.Request) {
	brokers, err := h.Brokers.ListBrokers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list brokers", err)
		return
	}

	dtos := make([]BrokerDTO, len(brokers))
	for i, b := range brokers {
		dtos[i] = brokerDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBroker returns a single broker.
// GET /api/brokers/{id}
func (h *Handler) GetBroker(w http.ResponseWriter, r *http.Request) {
	id := ledger.BrokerID(chi.URLParam(r, "id"))

	b, err := h.Brokers.GetBroker(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Broker not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get broker", err)
		return
	}
	writeJSON(w, http.StatusOK, brokerDTO(b))
}

// CreateBroker creates a new broker.
// POST /api/brokers
func (h *Handler) CreateBroker(w http.ResponseWriter, r *http.Request) {
	var req SaveBrokerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.BaseCurrency == "" {
		writeError(w, http.StatusBadRequest, "name and base_currency are required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	b := ledger.Broker{
		ID:                 ledger.BrokerID(req.ID),
		Name:               req.Name,
		BaseCurrency:       ledger.Currency(req.BaseCurrency),
		AllowCashOverdraft: req.AllowCashOverdraft,
		AllowAssetShorting: req.AllowAssetShorting,
	}
	if err := h.Brokers.SaveBroker(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save broker", err)
		return
	}
	writeJSON(w, http.StatusCreated, brokerDTO(b))
}

// UpdateBroker updates a broker. Tightening a tolerance flag replays
// the full history first; the update is rejected if the existing ledger
// would violate the new rules.
// PUT /api/brokers/{id}
func (h *Handler) UpdateBroker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := ledger.BrokerID(chi.URLParam(r, "id"))

	existing, err := h.Brokers.GetBroker(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Broker not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get broker", err)
		return
	}

	var req SaveBrokerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated := existing
	if req.Name != "" {
		updated.Name = req.Name
	}
	if req.BaseCurrency != "" {
		updated.BaseCurrency = ledger.Currency(req.BaseCurrency)
	}
	updated.AllowCashOverdraft = req.AllowCashOverdraft
	updated.AllowAssetShorting = req.AllowAssetShorting

	if err := h.Brokers.SaveBroker(ctx, updated); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save broker", err)
		return
	}

	tightened := (existing.AllowCashOverdraft && !updated.AllowCashOverdraft) ||
		(existing.AllowAssetShorting && !updated.AllowAssetShorting)
	if tightened {
		if err := h.Validator.ValidateBroker(ctx, id, nil); err != nil {
			// Roll the flags back so the ledger stays consistent.
			if saveErr := h.Brokers.SaveBroker(ctx, existing); saveErr != nil {
				writeError(w, http.StatusInternalServerError, "Failed to restore broker", saveErr)
				return
			}
			writeViolation(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, brokerDTO(updated))
}

// ValidateBroker replays the balance validator on demand.
// POST /api/brokers/{id}/validate?from=YYYY-MM-DD
func (h *Handler) ValidateBroker(w http.ResponseWriter, r *http.Request) {
	id := ledger.BrokerID(chi.URLParam(r, "id"))

	var from *fincore.Date
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := fincore.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
		from = &parsed
	}

	err := h.Validator.ValidateBroker(r.Context(), id, from)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Broker not found", nil)
		return
	}
	if errors.Is(err, ledger.ErrBalanceViolation) {
		writeViolation(w, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Validation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ValidationResultDTO{BrokerID: string(id), Valid: true})
}

// GetBrokerTransactions returns a broker's ledger rows.
// GET /api/brokers/{id}/transactions?from=YYYY-MM-DD
func (h *Handler) GetBrokerTransactions(w http.ResponseWriter, r *http.Request) {
	id := ledger.BrokerID(chi.URLParam(r, "id"))

	var from *fincore.Date
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := fincore.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
		from = &parsed
	}

	txs, err := h.Transactions.TransactionsByBroker(r.Context(), id, from)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = transactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ASSET HANDLERS
// =============================================================================

// ListAssets returns all assets.
// GET /api/assets
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.Assets.ListAssets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assets", err)
		return
	}

	dtos := make([]AssetDTO, 0, len(assets))
	for _, a := range assets {
		dto, err := h.assetDTO(a)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Corrupt asset schedule", err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAsset returns a single asset.
// GET /api/assets/{id}
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := ledger.AssetID(chi.URLParam(r, "id"))

	a, err := h.Assets.GetAsset(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Asset not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get asset", err)
		return
	}

	dto, err := h.assetDTO(a)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Corrupt asset schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreateAsset creates a new asset. A scheduled-investment asset must
// carry a schedule that parses and validates.
// POST /api/assets
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req SaveAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.Currency == "" {
		writeError(w, http.StatusBadRequest, "name and currency are required", nil)
		return
	}
	if req.Provider == "" {
		req.Provider = pricing.ProviderScheduledInvestment
	}
	if _, err := h.Providers.Lookup(req.Provider); err != nil {
		writeError(w, http.StatusBadRequest, "Unknown provider", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	scheduleJSON := ""
	if req.Provider == pricing.ProviderScheduledInvestment {
		if req.Schedule == nil {
			writeError(w, http.StatusBadRequest, "scheduled_investment assets require a schedule", nil)
			return
		}
		parsed, err := h.scheduleFactory.FromJSON(*req.Schedule)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid schedule", err)
			return
		}
		scheduleJSON, err = h.scheduleFactory.MarshalSchedule(parsed)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to store schedule", err)
			return
		}
	}

	a := ledger.Asset{
		ID:           ledger.AssetID(req.ID),
		Name:         req.Name,
		Currency:     ledger.Currency(req.Currency),
		Provider:     req.Provider,
		ScheduleJSON: scheduleJSON,
	}
	if err := h.Assets.SaveAsset(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save asset", err)
		return
	}

	dto, err := h.assetDTO(a)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Corrupt asset schedule", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) assetDTO(a ledger.Asset) (AssetDTO, error) {
	dto := AssetDTO{
		ID:       string(a.ID),
		Name:     a.Name,
		Currency: string(a.Currency),
		Provider: a.Provider,
	}
	if a.ScheduleJSON != "" {
		schedule, err := h.scheduleFactory.ParseSchedule(a.ScheduleJSON)
		if err != nil {
			return AssetDTO{}, err
		}
		sj := h.scheduleFactory.ToJSON(schedule)
		dto.Schedule = &sj
	}
	return dto, nil
}

// =============================================================================
// VALUATION HANDLERS
// =============================================================================

// GetAssetValue returns a point valuation.
// GET /api/assets/{id}/value?date=YYYY-MM-DD (default: today)
func (h *Handler) GetAssetValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := ledger.AssetID(chi.URLParam(r, "id"))

	asOf := fincore.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := fincore.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		asOf = parsed
	}

	asset, provider, ok := h.loadAssetProvider(ctx, w, id)
	if !ok {
		return
	}

	value, err := provider.Value(ctx, asset, asOf)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Valuation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

// GetAssetHistory returns a day-by-day close series.
// GET /api/assets/{id}/history?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetAssetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := ledger.AssetID(chi.URLParam(r, "id"))

	from, err := fincore.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := fincore.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}

	asset, provider, ok := h.loadAssetProvider(ctx, w, id)
	if !ok {
		return
	}

	series, err := provider.History(ctx, asset, from, to)
	if errors.Is(err, fincore.ErrInvalidRange) {
		writeError(w, http.StatusBadRequest, "from must not be after to", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Valuation failed", err)
		return
	}
	if series == nil {
		series = []pricing.HistoricalPoint{}
	}
	writeJSON(w, http.StatusOK, series)
}

func (h *Handler) loadAssetProvider(ctx context.Context, w http.ResponseWriter, id ledger.AssetID) (ledger.Asset, pricing.Provider, bool) {
	asset, err := h.Assets.GetAsset(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Asset not found", nil)
		return ledger.Asset{}, nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get asset", err)
		return ledger.Asset{}, nil, false
	}

	provider, err := h.Providers.Lookup(asset.Provider)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Unknown provider on asset", err)
		return ledger.Asset{}, nil, false
	}
	return asset, provider, true
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction inserts a ledger row, then replays the balance
// validator from the row's date. On violation the row is removed again
// and the request fails with 422.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SaveTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, err := h.parseTransaction(req, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
		return
	}

	// The broker must exist before its ledger can grow.
	if _, err := h.Brokers.GetBroker(ctx, tx.BrokerID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Broker not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get broker", err)
		return
	}

	if err := h.Transactions.InsertTransaction(ctx, tx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to insert transaction", err)
		return
	}

	if err := h.Validator.ValidateBroker(ctx, tx.BrokerID, &tx.Date); err != nil {
		if delErr := h.Transactions.DeleteTransaction(ctx, tx.ID); delErr != nil {
			writeError(w, http.StatusInternalServerError, "Failed to roll back transaction", delErr)
			return
		}
		writeViolation(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionDTO(tx))
}

// UpdateTransaction replaces a ledger row, then replays the validator
// from the earlier of the old and new dates. On violation the original
// row is restored.
// PUT /api/transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	old, err := h.Transactions.GetTransaction(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get transaction", err)
		return
	}

	var req SaveTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.ID = string(id)

	tx, err := h.parseTransaction(req, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
		return
	}

	if err := h.Transactions.UpdateTransaction(ctx, tx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update transaction", err)
		return
	}

	// Both the vacated old date and the new date can flip a balance.
	from := fincore.MinDate(old.Date, tx.Date)
	if err := h.validateAffected(ctx, from, old.BrokerID, tx.BrokerID); err != nil {
		if restoreErr := h.Transactions.UpdateTransaction(ctx, old); restoreErr != nil {
			writeError(w, http.StatusInternalServerError, "Failed to roll back transaction", restoreErr)
			return
		}
		writeViolation(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionDTO(tx))
}

// DeleteTransaction removes a ledger row, then replays the validator
// from the removed row's date. On violation the row is restored -
// deleting a deposit can overdraw everything after it.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	old, err := h.Transactions.GetTransaction(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get transaction", err)
		return
	}

	if err := h.Transactions.DeleteTransaction(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete transaction", err)
		return
	}

	if err := h.Validator.ValidateBroker(ctx, old.BrokerID, &old.Date); err != nil {
		if insErr := h.Transactions.InsertTransaction(ctx, old); insErr != nil {
			writeError(w, http.StatusInternalServerError, "Failed to roll back transaction", insErr)
			return
		}
		writeViolation(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validateAffected replays every broker a mutation touched.
func (h *Handler) validateAffected(ctx context.Context, from fincore.Date, brokerIDs ...ledger.BrokerID) error {
	seen := make(map[ledger.BrokerID]bool, len(brokerIDs))
	for _, id := range brokerIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := h.Validator.ValidateBroker(ctx, id, &from); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) parseTransaction(req SaveTransactionRequest, generateID bool) (ledger.Transaction, error) {
	if req.BrokerID == "" {
		return ledger.Transaction{}, errors.New("broker_id is required")
	}
	if req.Type == "" {
		return ledger.Transaction{}, errors.New("type is required")
	}
	if req.ID == "" {
		if !generateID {
			return ledger.Transaction{}, errors.New("id is required")
		}
		req.ID = uuid.NewString()
	}

	date, err := fincore.ParseDate(req.Date)
	if err != nil {
		return ledger.Transaction{}, err
	}

	quantity, err := parseDecimal(req.Quantity)
	if err != nil {
		return ledger.Transaction{}, err
	}
	price, err := parseDecimal(req.Price)
	if err != nil {
		return ledger.Transaction{}, err
	}
	amount, err := parseDecimal(req.Amount)
	if err != nil {
		return ledger.Transaction{}, err
	}

	return ledger.Transaction{
		ID:       ledger.TransactionID(req.ID),
		BrokerID: ledger.BrokerID(req.BrokerID),
		AssetID:  ledger.AssetID(req.AssetID),
		Type:     ledger.TxType(req.Type),
		Date:     date,
		Quantity: quantity,
		Price:    price,
		Amount:   amount,
		Currency: ledger.Currency(req.Currency),
		Note:     req.Note,
	}, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeViolation renders a balance violation as 422 with full detail,
// and anything else as a 500.
func writeViolation(w http.ResponseWriter, err error) {
	var violation *ledger.BalanceViolationError
	if !errors.As(err, &violation) {
		writeError(w, http.StatusInternalServerError, "Validation failed", err)
		return
	}
	dto := violationDTO(violation)
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:     "Balance violation",
		Details:   violation.Error(),
		Violation: &dto,
	})
}
