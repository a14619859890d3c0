/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

DECIMALS AND DATES:
  Quantities, prices, and amounts travel as JSON strings and are parsed
  with shopspring/decimal - JSON numbers would round through float64.
  Dates are plain YYYY-MM-DD strings.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/schedule.go: ScheduleJSON type embedded in asset payloads
*/
package api

import (
	"github.com/alfystar/librefolio/factory"
	"github.com/alfystar/librefolio/ledger"
)

// =============================================================================
// BROKERS
// =============================================================================

// BrokerDTO represents a broker in API responses.
type BrokerDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	BaseCurrency       string `json:"base_currency"`
	AllowCashOverdraft bool   `json:"allow_cash_overdraft"`
	AllowAssetShorting bool   `json:"allow_asset_shorting"`
}

// SaveBrokerRequest creates or updates a broker. An empty ID on create
// gets a generated one.
type SaveBrokerRequest struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	BaseCurrency       string `json:"base_currency"`
	AllowCashOverdraft bool   `json:"allow_cash_overdraft"`
	AllowAssetShorting bool   `json:"allow_asset_shorting"`
}

func brokerDTO(b ledger.Broker) BrokerDTO {
	return BrokerDTO{
		ID:                 string(b.ID),
		Name:               b.Name,
		BaseCurrency:       string(b.BaseCurrency),
		AllowCashOverdraft: b.AllowCashOverdraft,
		AllowAssetShorting: b.AllowAssetShorting,
	}
}

// =============================================================================
// ASSETS
// =============================================================================

// AssetDTO represents an asset in API responses. Schedule is present
// only for scheduled-yield assets.
type AssetDTO struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Currency string                `json:"currency"`
	Provider string                `json:"provider"`
	Schedule *factory.ScheduleJSON `json:"schedule,omitempty"`
}

// SaveAssetRequest creates or updates an asset.
type SaveAssetRequest struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Currency string                `json:"currency"`
	Provider string                `json:"provider"`
	Schedule *factory.ScheduleJSON `json:"schedule,omitempty"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents one ledger row in API responses.
type TransactionDTO struct {
	ID       string `json:"id"`
	BrokerID string `json:"broker_id"`
	AssetID  string `json:"asset_id,omitempty"`
	Type     string `json:"type"`
	Date     string `json:"date"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	Amount   string `json:"amount"`
	Currency string `json:"currency,omitempty"`
	Note     string `json:"note,omitempty"`
}

// SaveTransactionRequest creates or updates a transaction. Decimal
// fields default to zero when omitted.
type SaveTransactionRequest struct {
	ID       string `json:"id"`
	BrokerID string `json:"broker_id"`
	AssetID  string `json:"asset_id"`
	Type     string `json:"type"`
	Date     string `json:"date"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Note     string `json:"note"`
}

func transactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:       string(tx.ID),
		BrokerID: string(tx.BrokerID),
		AssetID:  string(tx.AssetID),
		Type:     string(tx.Type),
		Date:     tx.Date.String(),
		Quantity: tx.Quantity.String(),
		Price:    tx.Price.String(),
		Amount:   tx.Amount.String(),
		Currency: string(tx.Currency),
		Note:     tx.Note,
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationResultDTO is the body of a successful validation call.
type ValidationResultDTO struct {
	BrokerID string `json:"broker_id"`
	Valid    bool   `json:"valid"`
}

// ViolationDTO carries the detail of a rejected mutation or failed
// validation run.
type ViolationDTO struct {
	BrokerID string `json:"broker_id"`
	Date     string `json:"date"`
	Key      string `json:"currency_or_asset"`
	Balance  string `json:"balance"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

func violationDTO(v *ledger.BalanceViolationError) ViolationDTO {
	return ViolationDTO{
		BrokerID: string(v.BrokerID),
		Date:     v.Date.String(),
		Key:      v.Key,
		Balance:  v.Balance.String(),
		Kind:     string(v.Kind),
		Message:  v.Error(),
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error     string        `json:"error"`
	Details   string        `json:"details,omitempty"`
	Violation *ViolationDTO `json:"violation,omitempty"`
}
