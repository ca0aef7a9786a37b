package dto

import (
	"encoding/json"
	"strings"
	"time"

	"loan-origination/internal/domain/customer"
	"loan-origination/internal/pkg/apperrors"
)

type SubscribeRequest struct {
	CustomerNumber string `json:"customerNumber" example:"234774784"`
}

func (r *SubscribeRequest) Validate() error {
	if strings.TrimSpace(r.CustomerNumber) == "" {
		return apperrors.NewValidationError("customerNumber", "customerNumber is required")
	}
	return nil
}

type SubscribeResponse struct {
	CustomerID int64 `json:"customerId"`
}

type CustomerResponse struct {
	CustomerID     int64           `json:"customerId"`
	CustomerNumber string          `json:"customerNumber"`
	KYC            json.RawMessage `json:"kyc,omitempty" swaggertype:"object"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{}
	}
	return CustomerResponse{
		CustomerID:     cust.CustomerID,
		CustomerNumber: cust.CustomerNumber,
		KYC:            cust.KYC,
		CreatedAt:      cust.CreatedAt,
		UpdatedAt:      cust.UpdatedAt,
	}
}
