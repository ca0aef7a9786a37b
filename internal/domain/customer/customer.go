package customer

import (
	"encoding/json"
	"strings"
	"time"
)

// Customer is a subscribed banking customer. KYC holds the snapshot fetched
// from the core banking system at subscription (or last refresh) time.
type Customer struct {
	CustomerID     int64           `json:"customerId"`
	CustomerNumber string          `json:"customerNumber"`
	KYC            json.RawMessage `json:"kyc,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// KYCSnapshot is the customer profile returned by the core banking system.
type KYCSnapshot struct {
	CustomerNumber string  `json:"customerNumber"`
	FirstName      string  `json:"firstName"`
	LastName       string  `json:"lastName"`
	MonthlyIncome  float64 `json:"monthlyIncome"`
	CreatedAt      string  `json:"createdAt,omitempty"`
}

func NewCustomer(customerNumber string, kyc json.RawMessage) *Customer {
	now := time.Now()
	return &Customer{
		CustomerNumber: customerNumber,
		KYC:            kyc,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (c *Customer) UpdateKYC(kyc json.RawMessage) {
	c.KYC = kyc
	c.UpdatedAt = time.Now()
}

// NormalizeNumber trims surrounding whitespace from an external customer id.
func NormalizeNumber(customerNumber string) string {
	return strings.TrimSpace(customerNumber)
}
