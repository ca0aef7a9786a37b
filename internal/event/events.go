package event

import "time"

type CustomerSubscribedEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	CustomerID     int64     `json:"customerId"`
	CustomerNumber string    `json:"customerNumber"`
}

type LoanCreatedEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	LoanID         string    `json:"loanId"`
	CustomerNumber string    `json:"customerNumber"`
	Amount         float64   `json:"amount"`
}

type LoanDecidedEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	LoanID          string    `json:"loanId"`
	CustomerNumber  string    `json:"customerNumber"`
	Status          string    `json:"status"`
	Score           float64   `json:"score"`
	Limit           float64   `json:"limit"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
}
