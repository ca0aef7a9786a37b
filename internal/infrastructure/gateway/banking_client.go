package gateway

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"loan-origination/internal/config"
	"loan-origination/internal/domain/customer"
	"loan-origination/internal/infrastructure/monitoring"
	"loan-origination/internal/pkg/apperrors"
)

const (
	systemBanking         = "banking"
	opFetchKYC            = "fetchKYC"
	opFetchTransactions   = "fetchTransactions"
	customerNamespace     = "http://credable.io/cbs/customer"
	cbsNamespace          = "http://credable.io/cbs/"
	soapEnvNamespace      = "http://schemas.xmlsoap.org/soap/envelope/"
	transactionSOAPAction = "http://credable.io/cbs/GetTransactionData"

	transactionFallbackMessage = "This is fallback data due to CBS API failure"
	noTransactionDate          = "N/A"
)

type customerRequest struct {
	XMLName        xml.Name `xml:"http://credable.io/cbs/customer CustomerRequest"`
	CustomerNumber string   `xml:"customerNumber"`
}

type customerResponse struct {
	Customer struct {
		CreatedAt      string  `xml:"createdAt"`
		CustomerNumber string  `xml:"customerNumber"`
		FirstName      string  `xml:"firstName"`
		LastName       string  `xml:"lastName"`
		MonthlyIncome  float64 `xml:"monthlyIncome"`
	} `xml:"customer"`
}

type transactionEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	SoapNS  string   `xml:"xmlns:soapenv,attr"`
	CbsNS   string   `xml:"xmlns:cbs,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    struct {
		Request struct {
			CustomerNumber string `xml:"cbs:customerNumber"`
		} `xml:"cbs:GetTransactionDataRequest"`
	} `xml:"soapenv:Body"`
}

type transactionResponse struct {
	CustomerNumber      string `xml:"customerNumber"`
	TransactionCount    *int   `xml:"transactionCount"`
	LastTransactionDate string `xml:"lastTransactionDate"`
	Transactions        []struct {
		TransactionDate string `xml:"transactionDate"`
	} `xml:"transactions"`
}

// TransactionSummary condenses a customer's transaction history.
type TransactionSummary struct {
	Count               int    `json:"count"`
	LastTransactionDate string `json:"lastTransactionDate"`
}

// TransactionData is served to the scoring engine. Fallback is set when
// core banking could not be reached and the summary is a placeholder.
type TransactionData struct {
	CustomerNumber string             `json:"customerNumber"`
	Fallback       bool               `json:"isFallback,omitempty"`
	Message        string             `json:"message,omitempty"`
	Transactions   TransactionSummary `json:"transactions"`
}

// BankingClient talks to the core banking XML services for KYC profiles
// and transaction history.
type BankingClient struct {
	url            string
	transactionURL string
	username       string
	password       string
	httpClient     *http.Client
	logger         *slog.Logger
}

var _ customer.KYCProvider = (*BankingClient)(nil)

func NewBankingClient(cfg config.BankingConfig, httpClient *http.Client, logger *slog.Logger) *BankingClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &BankingClient{
		url:            cfg.URL,
		transactionURL: cfg.TransactionURL,
		username:       cfg.Username,
		password:       cfg.Password,
		httpClient:     httpClient,
		logger:         logger.With("component", "BankingClient"),
	}
}

func (c *BankingClient) FetchKYC(ctx context.Context, customerNumber string) (*customer.KYCSnapshot, error) {
	start := time.Now()
	defer func() { monitoring.RecordGatewayCall(systemBanking, opFetchKYC, time.Since(start)) }()

	profile, err := c.fetch(ctx, customerNumber)
	if err != nil {
		monitoring.RecordGatewayAttempt(systemBanking, opFetchKYC, "failure")
		c.logger.WarnContext(ctx, "KYC request failed", slog.String("customerNumber", customerNumber), slog.Any("error", err))
		return nil, apperrors.WrapUpstreamError(err, systemBanking)
	}
	monitoring.RecordGatewayAttempt(systemBanking, opFetchKYC, "success")
	return profile, nil
}

func (c *BankingClient) fetch(ctx context.Context, customerNumber string) (*customer.KYCSnapshot, error) {
	payload, err := xml.Marshal(customerRequest{CustomerNumber: customerNumber})
	if err != nil {
		return nil, fmt.Errorf("failed to encode customer request: %w", err)
	}
	payload = append([]byte(xml.Header), payload...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("Accept", "text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to core banking failed: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	var parsed customerResponse
	if err := decodeElement(body, "CustomerResponse", &parsed); err != nil {
		return nil, err
	}
	if parsed.Customer.CustomerNumber == "" {
		return nil, fmt.Errorf("core banking returned no customer for %s", customerNumber)
	}

	return &customer.KYCSnapshot{
		CustomerNumber: parsed.Customer.CustomerNumber,
		FirstName:      parsed.Customer.FirstName,
		LastName:       parsed.Customer.LastName,
		MonthlyIncome:  parsed.Customer.MonthlyIncome,
		CreatedAt:      parsed.Customer.CreatedAt,
	}, nil
}

// FetchTransactions never fails. When core banking is unavailable the
// result carries Fallback and an empty summary.
func (c *BankingClient) FetchTransactions(ctx context.Context, customerNumber string) *TransactionData {
	start := time.Now()
	defer func() { monitoring.RecordGatewayCall(systemBanking, opFetchTransactions, time.Since(start)) }()

	summary, err := c.fetchTransactions(ctx, customerNumber)
	if err != nil {
		monitoring.RecordGatewayAttempt(systemBanking, opFetchTransactions, "failure")
		monitoring.RecordFallback(opFetchTransactions)
		c.logger.WarnContext(ctx, "transaction request failed, serving fallback",
			slog.String("customerNumber", customerNumber), slog.Any("error", err))
		return &TransactionData{
			CustomerNumber: customerNumber,
			Fallback:       true,
			Message:        transactionFallbackMessage,
			Transactions:   TransactionSummary{LastTransactionDate: noTransactionDate},
		}
	}
	monitoring.RecordGatewayAttempt(systemBanking, opFetchTransactions, "success")
	return &TransactionData{CustomerNumber: customerNumber, Transactions: *summary}
}

func (c *BankingClient) fetchTransactions(ctx context.Context, customerNumber string) (*TransactionSummary, error) {
	env := transactionEnvelope{SoapNS: soapEnvNamespace, CbsNS: cbsNamespace}
	env.Body.Request.CustomerNumber = customerNumber
	payload, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction request: %w", err)
	}
	payload = append([]byte(xml.Header), payload...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.transactionURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", transactionSOAPAction)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to core banking failed: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	var parsed transactionResponse
	if err := decodeElement(body, "GetTransactionDataResponse", &parsed); err != nil {
		return nil, err
	}
	return summarizeTransactions(&parsed), nil
}

// summarizeTransactions prefers the totals core banking reports and
// otherwise derives them from the listed entries. ISO dates compare
// lexically.
func summarizeTransactions(r *transactionResponse) *TransactionSummary {
	out := &TransactionSummary{Count: len(r.Transactions), LastTransactionDate: r.LastTransactionDate}
	if r.TransactionCount != nil {
		out.Count = *r.TransactionCount
	}
	if out.LastTransactionDate == "" {
		for _, tx := range r.Transactions {
			if tx.TransactionDate > out.LastTransactionDate {
				out.LastTransactionDate = tx.TransactionDate
			}
		}
	}
	if out.LastTransactionDate == "" {
		out.LastTransactionDate = noTransactionDate
	}
	return out
}

// decodeElement finds the first element named local, bare or wrapped in
// a SOAP envelope, and decodes it into out.
func decodeElement(body []byte, local string, out any) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("no %s element in core banking reply", local)
			}
			return fmt.Errorf("failed to parse core banking reply: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != local {
			continue
		}
		if err := dec.DecodeElement(out, &start); err != nil {
			return fmt.Errorf("failed to decode %s: %w", local, err)
		}
		return nil
	}
}
