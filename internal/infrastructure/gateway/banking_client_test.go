package gateway

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-origination/internal/config"
	"loan-origination/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kycReply = `<?xml version="1.0" encoding="UTF-8"?>
<CustomerResponse xmlns="http://credable.io/cbs/customer">
  <customer>
    <createdAt>2023-05-01T10:00:00</createdAt>
    <customerNumber>C1</customerNumber>
    <firstName>Jane</firstName>
    <lastName>Doe</lastName>
    <monthlyIncome>4200.5</monthlyIncome>
  </customer>
</CustomerResponse>`

func newTestBankingClient(url string) *BankingClient {
	return NewBankingClient(config.BankingConfig{
		URL:            url,
		TransactionURL: url,
		Username:       "bank",
		Password:       "secret",
		Timeout:        time.Second,
	}, nil, testLogger())
}

func TestBankingClient_FetchKYC(t *testing.T) {
	ctx := context.Background()

	t.Run("sends namespaced request and parses profile", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "bank", user)
			assert.Equal(t, "secret", pass)

			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var req customerRequest
			require.NoError(t, xml.Unmarshal(raw, &req))
			assert.Equal(t, customerNamespace, req.XMLName.Space)
			assert.Equal(t, "CustomerRequest", req.XMLName.Local)
			assert.Equal(t, "C1", req.CustomerNumber)

			w.Header().Set("Content-Type", "text/xml")
			_, _ = w.Write([]byte(kycReply))
		}))
		defer srv.Close()

		profile, err := newTestBankingClient(srv.URL).FetchKYC(ctx, "C1")

		require.NoError(t, err)
		assert.Equal(t, "C1", profile.CustomerNumber)
		assert.Equal(t, "Jane", profile.FirstName)
		assert.Equal(t, "Doe", profile.LastName)
		assert.Equal(t, 4200.5, profile.MonthlyIncome)
		assert.Equal(t, "2023-05-01T10:00:00", profile.CreatedAt)
	})

	t.Run("soap envelope is unwrapped", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
				`<ns2:CustomerResponse xmlns:ns2="http://credable.io/cbs/customer"><ns2:customer>` +
				`<ns2:customerNumber>C2</ns2:customerNumber><ns2:firstName>Ann</ns2:firstName>` +
				`</ns2:customer></ns2:CustomerResponse></soap:Body></soap:Envelope>`))
		}))
		defer srv.Close()

		profile, err := newTestBankingClient(srv.URL).FetchKYC(ctx, "C2")

		require.NoError(t, err)
		assert.Equal(t, "Ann", profile.FirstName)
	})

	failures := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"malformed xml": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<CustomerResponse><customer>`))
		},
		"unknown customer": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<CustomerResponse xmlns="http://credable.io/cbs/customer"/>`))
		},
		"not xml": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"customerNumber":"C1"}`))
		},
	}
	for name, handler := range failures {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			profile, err := newTestBankingClient(srv.URL).FetchKYC(ctx, "C1")

			assert.Nil(t, profile)
			assert.ErrorIs(t, err, apperrors.ErrUpstream)
		})
	}
}

func TestBankingClient_FetchTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("sends soap request and summarizes entries", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "bank", user)
			assert.Equal(t, "secret", pass)
			assert.Equal(t, transactionSOAPAction, r.Header.Get("SOAPAction"))

			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Contains(t, string(raw), `xmlns:cbs="http://credable.io/cbs/"`)
			assert.Contains(t, string(raw), "<cbs:customerNumber>234774784</cbs:customerNumber>")

			_, _ = w.Write([]byte(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
				`<ns2:GetTransactionDataResponse xmlns:ns2="http://credable.io/cbs/">` +
				`<ns2:transactions><ns2:transactionDate>2025-03-02</ns2:transactionDate></ns2:transactions>` +
				`<ns2:transactions><ns2:transactionDate>2025-03-20</ns2:transactionDate></ns2:transactions>` +
				`<ns2:transactions><ns2:transactionDate>2025-01-11</ns2:transactionDate></ns2:transactions>` +
				`</ns2:GetTransactionDataResponse></soap:Body></soap:Envelope>`))
		}))
		defer srv.Close()

		data := newTestBankingClient(srv.URL).FetchTransactions(ctx, "234774784")

		assert.Equal(t, "234774784", data.CustomerNumber)
		assert.False(t, data.Fallback)
		assert.Empty(t, data.Message)
		assert.Equal(t, TransactionSummary{Count: 3, LastTransactionDate: "2025-03-20"}, data.Transactions)
	})

	t.Run("reported count wins over listed entries", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<GetTransactionDataResponse xmlns="http://credable.io/cbs/">` +
				`<customerNumber>234774784</customerNumber><transactionCount>5</transactionCount>` +
				`</GetTransactionDataResponse>`))
		}))
		defer srv.Close()

		data := newTestBankingClient(srv.URL).FetchTransactions(ctx, "234774784")

		assert.False(t, data.Fallback)
		assert.Equal(t, TransactionSummary{Count: 5, LastTransactionDate: "N/A"}, data.Transactions)
	})

	failures := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"unexpected element": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(kycReply))
		},
	}
	for name, handler := range failures {
		t.Run(name+" serves fallback", func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			data := newTestBankingClient(srv.URL).FetchTransactions(ctx, "318411216")

			require.NotNil(t, data)
			assert.Equal(t, "318411216", data.CustomerNumber)
			assert.True(t, data.Fallback)
			assert.Equal(t, "This is fallback data due to CBS API failure", data.Message)
			assert.Equal(t, TransactionSummary{Count: 0, LastTransactionDate: "N/A"}, data.Transactions)
		})
	}

	t.Run("unreachable host serves fallback", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		data := newTestBankingClient(url).FetchTransactions(ctx, "C9")

		assert.True(t, data.Fallback)
	})
}
