package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"loan-origination/internal/config"
	"loan-origination/internal/domain/scoring"
	"loan-origination/internal/infrastructure/monitoring"
	"loan-origination/internal/pkg/apperrors"
)

const (
	systemScoring = "scoring"

	opRequestScore   = "requestScore"
	opSubmitQuery    = "submitScoreQuery"
	opRegisterClient = "registerClient"
	opTestConnection = "testConnection"

	DefaultFallbackScore = 650.0
	fallbackMessage      = "This is fallback data due to Scoring Engine API failure"
)

// ScoreResult is the scoring engine's answer for a customer. Fallback marks
// results synthesized locally after every attempt failed.
type ScoreResult struct {
	CustomerNumber string  `json:"customerNumber"`
	Score          float64 `json:"score"`
	LimitAmount    float64 `json:"limitAmount"`
	ScoreDate      string  `json:"scoreDate,omitempty"`
	Fallback       bool    `json:"isFallback"`
	Message        string  `json:"message,omitempty"`
}

type ClientRegistration struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegistrationResult struct {
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	Response map[string]any `json:"response,omitempty"`
}

type ScoringClient struct {
	baseURL       string
	username      string
	password      string
	httpClient    *http.Client
	retry         RetryPolicy
	fallbackScore float64
	logger        *slog.Logger
	now           func() time.Time
}

var _ scoring.ScoreQueryGateway = (*ScoringClient)(nil)

func NewScoringClient(cfg config.ScoringConfig, httpClient *http.Client, logger *slog.Logger) *ScoringClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	fallback := cfg.FallbackScore
	if fallback == 0 {
		fallback = DefaultFallbackScore
	}
	return &ScoringClient{
		baseURL:       strings.TrimRight(cfg.URL, "/"),
		username:      cfg.Username,
		password:      cfg.Password,
		httpClient:    httpClient,
		retry:         RetryPolicy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.RetryDelay},
		fallbackScore: fallback,
		logger:        logger.With("component", "ScoringClient"),
		now:           time.Now,
	}
}

func (c *ScoringClient) BaseURL() string { return c.baseURL }

// RequestScore fetches a customer's score. It never fails: when every
// attempt fails it answers with a fallback result.
func (c *ScoringClient) RequestScore(ctx context.Context, customerNumber string) *ScoreResult {
	endpoint := c.baseURL + "/score/" + url.PathEscape(customerNumber)

	var result ScoreResult
	attempts, err := c.call(ctx, opRequestScore, func() error {
		body, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		var decoded ScoreResult
		if err := json.Unmarshal(body, &decoded); err != nil {
			return fmt.Errorf("failed to decode score response: %w", err)
		}
		result = decoded
		return nil
	})
	if err == nil {
		if result.CustomerNumber == "" {
			result.CustomerNumber = customerNumber
		}
		return &result
	}

	c.logger.WarnContext(ctx, "All score attempts failed, answering with fallback",
		slog.String("customerNumber", customerNumber),
		slog.Int("attempts", attempts),
		slog.Any("error", err),
	)
	monitoring.RecordFallback(opRequestScore)
	return &ScoreResult{
		CustomerNumber: customerNumber,
		Score:          c.fallbackScore,
		ScoreDate:      c.now().Format(time.DateOnly),
		Fallback:       true,
		Message:        fallbackMessage,
	}
}

// SubmitScoreQuery asks the engine to score customerNumber and post the
// result back with token. A fabricated acknowledgement would strand the
// token, so exhaustion is reported as an upstream error.
func (c *ScoringClient) SubmitScoreQuery(ctx context.Context, customerNumber, token string) error {
	payload, err := json.Marshal(map[string]string{
		"customerNumber": customerNumber,
		"token":          token,
	})
	if err != nil {
		return fmt.Errorf("failed to encode score query: %w", err)
	}

	attempts, err := c.call(ctx, opSubmitQuery, func() error {
		_, err := c.do(ctx, http.MethodPost, c.baseURL+"/score", payload)
		return err
	})
	if err != nil {
		return apperrors.WrapUpstreamError(fmt.Errorf("score query failed after %d attempts: %w", attempts, err), systemScoring)
	}
	return nil
}

func (c *ScoringClient) RegisterClient(ctx context.Context, reg ClientRegistration) *RegistrationResult {
	if missing := reg.MissingFields(); len(missing) > 0 {
		return &RegistrationResult{
			Error: "Missing required fields: url, name, username, and password are required",
		}
	}
	payload, err := json.Marshal(reg)
	if err != nil {
		return &RegistrationResult{Error: err.Error()}
	}

	var response map[string]any
	attempts, err := c.call(ctx, opRegisterClient, func() error {
		body, err := c.do(ctx, http.MethodPost, c.baseURL+"/client/createClient", payload)
		if err != nil {
			return err
		}
		response = map[string]any{}
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &response); err != nil {
				return fmt.Errorf("failed to decode registration response: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "Client registration failed",
			slog.String("name", reg.Name), slog.Int("attempts", attempts), slog.Any("error", err))
		return &RegistrationResult{
			Error: fmt.Sprintf("Failed to register client after %d attempts", attempts),
		}
	}
	return &RegistrationResult{Success: true, Response: response}
}

// TestConnection pings the engine exactly once.
func (c *ScoringClient) TestConnection(ctx context.Context) bool {
	_, err := c.do(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	outcome := "success"
	if err != nil {
		outcome = "failure"
		c.logger.WarnContext(ctx, "Failed to connect to scoring engine", slog.Any("error", err))
	}
	monitoring.RecordGatewayAttempt(systemScoring, opTestConnection, outcome)
	return err == nil
}

func (c *ScoringClient) call(ctx context.Context, operation string, op func() error) (int, error) {
	start := time.Now()
	defer func() { monitoring.RecordGatewayCall(systemScoring, operation, time.Since(start)) }()

	return c.retry.Do(ctx, func(attempt int) error {
		err := op()
		if err != nil {
			monitoring.RecordGatewayAttempt(systemScoring, operation, "failure")
			c.logger.DebugContext(ctx, "Scoring engine attempt failed",
				slog.String("operation", operation), slog.Int("attempt", attempt), slog.Any("error", err))
			return err
		}
		monitoring.RecordGatewayAttempt(systemScoring, operation, "success")
		return nil
	}, func(err error, wait time.Duration) {
		c.logger.InfoContext(ctx, "Retrying scoring engine call",
			slog.String("operation", operation), slog.Duration("wait", wait))
	})
}

func (c *ScoringClient) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to scoring engine failed: %w", err)
	}
	return readBody(resp)
}

// MissingFields lists the blank required fields in declaration order.
func (r ClientRegistration) MissingFields() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"url", r.URL}, {"name", r.Name}, {"username", r.Username}, {"password", r.Password},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
