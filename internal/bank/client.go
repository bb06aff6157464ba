package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"remit/internal/core"
)

// Client is the thin protocol adapter for the correspondent bank's
// sandbox API. Network failures, timeouts and 5xx responses are retried
// with backoff and surface as core.ErrExternalTimeout once retries are
// exhausted; 4xx responses surface as core.ErrExternalRejected. The
// idempotency key is forwarded on transaction-request creation so a
// retried call never creates a second movement bank-side.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     core.Logger
}

func NewClient(cfg Config, logger core.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (c *Client) CreateAccount(ctx context.Context, currency, ownerRef string) (core.ExternalAccount, error) {
	payload := map[string]string{
		"currency":  currency,
		"owner_ref": ownerRef,
	}

	var resp struct {
		ID   string `json:"id"`
		IBAN string `json:"iban"`
	}
	if err := c.do(ctx, http.MethodPost, "/accounts", "", payload, &resp); err != nil {
		return core.ExternalAccount{}, err
	}

	return core.ExternalAccount{ID: resp.ID, IBAN: resp.IBAN}, nil
}

func (c *Client) CreateTransactionRequest(ctx context.Context, fromRef, toRef string, amountCents int64, currency, idempotencyKey string) (core.ExternalRequest, error) {
	payload := map[string]any{
		"from_account": fromRef,
		"to":           toRef,
		"amount_cents": amountCents,
		"currency":     currency,
	}

	var resp struct {
		ID        string `json:"id"`
		Challenge *struct {
			ID     string `json:"id"`
			Method string `json:"method"`
		} `json:"challenge"`
	}
	if err := c.do(ctx, http.MethodPost, "/transaction_requests", idempotencyKey, payload, &resp); err != nil {
		return core.ExternalRequest{}, err
	}

	req := core.ExternalRequest{RequestID: resp.ID}
	if resp.Challenge != nil {
		req.Challenge = &core.ExternalChallenge{ID: resp.Challenge.ID, Method: resp.Challenge.Method}
	}

	return req, nil
}

func (c *Client) AnswerChallenge(ctx context.Context, requestID, challengeID, answer string) error {
	payload := map[string]string{
		"challenge_id": challengeID,
		"answer":       answer,
	}

	path := fmt.Sprintf("/transaction_requests/%s/challenge", requestID)
	return c.do(ctx, http.MethodPost, path, "", payload, nil)
}

func (c *Client) GetTransactionRequestStatus(ctx context.Context, requestID string) (core.ExternalRequestStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}

	path := fmt.Sprintf("/transaction_requests/%s", requestID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return "", err
	}

	switch core.ExternalRequestStatus(resp.Status) {
	case core.ExternalPending, core.ExternalCompleted, core.ExternalFailed:
		return core.ExternalRequestStatus(resp.Status), nil
	}

	return "", fmt.Errorf("%w: unknown status %q", core.ErrExternalRejected, resp.Status)
}

func (c *Client) GetAccountBalance(ctx context.Context, accountID string) (int64, string, error) {
	var resp struct {
		AmountCents int64  `json:"amount_cents"`
		Currency    string `json:"currency"`
	}

	path := fmt.Sprintf("/accounts/%s/balance", accountID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return 0, "", err
	}

	return resp.AmountCents, resp.Currency, nil
}

// do performs one logical API call with the retry policy applied. The
// request body is rebuilt per attempt; retries reuse the same idempotency
// key so they are safe for non-idempotent endpoints.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, payload, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WarnContext(ctx, "retrying bank call",
				"method", method,
				"path", path,
				"attempt", attempt,
				"error", lastErr,
			)

			timer := time.NewTimer(c.cfg.RetryBackoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		retryable, err := c.doOnce(ctx, method, path, idempotencyKey, payload, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w: %s %s: %v", core.ErrExternalTimeout, method, path, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path, idempotencyKey string, payload, out any) (retryable bool, err error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return false, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return false, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return false, nil
		}
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
		return false, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("bank returned status %d", resp.StatusCode)

	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("%w: status %d: %s", core.ErrExternalRejected, resp.StatusCode, bytes.TrimSpace(msg))
	}
}
