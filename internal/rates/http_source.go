package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// HTTPSource fetches interbank rates from a Frankfurter-style endpoint
// (GET <url>?base=EUR&symbols=HNL).
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(cfg Config) *HTTPSource {
	return &HTTPSource{
		baseURL: cfg.ProviderURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *HTTPSource) Name() string {
	return "http"
}

func (s *HTTPSource) FetchRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid provider url: %w", err)
	}

	q := u.Query()
	q.Set("base", base)
	q.Set("symbols", quote)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Decimal{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("rate provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("rate provider returned status %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]json.Number `json:"rates"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to decode rate response: %w", err)
	}

	raw, ok := body.Rates[quote]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("rate provider returned no rate for %s", quote)
	}

	return decimal.NewFromString(raw.String())
}
